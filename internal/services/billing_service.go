// Package services – BillingService
//
// BillingService sells the subscription plans through a hosted, embedded
// checkout. A checkout reuses the payment customer recorded on the user's
// profile and creates one on first purchase. Subscription state is read back
// from the profile; users without one are on the free tier.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/repo"
)

// PaymentGateway is the payment provider seen by BillingService.
type PaymentGateway interface {
	// CreateCustomer registers a customer and returns its provider id.
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	// CreateCheckoutSession opens an embedded subscription checkout and
	// returns the client secret the browser mounts it with.
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (string, error)
}

// Subscription is the billing state of one user.
type Subscription struct {
	Tier           string `json:"tier"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// BillingService exposes the plan catalog and checkout.
type BillingService struct {
	DB *gorm.DB
	// Gateway is nil when payments are not configured.
	Gateway PaymentGateway
	Catalog []domain.Plan
}

// DefaultPlans returns the subscription catalog priced in currency.
func DefaultPlans(currency string) []domain.Plan {
	currency = strings.ToLower(currency)
	return []domain.Plan{
		{
			ID:          "pro-plan",
			Name:        "Pro",
			Description: "Perfect for individuals and creators",
			PriceMinor:  199900,
			Currency:    currency,
			Interval:    "month",
			Tier:        domain.TierPro,
			Features: []string{
				"Unlimited video generations",
				"HD video quality",
				"Priority processing",
				"Chat history saved",
				"Email support",
				"No watermark",
			},
		},
		{
			ID:          "team-plan",
			Name:        "Team",
			Description: "Best for small teams and businesses",
			PriceMinor:  499900,
			Currency:    currency,
			Interval:    "month",
			Tier:        domain.TierTeam,
			Popular:     true,
			Features: []string{
				"Everything in Pro",
				"4K video quality",
				"Team collaboration",
				"Advanced AI models",
				"Priority support",
				"Custom branding",
				"API access",
			},
		},
		{
			ID:          "enterprise-plan",
			Name:        "Enterprise",
			Description: "For large organizations with custom needs",
			PriceMinor:  999900,
			Currency:    currency,
			Interval:    "month",
			Tier:        domain.TierEnterprise,
			Features: []string{
				"Everything in Team",
				"Unlimited team members",
				"Dedicated account manager",
				"Custom AI training",
				"SLA guarantee",
				"On-premise deployment",
				"Advanced analytics",
				"24/7 phone support",
			},
		},
	}
}

// Plans returns the catalog.
func (s *BillingService) Plans() []domain.Plan { return s.Catalog }

// Plan looks a plan up by id.
func (s *BillingService) Plan(id string) (domain.Plan, error) {
	for _, p := range s.Catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Plan{}, ErrPlanNotFound
}

// Checkout opens a subscription checkout for planID and returns its client
// secret.
func (s *BillingService) Checkout(ctx context.Context, userID, email, planID string) (string, error) {
	ctx, span := otel.Tracer("services/BillingService").Start(ctx, "Checkout",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("plan.id", planID),
		),
	)
	defer span.End()

	plan, err := s.Plan(planID)
	if err != nil {
		return "", err
	}
	if s.Gateway == nil {
		return "", ErrPaymentsDisabled
	}

	profile, err := repo.EnsureProfile(ctx, s.DB, userID, email)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}

	customerID := profile.StripeCustomerID
	if customerID == "" {
		if profile.Email != "" {
			email = profile.Email
		}
		customerID, err = s.Gateway.CreateCustomer(ctx, userID, email)
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("create customer: %w", err)
		}
		if err := repo.SetStripeCustomer(ctx, s.DB, userID, customerID); err != nil {
			return "", fmt.Errorf("save customer: %w", err)
		}
	}

	secret, err := s.Gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		CustomerID: customerID,
		UserID:     userID,
		Plan:       plan,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return secret, nil
}

// Subscription reports the tier of userID; "free" when no profile exists.
func (s *BillingService) Subscription(ctx context.Context, userID string) (Subscription, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return Subscription{Tier: domain.TierFree}, nil
	}
	if err != nil {
		return Subscription{}, err
	}
	tier := p.SubscriptionTier
	if tier == "" {
		tier = domain.TierFree
	}
	return Subscription{Tier: tier, SubscriptionID: p.StripeSubscriptionID}, nil
}
