// Package payment adapts Stripe to the billing service: customers are created
// with the studio user id in their metadata and subscriptions are sold through
// embedded Checkout sessions priced inline.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/animai-studio/internal/domain"
)

// StripeGateway creates Stripe customers and checkout sessions.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway returns a gateway authenticated with secretKey.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	return &StripeGateway{api: client.New(secretKey, nil)}, nil
}

// CreateCustomer registers a Stripe customer tagged with userID.
func (g *StripeGateway) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	ctx, span := otel.Tracer("payment/stripe").Start(ctx, "CreateCustomer",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	c, err := g.api.Customers.New(customerParams(ctx, userID, email))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("stripe customer: %w", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession opens an embedded subscription checkout and returns
// its client secret.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	ctx, span := otel.Tracer("payment/stripe").Start(ctx, "CreateCheckoutSession",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("plan.id", req.Plan.ID),
		),
	)
	defer span.End()

	s, err := g.api.CheckoutSessions.New(checkoutParams(ctx, req))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("stripe checkout session: %w", err)
	}
	if s.ClientSecret == "" {
		return "", errors.New("stripe checkout session has no client secret")
	}
	return s.ClientSecret, nil
}

func customerParams(ctx context.Context, userID, email string) *stripe.CustomerParams {
	p := &stripe.CustomerParams{
		Metadata: map[string]string{"user_id": userID},
	}
	p.Context = ctx
	if email != "" {
		p.Email = stripe.String(email)
	}
	return p
}

// checkoutParams prices the plan inline as a monthly recurring line item so
// no Stripe Price objects need to be provisioned.
func checkoutParams(ctx context.Context, req domain.CheckoutRequest) *stripe.CheckoutSessionParams {
	plan := req.Plan
	interval := plan.Interval
	if interval == "" {
		interval = "month"
	}
	p := &stripe.CheckoutSessionParams{
		Customer:             stripe.String(req.CustomerID),
		UIMode:               stripe.String(string(stripe.CheckoutSessionUIModeEmbedded)),
		RedirectOnCompletion: stripe.String(string(stripe.CheckoutSessionRedirectOnCompletionNever)),
		PaymentMethodTypes:   stripe.StringSlice([]string{"card", "link"}),
		Mode:                 stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(plan.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(plan.Name),
						Description: stripe.String(plan.Description),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(interval),
					},
					UnitAmount: stripe.Int64(plan.PriceMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id":   req.UserID,
			"plan_tier": plan.Tier,
		},
	}
	p.Context = ctx
	return p
}
