// Billing HTTP handlers.
//
//   - GET  /billing/plans         (plan catalog)
//   - POST /billing/checkout      (embedded subscription checkout)
//   - GET  /billing/subscription  (caller's tier)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/http/middleware"
	"github.com/tbourn/animai-studio/internal/services"
)

// PlansResponse lists the purchasable plans.
type PlansResponse struct {
	Plans []domain.Plan `json:"plans"`
}

// CheckoutRequest selects a plan to buy.
type CheckoutRequest struct {
	PlanID string `json:"plan_id" binding:"required" example:"pro-plan"`
}

// CheckoutResponse carries the secret the browser mounts the embedded
// checkout with.
type CheckoutResponse struct {
	ClientSecret string `json:"client_secret" example:"cs_test_a1b2c3_secret_d4e5"`
}

// ListPlans godoc
// @ID          listPlans
// @Summary     Subscription plans
// @Tags        Billing
// @Produce     json
// @Success     200  {object}  handlers.PlansResponse
// @Router      /billing/plans [get]
func (h *Handlers) ListPlans(c *gin.Context) {
	plans := h.billingSvc.Plans()
	if plans == nil {
		plans = []domain.Plan{}
	}
	ok(c, http.StatusOK, PlansResponse{Plans: plans})
}

// Checkout godoc
// @ID          createCheckout
// @Summary     Start a subscription checkout
// @Description Creates (or reuses) the payment customer of the caller and opens an embedded
// @Description checkout session for the plan. Requires an authenticated caller.
// @Tags        Billing
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CheckoutRequest   true  "Plan to buy"
// @Success     200   {object}  handlers.CheckoutResponse
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404   {object}  handlers.ErrorResponse "Plan not found"
// @Failure     503   {object}  handlers.ErrorResponse "Payments not configured"
// @Failure     500   {object}  handlers.ErrorResponse "Internal error"
// @Router      /billing/checkout [post]
func (h *Handlers) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "plan_id required")
		return
	}

	uid := userID(c)
	if uid == middleware.AnonymousUser {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sign in to subscribe")
		return
	}

	secret, err := h.billingSvc.Checkout(c.Request.Context(), uid, middleware.UserEmail(c), req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPlanNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "plan not found")
		case errors.Is(err, services.ErrPaymentsDisabled):
			fail(c, http.StatusServiceUnavailable, ErrCodePaymentsDisabled, "payments are not configured")
		default:
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, ErrCodeCheckoutFailed, "failed to create checkout session")
		}
		return
	}
	ok(c, http.StatusOK, CheckoutResponse{ClientSecret: secret})
}

// GetSubscription godoc
// @ID          getSubscription
// @Summary     Current subscription of the caller
// @Tags        Billing
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID"  example(user123)
// @Success     200  {object}  services.Subscription
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /billing/subscription [get]
func (h *Handlers) GetSubscription(c *gin.Context) {
	sub, err := h.billingSvc.Subscription(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, sub)
}
