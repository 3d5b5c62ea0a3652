package controllers

import (
	"net/http"

	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/ctx"
)

// maxWebhookBytes bounds the raw body read for signature verification.
const maxWebhookBytes = 1 << 20

type CheckoutController struct {
	checkout *services.CheckoutService
	payments *services.PaymentService
}

func NewCheckoutController(checkout *services.CheckoutService, payments *services.PaymentService) *CheckoutController {
	return &CheckoutController{checkout: checkout, payments: payments}
}

// Create handles POST /api/checkout.
func (h *CheckoutController) Create(c *ctx.Context) {
	res, err := h.checkout.CreateSession(c.Context(), c.UserID())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(res)
}

// Verify handles GET /api/checkout/verify?session_id=, called by the
// success page.
func (h *CheckoutController) Verify(c *ctx.Context) {
	res, err := h.payments.VerifySession(c.Context(), c.UserID(), c.Query("session_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(res)
}

// Webhook handles POST /api/webhooks/stripe. The body must reach the
// verifier byte for byte. Anything but a 2xx makes the provider redeliver.
func (h *CheckoutController) Webhook(c *ctx.Context) {
	body, err := c.Body(maxWebhookBytes)
	if err != nil {
		c.Error(http.StatusBadRequest, "Unreadable body")
		return
	}
	outcome, err := h.payments.HandleWebhook(c.Context(), body, c.Header("Stripe-Signature"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Logger().Info("webhook handled", "outcome", outcome)
	c.JSON(http.StatusOK, map[string]any{"received": true})
}
