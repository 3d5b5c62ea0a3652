// Package payment abstracts the hosted-checkout provider. The production
// implementation is Stripe; tests substitute a fake Provider.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidSignature is returned by ParseWebhook when the payload cannot
// be authenticated.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// ErrInvalidPayload is returned by ParseWebhook when an authenticated
// delivery carries an object it cannot decode.
var ErrInvalidPayload = errors.New("payment: invalid webhook payload")

// ErrSessionNotFound is returned by GetSession for unknown session ids.
var ErrSessionNotFound = errors.New("payment: session not found")

// Webhook event types acted upon by the reconciler.
const (
	EventSessionCompleted          = "checkout.session.completed"
	EventAsyncPaymentSucceeded     = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed        = "checkout.session.async_payment_failed"
	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// LineItem is one row of the hosted checkout page.
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64 // minor units
	Quantity    int64
}

// CheckoutRequest describes a session to create.
type CheckoutRequest struct {
	LineItems         []LineItem
	Currency          string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	CustomerEmail     string
	Metadata          map[string]string
}

// Session is the provider-neutral view of a checkout session.
type Session struct {
	ID                string
	URL               string
	PaymentStatus     string
	ClientReferenceID string
	AmountTotal       int64
	Currency          string
	Metadata          map[string]string
}

// Paid reports whether funds were captured for the session.
func (s *Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

// Event is a verified webhook delivery. Session is nil for event types that
// do not carry a checkout session.
type Event struct {
	ID      string
	Type    string
	Session *Session
}

// Provider creates and inspects hosted checkout sessions.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// ToMinorUnits converts a price to cents, rounding half away from zero.
func ToMinorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}
