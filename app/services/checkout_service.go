package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/metrics"
	"github.com/carepath-academy/carepath/pkg/payment"
)

// CheckoutConfig carries the values the hosted page needs.
type CheckoutConfig struct {
	AppURL   string
	Currency string
}

// CheckoutResult is returned to the client, which redirects to CheckoutURL.
type CheckoutResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
}

type CheckoutService struct {
	carts    *CartService
	users    *repositories.UserRepository
	provider payment.Provider
	cfg      CheckoutConfig
}

func NewCheckoutService(carts *CartService, users *repositories.UserRepository, provider payment.Provider, cfg CheckoutConfig) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &CheckoutService{carts: carts, users: users, provider: provider, cfg: cfg}
}

// CreateSession opens a hosted checkout session for the user's cart. It
// does not modify any local state.
func (s *CheckoutService) CreateSession(ctx context.Context, userID uint) (*CheckoutResult, error) {
	cart, err := s.carts.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		metrics.CheckoutSessions.WithLabelValues("empty_cart").Inc()
		return nil, invalidState("Cart is empty")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, internal("Failed to create checkout session", err)
	}

	items := make([]payment.LineItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		if !it.Purchasable() {
			metrics.CheckoutSessions.WithLabelValues("unavailable").Inc()
			return nil, invalidState(fmt.Sprintf("Course %s is no longer available", it.Course.Name))
		}
		items = append(items, payment.LineItem{
			Name:        it.Course.Name,
			Description: it.Course.Duration,
			UnitAmount:  payment.ToMinorUnits(it.Course.Price),
			Quantity:    int64(it.Quantity),
		})
	}
	courseIDs, err := json.Marshal(cart.CourseIDs())
	if err != nil {
		return nil, internal("Failed to create checkout session", err)
	}
	uid := strconv.FormatUint(uint64(userID), 10)

	sess, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		LineItems:         items,
		Currency:          s.cfg.Currency,
		SuccessURL:        s.cfg.AppURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.cfg.AppURL + "/cart",
		ClientReferenceID: uid,
		CustomerEmail:     user.Email,
		Metadata: map[string]string{
			"userId":    uid,
			"cartId":    strconv.FormatUint(uint64(cart.ID), 10),
			"courseIds": string(courseIDs),
		},
	})
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("provider_error").Inc()
		return nil, internal("Failed to create checkout session", err)
	}

	metrics.CheckoutSessions.WithLabelValues("created").Inc()
	logger.WithCtx(ctx).Info("checkout: session created", "user_id", userID, "session_id", sess.ID, "items", len(items))
	return &CheckoutResult{CheckoutURL: sess.URL, SessionID: sess.ID}, nil
}
