// Package listeners connects domain events to the admin live feed and to
// the e-mail queue.
package listeners

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/carepath-academy/carepath/app/jobs"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/event"
	"github.com/carepath-academy/carepath/pkg/queue"
)

// Publisher is the live feed. *ws.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// Register subscribes every listener on bus.
func Register(bus *event.Bus, feed Publisher, q queue.Dispatcher, users *repositories.UserRepository) {
	for _, name := range []string{
		services.EventPaymentConfirmed,
		services.EventPaymentFailed,
		services.EventEnrollmentSubmitted,
	} {
		bus.Listen(name, forward(feed, name))
	}

	bus.Listen(services.EventPaymentConfirmed, func(ctx context.Context, payload any) error {
		p, ok := payload.(services.PaymentConfirmed)
		if !ok {
			return fmt.Errorf("listeners: unexpected payload %T", payload)
		}
		if len(p.EnrollmentIDs) == 0 {
			return nil
		}
		u, err := users.FindByID(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("listeners: load user %d: %w", p.UserID, err)
		}
		return q.Dispatch(ctx, &jobs.SendPaymentReceipt{
			Email:     u.Email,
			Name:      u.Name,
			SessionID: p.SessionID,
			Courses:   p.Courses,
			Amount:    formatAmount(p.AmountTotal, p.Currency),
		})
	})

	bus.Listen(services.EventEnrollmentSubmitted, func(ctx context.Context, payload any) error {
		p, ok := payload.(services.EnrollmentSubmitted)
		if !ok {
			return fmt.Errorf("listeners: unexpected payload %T", payload)
		}
		if err := q.Dispatch(ctx, &jobs.NotifyEnrollmentSubmitted{EnrollmentID: p.EnrollmentID}); err != nil {
			return err
		}
		return q.Dispatch(ctx, &jobs.SendEnrollmentAck{EnrollmentID: p.EnrollmentID})
	})
}

func forward(feed Publisher, name string) event.Handler {
	return func(_ context.Context, payload any) error {
		feed.Publish(name, payload)
		return nil
	}
}

// formatAmount renders minor units, e.g. 130000 "usd" as "1300.00 USD".
func formatAmount(minor int64, currency string) string {
	return decimal.New(minor, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
