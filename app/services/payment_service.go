package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/metrics"
	"github.com/carepath-academy/carepath/pkg/payment"
)

// Confirmation identifies a paid checkout session and what it paid for.
type Confirmation struct {
	SessionID   string
	UserID      uint
	CourseIDs   []uint
	AmountTotal int64
	Currency    string
	Source      string
}

// ConfirmResult reports what ConfirmPayment did.
type ConfirmResult struct {
	SessionID        string `json:"sessionId"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
	Completed        []uint `json:"completedEnrollmentIds"`
	Skipped          []uint `json:"skippedCourseIds"`
}

// WebhookOutcome labels what happened to a delivery.
type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
)

type PaymentService struct {
	db            *gorm.DB
	provider      payment.Provider
	events        Notifier
	courses       *repositories.CourseRepository
	enrollments   *repositories.EnrollmentRepository
	carts         *repositories.CartRepository
	confirmations *repositories.ConfirmationRepository
	now           func() time.Time
}

func NewPaymentService(db *gorm.DB, provider payment.Provider, events Notifier) *PaymentService {
	if events == nil {
		events = nopNotifier{}
	}
	return &PaymentService{
		db:            db,
		provider:      provider,
		events:        events,
		courses:       repositories.NewCourseRepository(db),
		enrollments:   repositories.NewEnrollmentRepository(db),
		carts:         repositories.NewCartRepository(db),
		confirmations: repositories.NewConfirmationRepository(db),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ConfirmationFromSession reads the checkout metadata written by
// CheckoutService.
func ConfirmationFromSession(s *payment.Session, source string) (Confirmation, error) {
	c := Confirmation{SessionID: s.ID, AmountTotal: s.AmountTotal, Currency: s.Currency, Source: source}

	raw := s.Metadata["userId"]
	if raw == "" {
		raw = s.ClientReferenceID
	}
	uid, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || uid == 0 {
		return c, fmt.Errorf("session %s: invalid userId %q", s.ID, raw)
	}
	c.UserID = uint(uid)

	if err := json.Unmarshal([]byte(s.Metadata["courseIds"]), &c.CourseIDs); err != nil {
		return c, fmt.Errorf("session %s: invalid courseIds: %w", s.ID, err)
	}
	return c, nil
}

// ConfirmPayment applies a paid session exactly once. In one transaction it
// claims the session id, completes the latest PENDING enrollment of each
// course and empties the user's cart. Replays return AlreadyProcessed and
// write nothing.
func (s *PaymentService) ConfirmPayment(ctx context.Context, c Confirmation) (*ConfirmResult, error) {
	if c.SessionID == "" || c.UserID == 0 {
		return nil, invalidArg("Invalid payment confirmation")
	}
	log := logger.WithCtx(ctx).With("session_id", c.SessionID, "user_id", c.UserID, "source", c.Source)
	res := &ConfirmResult{SessionID: c.SessionID, Completed: []uint{}, Skipped: []uint{}}
	var courseNames []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conf := &models.PaymentConfirmation{
			SessionID:   c.SessionID,
			UserID:      c.UserID,
			Source:      c.Source,
			AmountTotal: c.AmountTotal,
		}
		claimed, err := s.confirmations.WithTx(tx).Claim(ctx, conf)
		if err != nil {
			return err
		}
		if !claimed {
			res.AlreadyProcessed = true
			return nil
		}

		courses, err := s.courses.WithTx(tx).FindMany(ctx, c.CourseIDs)
		if err != nil {
			return err
		}
		enrollments := s.enrollments.WithTx(tx)
		now := s.now()

		for _, courseID := range c.CourseIDs {
			course, ok := courses[courseID]
			if !ok {
				log.Warn("payment: course no longer exists", "course_id", courseID)
				res.Skipped = append(res.Skipped, courseID)
				continue
			}
			e, err := enrollments.LatestPending(ctx, c.UserID, courseID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warn("payment: no pending enrollment for course", "course_id", courseID)
				res.Skipped = append(res.Skipped, courseID)
				continue
			}
			if err != nil {
				return err
			}
			ok, err = enrollments.Complete(ctx, e.ID, c.SessionID, course.Price, now)
			if err != nil {
				return err
			}
			if !ok {
				res.Skipped = append(res.Skipped, courseID)
				continue
			}
			res.Completed = append(res.Completed, e.ID)
			courseNames = append(courseNames, course.Name)
		}

		if _, err := s.carts.WithTx(tx).ClearUser(ctx, c.UserID); err != nil {
			return err
		}
		return s.confirmations.WithTx(tx).SetCompletedCount(ctx, conf.ID, len(res.Completed))
	})
	if err != nil {
		return nil, internal("Failed to confirm payment", err)
	}

	if res.AlreadyProcessed {
		log.Info("payment: session already processed")
		return res, nil
	}

	metrics.PaymentsConfirmed.WithLabelValues(c.Source).Inc()
	log.Info("payment: confirmed", "completed", len(res.Completed), "skipped", len(res.Skipped))
	s.events.FireAsync(ctx, EventPaymentConfirmed, PaymentConfirmed{
		SessionID:     c.SessionID,
		UserID:        c.UserID,
		Source:        c.Source,
		AmountTotal:   c.AmountTotal,
		Currency:      c.Currency,
		EnrollmentIDs: res.Completed,
		Courses:       courseNames,
	})
	return res, nil
}

// FailPayment moves the session's PENDING enrollments to FAILED. Rows that
// already left PENDING are untouched, so replays are harmless.
func (s *PaymentService) FailPayment(ctx context.Context, c Confirmation) ([]uint, error) {
	failed := []uint{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollments := s.enrollments.WithTx(tx)
		for _, courseID := range c.CourseIDs {
			e, err := enrollments.LatestPending(ctx, c.UserID, courseID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			ok, err := enrollments.Fail(ctx, e.ID, c.SessionID)
			if err != nil {
				return err
			}
			if ok {
				failed = append(failed, e.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, internal("Failed to record payment failure", err)
	}

	if len(failed) > 0 {
		logger.WithCtx(ctx).Info("payment: marked failed", "session_id", c.SessionID, "user_id", c.UserID, "count", len(failed))
		s.events.FireAsync(ctx, EventPaymentFailed, PaymentFailed{SessionID: c.SessionID, UserID: c.UserID, EnrollmentIDs: failed})
	}
	return failed, nil
}

// HandleWebhook verifies and applies one provider delivery.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	ev, err := s.provider.ParseWebhook(body, signature)
	if errors.Is(err, payment.ErrInvalidPayload) {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_payload").Inc()
		logger.WithCtx(ctx).Warn("payment: webhook payload undecodable", "error", err)
		return "", invalidArg("Invalid payload")
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		logger.WithCtx(ctx).Warn("payment: webhook rejected", "error", err)
		return "", invalidArg("Invalid signature")
	}

	outcome, err := s.applyEvent(ctx, ev)
	label := string(outcome)
	if err != nil {
		label = "error"
	}
	metrics.WebhookEvents.WithLabelValues(ev.Type, label).Inc()
	return outcome, err
}

func (s *PaymentService) applyEvent(ctx context.Context, ev *payment.Event) (WebhookOutcome, error) {
	switch ev.Type {
	case payment.EventSessionCompleted, payment.EventAsyncPaymentSucceeded:
		if ev.Session == nil || !ev.Session.Paid() {
			// Delayed methods complete unpaid; async_payment_succeeded follows.
			return WebhookIgnored, nil
		}
		c, err := ConfirmationFromSession(ev.Session, models.SourceWebhook)
		if err != nil {
			logger.WithCtx(ctx).Error("payment: unusable session metadata", "event_id", ev.ID, "error", err)
			return WebhookIgnored, nil
		}
		res, err := s.ConfirmPayment(ctx, c)
		if err != nil {
			return "", err
		}
		if res.AlreadyProcessed {
			return WebhookDuplicate, nil
		}
		return WebhookApplied, nil

	case payment.EventAsyncPaymentFailed:
		if ev.Session == nil {
			return WebhookIgnored, nil
		}
		c, err := ConfirmationFromSession(ev.Session, models.SourceWebhook)
		if err != nil {
			logger.WithCtx(ctx).Error("payment: unusable session metadata", "event_id", ev.ID, "error", err)
			return WebhookIgnored, nil
		}
		if _, err := s.FailPayment(ctx, c); err != nil {
			return "", err
		}
		return WebhookApplied, nil

	default:
		return WebhookIgnored, nil
	}
}

// VerifySession is the success-page path: it fetches the session, checks
// it is paid and belongs to userID, then applies it via ConfirmPayment.
func (s *PaymentService) VerifySession(ctx context.Context, userID uint, sessionID string) (*ConfirmResult, error) {
	if sessionID == "" {
		return nil, invalidArg("session_id is required")
	}
	sess, err := s.provider.GetSession(ctx, sessionID)
	if errors.Is(err, payment.ErrSessionNotFound) {
		return nil, notFound("Checkout session not found")
	}
	if err != nil {
		return nil, internal("Failed to verify payment", err)
	}

	c, err := ConfirmationFromSession(sess, models.SourceSuccessPage)
	if err != nil {
		return nil, internal("Failed to verify payment", err)
	}
	if c.UserID != userID {
		return nil, forbidden("Checkout session belongs to another user")
	}
	if !sess.Paid() {
		return nil, invalidState("Payment not completed")
	}
	return s.ConfirmPayment(ctx, c)
}
