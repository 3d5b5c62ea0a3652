package listeners

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepath-academy/carepath/app/jobs"
	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/pkg/event"
	"github.com/carepath-academy/carepath/pkg/testkit"
)

type feed struct {
	mu     sync.Mutex
	events []string
}

func (f *feed) Publish(eventType string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func TestPaymentConfirmedQueuesReceipt(t *testing.T) {
	db := testkit.NewDB(t)
	u := models.User{Name: "Jo", Email: "jo@example.com", Role: models.RoleUser}
	require.NoError(t, db.Create(&u).Error)

	bus := event.New()
	f := &feed{}
	q := &testkit.RecordingDispatcher{}
	Register(bus, f, q, repositories.NewUserRepository(db))

	bus.Fire(context.Background(), services.EventPaymentConfirmed, services.PaymentConfirmed{
		SessionID:     "cs_1",
		UserID:        u.ID,
		AmountTotal:   130000,
		Currency:      "usd",
		EnrollmentIDs: []uint{1, 2},
		Courses:       []string{"CPR", "Phlebotomy"},
	})

	assert.Equal(t, []string{services.EventPaymentConfirmed}, f.events)
	require.Len(t, q.Jobs(), 1)
	receipt := q.Jobs()[0].(*jobs.SendPaymentReceipt)
	assert.Equal(t, "jo@example.com", receipt.Email)
	assert.Equal(t, "1300.00 USD", receipt.Amount)
}

func TestPaymentConfirmedWithoutEnrollmentsSendsNothing(t *testing.T) {
	bus := event.New()
	q := &testkit.RecordingDispatcher{}
	Register(bus, &feed{}, q, nil)

	bus.Fire(context.Background(), services.EventPaymentConfirmed, services.PaymentConfirmed{SessionID: "cs_1", UserID: 1})
	assert.Empty(t, q.Jobs())
}

func TestEnrollmentSubmittedQueuesBothMails(t *testing.T) {
	bus := event.New()
	f := &feed{}
	q := &testkit.RecordingDispatcher{}
	Register(bus, f, q, nil)

	bus.FireAsync(context.Background(), services.EventEnrollmentSubmitted, services.EnrollmentSubmitted{EnrollmentID: 7})
	bus.Wait()

	assert.Equal(t, []string{services.EventEnrollmentSubmitted}, f.events)
	sent := q.Jobs()
	require.Len(t, sent, 2)
	assert.IsType(t, &jobs.NotifyEnrollmentSubmitted{}, sent[0])
	assert.IsType(t, &jobs.SendEnrollmentAck{}, sent[1])
	assert.EqualValues(t, 7, sent[0].(*jobs.NotifyEnrollmentSubmitted).EnrollmentID)
}

func TestPaymentFailedOnlyReachesTheFeed(t *testing.T) {
	bus := event.New()
	f := &feed{}
	q := &testkit.RecordingDispatcher{}
	Register(bus, f, q, nil)

	bus.Fire(context.Background(), services.EventPaymentFailed, services.PaymentFailed{SessionID: "cs_1"})
	assert.Equal(t, []string{services.EventPaymentFailed}, f.events)
	assert.Empty(t, q.Jobs())
}
