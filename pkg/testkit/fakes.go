package testkit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/carepath-academy/carepath/pkg/mail"
	"github.com/carepath-academy/carepath/pkg/payment"
	"github.com/carepath-academy/carepath/pkg/queue"
)

// ─── Payment provider ─────────────────────────────────────────────────────────

// FakePayment is an in-memory payment.Provider. Webhooks are "signed" with
// an HMAC of the body under Secret.
type FakePayment struct {
	Secret    string
	CreateErr error

	mu       sync.Mutex
	seq      int
	Requests []payment.CheckoutRequest
	Sessions map[string]*payment.Session
}

func NewFakePayment() *FakePayment {
	return &FakePayment{Secret: "whsec_fake", Sessions: map[string]*payment.Session{}}
}

func (f *FakePayment) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.seq++
	var total int64
	for _, li := range req.LineItems {
		total += li.UnitAmount * li.Quantity
	}
	s := &payment.Session{
		ID:                fmt.Sprintf("cs_test_%d", f.seq),
		URL:               fmt.Sprintf("https://checkout.fake/pay/cs_test_%d", f.seq),
		PaymentStatus:     "unpaid",
		ClientReferenceID: req.ClientReferenceID,
		AmountTotal:       total,
		Currency:          req.Currency,
		Metadata:          req.Metadata,
	}
	f.Requests = append(f.Requests, req)
	f.Sessions[s.ID] = s
	return s, nil
}

func (f *FakePayment) GetSession(_ context.Context, id string) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

// MarkPaid flips a session to paid, as the hosted page would.
func (f *FakePayment) MarkPaid(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Sessions[id]; ok {
		s.PaymentStatus = payment.PaymentStatusPaid
	}
}

// Put registers a session directly.
func (f *FakePayment) Put(s *payment.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sessions[s.ID] = s
}

// Sign returns the signature header value for payload.
func (f *FakePayment) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(f.Secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhook accepts payloads shaped like {"id","type","session":{...}}.
func (f *FakePayment) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	if !hmac.Equal([]byte(signature), []byte(f.Sign(payload))) {
		return nil, payment.ErrInvalidSignature
	}
	var ev struct {
		ID      string           `json:"id"`
		Type    string           `json:"type"`
		Session *payment.Session `json:"session"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.Join(payment.ErrInvalidPayload, err)
	}
	return &payment.Event{ID: ev.ID, Type: ev.Type, Session: ev.Session}, nil
}

// WebhookBody encodes an event in the shape ParseWebhook expects.
func WebhookBody(eventType string, s *payment.Session) []byte {
	raw, err := json.Marshal(map[string]any{"id": "evt_" + s.ID, "type": eventType, "session": s})
	if err != nil {
		panic(err)
	}
	return raw
}

// ─── Mail ─────────────────────────────────────────────────────────────────────

// MockMailer is a testify mock of mail.Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg *mail.Message) error {
	return m.Called(msg).Error(0)
}

// ─── Queue ────────────────────────────────────────────────────────────────────

// RecordingDispatcher collects dispatched jobs instead of queueing them.
type RecordingDispatcher struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (d *RecordingDispatcher) Dispatch(_ context.Context, job queue.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

// Jobs returns a copy of everything dispatched so far.
func (d *RecordingDispatcher) Jobs() []queue.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]queue.Job(nil), d.jobs...)
}
