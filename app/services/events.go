package services

import "context"

// Domain events fired after the owning transaction commits.
const (
	EventPaymentConfirmed    = "payment.confirmed"
	EventPaymentFailed       = "payment.failed"
	EventEnrollmentSubmitted = "enrollment.submitted"
)

// Notifier is the slice of the event bus services use.
type Notifier interface {
	FireAsync(ctx context.Context, event string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) FireAsync(context.Context, string, any) {}

// PaymentConfirmed is the payload of EventPaymentConfirmed.
type PaymentConfirmed struct {
	SessionID     string   `json:"sessionId"`
	UserID        uint     `json:"userId"`
	Source        string   `json:"source"`
	AmountTotal   int64    `json:"amountTotal"`
	Currency      string   `json:"currency"`
	EnrollmentIDs []uint   `json:"enrollmentIds"`
	Courses       []string `json:"courses"`
}

// PaymentFailed is the payload of EventPaymentFailed.
type PaymentFailed struct {
	SessionID     string `json:"sessionId"`
	UserID        uint   `json:"userId"`
	EnrollmentIDs []uint `json:"enrollmentIds"`
}

// EnrollmentSubmitted is the payload of EventEnrollmentSubmitted.
type EnrollmentSubmitted struct {
	EnrollmentID uint   `json:"enrollmentId"`
	StudentName  string `json:"studentName"`
	Email        string `json:"email"`
	CourseID     *uint  `json:"courseId"`
	CourseName   string `json:"courseName,omitempty"`
	HasPDF       bool   `json:"hasPdf"`
}
