// Package jobs holds the queued e-mail jobs. Payload fields are exported
// and travel through the queue as JSON; dependencies are injected by the
// factories in Register.
package jobs

import (
	"context"
	"fmt"
	"html/template"

	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
	"github.com/carepath-academy/carepath/pkg/mail"
	"github.com/carepath-academy/carepath/pkg/queue"
	"github.com/carepath-academy/carepath/pkg/storage"
)

// Deps are shared by every job.
type Deps struct {
	DB         *gorm.DB
	Mailer     mail.Mailer
	Disk       storage.Disk
	AdminEmail string
	AppURL     string
}

// Register makes every job type decodable by q.
func Register(q *queue.Manager, d *Deps) {
	q.Register(func() queue.Job { return &SendPasswordOTP{deps: d} })
	q.Register(func() queue.Job { return &SendPaymentReceipt{deps: d} })
	q.Register(func() queue.Job { return &NotifyEnrollmentSubmitted{deps: d} })
	q.Register(func() queue.Job { return &SendEnrollmentAck{deps: d} })
}

// ─── Password reset ───────────────────────────────────────────────────────────

var otpTmpl = template.Must(template.New("otp").Parse(
	`<p>Hello {{.Name}},</p>
<p>Your CarePath password reset code is <strong>{{.Code}}</strong>.</p>
<p>The code expires in {{.Minutes}} minutes. If you did not ask for it you can ignore this e-mail.</p>`))

type SendPasswordOTP struct {
	Email   string
	Name    string
	Code    string
	Minutes int

	deps *Deps
}

func (j *SendPasswordOTP) Handle(ctx context.Context) error {
	msg, err := mail.To(j.Email).Subject("Your password reset code").Template(otpTmpl, j)
	if err != nil {
		return err
	}
	msg.Plain(fmt.Sprintf("Your CarePath password reset code is %s. It expires in %d minutes.", j.Code, j.Minutes))
	return j.deps.Mailer.Send(ctx, msg)
}

// ─── Payment receipt ──────────────────────────────────────────────────────────

var receiptTmpl = template.Must(template.New("receipt").Parse(
	`<p>Hello {{.Name}},</p>
<p>Thank you for your payment. You are now enrolled in:</p>
<ul>{{range .Courses}}<li>{{.}}</li>{{end}}</ul>
<p>Amount paid: {{.Amount}}<br>Reference: {{.SessionID}}</p>`))

type SendPaymentReceipt struct {
	Email     string
	Name      string
	SessionID string
	Courses   []string
	Amount    string

	deps *Deps
}

func (j *SendPaymentReceipt) Handle(ctx context.Context) error {
	msg, err := mail.To(j.Email).Subject("Payment received - CarePath Academy").Template(receiptTmpl, j)
	if err != nil {
		return err
	}
	return j.deps.Mailer.Send(ctx, msg)
}

// ─── Enrollment submitted ─────────────────────────────────────────────────────

var adminEnrollmentTmpl = template.Must(template.New("admin-enrollment").Parse(
	`<p>A new enrollment form was submitted.</p>
<table>
<tr><td>Reference</td><td>#{{.ID}}</td></tr>
<tr><td>Student</td><td>{{.StudentName}}</td></tr>
<tr><td>Email</td><td>{{.Email}}</td></tr>
<tr><td>Phone</td><td>{{.Phone}}</td></tr>
<tr><td>Course</td><td>{{if .Course}}{{.Course.Name}}{{else}}-{{end}}</td></tr>
</table>
<p>The completed form is attached.</p>`))

// NotifyEnrollmentSubmitted e-mails the admin inbox with the form PDF.
type NotifyEnrollmentSubmitted struct {
	EnrollmentID uint

	deps *Deps
}

func (j *NotifyEnrollmentSubmitted) Handle(ctx context.Context) error {
	if j.deps.AdminEmail == "" {
		return nil
	}
	e, err := loadEnrollment(ctx, j.deps.DB, j.EnrollmentID)
	if err != nil {
		return err
	}

	msg, err := mail.To(j.deps.AdminEmail).
		Subject(fmt.Sprintf("New enrollment #%d: %s", e.ID, e.StudentName)).
		Template(adminEnrollmentTmpl, e)
	if err != nil {
		return err
	}
	if e.PdfPath != nil {
		pdf, err := j.deps.Disk.Get(ctx, *e.PdfPath)
		if err != nil {
			return fmt.Errorf("jobs: read enrollment pdf: %w", err)
		}
		msg.Attach(fmt.Sprintf("enrollment-%d.pdf", e.ID), "application/pdf", pdf)
	}
	return j.deps.Mailer.Send(ctx, msg)
}

var ackTmpl = template.Must(template.New("ack").Parse(
	`<p>Hello {{.StudentName}},</p>
<p>We received your enrollment form (reference #{{.ID}}){{if .Course}} for <strong>{{.Course.Name}}</strong>{{end}}.</p>
<p>Our admissions team will be in touch shortly.</p>`))

// SendEnrollmentAck confirms receipt to the student.
type SendEnrollmentAck struct {
	EnrollmentID uint

	deps *Deps
}

func (j *SendEnrollmentAck) Handle(ctx context.Context) error {
	e, err := loadEnrollment(ctx, j.deps.DB, j.EnrollmentID)
	if err != nil {
		return err
	}
	msg, err := mail.To(e.Email).Subject("We received your enrollment form").Template(ackTmpl, e)
	if err != nil {
		return err
	}
	return j.deps.Mailer.Send(ctx, msg)
}

func loadEnrollment(ctx context.Context, db *gorm.DB, id uint) (models.Enrollment, error) {
	var e models.Enrollment
	if err := db.WithContext(ctx).Preload("Course").First(&e, id).Error; err != nil {
		return e, fmt.Errorf("jobs: load enrollment %d: %w", id, err)
	}
	return e, nil
}
