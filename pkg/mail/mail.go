// Package mail builds outgoing e-mails and delivers them through a Mailer
// selected by MAIL_DRIVER (smtp, sendgrid or log).
//
//	msg := mail.To("student@example.com").
//	    Subject("Your enrollment").
//	    Body("<p>Thanks!</p>").
//	    Attach("enrollment.pdf", "application/pdf", pdfBytes)
//	err := mailer.Send(ctx, msg)
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/metrics"
)

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, m *Message) error
}

// Attachment is an in-memory file.
type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Message is a fluent builder for an email.
type Message struct {
	To          []string
	CC          []string
	Subj        string
	HTML        string
	Text        string
	Attachments []Attachment
}

// From is the sender identity shared by every driver.
type From struct {
	Address string
	Name    string
}

func DefaultFrom() From {
	return From{
		Address: config.Get("MAIL_FROM", "no-reply@carepath.academy"),
		Name:    config.Get("MAIL_FROM_NAME", "CarePath Academy"),
	}
}

func (f From) String() string { return fmt.Sprintf("%s <%s>", f.Name, f.Address) }

// To starts a message for the given recipients.
func To(addresses ...string) *Message {
	return &Message{To: addresses}
}

func (m *Message) Cc(addresses ...string) *Message {
	m.CC = append(m.CC, addresses...)
	return m
}

func (m *Message) Subject(s string) *Message {
	m.Subj = s
	return m
}

// Body sets the HTML body.
func (m *Message) Body(html string) *Message {
	m.HTML = html
	return m
}

// Plain sets the plain-text alternative.
func (m *Message) Plain(text string) *Message {
	m.Text = text
	return m
}

// Template renders tmpl with data into the HTML body.
func (m *Message) Template(tmpl *template.Template, data any) (*Message, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return m, fmt.Errorf("mail: render %s: %w", tmpl.Name(), err)
	}
	m.HTML = buf.String()
	return m, nil
}

func (m *Message) Attach(name, contentType string, content []byte) *Message {
	m.Attachments = append(m.Attachments, Attachment{Name: name, ContentType: contentType, Content: content})
	return m
}

func (m *Message) validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}
	if strings.TrimSpace(m.Subj) == "" {
		return fmt.Errorf("mail: empty subject")
	}
	return nil
}

// New returns the Mailer selected by MAIL_DRIVER.
func New() Mailer {
	var inner Mailer
	driver := config.MailDriver()
	switch driver {
	case "smtp":
		inner = NewSMTP(DefaultSMTP(), DefaultFrom())
	case "sendgrid":
		inner = NewSendGrid(config.SendGridAPIKey(), config.Get("SENDGRID_HOST", ""), DefaultFrom())
	default:
		driver = "log"
		inner = NewLog(DefaultFrom())
	}
	return Instrumented(driver, inner)
}

type instrumented struct {
	driver string
	inner  Mailer
}

// Instrumented counts deliveries per driver and outcome.
func Instrumented(driver string, m Mailer) Mailer {
	return &instrumented{driver: driver, inner: m}
}

func (i *instrumented) Send(ctx context.Context, m *Message) error {
	if err := m.validate(); err != nil {
		metrics.MailSent.WithLabelValues(i.driver, "invalid").Inc()
		return err
	}
	if err := i.inner.Send(ctx, m); err != nil {
		metrics.MailSent.WithLabelValues(i.driver, "failed").Inc()
		return err
	}
	metrics.MailSent.WithLabelValues(i.driver, "sent").Inc()
	return nil
}
