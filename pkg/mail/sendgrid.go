package mail

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer delivers through the SendGrid v3 mail-send API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   From
}

// NewSendGrid builds a client; host is empty in production and points at a
// stub server in tests.
func NewSendGrid(apiKey, host string, from From) *SendGridMailer {
	req := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	req.Method = "POST"
	return &SendGridMailer{client: &sendgrid.Client{Request: req}, from: from}
}

func (s *SendGridMailer) Send(ctx context.Context, m *Message) error {
	v3 := sgmail.NewV3Mail()
	v3.SetFrom(sgmail.NewEmail(s.from.Name, s.from.Address))
	v3.Subject = m.Subj

	p := sgmail.NewPersonalization()
	for _, to := range m.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	for _, cc := range m.CC {
		p.AddCCs(sgmail.NewEmail("", cc))
	}
	v3.AddPersonalizations(p)

	if m.Text != "" {
		v3.AddContent(sgmail.NewContent("text/plain", m.Text))
	}
	if m.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", m.HTML))
	}

	for _, a := range m.Attachments {
		att := sgmail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(a.ContentType)
		att.SetFilename(a.Name)
		att.SetDisposition("attachment")
		v3.AddAttachment(att)
	}

	resp, err := s.client.SendWithContext(ctx, v3)
	if err != nil {
		return fmt.Errorf("mail/sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail/sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
