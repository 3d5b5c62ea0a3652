package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/carepath-academy/carepath/config"
)

// SMTP holds connection credentials.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
}

func DefaultSMTP() SMTP {
	return SMTP{
		Host:     config.Get("MAIL_HOST", "localhost"),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
	}
}

type SMTPMailer struct {
	cfg  SMTP
	from From
}

func NewSMTP(cfg SMTP, from From) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, from: from}
}

// Send delivers over implicit TLS on 465, otherwise plain SMTP with STARTTLS
// when the server offers it.
func (s *SMTPMailer) Send(ctx context.Context, m *Message) error {
	raw, err := buildMIME(s.from, m)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	rcpt := append(append([]string(nil), m.To...), m.CC...)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	d := net.Dialer{Timeout: 10 * time.Second}
	var conn net.Conn
	if s.cfg.Port == "465" {
		conn, err = tls.DialWithDialer(&d, "tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mail/smtp: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail/smtp: handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && s.cfg.Port != "465" {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("mail/smtp: starttls: %w", err)
		}
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mail/smtp: auth: %w", err)
		}
	}
	if err := client.Mail(s.from.Address); err != nil {
		return err
	}
	for _, r := range rcpt {
		if err := client.Rcpt(r); err != nil {
			return fmt.Errorf("mail/smtp: rcpt %s: %w", r, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// buildMIME renders a multipart/mixed message: an alternative text/html part
// followed by base64 attachments.
func buildMIME(from From, m *Message) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	hdr := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	hdr("From", mime.QEncoding.Encode("utf-8", from.Name)+" <"+from.Address+">")
	hdr("To", strings.Join(m.To, ", "))
	if len(m.CC) > 0 {
		hdr("Cc", strings.Join(m.CC, ", "))
	}
	hdr("Subject", mime.QEncoding.Encode("utf-8", m.Subj))
	hdr("Date", time.Now().Format(time.RFC1123Z))
	hdr("MIME-Version", "1.0")
	hdr("Content-Type", "multipart/mixed; boundary="+mixed.Boundary())
	buf.WriteString("\r\n")

	bodies := []struct{ ct, content string }{
		{"text/plain", m.Text},
		{"text/html", m.HTML},
	}
	for _, b := range bodies {
		if b.content == "" {
			continue
		}
		pw, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {b.ct + `; charset="UTF-8"`},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(b.content)); err != nil {
			return nil, err
		}
	}

	for _, a := range m.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		pw, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ct},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})},
		})
		if err != nil {
			return nil, err
		}
		enc := base64.StdEncoding.EncodeToString(a.Content)
		for len(enc) > 76 {
			pw.Write([]byte(enc[:76] + "\r\n")) //nolint:errcheck
			enc = enc[76:]
		}
		pw.Write([]byte(enc)) //nolint:errcheck
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
