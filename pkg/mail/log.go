package mail

import (
	"context"

	"github.com/carepath-academy/carepath/pkg/logger"
)

// LogMailer writes messages to the log instead of sending them. It is the
// default for local development.
type LogMailer struct {
	from From
}

func NewLog(from From) *LogMailer { return &LogMailer{from: from} }

func (l *LogMailer) Send(ctx context.Context, m *Message) error {
	names := make([]string, len(m.Attachments))
	for i, a := range m.Attachments {
		names[i] = a.Name
	}
	logger.WithCtx(ctx).Info("mail (log driver)",
		"from", l.from.Address,
		"to", m.To,
		"subject", m.Subj,
		"attachments", names,
	)
	return nil
}
