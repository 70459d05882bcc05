package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// LogMailer is the dry-run transport used when no mail provider is configured.
// Only metadata is logged; the body carries customer data.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info().
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.Body)).
		Msg("Mail transport disabled, message not sent")
	return nil
}
