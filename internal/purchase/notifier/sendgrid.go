package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer delivers mail through the SendGrid v3 API
type SendGridMailer struct {
	client   sendClient
	fromName string
	log      zerolog.Logger
}

// NewSendGridMailer creates a SendGrid mailer for apiKey
func NewSendGridMailer(apiKey, fromName string, log zerolog.Logger) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		log:      log,
	}
}

// Send sends msg as plain text with a preformatted HTML alternative
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		return errors.New("from address is empty")
	}
	if msg.To == "" {
		return errors.New("to address is empty")
	}

	email := mail.NewSingleEmail(
		mail.NewEmail(m.fromName, msg.From),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Body,
		fmt.Sprintf("<pre>%s</pre>", html.EscapeString(msg.Body)),
	)

	response, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}

	if response.StatusCode >= 400 {
		m.log.Error().
			Int("status", response.StatusCode).
			Str("body", response.Body).
			Msg("SendGrid rejected message")
		return fmt.Errorf("sendgrid send failed: status=%d", response.StatusCode)
	}

	m.log.Info().
		Int("status", response.StatusCode).
		Str("subject", msg.Subject).
		Msg("Mail sent")
	return nil
}
