package notifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tair/purchase-ingest/kafka"
	"github.com/tair/purchase-ingest/pkg/logger"
)

// Message is a plain-text email
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers one message over some transport
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NotifyError reports that the operator could not be notified
type NotifyError struct {
	Recipient string
	Err       error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("failed to notify %s: %v", e.Recipient, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// Options configures the operator email
type Options struct {
	From      string
	Recipient string
	Subject   string
}

// EmailNotifier emails a purchase summary to a fixed operator address
type EmailNotifier struct {
	mailer Mailer
	opts   Options
	log    zerolog.Logger
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(mailer Mailer, opts Options, log zerolog.Logger) *EmailNotifier {
	if opts.Subject == "" {
		opts.Subject = "New purchase received"
	}
	return &EmailNotifier{mailer: mailer, opts: opts, log: log}
}

// Notify sends the summary once; failures are returned, never retried
func (n *EmailNotifier) Notify(ctx context.Context, event kafka.PurchaseEvent) error {
	msg := Message{
		From:    n.opts.From,
		To:      n.opts.Recipient,
		Subject: n.opts.Subject,
		Body:    FormatSummary(event),
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		return &NotifyError{Recipient: n.opts.Recipient, Err: err}
	}

	logger.FromContext(ctx, n.log).Debug().
		Int("item_count", len(event.CartItems)).
		Msg("Purchase notification sent")
	return nil
}
