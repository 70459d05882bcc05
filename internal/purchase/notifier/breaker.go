package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the mail transport is considered down
var ErrCircuitOpen = errors.New("mail circuit breaker is open")

// BreakingMailer stops calling a failing transport for a cooldown period so a
// provider outage does not add a network timeout to every ingested purchase.
type BreakingMailer struct {
	next Mailer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakingMailer wraps next. maxFailures consecutive failures open the
// circuit; after cooldown a single trial send decides whether it closes again.
func NewBreakingMailer(next Mailer, maxFailures int, cooldown time.Duration, log zerolog.Logger) *BreakingMailer {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	threshold := uint32(maxFailures)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mail",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := log.Info()
			if to == gobreaker.StateOpen {
				event = log.Error()
			}
			event.
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Mail circuit breaker state changed")
		},
	})

	return &BreakingMailer{next: next, cb: cb}
}

// Send forwards msg unless the circuit is open
func (b *BreakingMailer) Send(ctx context.Context, msg Message) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

// State returns the current state
func (b *BreakingMailer) State() gobreaker.State {
	return b.cb.State()
}
