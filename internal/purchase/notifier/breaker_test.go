package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCooldown = 50 * time.Millisecond

type flakyMailer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *flakyMailer) Send(context.Context, Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *flakyMailer) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newTestBreaker(next Mailer) *BreakingMailer {
	return NewBreakingMailer(next, 2, testCooldown, zerolog.Nop())
}

func TestBreakingMailer_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyMailer{err: errors.New("503 from provider")}
	b := newTestBreaker(inner)
	ctx := context.Background()

	assert.Error(t, b.Send(ctx, Message{}))
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Error(t, b.Send(ctx, Message{}))
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Send(ctx, Message{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls, "open circuit must not reach the transport")
}

func TestBreakingMailer_SuccessResetsFailureCount(t *testing.T) {
	inner := &flakyMailer{err: errors.New("timeout")}
	b := newTestBreaker(inner)
	ctx := context.Background()

	assert.Error(t, b.Send(ctx, Message{}))
	inner.setErr(nil)
	require.NoError(t, b.Send(ctx, Message{}))
	inner.setErr(errors.New("timeout"))
	assert.Error(t, b.Send(ctx, Message{}))

	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakingMailer_TrialSendAfterCooldown(t *testing.T) {
	inner := &flakyMailer{err: errors.New("503 from provider")}
	b := newTestBreaker(inner)
	ctx := context.Background()

	b.Send(ctx, Message{})
	b.Send(ctx, Message{})
	require.Equal(t, gobreaker.StateOpen, b.State())

	// failed trial reopens
	time.Sleep(testCooldown + 20*time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, b.State())
	assert.Error(t, b.Send(ctx, Message{}))
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.ErrorIs(t, b.Send(ctx, Message{}), ErrCircuitOpen)

	// successful trial closes
	time.Sleep(testCooldown + 20*time.Millisecond)
	inner.setErr(nil)
	require.NoError(t, b.Send(ctx, Message{}))
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 4, inner.calls)
}

func TestBreakingMailer_RejectionBecomesNotifyError(t *testing.T) {
	b := newTestBreaker(&flakyMailer{err: errors.New("down")})
	n := NewEmailNotifier(b, Options{From: "shop@example.com", Recipient: "ops@example.com"}, zerolog.Nop())
	ctx := context.Background()

	n.Notify(ctx, bookEvent())
	n.Notify(ctx, bookEvent())
	err := n.Notify(ctx, bookEvent())

	var notifyErr *NotifyError
	require.ErrorAs(t, err, &notifyErr)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "ops@example.com", notifyErr.Recipient)
}
