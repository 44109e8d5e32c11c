// internal/transport/replier.go
package transport

import (
	"context"
	"time"

	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/common/metrics"
	"barbearia-twowell/internal/models"
)

// DefaultTypingDelay is the pause between the typing indicator and the text.
const DefaultTypingDelay = 1500 * time.Millisecond

// Replier sends every bot reply the same way: typing indicator, a fixed
// pause, then the text.
type Replier struct {
	transport Transport
	delay     time.Duration
	logger    logger.Logger
	wait      func(ctx context.Context, d time.Duration) error
}

// NewReplier returns a Replier pausing delay between typing and text. A
// negative delay means DefaultTypingDelay; zero disables the pause.
func NewReplier(t Transport, delay time.Duration, log logger.Logger) *Replier {
	if delay < 0 {
		delay = DefaultTypingDelay
	}
	return &Replier{transport: t, delay: delay, logger: log, wait: sleepCtx}
}

// Transport returns the underlying transport.
func (r *Replier) Transport() Transport {
	return r.transport
}

// Reply shows typing, waits, then sends text. A failed typing indicator is
// logged and the text still goes out; a failed send is returned.
func (r *Replier) Reply(ctx context.Context, chat models.ChatHandle, text string) error {
	if err := r.transport.SendTyping(ctx, chat); err != nil {
		r.logger.WithError(err).Warn("Typing indicator failed", map[string]interface{}{
			"chatId": chat.ChatID,
		})
	}

	if err := r.wait(ctx, r.delay); err != nil {
		metrics.RepliesSent.WithLabelValues("cancelled").Inc()
		return errors.NewTransportSendError("send_text", err)
	}

	if err := r.transport.SendText(ctx, chat, text); err != nil {
		metrics.RepliesSent.WithLabelValues("failed").Inc()
		return errors.NewTransportSendError("send_text", err)
	}

	metrics.RepliesSent.WithLabelValues("sent").Inc()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
