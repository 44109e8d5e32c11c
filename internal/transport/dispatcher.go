// internal/transport/dispatcher.go
package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/common/metrics"
	"barbearia-twowell/internal/models"
)

// DefaultQueueSize bounds how many inbound messages may wait for the handler.
const DefaultQueueSize = 64

// ErrRateLimited is returned by Enqueue when the sender is over its limit.
var ErrRateLimited = stderrors.New("sender rate limited")

// Dispatcher hands inbound messages to a Handler one at a time, in arrival
// order. Webhook goroutines call Enqueue; a single Run goroutine drains.
type Dispatcher struct {
	handler     Handler
	queue       chan models.InboundMessage
	logger      logger.Logger
	limiter     *SenderLimiter
	turnTimeout time.Duration

	mu     sync.RWMutex
	closed bool

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLimiter drops messages from senders over their rate limit.
func WithLimiter(l *SenderLimiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithTurnTimeout bounds how long a single Handle call may run.
func WithTurnTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.turnTimeout = timeout }
}

func NewDispatcher(h Handler, queueSize int, log logger.Logger, opts ...DispatcherOption) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		handler: h,
		queue:   make(chan models.InboundMessage, queueSize),
		logger:  log,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue queues msg for the handler. It blocks while the queue is full until
// ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, msg models.InboundMessage) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return errors.NewDispatcherClosedError()
	}
	if !d.limiter.Allow(msg.SenderID) {
		metrics.WebhookEvents.WithLabelValues("rate_limited").Inc()
		return ErrRateLimited
	}

	select {
	case d.queue <- msg:
		metrics.DispatcherQueueDepth.Set(float64(len(d.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes messages until Close is called and the queue is drained, or
// until ctx is cancelled. It must be called once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	d.readyOnce.Do(func() { close(d.ready) })

	d.logger.Info("Dispatcher started", map[string]interface{}{
		"queueSize": cap(d.queue),
	})

	prune := time.NewTicker(time.Minute)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Warn("Dispatcher stopped before queue drained", map[string]interface{}{
				"pending": len(d.queue),
			})
			return ctx.Err()
		case <-prune.C:
			if n := d.limiter.Prune(); n > 0 {
				d.logger.Debug("Pruned idle sender limiters", map[string]interface{}{"removed": n})
			}
		case msg, ok := <-d.queue:
			if !ok {
				d.logger.Info("Dispatcher drained", nil)
				return nil
			}
			metrics.DispatcherQueueDepth.Set(float64(len(d.queue)))
			d.handleOne(ctx, msg)
		}
	}
}

func (d *Dispatcher) handleOne(ctx context.Context, msg models.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Handler panicked", map[string]interface{}{
				"senderId": msg.SenderID,
				"panic":    fmt.Sprint(r),
				"stack":    string(debug.Stack()),
			})
		}
	}()

	if d.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.turnTimeout)
		defer cancel()
	}
	d.handler.Handle(ctx, msg)
}

// Close stops accepting messages. Run finishes what is already queued and
// then returns. Close is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}

// Ready is closed once Run has started.
func (d *Dispatcher) Ready() <-chan struct{} {
	return d.ready
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}
