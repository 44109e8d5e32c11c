// Package notify tells the shop owner about confirmed bookings. Delivery is
// best effort: a failed channel is logged and counted, never retried.
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/common/metrics"
	"barbearia-twowell/internal/models"
)

// DefaultSendTimeout bounds each sink when no timeout is configured.
const DefaultSendTimeout = 5 * time.Second

const displayLayout = "02/01/2006 15:04"

// Sink delivers a booking notification over one channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, n models.BookingNotification) error
}

// Notifier fans a notification out to every configured sink in order.
type Notifier struct {
	sinks   []Sink
	timeout time.Duration
	logger  logger.Logger
}

func NewNotifier(log logger.Logger, timeout time.Duration, sinks ...Sink) *Notifier {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Notifier{sinks: sinks, timeout: timeout, logger: log}
}

// Sinks returns the configured channel names.
func (n *Notifier) Sinks() []string {
	names := make([]string, 0, len(n.sinks))
	for _, s := range n.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Notify sends n through every sink. It returns after all sinks have been tried.
func (n *Notifier) Notify(ctx context.Context, note models.BookingNotification) {
	for _, sink := range n.sinks {
		n.send(ctx, sink, note)
	}
}

func (n *Notifier) send(ctx context.Context, sink Sink, note models.BookingNotification) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := sink.Send(ctx, note); err != nil {
		stdErr := notificationError(sink.Name(), err)
		metrics.NotificationsSent.WithLabelValues(sink.Name(), "failed").Inc()
		n.logger.Warn("Owner notification failed", map[string]interface{}{
			"channel":   sink.Name(),
			"turnId":    note.TurnID,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
			"retryable": stdErr.Retryable,
		})
		return
	}

	metrics.NotificationsSent.WithLabelValues(sink.Name(), "sent").Inc()
	n.logger.Debug("Owner notified", map[string]interface{}{
		"channel": sink.Name(),
		"turnId":  note.TurnID,
	})
}

// customerLabel prefers the contact name and always keeps the id.
func customerLabel(n models.BookingNotification) string {
	if n.CustomerName != "" {
		return fmt.Sprintf("%s (%s)", n.CustomerName, n.CustomerID)
	}
	return n.CustomerID
}

// notificationError keeps a sink's own classification when it already
// produced a notification error, e.g. the Zeebe client's transient flag.
func notificationError(channel string, err error) *errors.StandardError {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) && stdErr.Code == errors.ErrCodeNotificationSendFailed {
		return stdErr
	}
	return errors.NewNotificationSendFailedError(channel, err)
}

// Subject is the one-line summary used for email subjects.
func Subject(n models.BookingNotification) string {
	return fmt.Sprintf("Novo agendamento: %s", n.Start.Format(displayLayout))
}

// Body renders the notification text shared by email and SMS.
func Body(n models.BookingNotification) string {
	return fmt.Sprintf(
		"Novo agendamento na Barbearia TwoWell\nCliente: %s\nInício: %s\nFim: %s\nLink: %s",
		customerLabel(n),
		n.Start.Format(displayLayout),
		n.End.Format(displayLayout),
		n.ConfirmationLink,
	)
}
