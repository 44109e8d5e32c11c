// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_turns_handled_total",
			Help: "Total number of conversation turns handled, by dispatch mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	TurnErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_turn_errors_total",
			Help: "Total number of errors caught at the turn boundary",
		},
		[]string{"error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_turn_duration_seconds",
			Help:    "Duration of a full conversation turn, typing pauses included",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10, 30},
		},
		[]string{"mode"},
	)

	RepliesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_replies_sent_total",
			Help: "Total number of outbound replies, by delivery status",
		},
		[]string{"status"},
	)

	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_bookings_total",
			Help: "Total number of calendar booking attempts, by result",
		},
		[]string{"result"},
	)

	CalendarRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "bot_calendar_request_duration_seconds",
			Help: "Duration of calendar event insert calls",
		},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_webhook_events_total",
			Help: "Total number of inbound webhook messages, by disposition",
		},
		[]string{"disposition"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_owner_notifications_total",
			Help: "Total number of owner booking notifications, by channel and status",
		},
		[]string{"channel", "status"},
	)

	JournalWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_journal_writes_total",
			Help: "Total number of turn journal inserts, by status",
		},
		[]string{"status"},
	)

	DispatcherQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_dispatcher_queue_depth",
			Help: "Number of inbound messages waiting for the serial dispatcher",
		},
	)
)
