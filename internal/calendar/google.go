// internal/calendar/google.go
package calendar

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"barbearia-twowell/internal/common/config"
	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/common/metrics"
	"barbearia-twowell/internal/models"
)

// DefaultCalendarID books on the service account's own calendar.
const DefaultCalendarID = "primary"

// GoogleGateway inserts events through the Google Calendar v3 API using a
// service-account credentials file.
type GoogleGateway struct {
	service    *gcal.Service
	calendarID string
	timeout    time.Duration
	logger     logger.Logger
}

// NewGoogleGateway builds the API client. With no extra options it
// authenticates from cfg.CredentialsFile; tests pass their own HTTP client.
func NewGoogleGateway(ctx context.Context, cfg config.CalendarConfig, log logger.Logger, extra ...option.ClientOption) (*GoogleGateway, error) {
	var opts []option.ClientOption
	if len(extra) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, errors.NewConfigurationError("calendar.credentials_file is required")
		}
		opts = append(opts,
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(gcal.CalendarScope),
		)
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}

	return &GoogleGateway{
		service:    svc,
		calendarID: calendarID,
		timeout:    config.GetDuration(cfg.Timeout),
		logger:     log,
	}, nil
}

// CreateEvent inserts one event. A response without an html link is treated
// as a failure since the customer has nothing to open.
func (g *GoogleGateway) CreateEvent(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	event := &gcal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start: &gcal.EventDateTime{
			DateTime: req.Start.Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: req.End.Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
	}

	start := time.Now()
	created, err := g.service.Events.Insert(g.calendarID, event).Context(ctx).Do()
	metrics.CalendarRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		fields := map[string]interface{}{
			"calendarId": g.calendarID,
			"start":      event.Start.DateTime,
		}
		var apiErr *googleapi.Error
		if stderrors.As(err, &apiErr) {
			fields["status"] = apiErr.Code
		}

		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.BookingsCreated.WithLabelValues("timeout").Inc()
			g.logger.WithError(err).Debug("Calendar insert timed out", fields)
			return nil, errors.NewCalendarTimeoutError(err)
		}

		// The router reports the failure; keep the API detail here.
		metrics.BookingsCreated.WithLabelValues("failed").Inc()
		g.logger.WithError(err).Debug("Calendar insert failed", fields)
		return nil, errors.NewCalendarGatewayError(err)
	}

	if created == nil || created.HtmlLink == "" {
		metrics.BookingsCreated.WithLabelValues("no_link").Inc()
		g.logger.Debug("Calendar insert returned no link", map[string]interface{}{
			"calendarId": g.calendarID,
		})
		return nil, errors.NewCalendarGatewayError(nil)
	}

	metrics.BookingsCreated.WithLabelValues("created").Inc()
	g.logger.Info("Calendar event created", map[string]interface{}{
		"calendarId": g.calendarID,
		"eventId":    created.Id,
	})

	return &models.BookingResult{EventID: created.Id, ConfirmationLink: created.HtmlLink}, nil
}
