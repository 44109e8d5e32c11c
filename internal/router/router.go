// Package router decides what the bot says in reply to each inbound message.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"barbearia-twowell/internal/calendar"
	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/common/metrics"
	"barbearia-twowell/internal/common/observability"
	"barbearia-twowell/internal/models"
	"barbearia-twowell/internal/session"
	"barbearia-twowell/internal/transport"
)

const (
	DefaultBookingSummary = "Corte de Cabelo - Barbearia TwoWell"
	DefaultFallbackName   = "parceiro"

	// DefaultSettleTimeout bounds the closing reply and bookkeeping of a
	// booking turn. They run detached from the turn deadline so a slow
	// calendar cannot leave the customer without an answer.
	DefaultSettleTimeout = 10 * time.Second
)

// Turn modes, used as metric labels and journal values.
const (
	ModeIgnored  = "ignored"
	ModeBooking  = "booking"
	ModeGreeting = "greeting"
	ModeMenu     = "menu"
	ModeUnknown  = "unknown"
)

// Turn outcomes.
const (
	OutcomeIgnored       = "ignored"
	OutcomeWelcome       = "welcome"
	OutcomeBookingPrompt = "booking_prompt"
	OutcomePrices        = "prices"
	OutcomeServices      = "services"
	OutcomeContact       = "contact"
	OutcomeFAQ           = "faq"
	OutcomeSilent        = "silent"
	OutcomeFormatHelp    = "format_help"
	OutcomeBooked        = "booked"
	OutcomeBookingFailed = "booking_failed"
	OutcomeError         = "error"
)

// DateTimeParser reads the customer's booking reply.
type DateTimeParser interface {
	Parse(text string) (models.Interval, error)
}

// BookingNotifier is told about confirmed bookings after the customer is.
type BookingNotifier interface {
	Notify(ctx context.Context, n models.BookingNotification)
}

// TurnRecorder persists one row per handled turn.
type TurnRecorder interface {
	Record(ctx context.Context, rec models.TurnRecord) error
}

// Config holds the router's text settings.
type Config struct {
	BookingSummary string
	FallbackName   string
}

// Router is the conversation state machine. Handle must be called serially;
// the transport dispatcher guarantees that.
type Router struct {
	parser   DateTimeParser
	sessions session.Store
	calendar calendar.Gateway
	replier  *transport.Replier
	notifier BookingNotifier
	journal  TurnRecorder
	obs      *observability.Observability
	errors   *errors.ErrorHandler
	logger   logger.Logger
	cfg      Config
	now      func() time.Time
}

// Option wires an optional collaborator.
type Option func(*Router)

func WithNotifier(n BookingNotifier) Option {
	return func(r *Router) { r.notifier = n }
}

func WithJournal(j TurnRecorder) Option {
	return func(r *Router) { r.journal = j }
}

func WithObservability(o *observability.Observability) Option {
	return func(r *Router) { r.obs = o }
}

func New(
	cfg Config,
	parser DateTimeParser,
	sessions session.Store,
	gateway calendar.Gateway,
	replier *transport.Replier,
	log logger.Logger,
	opts ...Option,
) *Router {
	if cfg.BookingSummary == "" {
		cfg.BookingSummary = DefaultBookingSummary
	}
	if cfg.FallbackName == "" {
		cfg.FallbackName = DefaultFallbackName
	}
	r := &Router{
		parser:   parser,
		sessions: sessions,
		calendar: gateway,
		replier:  replier,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// turn carries what is known about one Handle call.
type turn struct {
	id      string
	msg     models.InboundMessage
	started time.Time
	mode    string
	outcome string
	errCode errors.ErrorCode
	link    string
	log     logger.Logger
}

// Handle runs one conversation turn. Every error is absorbed here; the caller
// never sees one.
func (r *Router) Handle(ctx context.Context, msg models.InboundMessage) {
	t := &turn{
		id:      uuid.NewString(),
		msg:     msg,
		started: r.now(),
	}
	t.log = r.logger.With(map[string]interface{}{
		"turnId":   t.id,
		"senderId": msg.SenderID,
	})

	if !msg.IsDirect() {
		t.mode, t.outcome = ModeIgnored, OutcomeIgnored
		t.log.Debug("Ignoring non-direct message", nil)
		r.finish(ctx, t, nil)
		return
	}

	state, err := r.sessions.Get(ctx, msg.SenderID)
	if err != nil {
		// Without the state we cannot tell a date reply from a menu choice.
		t.mode = ModeUnknown
		r.finish(ctx, t, err)
		return
	}

	body := strings.TrimSpace(msg.Body)

	switch {
	case state.IsPending():
		t.mode = ModeBooking
		err = r.handleBooking(ctx, t)
	case isGreeting(body):
		t.mode = ModeGreeting
		err = r.sendWelcome(ctx, t)
	default:
		t.mode = ModeMenu
		err = r.handleMenu(ctx, t, body)
	}

	r.finish(ctx, t, err)
}

func isGreeting(body string) bool {
	_, ok := greetings[strings.ToLower(body)]
	return ok
}

func (r *Router) sendWelcome(ctx context.Context, t *turn) error {
	t.outcome = OutcomeWelcome
	return r.reply(ctx, t, welcomeText(r.firstName(ctx, t.msg.Chat)))
}

// firstName returns the first word of the contact's display name.
func (r *Router) firstName(ctx context.Context, chat models.ChatHandle) string {
	name, ok := r.replier.Transport().DisplayName(ctx, chat)
	if !ok {
		return r.cfg.FallbackName
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return r.cfg.FallbackName
	}
	return fields[0]
}

func (r *Router) handleMenu(ctx context.Context, t *turn, body string) error {
	if body == "" {
		t.outcome = OutcomeSilent
		return nil
	}

	switch body[0] {
	case '1':
		t.outcome = OutcomeBookingPrompt
		if err := r.reply(ctx, t, bookingPromptText); err != nil {
			return err
		}
		return r.sessions.Set(ctx, t.msg.SenderID, models.StateAwaitingDateTime)
	case '2':
		t.outcome = OutcomePrices
		return r.reply(ctx, t, pricesText)
	case '3':
		t.outcome = OutcomeServices
		return r.reply(ctx, t, servicesText)
	case '4':
		t.outcome = OutcomeContact
		return r.reply(ctx, t, contactText)
	case '5':
		t.outcome = OutcomeFAQ
		return r.reply(ctx, t, faqText)
	default:
		t.outcome = OutcomeSilent
		return nil
	}
}

// handleBooking consumes the pending state: whatever happens, the customer
// gets one parse attempt.
func (r *Router) handleBooking(ctx context.Context, t *turn) (err error) {
	defer func() {
		clearCtx, cancel := settleContext(ctx)
		defer cancel()
		if clearErr := r.sessions.Clear(clearCtx, t.msg.SenderID); clearErr != nil {
			t.log.WithError(clearErr).Error("Failed to clear session state", nil)
			if err == nil {
				err = clearErr
			}
		}
	}()

	slot, parseErr := r.parser.Parse(t.msg.Body)
	if parseErr != nil {
		t.outcome = OutcomeFormatHelp
		r.errors.HandleTurnError(t.id, t.msg.SenderID, parseErr)
		t.errCode = errors.CodeOf(parseErr)
		return r.reply(ctx, t, formatHelpText)
	}

	if err := r.reply(ctx, t, ackText(t.msg.Body)); err != nil {
		// The customer never saw the acknowledgment; do not book behind their back.
		t.outcome = OutcomeError
		return err
	}

	req := models.BookingRequest{
		Summary:     r.cfg.BookingSummary,
		Description: fmt.Sprintf(bookingDescriptionFormat, t.msg.SenderID),
		Start:       slot.Start,
		End:         slot.End,
		Timezone:    slot.Start.Location().String(),
	}

	result, calErr := r.calendar.CreateEvent(ctx, req)

	// From here on the customer must hear back even if the turn deadline
	// expired inside the calendar call.
	ctx, cancel := settleContext(ctx)
	defer cancel()

	if calErr == nil && !result.Confirmed() {
		calErr = errors.NewCalendarGatewayError(nil)
	}
	if calErr != nil {
		t.outcome = OutcomeBookingFailed
		r.errors.HandleTurnError(t.id, t.msg.SenderID, calErr)
		t.errCode = errors.CodeOf(calErr)
		return r.reply(ctx, t, bookingFailedText)
	}

	t.outcome = OutcomeBooked
	t.link = result.ConfirmationLink
	if err := r.reply(ctx, t, bookedText(result.ConfirmationLink)); err != nil {
		return err
	}

	if r.notifier != nil {
		r.notifier.Notify(ctx, models.BookingNotification{
			TurnID:           t.id,
			CustomerID:       t.msg.SenderID,
			CustomerName:     t.msg.Chat.ContactName,
			Start:            req.Start,
			End:              req.End,
			Timezone:         req.Timezone,
			ConfirmationLink: result.ConfirmationLink,
		})
	}
	return nil
}

// settleContext keeps ctx's values but drops its deadline and cancellation.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), DefaultSettleTimeout)
}

func (r *Router) reply(ctx context.Context, t *turn, text string) error {
	return r.replier.Reply(ctx, t.msg.Chat, text)
}

// finish logs, counts and journals the turn.
func (r *Router) finish(ctx context.Context, t *turn, err error) {
	if err != nil {
		stdErr := r.errors.HandleTurnError(t.id, t.msg.SenderID, err)
		t.errCode = stdErr.Code
		if t.outcome == "" || t.outcome == OutcomeSilent {
			t.outcome = OutcomeError
		}
	}
	if t.outcome == "" {
		t.outcome = OutcomeError
	}

	elapsed := r.now().Sub(t.started)
	metrics.TurnsHandled.WithLabelValues(t.mode, t.outcome).Inc()
	metrics.TurnDuration.WithLabelValues(t.mode).Observe(elapsed.Seconds())
	r.obs.RecordTurn(ctx, t.mode, t.outcome, elapsed)

	if t.mode != ModeIgnored {
		t.log.Info("Turn handled", map[string]interface{}{
			"mode":       t.mode,
			"outcome":    t.outcome,
			"errorCode":  string(t.errCode),
			"durationMs": elapsed.Milliseconds(),
		})
	}

	if r.journal == nil || (t.mode == ModeIgnored && err == nil) {
		return
	}
	rec := models.TurnRecord{
		ID:         t.id,
		SenderID:   t.msg.SenderID,
		Mode:       t.mode,
		Outcome:    t.outcome,
		ErrorCode:  string(t.errCode),
		Link:       t.link,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  t.started.UTC(),
	}
	jctx, cancel := settleContext(ctx)
	defer cancel()
	if jErr := r.journal.Record(jctx, rec); jErr != nil {
		r.errors.HandleTurnError(t.id, t.msg.SenderID, errors.NewJournalWriteFailedError(jErr))
	}
}
