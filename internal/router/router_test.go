// internal/router/router_test.go
package router

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/datetime"
	"barbearia-twowell/internal/models"
	"barbearia-twowell/internal/session"
	"barbearia-twowell/internal/transport"
)

// ==========================
// Test Doubles
// ==========================

type sent struct {
	op   string
	text string
}

type fakeTransport struct {
	mu      sync.Mutex
	log     []sent
	name    string
	sendErr error
	// events is shared with the calendar mock to check ordering.
	events *[]string
}

func (f *fakeTransport) SendTyping(_ context.Context, _ models.ChatHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, sent{op: "typing"})
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, _ models.ChatHandle, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.log = append(f.log, sent{op: "text", text: text})
	if f.events != nil {
		*f.events = append(*f.events, "text:"+text)
	}
	return nil
}

func (f *fakeTransport) DisplayName(_ context.Context, _ models.ChatHandle) (string, bool) {
	return f.name, f.name != ""
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.log {
		if s.op == "text" {
			out = append(out, s.text)
		}
	}
	return out
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateEvent(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.BookingResult)
	return res, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n models.BookingNotification) {
	m.Called(ctx, n)
}

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) Record(ctx context.Context, rec models.TurnRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type failingStore struct {
	session.Store
	getErr   error
	clearErr error
}

func (s *failingStore) Get(ctx context.Context, user string) (models.ConversationState, error) {
	if s.getErr != nil {
		return models.StateNone, s.getErr
	}
	return s.Store.Get(ctx, user)
}

func (s *failingStore) Clear(ctx context.Context, user string) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.Store.Clear(ctx, user)
}

type fixture struct {
	router    *Router
	transport *fakeTransport
	sessions  *session.MemoryStore
	gateway   *MockGateway
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	parser, err := datetime.NewParser()
	require.NoError(t, err)

	tr := &fakeTransport{name: "João Silva"}
	store := session.NewMemoryStore(0)
	gw := &MockGateway{}
	replier := transport.NewReplier(tr, 0, logger.NewNoOpLogger())

	r := New(Config{}, parser, store, gw, replier, logger.NewTestLogger(t), opts...)
	return &fixture{router: r, transport: tr, sessions: store, gateway: gw}
}

const user = "5511999999999@c.us"

func direct(body string) models.InboundMessage {
	return models.InboundMessage{SenderID: user, Body: body, Chat: models.ChatHandle{ChatID: user}}
}

func (f *fixture) state(t *testing.T) models.ConversationState {
	t.Helper()
	s, err := f.sessions.Get(context.Background(), user)
	require.NoError(t, err)
	return s
}

func (f *fixture) pending(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sessions.Set(context.Background(), user, models.StateAwaitingDateTime))
}

// ==========================
// Scenarios
// ==========================

func TestHandle_GreetingSendsWelcome(t *testing.T) {
	f := newFixture(t)

	f.router.Handle(context.Background(), direct("oi"))

	texts := f.transport.texts()
	require.Len(t, texts, 1)
	assert.Equal(t, welcomeText("João"), texts[0])
	assert.Contains(t, texts[0], "Forte Abraço, João!")
	for _, opt := range []string{"*1*", "*2*", "*3*", "*4*", "*5*"} {
		assert.Contains(t, texts[0], opt)
	}
	assert.Equal(t, models.StateNone, f.state(t))
	assert.Equal(t, []sent{{op: "typing"}, {op: "text", text: texts[0]}}, f.transport.log)
}

func TestHandle_GreetingVariants(t *testing.T) {
	for _, body := range []string{"menu", "OI", "  Olá  ", "ola", "Bom Dia", "boa tarde", "BOA NOITE", "borel", "Opa"} {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t)
			f.router.Handle(context.Background(), direct(body))
			require.Len(t, f.transport.texts(), 1)
			assert.Contains(t, f.transport.texts()[0], "Forte Abraço")
		})
	}
}

func TestHandle_GreetingFallbackName(t *testing.T) {
	f := newFixture(t)
	f.transport.name = ""

	f.router.Handle(context.Background(), direct("oi"))
	assert.Contains(t, f.transport.texts()[0], "Forte Abraço, parceiro!")
}

func TestHandle_NotAGreeting(t *testing.T) {
	f := newFixture(t)

	f.router.Handle(context.Background(), direct("oi tudo bem"))
	assert.Empty(t, f.transport.texts())
}

func TestHandle_OptionOneSetsPending(t *testing.T) {
	f := newFixture(t)

	f.router.Handle(context.Background(), direct("1"))

	assert.Equal(t, []string{bookingPromptText}, f.transport.texts())
	assert.Equal(t, models.StateAwaitingDateTime, f.state(t))
}

func TestHandle_BookingSuccess(t *testing.T) {
	var events []string
	notifier := &MockNotifier{}
	f := newFixture(t, WithNotifier(notifier))
	f.transport.events = &events
	f.pending(t)

	link := "https://calendar.example/abc"
	f.gateway.On("CreateEvent", mock.Anything, mock.AnythingOfType("models.BookingRequest")).
		Run(func(mock.Arguments) { events = append(events, "calendar") }).
		Return(&models.BookingResult{EventID: "abc", ConfirmationLink: link}, nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n models.BookingNotification) bool {
		return n.CustomerID == user && n.ConfirmationLink == link
	})).Once()

	f.router.Handle(context.Background(), direct("25/12/2025 15:00"))

	texts := f.transport.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Confirmando agendamento para 25/12/2025 15:00. Só um momento...", texts[0])
	assert.Equal(t, bookedText(link), texts[1])
	assert.Contains(t, texts[1], link)
	assert.Equal(t, models.StateNone, f.state(t))

	// ack before calendar, calendar before final reply
	require.Len(t, events, 3)
	assert.Equal(t, "text:"+texts[0], events[0])
	assert.Equal(t, "calendar", events[1])
	assert.Equal(t, "text:"+texts[1], events[2])

	req := f.gateway.Calls[0].Arguments.Get(1).(models.BookingRequest)
	loc, _ := time.LoadLocation(datetime.Timezone)
	assert.True(t, req.Start.Equal(time.Date(2025, 12, 25, 15, 0, 0, 0, loc)))
	assert.True(t, req.End.Equal(time.Date(2025, 12, 25, 16, 0, 0, 0, loc)))
	assert.Equal(t, DefaultBookingSummary, req.Summary)
	assert.Equal(t, "Agendamento para o cliente com WhatsApp: "+user, req.Description)
	assert.Equal(t, datetime.Timezone, req.Timezone)

	f.gateway.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestHandle_BookingInvalidDate(t *testing.T) {
	f := newFixture(t)
	f.pending(t)

	f.router.Handle(context.Background(), direct("31/02/2025 10:00"))

	assert.Equal(t, []string{formatHelpText}, f.transport.texts())
	assert.Equal(t, models.StateNone, f.state(t))
	f.gateway.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
}

func TestHandle_BookingMalformed(t *testing.T) {
	f := newFixture(t)
	f.pending(t)

	f.router.Handle(context.Background(), direct("amanhã de tarde"))

	assert.Equal(t, []string{formatHelpText}, f.transport.texts())
	assert.Equal(t, models.StateNone, f.state(t))
	f.gateway.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
}

func TestHandle_BookingGatewayFailure(t *testing.T) {
	notifier := &MockNotifier{}
	f := newFixture(t, WithNotifier(notifier))
	f.pending(t)
	f.gateway.On("CreateEvent", mock.Anything, mock.Anything).
		Return(nil, errors.NewCalendarGatewayError(stderrors.New("403 forbidden"))).Once()

	f.router.Handle(context.Background(), direct("25/12/2025 15:00"))

	texts := f.transport.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, bookingFailedText, texts[1])
	assert.Equal(t, models.StateNone, f.state(t))
	f.gateway.AssertNumberOfCalls(t, "CreateEvent", 1)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

// stallingGateway blocks until the caller's deadline passes.
type stallingGateway struct{}

func (stallingGateway) CreateEvent(ctx context.Context, _ models.BookingRequest) (*models.BookingResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHandle_TurnDeadlineInsideCalendarStillApologizes(t *testing.T) {
	parser, err := datetime.NewParser()
	require.NoError(t, err)
	tr := &fakeTransport{}
	store := session.NewMemoryStore(0)
	require.NoError(t, store.Set(context.Background(), user, models.StateAwaitingDateTime))
	journal := &MockJournal{}
	journal.On("Record", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
		Return(nil).Once()

	r := New(Config{}, parser, store, stallingGateway{},
		transport.NewReplier(tr, 0, logger.NewNoOpLogger()), logger.NewTestLogger(t), WithJournal(journal))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Handle(ctx, direct("25/12/2025 15:00"))

	texts := tr.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "25/12/2025 15:00")
	assert.Equal(t, bookingFailedText, texts[1])

	s, err := store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, models.StateNone, s)
	journal.AssertExpectations(t)
}

func TestHandle_BookingGatewayNoLink(t *testing.T) {
	f := newFixture(t)
	f.pending(t)
	f.gateway.On("CreateEvent", mock.Anything, mock.Anything).
		Return(&models.BookingResult{}, nil).Once()

	f.router.Handle(context.Background(), direct("25/12/2025 15:00"))

	texts := f.transport.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, bookingFailedText, texts[1])
	assert.Equal(t, models.StateNone, f.state(t))
}

func TestHandle_PricesVerbatim(t *testing.T) {
	f := newFixture(t)

	f.router.Handle(context.Background(), direct("2"))

	require.Equal(t, []string{pricesText}, f.transport.texts())
	assert.Contains(t, pricesText, "*Corte + Barba:* R$ 65,00")
	assert.Equal(t, models.StateNone, f.state(t))
}

func TestHandle_MenuOptions(t *testing.T) {
	tests := map[string]string{
		"3":         servicesText,
		"4":         contactText,
		"5":         faqText,
		" 5 please": faqText,
		"2 e 3":     pricesText,
	}
	for body, want := range tests {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t)
			f.router.Handle(context.Background(), direct(body))
			assert.Equal(t, []string{want}, f.transport.texts())
			assert.Equal(t, models.StateNone, f.state(t))
		})
	}
}

func TestHandle_SilentFallthrough(t *testing.T) {
	for _, body := range []string{"", "   ", "6", "0", "hello", "x1"} {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t)
			f.router.Handle(context.Background(), direct(body))
			assert.Empty(t, f.transport.log)
			assert.Equal(t, models.StateNone, f.state(t))
		})
	}
}

func TestHandle_NonDirectIgnored(t *testing.T) {
	for _, sender := range []string{"120363000000@g.us", "status@broadcast", "5511"} {
		t.Run(sender, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.sessions.Set(context.Background(), sender, models.StateAwaitingDateTime))

			for _, body := range []string{"oi", "1", "25/12/2025 15:00"} {
				f.router.Handle(context.Background(), models.InboundMessage{
					SenderID: sender, Body: body, Chat: models.ChatHandle{ChatID: sender},
				})
			}

			assert.Empty(t, f.transport.log)
			state, err := f.sessions.Get(context.Background(), sender)
			require.NoError(t, err)
			assert.Equal(t, models.StateAwaitingDateTime, state)
			f.gateway.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
		})
	}
}

// ==========================
// Properties
// ==========================

func TestHandle_PendingTakesPriorityOverGreetingAndMenu(t *testing.T) {
	for _, body := range []string{"oi", "menu", "1", "2"} {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t)
			f.pending(t)

			f.router.Handle(context.Background(), direct(body))

			assert.Equal(t, []string{formatHelpText}, f.transport.texts())
			assert.Equal(t, models.StateNone, f.state(t))
		})
	}
}

func TestHandle_FullConversation(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("CreateEvent", mock.Anything, mock.Anything).
		Return(&models.BookingResult{ConfirmationLink: "https://calendar.example/abc"}, nil)

	ctx := context.Background()
	f.router.Handle(ctx, direct("oi"))
	assert.Equal(t, models.StateNone, f.state(t))
	f.router.Handle(ctx, direct("1"))
	assert.Equal(t, models.StateAwaitingDateTime, f.state(t))
	f.router.Handle(ctx, direct("25/12/2025 15:00"))
	assert.Equal(t, models.StateNone, f.state(t))
	f.router.Handle(ctx, direct("25/12/2025 15:00"))

	// the repeated date arrives with no pending state, so its leading '2' picks the price list
	texts := f.transport.texts()
	require.Len(t, texts, 5)
	assert.Equal(t, pricesText, texts[4])
	f.gateway.AssertNumberOfCalls(t, "CreateEvent", 1)
}

// ==========================
// Failure handling
// ==========================

func TestHandle_SessionReadFailureSendsNothing(t *testing.T) {
	parser, _ := datetime.NewParser()
	tr := &fakeTransport{}
	store := &failingStore{Store: session.NewMemoryStore(0), getErr: errors.NewSessionStoreError("get", stderrors.New("down"))}
	r := New(Config{}, parser, store, &MockGateway{}, transport.NewReplier(tr, 0, logger.NewNoOpLogger()), logger.NewTestLogger(t))

	r.Handle(context.Background(), direct("2"))
	assert.Empty(t, tr.log)
}

func TestHandle_OptionOneSendFailureLeavesStateUnset(t *testing.T) {
	f := newFixture(t)
	f.transport.sendErr = stderrors.New("network down")

	f.router.Handle(context.Background(), direct("1"))
	assert.Equal(t, models.StateNone, f.state(t))
}

func TestHandle_AckFailureSkipsCalendarAndClears(t *testing.T) {
	f := newFixture(t)
	f.pending(t)
	f.transport.sendErr = stderrors.New("network down")

	f.router.Handle(context.Background(), direct("25/12/2025 15:00"))

	f.gateway.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
	assert.Equal(t, models.StateNone, f.state(t))
}

func TestHandle_ClearFailureIsAbsorbed(t *testing.T) {
	parser, _ := datetime.NewParser()
	tr := &fakeTransport{}
	mem := session.NewMemoryStore(0)
	require.NoError(t, mem.Set(context.Background(), user, models.StateAwaitingDateTime))
	store := &failingStore{Store: mem, clearErr: stderrors.New("clear failed")}
	r := New(Config{}, parser, store, &MockGateway{}, transport.NewReplier(tr, 0, logger.NewNoOpLogger()), logger.NewTestLogger(t))

	assert.NotPanics(t, func() { r.Handle(context.Background(), direct("bad")) })
	assert.Equal(t, []string{formatHelpText}, tr.texts())
}

func TestHandle_CustomConfig(t *testing.T) {
	parser, _ := datetime.NewParser()
	tr := &fakeTransport{}
	gw := &MockGateway{}
	store := session.NewMemoryStore(0)
	require.NoError(t, store.Set(context.Background(), user, models.StateAwaitingDateTime))
	gw.On("CreateEvent", mock.Anything, mock.MatchedBy(func(req models.BookingRequest) bool {
		return req.Summary == "Barba - TwoWell"
	})).Return(&models.BookingResult{ConfirmationLink: "https://x"}, nil).Once()

	r := New(Config{BookingSummary: "Barba - TwoWell", FallbackName: "amigo"}, parser, store, gw,
		transport.NewReplier(tr, 0, logger.NewNoOpLogger()), logger.NewNoOpLogger())

	r.Handle(context.Background(), direct("01/03/2026 10:00"))
	r.Handle(context.Background(), direct("oi"))

	gw.AssertExpectations(t)
	assert.Contains(t, tr.texts()[2], "Forte Abraço, amigo!")
}

// ==========================
// Journal
// ==========================

func TestHandle_JournalRecordsOutcome(t *testing.T) {
	journal := &MockJournal{}
	f := newFixture(t, WithJournal(journal))
	f.pending(t)
	f.gateway.On("CreateEvent", mock.Anything, mock.Anything).
		Return(&models.BookingResult{ConfirmationLink: "https://calendar.example/abc"}, nil)

	journal.On("Record", mock.Anything, mock.MatchedBy(func(rec models.TurnRecord) bool {
		return rec.SenderID == user && rec.Mode == ModeBooking && rec.Outcome == OutcomeBooked &&
			rec.Link == "https://calendar.example/abc" && rec.ErrorCode == "" && rec.ID != ""
	})).Return(nil).Once()
	journal.On("Record", mock.Anything, mock.MatchedBy(func(rec models.TurnRecord) bool {
		return rec.Mode == ModeMenu && rec.Outcome == OutcomePrices
	})).Return(stderrors.New("db down")).Once()

	f.router.Handle(context.Background(), direct("25/12/2025 15:00"))
	f.router.Handle(context.Background(), direct("2"))

	journal.AssertExpectations(t)
}

func TestHandle_JournalRecordsParseErrorCode(t *testing.T) {
	journal := &MockJournal{}
	f := newFixture(t, WithJournal(journal))
	f.pending(t)

	journal.On("Record", mock.Anything, mock.MatchedBy(func(rec models.TurnRecord) bool {
		return rec.Outcome == OutcomeFormatHelp && rec.ErrorCode == string(errors.ErrCodeInvalidDateTime)
	})).Return(nil).Once()

	f.router.Handle(context.Background(), direct("29/02/2025 10:00"))
	journal.AssertExpectations(t)
}

func TestHandle_JournalSkipsIgnoredMessages(t *testing.T) {
	journal := &MockJournal{}
	f := newFixture(t, WithJournal(journal))

	f.router.Handle(context.Background(), models.InboundMessage{SenderID: "1@g.us", Body: "oi"})
	journal.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}
