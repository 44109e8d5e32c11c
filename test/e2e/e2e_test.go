// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"barbearia-twowell/internal/calendar"
	"barbearia-twowell/internal/common/config"
	commonhttp "barbearia-twowell/internal/common/http"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/datetime"
	"barbearia-twowell/internal/models"
	"barbearia-twowell/internal/router"
	"barbearia-twowell/internal/server"
	"barbearia-twowell/internal/session"
	"barbearia-twowell/internal/transport"
	"barbearia-twowell/internal/transport/whatsapp"
)

const (
	appSecret = "e2e-secret"
	customer  = "5511999999999"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// graphAPI records every outbound call the bot makes.
type graphAPI struct {
	mu    sync.Mutex
	texts []string
	kinds []string
}

func (g *graphAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		g.mu.Lock()
		if text, ok := body["text"].(map[string]interface{}); ok {
			g.texts = append(g.texts, text["body"].(string))
			g.kinds = append(g.kinds, "text")
		} else {
			g.kinds = append(g.kinds, "typing")
		}
		g.mu.Unlock()

		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.OUT"}]}`))
	}
}

func (g *graphAPI) sentTexts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.texts...)
}

type calendarAPI struct {
	mu     sync.Mutex
	events []map[string]interface{}
	fail   bool
}

func (c *calendarAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))

		c.mu.Lock()
		c.events = append(c.events, ev)
		fail := c.fail
		c.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt1","htmlLink":"https://www.google.com/calendar/event?eid=evt1"}`))
	}
}

type harness struct {
	t        *testing.T
	api      http.Handler
	graph    *graphAPI
	cal      *calendarAPI
	sessions *session.RedisStore
	seq      int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)

	graph := &graphAPI{}
	graphSrv := httptest.NewServer(graph.handler(t))
	t.Cleanup(graphSrv.Close)

	cal := &calendarAPI{}
	calSrv := httptest.NewServer(cal.handler(t))
	t.Cleanup(calSrv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	sessions := session.NewRedisStore(rdb, session.DefaultKeyPrefix, time.Hour)

	gateway, err := calendar.NewGoogleGateway(context.Background(), config.CalendarConfig{
		CalendarID: "primary",
		Endpoint:   calSrv.URL + "/",
		Timeout:    5000,
	}, log, option.WithHTTPClient(calSrv.Client()))
	require.NoError(t, err)

	wa, err := whatsapp.NewClient(config.WhatsAppConfig{
		GraphURL:      graphSrv.URL,
		PhoneNumberID: "1234567890",
		AccessToken:   "token",
	}, commonhttp.NewClientWith(graphSrv.Client()), log)
	require.NoError(t, err)

	parser, err := datetime.NewParser()
	require.NoError(t, err)

	bot := router.New(router.Config{}, parser, sessions, gateway, transport.NewReplier(wa, 0, log), log)
	dispatcher := transport.NewDispatcher(bot, 16, log)

	srv := server.New(server.Options{
		Webhook: whatsapp.NewWebhookHandler("verify", appSecret, dispatcher, log),
		Ready:   dispatcher.Ready(),
	}, log)

	runDone := make(chan error, 1)
	go func() { runDone <- dispatcher.Run(context.Background()) }()
	<-dispatcher.Ready()
	t.Cleanup(func() {
		dispatcher.Close()
		<-runDone
	})

	return &harness{t: t, api: srv.Handler(), graph: graph, cal: cal, sessions: sessions}
}

// send posts one signed text message and returns the webhook status.
func (h *harness) send(from, body string) int {
	h.seq++
	payload := fmt.Sprintf(`{
	  "object": "whatsapp_business_account",
	  "entry": [{"id": "WABA", "changes": [{"field": "messages", "value": {
	    "messaging_product": "whatsapp",
	    "contacts": [{"wa_id": %q, "profile": {"name": "João Silva"}}],
	    "messages": [{"from": %q, "id": "wamid.%d", "timestamp": "1735138800", "type": "text", "text": {"body": %q}}]
	  }}]}]
	}`, from, from, h.seq, body)

	req := httptest.NewRequest(http.MethodPost, server.DefaultWebhookPath, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(whatsapp.Sign([]byte(appSecret), []byte(payload))))
	rec := httptest.NewRecorder()
	h.api.ServeHTTP(rec, req)
	return rec.Code
}

// waitTexts blocks until the bot has sent n texts in total.
func (h *harness) waitTexts(n int) []string {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return len(h.graph.sentTexts()) >= n }, 5*time.Second, 10*time.Millisecond)
	return h.graph.sentTexts()
}

// ==========================
// Scenarios
// ==========================

func TestE2E_GreetingMenuAndBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sender := models.DirectSenderID(customer)

	require.Equal(t, http.StatusOK, h.send(customer, "Oi"))
	texts := h.waitTexts(1)
	assert.True(t, strings.HasPrefix(texts[0], "Forte Abraço, João!"), texts[0])

	require.Equal(t, http.StatusOK, h.send(customer, "1"))
	texts = h.waitTexts(2)
	assert.Contains(t, texts[1], "DD/MM/AAAA HH:MM")

	state, err := h.sessions.Get(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingDateTime, state)

	require.Equal(t, http.StatusOK, h.send(customer, "25/12/2025 15:00"))
	texts = h.waitTexts(4)
	assert.Equal(t, "Confirmando agendamento para 25/12/2025 15:00. Só um momento...", texts[2])
	assert.Contains(t, texts[3], "https://www.google.com/calendar/event?eid=evt1")

	state, err = h.sessions.Get(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, models.StateNone, state)

	h.cal.mu.Lock()
	require.Len(t, h.cal.events, 1)
	ev := h.cal.events[0]
	h.cal.mu.Unlock()
	assert.Equal(t, "Corte de Cabelo - Barbearia TwoWell", ev["summary"])
	assert.Equal(t, "2025-12-25T15:00:00-03:00", ev["start"].(map[string]interface{})["dateTime"])
	assert.Equal(t, "2025-12-25T16:00:00-03:00", ev["end"].(map[string]interface{})["dateTime"])
	assert.Contains(t, ev["description"], sender)

	h.graph.mu.Lock()
	kinds := append([]string(nil), h.graph.kinds...)
	h.graph.mu.Unlock()
	for i := 0; i < len(kinds); i += 2 {
		assert.Equal(t, []string{"typing", "text"}, kinds[i:i+2], "every reply is preceded by a typing indicator")
	}
}

func TestE2E_InvalidDateClearsState(t *testing.T) {
	h := newHarness(t)

	h.send(customer, "1")
	h.send(customer, "31/04/2025 10:00")
	texts := h.waitTexts(2)
	assert.Contains(t, texts[1], "formato de data e hora parece inválido")

	// The pending flag is gone, so a date now reads as menu option 3.
	h.send(customer, "31/04/2025 10:00")
	texts = h.waitTexts(3)
	assert.Contains(t, texts[2], "Oferecemos o melhor para o seu estilo")

	h.cal.mu.Lock()
	assert.Empty(t, h.cal.events)
	h.cal.mu.Unlock()
}

func TestE2E_CalendarFailureApologizes(t *testing.T) {
	h := newHarness(t)
	h.cal.mu.Lock()
	h.cal.fail = true
	h.cal.mu.Unlock()

	h.send(customer, "1")
	h.send(customer, "25/12/2025 15:00")
	texts := h.waitTexts(3)
	assert.Contains(t, texts[1], "Confirmando agendamento")
	assert.Contains(t, texts[2], "tente falar com um atendente")

	h.cal.mu.Lock()
	assert.Len(t, h.cal.events, 1, "the calendar is never retried")
	h.cal.mu.Unlock()
}

func TestE2E_ForgedSignatureRejected(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, server.DefaultWebhookPath, strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`))
	req.Header.Set("X-Hub-Signature-256", "sha256=00")
	rec := httptest.NewRecorder()
	h.api.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.graph.sentTexts())
}

func TestE2E_Ready(t *testing.T) {
	h := newHarness(t)
	rec := httptest.NewRecorder()
	h.api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
