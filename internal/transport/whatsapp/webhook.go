// internal/transport/whatsapp/webhook.go
package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/common/metrics"
	"barbearia-twowell/internal/models"
	"barbearia-twowell/internal/transport"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	maxWebhookBody  = 1 << 20
)

// Enqueuer accepts inbound messages for serial handling.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg models.InboundMessage) error
}

// WebhookHandler serves the Cloud API webhook: the GET verification
// handshake and POST change notifications.
type WebhookHandler struct {
	verifyToken string
	appSecret   []byte
	queue       Enqueuer
	logger      logger.Logger
}

// NewWebhookHandler builds the handler. An empty appSecret disables the
// signature check, which is only meant for local testing.
func NewWebhookHandler(verifyToken, appSecret string, queue Enqueuer, log logger.Logger) *WebhookHandler {
	h := &WebhookHandler{verifyToken: verifyToken, queue: queue, logger: log}
	if appSecret != "" {
		h.appSecret = []byte(appSecret)
	}
	return h
}

// RegisterRoutes mounts GET and POST on path.
func (h *WebhookHandler) RegisterRoutes(r gin.IRoutes, path string) {
	r.GET(path, h.Verify)
	r.POST(path, h.Receive)
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" || !hmac.Equal([]byte(token), []byte(h.verifyToken)) {
		h.logger.Warn("Webhook verification rejected", map[string]interface{}{"mode": mode})
		c.String(http.StatusForbidden, "forbidden")
		return
	}

	h.logger.Info("Webhook verified", nil)
	c.String(http.StatusOK, challenge)
}

// Receive validates a notification and queues its messages. It answers 200
// for anything it has accepted or deliberately dropped so the platform does
// not redeliver. 503 is only returned when nothing from the payload was queued.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.reject(c, http.StatusBadRequest, errors.NewWebhookPayloadError(err.Error()))
		return
	}

	if h.appSecret != nil && !h.validSignature(c.GetHeader(signatureHeader), body) {
		h.reject(c, http.StatusUnauthorized, errors.NewWebhookSignatureError("signature does not match body"))
		return
	}

	if result := webhookSchema.ValidateJSON(body); !result.Valid {
		h.reject(c, http.StatusBadRequest, errors.NewWebhookPayloadError(strings.Join(result.Messages(), "; ")))
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.reject(c, http.StatusBadRequest, errors.NewWebhookPayloadError(err.Error()))
		return
	}

	msgs, statuses := payload.inboundMessages()
	if statuses > 0 {
		metrics.WebhookEvents.WithLabelValues("status").Add(float64(statuses))
	}

	queued := 0
	for i, msg := range msgs {
		err := h.queue.Enqueue(c.Request.Context(), msg)
		switch {
		case err == nil:
			queued++
			metrics.WebhookEvents.WithLabelValues("queued").Inc()
		case stderrors.Is(err, transport.ErrRateLimited):
			h.logger.Warn("Sender rate limited, message dropped", map[string]interface{}{
				"senderId": msg.SenderID,
			})
		case stderrors.Is(err, errors.ErrDispatcherClosed):
			metrics.WebhookEvents.WithLabelValues("unavailable").Inc()
			if queued == 0 {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
				return
			}
			// A redelivery would repeat the messages already queued.
			h.logger.Warn("Dispatcher closed mid-payload, remaining messages dropped", map[string]interface{}{
				"queued":  queued,
				"dropped": len(msgs) - i,
			})
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		default:
			metrics.WebhookEvents.WithLabelValues("dropped").Inc()
			h.logger.WithError(err).Error("Failed to queue message", map[string]interface{}{
				"senderId": msg.SenderID,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebhookHandler) reject(c *gin.Context, status int, stdErr *errors.StandardError) {
	metrics.WebhookEvents.WithLabelValues("rejected").Inc()
	h.logger.Warn("Webhook rejected", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
	c.JSON(status, gin.H{"error": stdErr.Message, "code": stdErr.Code})
}

func (h *WebhookHandler) validSignature(header string, body []byte) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(h.appSecret, body))
}

// Sign returns the HMAC-SHA256 of body under secret, as the platform computes it.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
