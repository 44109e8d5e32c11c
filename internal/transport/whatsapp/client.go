// Package whatsapp adapts the WhatsApp Cloud API to the bot's transport:
// outbound messages through the Graph API and inbound messages from the
// webhook.
package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"barbearia-twowell/internal/common/config"
	"barbearia-twowell/internal/common/errors"
	commonhttp "barbearia-twowell/internal/common/http"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/models"
)

const (
	DefaultGraphURL   = "https://graph.facebook.com"
	DefaultAPIVersion = "v21.0"
)

// Client sends messages and typing indicators through the Graph API.
type Client struct {
	http     *commonhttp.Client
	endpoint string
	token    string
	logger   logger.Logger
}

// NewClient builds a client for one business phone number.
func NewClient(cfg config.WhatsAppConfig, httpClient *commonhttp.Client, log logger.Logger) (*Client, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	graphURL := strings.TrimRight(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	if httpClient == nil {
		timeout := config.GetDuration(cfg.Timeout)
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = commonhttp.NewClient(timeout)
	}

	return &Client{
		http:     httpClient,
		endpoint: fmt.Sprintf("%s/%s/%s/messages", graphURL, version, cfg.PhoneNumberID),
		token:    cfg.AccessToken,
		logger:   log,
	}, nil
}

// Validate checks the settings the outbound client cannot run without.
func Validate(cfg config.WhatsAppConfig) error {
	if cfg.PhoneNumberID == "" {
		return errors.NewConfigurationError("whatsapp.phone_number_id is required")
	}
	if cfg.AccessToken == "" {
		return errors.NewConfigurationError("whatsapp.access_token is required")
	}
	return nil
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type typingIndicator struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
	TypingIndicator  struct {
		Type string `json:"type"`
	} `json:"typing_indicator"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.token}
}

// SendText sends a plain text message. Link previews are on so the calendar
// link renders as a card.
func (c *Client) SendText(ctx context.Context, chat models.ChatHandle, text string) error {
	payload := textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               PhoneFromChatID(chat.ChatID),
		Type:             "text",
		Text:             textBody{PreviewURL: true, Body: text},
	}

	var resp sendResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.endpoint, c.headers(), payload, &resp); err != nil {
		return fmt.Errorf("whatsapp send to %s: %w", payload.To, err)
	}

	fields := map[string]interface{}{"to": payload.To}
	if len(resp.Messages) > 0 {
		fields["messageId"] = resp.Messages[0].ID
	}
	c.logger.Debug("WhatsApp message sent", fields)
	return nil
}

// SendTyping marks the inbound message read and shows the typing indicator.
// The Cloud API ties the indicator to a received message id, so a chat
// without one is skipped.
func (c *Client) SendTyping(ctx context.Context, chat models.ChatHandle) error {
	if chat.MessageID == "" {
		return nil
	}

	payload := typingIndicator{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        chat.MessageID,
	}
	payload.TypingIndicator.Type = "text"

	if err := c.http.DoJSON(ctx, http.MethodPost, c.endpoint, c.headers(), payload, nil); err != nil {
		return fmt.Errorf("whatsapp typing indicator: %w", err)
	}
	return nil
}

// DisplayName returns the profile name the webhook attached to the chat.
func (c *Client) DisplayName(_ context.Context, chat models.ChatHandle) (string, bool) {
	name := strings.TrimSpace(chat.ContactName)
	return name, name != ""
}

// PhoneFromChatID strips the direct-chat suffix to get the Graph API recipient.
func PhoneFromChatID(chatID string) string {
	return strings.TrimSuffix(chatID, models.DirectChatSuffix)
}

// ChatIDFromPhone maps a Cloud API wa_id to the bot's sender id. Ids that
// already carry a chat suffix are kept as they are.
func ChatIDFromPhone(waID string) string {
	if strings.Contains(waID, "@") {
		return waID
	}
	return models.DirectSenderID(waID)
}
