// internal/transport/whatsapp/payload.go
package whatsapp

import (
	"encoding/json"

	"barbearia-twowell/internal/common/validation"
	"barbearia-twowell/internal/models"
)

// webhookSchema rejects bodies that are not Cloud API change notifications
// before they are decoded.
var webhookSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["object", "entry"],
  "properties": {
    "object": {"type": "string", "enum": ["whatsapp_business_account"]},
    "entry": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["changes"],
        "properties": {
          "changes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["value"],
              "properties": {
                "field": {"type": "string"},
                "value": {
                  "type": "object",
                  "properties": {
                    "contacts": {"type": "array"},
                    "messages": {
                      "type": "array",
                      "items": {
                        "type": "object",
                        "required": ["from", "id", "type"],
                        "properties": {
                          "from": {"type": "string", "minLength": 1},
                          "id": {"type": "string", "minLength": 1},
                          "type": {"type": "string"}
                        }
                      }
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`)

type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []contact         `json:"contacts"`
	Messages         []message         `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

type contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// inboundMessages flattens a notification into bot messages, in payload order.
// Non-text messages keep an empty body. Status receipts are counted, not returned.
func (p webhookPayload) inboundMessages() (msgs []models.InboundMessage, statuses int) {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			statuses += len(change.Value.Statuses)

			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, m := range change.Value.Messages {
				body := ""
				if m.Type == "text" && m.Text != nil {
					body = m.Text.Body
				}
				sender := ChatIDFromPhone(m.From)
				msgs = append(msgs, models.InboundMessage{
					SenderID: sender,
					Body:     body,
					Chat: models.ChatHandle{
						ChatID:      sender,
						MessageID:   m.ID,
						ContactName: names[m.From],
					},
				})
			}
		}
	}
	return msgs, statuses
}
