// internal/models/message.go
package models

import "strings"

const (
	// DirectChatSuffix marks an individual chat participant.
	DirectChatSuffix = "@c.us"
	// GroupChatSuffix marks a group conversation.
	GroupChatSuffix = "@g.us"
	// BroadcastSuffix marks status and broadcast lists.
	BroadcastSuffix = "@broadcast"
)

// ChatHandle is the transport's reference to a conversation. The router passes
// it back untouched when replying.
type ChatHandle struct {
	ChatID      string `json:"chatId"`
	MessageID   string `json:"messageId,omitempty"`
	ContactName string `json:"contactName,omitempty"`
}

// InboundMessage is one received chat message.
type InboundMessage struct {
	SenderID string     `json:"senderId"`
	Body     string     `json:"body"`
	Chat     ChatHandle `json:"chat"`
}

// IsDirect reports whether the message came from an individual chat.
func (m InboundMessage) IsDirect() bool {
	return strings.HasSuffix(m.SenderID, DirectChatSuffix)
}

// DirectSenderID builds the sender id of an individual chat from a bare phone id.
func DirectSenderID(phone string) string {
	return phone + DirectChatSuffix
}
