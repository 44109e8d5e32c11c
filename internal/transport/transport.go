// Package transport connects the conversation router to a chat network:
// outbound replies with a typing pause, and a serial inbound dispatcher.
package transport

import (
	"context"

	"barbearia-twowell/internal/models"
)

// Transport is the outbound side of a chat connection.
type Transport interface {
	// SendTyping shows the "typing..." indicator in chat.
	SendTyping(ctx context.Context, chat models.ChatHandle) error
	// SendText delivers one text message to chat.
	SendText(ctx context.Context, chat models.ChatHandle, text string) error
	// DisplayName returns the contact's public name, if the network exposes one.
	DisplayName(ctx context.Context, chat models.ChatHandle) (string, bool)
}

// Handler consumes one inbound message. It must not return until every reply
// for that message has been sent.
type Handler interface {
	Handle(ctx context.Context, msg models.InboundMessage)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg models.InboundMessage)

func (f HandlerFunc) Handle(ctx context.Context, msg models.InboundMessage) {
	f(ctx, msg)
}
