// internal/models/session.go
package models

// ConversationState tags what kind of reply the bot expects next from a user.
type ConversationState string

const (
	// StateNone means no reply is pending; messages are read as greetings or menu commands.
	StateNone ConversationState = "NONE"
	// StateAwaitingDateTime means the next message is read as a DD/MM/YYYY HH:MM booking reply.
	StateAwaitingDateTime ConversationState = "AWAITING_DATETIME"
)

// IsPending reports whether the state expects a specific reply.
func (s ConversationState) IsPending() bool {
	return s == StateAwaitingDateTime
}

// Valid reports whether s is one of the known states.
func (s ConversationState) Valid() bool {
	switch s {
	case StateNone, StateAwaitingDateTime:
		return true
	}
	return false
}
