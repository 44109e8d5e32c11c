// Package session keeps the one pending-reply flag the bot tracks per user.
package session

import (
	"context"
	"fmt"

	"barbearia-twowell/internal/models"
)

// Store maps a user id to its conversation state. A user with no entry is in
// models.StateNone; setting StateNone is the same as Clear.
type Store interface {
	Get(ctx context.Context, userID string) (models.ConversationState, error)
	Set(ctx context.Context, userID string, state models.ConversationState) error
	Clear(ctx context.Context, userID string) error
}

func checkState(state models.ConversationState) error {
	if !state.Valid() {
		return fmt.Errorf("unknown conversation state %q", state)
	}
	return nil
}
