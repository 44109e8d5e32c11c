// internal/session/memory.go
package session

import (
	"context"
	"sync"
	"time"

	"barbearia-twowell/internal/models"
)

type memoryEntry struct {
	state     models.ConversationState
	expiresAt time.Time // zero = never
}

// MemoryStore is the default process-local store. State is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore returns an empty store. A ttl of 0 keeps entries until cleared.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (models.ConversationState, error) {
	s.mu.RLock()
	entry, ok := s.entries[userID]
	s.mu.RUnlock()

	if !ok {
		return models.StateNone, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, userID)
		s.mu.Unlock()
		return models.StateNone, nil
	}
	return entry.state, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID string, state models.ConversationState) error {
	if err := checkState(state); err != nil {
		return err
	}
	if state == models.StateNone {
		return s.Clear(ctx, userID)
	}

	entry := memoryEntry{state: state}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[userID] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of users with a pending state.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
