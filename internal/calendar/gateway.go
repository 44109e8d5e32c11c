// Package calendar books appointment slots on the shop's shared calendar.
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"barbearia-twowell/internal/models"
)

// Gateway creates one event per booking request. Implementations make a
// single attempt and never retry.
type Gateway interface {
	CreateEvent(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error)
}

// LocalGateway records bookings in memory and hands back a fake link. Used by
// the console simulator when no calendar credentials are configured.
type LocalGateway struct {
	mu       sync.Mutex
	bookings []models.BookingRequest
	linkBase string
}

// NewLocalGateway returns a LocalGateway whose links start with linkBase.
func NewLocalGateway(linkBase string) *LocalGateway {
	if linkBase == "" {
		linkBase = "https://calendar.local/event?eid="
	}
	return &LocalGateway{linkBase: linkBase}
}

func (g *LocalGateway) CreateEvent(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.End.After(req.Start) {
		return nil, fmt.Errorf("event end %s is not after start %s", req.End.Format(time.RFC3339), req.Start.Format(time.RFC3339))
	}

	g.mu.Lock()
	g.bookings = append(g.bookings, req)
	g.mu.Unlock()

	id := uuid.NewString()
	return &models.BookingResult{EventID: id, ConfirmationLink: g.linkBase + id}, nil
}

// Bookings returns a copy of everything booked so far.
func (g *LocalGateway) Bookings() []models.BookingRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.BookingRequest, len(g.bookings))
	copy(out, g.bookings)
	return out
}
