// internal/models/booking.go
package models

import "time"

// Interval is a validated appointment slot.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// BookingRequest is submitted once to the calendar and never stored.
type BookingRequest struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Timezone    string    `json:"timezone"`
}

// BookingResult is what the calendar returns for a created event.
type BookingResult struct {
	EventID          string `json:"eventId,omitempty"`
	ConfirmationLink string `json:"confirmationLink"`
}

// Confirmed reports whether the result carries a link the user can open.
func (r *BookingResult) Confirmed() bool {
	return r != nil && r.ConfirmationLink != ""
}
