// internal/models/notification.go
package models

import "time"

// BookingNotification tells the shop owner that a customer booked a slot.
type BookingNotification struct {
	TurnID           string    `json:"turnId"`
	CustomerID       string    `json:"customerId"`
	CustomerName     string    `json:"customerName,omitempty"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Timezone         string    `json:"timezone"`
	ConfirmationLink string    `json:"confirmationLink"`
}

// TurnRecord is one journal row describing how a turn ended.
type TurnRecord struct {
	ID         string    `json:"id" db:"id"`
	SenderID   string    `json:"senderId" db:"sender_id"`
	Mode       string    `json:"mode" db:"mode"`
	Outcome    string    `json:"outcome" db:"outcome"`
	ErrorCode  string    `json:"errorCode,omitempty" db:"error_code"`
	Link       string    `json:"link,omitempty" db:"link"`
	DurationMs int64     `json:"durationMs" db:"duration_ms"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
