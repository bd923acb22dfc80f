package models

import "time"

const (
	ChannelEmail = "email"

	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Contact is the delivery address of a user, learned from user.registered
// events.
type Contact struct {
	UserID    string    `gorm:"size:64;primaryKey" json:"user_id"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationLog records one delivery attempt sequence for an event.
type NotificationLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:64;index" json:"event_id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	Recipient string    `gorm:"size:255" json:"recipient"`
	Type      string    `gorm:"size:64" json:"type"`
	Channel   string    `gorm:"size:16" json:"channel"`
	Subject   string    `gorm:"size:255" json:"subject"`
	Status    string    `gorm:"size:16;index" json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationFilter struct {
	UserID string
	Status string
	Type   string
	Page   int
	Limit  int
}
