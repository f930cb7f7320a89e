package models

import "time"

// EventType names a notification delivered to a user.
type EventType string

const (
	EventRequestAccepted  EventType = "request-accepted"
	EventRequestRejected  EventType = "request-rejected"
	EventRequestCancelled EventType = "request-cancelled"
	EventMissionStarted   EventType = "mission-started"
)

// Notification is a persisted user notification.
type Notification struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"userId"`
	Type      EventType      `db:"type" json:"type"`
	Values    map[string]any `db:"payload" json:"values"`
	IsRead    bool           `db:"is_read" json:"isRead"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}
