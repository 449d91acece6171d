package domain

import "time"

// A dashboard notification addressed to the signed-in user.
type Notification struct {
	ID        string
	Title     string
	Message   string
	Link      string
	IsRead    bool
	CreatedAt time.Time
}

type NotificationEventKind string

const (
	// A new notification is appended to the feed.
	NotificationCreated NotificationEventKind = "created"
	// An existing notification is marked read.
	NotificationRead NotificationEventKind = "read"
	// The event could not be applied incrementally; reload the whole feed.
	NotificationResync NotificationEventKind = "resync"
)

// Incoming change to the notification feed.
// Notification is set for NotificationCreated, NotificationID for NotificationRead.
type NotificationEvent struct {
	Kind           NotificationEventKind
	Notification   *Notification
	NotificationID string
}
