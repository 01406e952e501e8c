// Package notifications holds notification records, their listing and the
// push message contract used for real-time delivery.
package notifications

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	TypeEventCreated  Type = "event_created"
	TypeEventPending  Type = "event_pending"
	TypeEventUpdated  Type = "event_updated"
	TypeEventRevised  Type = "event_revised"
	TypeEventApproved Type = "event_approved"
	TypeEventRejected Type = "event_rejected"
	TypeEventDeleted  Type = "event_deleted"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("notification not found")

// Payload is the event snapshot stored with a notification.
type Payload struct {
	EventName string `json:"eventName"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Location  string `json:"location"`
	Speaker   string `json:"speaker"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type Notification struct {
	ID string `json:"id"`
	// EventID is empty for event_deleted rows, which outlive their event.
	EventID     string    `json:"eventId,omitempty"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Feedback    string    `json:"feedback,omitempty"`
	Payload     Payload   `json:"payload"`
	Type        Type      `json:"notificationType"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Repository interface {
	// ListForRecipient returns one page newest first and the total row count.
	ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]Notification, int, error)
	// MarkAsRead flips is_read for a row owned by recipientID and reports the rows affected.
	MarkAsRead(ctx context.Context, id, recipientID string) (int64, error)
}
