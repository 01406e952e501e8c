package notifications

import (
	"context"
	"fmt"
)

// SuperAdminRoom receives every push addressed to reviewers.
const SuperAdminRoom = "super_admin-room"

// Client-side event names.
const (
	EventNewNotification = "new_notification"
	EventEventUpdated    = "event_updated"
)

// Push is the body clients receive.
type Push struct {
	Type    Type   `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	IsRead  bool   `json:"isRead"`
	Data    any    `json:"data"`
}

// Message addresses a push to a room.
type Message struct {
	Event string `json:"event"`
	Room  string `json:"room"`
	Data  Push   `json:"data"`
}

// Publisher fans a message out to every connection in its room. Delivery is
// best effort and never part of a database transaction.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// UserRoom is the private room every connection joins.
func UserRoom(userID string) string {
	return userID
}

// Title returns the push title for a notification type.
func Title(t Type, eventName string) string {
	switch t {
	case TypeEventCreated:
		return "A new request has been submitted"
	case TypeEventPending:
		return "Your Request is currently PENDING"
	case TypeEventUpdated:
		return fmt.Sprintf("Event \"%s\" has been updated", eventName)
	case TypeEventRevised:
		return "Your Request requires REVISION"
	case TypeEventApproved:
		return "Your Request has been APPROVED"
	case TypeEventRejected:
		return "Your Request has been REJECTED"
	case TypeEventDeleted:
		return fmt.Sprintf("Event \"%s\" has been deleted.", eventName)
	default:
		return "Notification"
	}
}

// NewMessage builds a message with the standard title for t.
func NewMessage(event, room string, t Type, eventName, message string, data any) Message {
	return Message{
		Event: event,
		Room:  room,
		Data: Push{
			Type:    t,
			Title:   Title(t, eventName),
			Message: message,
			Data:    data,
		},
	}
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }
