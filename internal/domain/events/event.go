package events

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/domain/notifications"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusRevised  Status = "revised"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Reviewable reports whether approve, reject or feedback may act on s.
func (s Status) Reviewable() bool {
	return s == StatusPending || s == StatusRevised
}

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("event not found")

var (
	ErrEventNotOwned      = apperr.NotFound("Event not found or you are not allowed to modify it.")
	ErrEventNotReviewable = apperr.NotFound("Event not found or already processed.")
	ErrCreatorNotFound    = apperr.New(http.StatusNotFound, apperr.CodeUserNotFound, "User not found.")
)

// Event dates are civil dates (YYYY-MM-DD) and times are wall clock (HH:MM)
// in the application timezone.
type Event struct {
	ID            string    `json:"id"`
	CreatorID     string    `json:"creatorId"`
	Name          string    `json:"eventName"`
	Date          string    `json:"date"`
	StartTime     string    `json:"startTime"`
	EndTime       string    `json:"endTime"`
	Location      string    `json:"location"`
	Speaker       string    `json:"speaker"`
	Status        Status    `json:"status"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	ImagePublicID string    `json:"imagePublicId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Snapshot is the copy stored in notification payloads.
func (e *Event) Snapshot() notifications.Payload {
	return notifications.Payload{
		EventName: e.Name,
		Date:      e.Date,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Location:  e.Location,
		Speaker:   e.Speaker,
		ImageURL:  e.ImageURL,
	}
}

// Summary is the public listing view of an approved event.
type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"eventName"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Location  string `json:"location"`
	Speaker   string `json:"speaker"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

func (e *Event) Summary() Summary {
	return Summary{
		ID:        e.ID,
		Name:      e.Name,
		Date:      e.Date,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Location:  e.Location,
		Speaker:   e.Speaker,
		ImageURL:  e.ImageURL,
	}
}

// DateRange bounds approved-event queries by civil date. Both ends are
// inclusive and an empty end is unbounded.
type DateRange struct {
	From string
	To   string
}

type ListFilter struct {
	// CreatorID scopes the list to one admin; empty lists every event.
	CreatorID string
	Limit     int
	Offset    int
}

type Repository interface {
	GetUserFirstName(ctx context.Context, userID string) (string, error)
	ListSuperAdminIDs(ctx context.Context) ([]string, error)

	CreateEvent(ctx context.Context, event Event) (*Event, error)
	// GetOwnedEvent reads the event without locking when creatorID owns it.
	GetOwnedEvent(ctx context.Context, id, creatorID string) (*Event, error)
	// GetOwnedEventForUpdate locks the event only when creatorID owns it.
	GetOwnedEventForUpdate(ctx context.Context, id, creatorID string) (*Event, error)
	// GetReviewableEventForUpdate locks the event only while it is pending or revised.
	GetReviewableEventForUpdate(ctx context.Context, id string) (*Event, error)
	UpdateEvent(ctx context.Context, event Event) (*Event, error)
	UpdateEventStatus(ctx context.Context, id string, status Status) (*Event, error)
	// DeleteEvent removes the event and every notification that references it.
	DeleteEvent(ctx context.Context, id string) error
	InsertNotifications(ctx context.Context, items []notifications.Notification) error

	ListApproved(ctx context.Context, dates DateRange) ([]Event, error)
	ListEvents(ctx context.Context, filter ListFilter) ([]Event, int, error)

	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
}

type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
