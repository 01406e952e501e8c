// Package events implements the event approval workflow: admins create and
// edit events, super_admins review them, and every transition writes its
// notifications in the same transaction as the event change.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventviewer/server/internal/audit"
	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/eventviewer/server/internal/metrics"
	"github.com/eventviewer/server/internal/storage/assets"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DefaultUploadTimeout = 60 * time.Second

type Engine struct {
	repo          Repository
	images        assets.Store
	publisher     notifications.Publisher
	auditLogger   *audit.Logger
	logger        zerolog.Logger
	now           func() time.Time
	loc           *time.Location
	uploadTimeout time.Duration
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the timezone that event dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithUploadTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.uploadTimeout = d
		}
	}
}

func NewEngine(repo Repository, images assets.Store, publisher notifications.Publisher, auditLogger *audit.Logger, logger zerolog.Logger, opts ...Option) *Engine {
	if publisher == nil {
		publisher = notifications.NopPublisher{}
	}
	e := &Engine{
		repo:          repo,
		images:        images,
		publisher:     publisher,
		auditLogger:   auditLogger,
		logger:        logger.With().Str("component", "events").Logger(),
		now:           time.Now,
		loc:           time.Local,
		uploadTimeout: DefaultUploadTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create uploads the poster, then stores the event and its notifications in
// one transaction. A failed transaction deletes the uploaded poster again.
func (e *Engine) Create(ctx context.Context, creatorID string, in CreateInput) (ev *Event, err error) {
	defer func() { metrics.EventTransitions.WithLabelValues("create", metrics.Outcome(err)).Inc() }()

	in = in.sanitized()
	if err := in.validate(e.now(), e.loc); err != nil {
		return nil, err
	}
	if len(in.Image) == 0 {
		return nil, ErrImageRequired
	}
	image, err := assets.ValidateImage(in.Image)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	eventID := id.String()

	uploaded, err := e.upload(ctx, eventID, image)
	if err != nil {
		return nil, err
	}

	var creatorName string
	err = e.withTx(ctx, func(tx Repository) error {
		name, err := e.creatorName(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		creatorName = name
		superAdmins, err := tx.ListSuperAdminIDs(ctx)
		if err != nil {
			return fmt.Errorf("list super admins: %w", err)
		}

		ev, err = tx.CreateEvent(ctx, Event{
			ID:            eventID,
			CreatorID:     creatorID,
			Name:          in.Name,
			Date:          in.Date,
			StartTime:     in.StartTime,
			EndTime:       in.EndTime,
			Location:      in.Location,
			Speaker:       in.Speaker,
			Status:        StatusPending,
			ImageURL:      uploaded.URL,
			ImagePublicID: uploaded.PublicID,
		})
		if err != nil {
			return fmt.Errorf("create event: %w", err)
		}

		rows := e.fanOut(ev, creatorID, superAdmins, notifications.TypeEventCreated, "")
		rows = append(rows, e.notification(ev, creatorID, creatorID, notifications.TypeEventPending, ""))
		if err := tx.InsertNotifications(ctx, rows); err != nil {
			return fmt.Errorf("insert notifications: %w", err)
		}
		return nil
	})
	if err != nil {
		e.compensate(uploaded.PublicID, err)
		return nil, err
	}

	e.publish(ctx,
		notifications.NewMessage(notifications.EventNewNotification, notifications.SuperAdminRoom,
			notifications.TypeEventCreated, ev.Name,
			fmt.Sprintf("%s has submitted a request for the event: %s. Please review it.", creatorName, ev.Name), ev),
		notifications.NewMessage(notifications.EventNewNotification, notifications.UserRoom(creatorID),
			notifications.TypeEventPending, ev.Name, pendingMessage, ev),
	)
	e.auditLogger.LogSuccess("event.create", creatorID, "event", ev.ID, map[string]string{"name": ev.Name})
	return ev, nil
}

// Edit applies a partial update by the event's creator and resets the event
// to pending. A new poster replaces the old one only after commit.
func (e *Engine) Edit(ctx context.Context, creatorID, eventID string, in EditInput) (ev *Event, err error) {
	defer func() { metrics.EventTransitions.WithLabelValues("edit", metrics.Outcome(err)).Inc() }()

	in = in.sanitized()
	if err := in.validateFields(); err != nil {
		return nil, err
	}

	var uploaded *assets.Object
	if len(in.Image) > 0 {
		image, err := assets.ValidateImage(in.Image)
		if err != nil {
			return nil, err
		}
		// Only the owner may write into the event's poster folder.
		if _, err := e.repo.GetOwnedEvent(ctx, eventID, creatorID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrEventNotOwned
			}
			return nil, fmt.Errorf("get event: %w", err)
		}
		obj, err := e.upload(ctx, eventID, image)
		if err != nil {
			return nil, err
		}
		uploaded = &obj
	}

	var previousImage string
	err = e.withTx(ctx, func(tx Repository) error {
		current, err := tx.GetOwnedEventForUpdate(ctx, eventID, creatorID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrEventNotOwned
			}
			return fmt.Errorf("get event: %w", err)
		}

		merged := in.apply(*current)
		if err := ValidateSchedule(merged.Date, merged.StartTime, merged.EndTime, e.now(), e.loc); err != nil {
			return err
		}
		merged.Status = StatusPending
		if uploaded != nil {
			previousImage = current.ImagePublicID
			merged.ImageURL = uploaded.URL
			merged.ImagePublicID = uploaded.PublicID
		}

		ev, err = tx.UpdateEvent(ctx, merged)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		superAdmins, err := tx.ListSuperAdminIDs(ctx)
		if err != nil {
			return fmt.Errorf("list super admins: %w", err)
		}

		rows := e.fanOut(ev, creatorID, superAdmins, notifications.TypeEventUpdated, "")
		rows = append(rows, e.notification(ev, creatorID, creatorID, notifications.TypeEventPending, ""))
		if err := tx.InsertNotifications(ctx, rows); err != nil {
			return fmt.Errorf("insert notifications: %w", err)
		}
		return nil
	})
	if err != nil {
		if uploaded != nil {
			e.compensate(uploaded.PublicID, err)
		}
		return nil, err
	}

	if previousImage != "" && previousImage != ev.ImagePublicID {
		if err := e.images.Delete(context.WithoutCancel(ctx), previousImage); err != nil {
			e.logger.Error().Err(err).Str("event_id", ev.ID).Str("public_id", previousImage).Msg("failed to delete replaced poster")
		}
	}

	e.publish(ctx,
		notifications.NewMessage(notifications.EventEventUpdated, notifications.SuperAdminRoom,
			notifications.TypeEventUpdated, ev.Name,
			fmt.Sprintf("Event \"%s\" has been updated and is waiting for review.", ev.Name), ev),
		notifications.NewMessage(notifications.EventNewNotification, notifications.UserRoom(ev.CreatorID),
			notifications.TypeEventPending, ev.Name, pendingMessage, ev),
	)
	e.auditLogger.LogSuccess("event.edit", creatorID, "event", ev.ID, nil)
	return ev, nil
}

// Delete removes an event owned by creatorID together with its
// notifications, then tells the reviewers and drops the poster folder.
func (e *Engine) Delete(ctx context.Context, creatorID, eventID string) (err error) {
	defer func() { metrics.EventTransitions.WithLabelValues("delete", metrics.Outcome(err)).Inc() }()

	var (
		deleted     *Event
		creatorName string
	)
	err = e.withTx(ctx, func(tx Repository) error {
		current, err := tx.GetOwnedEventForUpdate(ctx, eventID, creatorID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrEventNotOwned
			}
			return fmt.Errorf("get event: %w", err)
		}
		deleted = current

		creatorName, err = e.creatorName(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		superAdmins, err := tx.ListSuperAdminIDs(ctx)
		if err != nil {
			return fmt.Errorf("list super admins: %w", err)
		}
		if err := tx.DeleteEvent(ctx, eventID); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}

		// Inserted after the delete so the cascade cannot take them along.
		rows := e.fanOut(current, creatorID, superAdmins, notifications.TypeEventDeleted, "")
		for i := range rows {
			rows[i].EventID = ""
		}
		if err := tx.InsertNotifications(ctx, rows); err != nil {
			return fmt.Errorf("insert notifications: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if deleted.ImagePublicID != "" {
		if err := e.images.DeleteFolder(context.WithoutCancel(ctx), assets.EventFolder(deleted.ID)); err != nil {
			e.logger.Error().Err(err).Str("event_id", deleted.ID).Str("public_id", deleted.ImagePublicID).Msg("failed to delete event assets")
		}
	}

	e.publish(ctx, notifications.NewMessage(notifications.EventNewNotification, notifications.SuperAdminRoom,
		notifications.TypeEventDeleted, deleted.Name,
		fmt.Sprintf("%s removed this event from the system. No further action is required", creatorName), deleted))
	e.auditLogger.LogSuccess("event.delete", creatorID, "event", deleted.ID, map[string]string{"name": deleted.Name})
	return nil
}

const pendingMessage = "We will inform you of the outcome as soon as possible."

func (e *Engine) upload(ctx context.Context, eventID string, image assets.Image) (assets.Object, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, e.uploadTimeout)
	defer cancel()

	obj, err := e.images.Upload(uploadCtx, assets.PosterFolder(eventID), assets.NewFileName(), image)
	if err != nil {
		e.logger.Error().Err(err).Str("event_id", eventID).Msg("poster upload failed")
		return assets.Object{}, assets.ErrStorageService.Wrap(err)
	}
	return obj, nil
}

// compensate deletes an uploaded poster after its transaction failed. The
// caller's context may already be cancelled, so the delete gets its own.
func (e *Engine) compensate(publicID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.uploadTimeout)
	defer cancel()

	e.logger.Warn().Err(cause).Str("public_id", publicID).Msg("transaction failed, deleting uploaded poster")
	if err := e.images.Delete(ctx, publicID); err != nil {
		metrics.AssetCompensations.WithLabelValues("error").Inc()
		e.logger.Error().Err(err).Str("public_id", publicID).Msg("orphaned poster asset, compensating delete failed")
		return
	}
	metrics.AssetCompensations.WithLabelValues("success").Inc()
}

func (e *Engine) creatorName(ctx context.Context, tx Repository, userID string) (string, error) {
	name, err := tx.GetUserFirstName(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrCreatorNotFound
		}
		return "", fmt.Errorf("get creator: %w", err)
	}
	return name, nil
}

func (e *Engine) notification(ev *Event, senderID, recipientID string, t notifications.Type, feedback string) notifications.Notification {
	now := e.now()
	return notifications.Notification{
		ID:          newID(),
		EventID:     ev.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Feedback:    feedback,
		Payload:     ev.Snapshot(),
		Type:        t,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// fanOut builds one row per super_admin.
func (e *Engine) fanOut(ev *Event, senderID string, recipients []string, t notifications.Type, feedback string) []notifications.Notification {
	rows := make([]notifications.Notification, 0, len(recipients)+1)
	for _, id := range recipients {
		rows = append(rows, e.notification(ev, senderID, id, t, feedback))
	}
	return rows
}

// publish runs after commit. Failures are logged and counted, never returned.
func (e *Engine) publish(ctx context.Context, msgs ...notifications.Message) {
	ctx = context.WithoutCancel(ctx)
	for _, msg := range msgs {
		if err := e.publisher.Publish(ctx, msg); err != nil {
			metrics.NotificationsPushed.WithLabelValues("error").Inc()
			e.logger.Error().Err(err).Str("room", msg.Room).Str("type", string(msg.Data.Type)).Msg("push notification failed")
			continue
		}
		metrics.NotificationsPushed.WithLabelValues("success").Inc()
	}
}

func (e *Engine) withTx(ctx context.Context, fn func(tx Repository) error) error {
	tx, committer, err := e.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = committer.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := committer.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
