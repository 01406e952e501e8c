package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/eventviewer/server/internal/metrics"
)

const feedbackMessage = "Please review the provided Feedback"

// Feedback asks the creator for a revision.
func (e *Engine) Feedback(ctx context.Context, reviewerID, eventID, feedback string) (*notifications.Notification, error) {
	clean, err := ValidateFeedback(feedback)
	if err != nil {
		return nil, err
	}
	return e.review(ctx, "feedback", reviewerID, eventID, StatusRevised, notifications.TypeEventRevised, clean,
		func(*Event) string { return feedbackMessage })
}

func (e *Engine) Approve(ctx context.Context, reviewerID, eventID string) (*notifications.Notification, error) {
	return e.review(ctx, "approve", reviewerID, eventID, StatusApproved, notifications.TypeEventApproved, "",
		func(ev *Event) string { return fmt.Sprintf("Congratulations! Your event \"%s\" has been approved.", ev.Name) })
}

func (e *Engine) Reject(ctx context.Context, reviewerID, eventID, feedback string) (*notifications.Notification, error) {
	clean, err := ValidateFeedback(feedback)
	if err != nil {
		return nil, err
	}
	return e.review(ctx, "reject", reviewerID, eventID, StatusRejected, notifications.TypeEventRejected, clean,
		func(*Event) string { return feedbackMessage })
}

// review moves a pending or revised event to target. The status check and
// the write happen under one row lock, so of two racing reviews the second
// sees the new status and fails with ErrEventNotReviewable.
func (e *Engine) review(ctx context.Context, transition, reviewerID, eventID string, target Status, t notifications.Type, feedback string, message func(*Event) string) (n *notifications.Notification, err error) {
	defer func() { metrics.EventTransitions.WithLabelValues(transition, metrics.Outcome(err)).Inc() }()

	var ev *Event
	err = e.withTx(ctx, func(tx Repository) error {
		current, err := tx.GetReviewableEventForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrEventNotReviewable
			}
			return fmt.Errorf("get event: %w", err)
		}

		ev, err = tx.UpdateEventStatus(ctx, current.ID, target)
		if err != nil {
			return fmt.Errorf("update event status: %w", err)
		}
		row := e.notification(ev, reviewerID, ev.CreatorID, t, feedback)
		if err := tx.InsertNotifications(ctx, []notifications.Notification{row}); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		n = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, notifications.NewMessage(notifications.EventNewNotification, notifications.UserRoom(ev.CreatorID),
		t, ev.Name, message(ev), n))
	e.auditLogger.LogSuccess("event."+transition, reviewerID, "event", ev.ID, map[string]string{"status": string(target)})
	return n, nil
}
