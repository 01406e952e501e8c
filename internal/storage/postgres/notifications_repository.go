package postgres

import (
	"context"
	"fmt"

	"github.com/eventviewer/server/internal/domain/notifications"
)

type NotificationRepository struct {
	conn
}

func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]notifications.Notification, int, error) {
	var total int
	if err := r.queryer().QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE recipient_id = $1`, recipientID).Scan(&total); err != nil {
		if isInvalidInput(err) {
			return []notifications.Notification{}, 0, nil
		}
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := r.queryer().Query(ctx, `
SELECT id, event_id, sender_id, recipient_id, feedback, payload, type, is_read, created_at, updated_at
  FROM notifications
 WHERE recipient_id = $1
 ORDER BY created_at DESC, id DESC
 LIMIT $2 OFFSET $3
`, recipientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []notifications.Notification{}
	for rows.Next() {
		var (
			n                           notifications.Notification
			eventID, senderID, feedback *string
			kind                        string
		)
		if err := rows.Scan(&n.ID, &eventID, &senderID, &n.RecipientID, &feedback, &n.Payload,
			&kind, &n.IsRead, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		n.EventID = derefString(eventID)
		n.SenderID = derefString(senderID)
		n.Feedback = derefString(feedback)
		n.Type = notifications.Type(kind)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, total, nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, recipientID string) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE notifications SET is_read = true, updated_at = now()
 WHERE id = $1 AND recipient_id = $2
`, id, recipientID)
	if err != nil {
		if isInvalidInput(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected(), nil
}
