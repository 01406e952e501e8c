package postgres

import (
	"context"
	"fmt"

	"github.com/eventviewer/server/internal/domain/events"
	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/jackc/pgx/v5"
)

// EventRepository implements events.Repository. event_date and the two TIME
// columns travel as text so the domain keeps its civil-date strings.
type EventRepository struct {
	conn
}

const eventColumns = `id, creator_id, name, to_char(event_date, 'YYYY-MM-DD'),
       to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
       location, speaker, status, image_url, image_public_id, created_at, updated_at`

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		ev     events.Event
		status string
	)
	if err := row.Scan(&ev.ID, &ev.CreatorID, &ev.Name, &ev.Date, &ev.StartTime, &ev.EndTime,
		&ev.Location, &ev.Speaker, &status, &ev.ImageURL, &ev.ImagePublicID,
		&ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	ev.Status = events.Status(status)
	return &ev, nil
}

func collectEvents(rows pgx.Rows) ([]events.Event, error) {
	defer rows.Close()
	var out []events.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (r *EventRepository) BeginTx(ctx context.Context) (events.Repository, events.TxCommitter, error) {
	c, committer, err := r.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &EventRepository{conn: c}, committer, nil
}

func (r *EventRepository) GetUserFirstName(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.queryer().QueryRow(ctx, `SELECT first_name FROM users WHERE id = $1`, userID).Scan(&name)
	if err != nil {
		if isNoRows(err) {
			return "", events.ErrNotFound
		}
		return "", fmt.Errorf("get user first name: %w", err)
	}
	return name, nil
}

func (r *EventRepository) ListSuperAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := r.queryer().Query(ctx, `SELECT id::text FROM users WHERE role = 'super_admin' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list super admins: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan super admin ids: %w", err)
	}
	return ids, nil
}

func (r *EventRepository) CreateEvent(ctx context.Context, ev events.Event) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO events (id, creator_id, name, event_date, start_time, end_time, location, speaker,
                    status, image_url, image_public_id)
VALUES ($1, $2, $3, $4::text::date, $5::text::time, $6::text::time, $7, $8, $9, $10, $11)
RETURNING `+eventColumns,
		ev.ID, ev.CreatorID, ev.Name, ev.Date, ev.StartTime, ev.EndTime, ev.Location, ev.Speaker,
		string(ev.Status), ev.ImageURL, ev.ImagePublicID,
	)
	created, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return created, nil
}

func (r *EventRepository) GetOwnedEvent(ctx context.Context, id, creatorID string) (*events.Event, error) {
	ev, err := scanEvent(r.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 AND creator_id = $2`, id, creatorID))
	if err != nil {
		if isNoRows(err) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (r *EventRepository) GetOwnedEventForUpdate(ctx context.Context, id, creatorID string) (*events.Event, error) {
	return r.getForUpdate(ctx, `WHERE id = $1 AND creator_id = $2`, id, creatorID)
}

func (r *EventRepository) GetReviewableEventForUpdate(ctx context.Context, id string) (*events.Event, error) {
	return r.getForUpdate(ctx, `WHERE id = $1 AND status IN ('pending', 'revised')`, id)
}

// getForUpdate locks the matching row. Under READ COMMITTED a concurrent
// writer that changed the status makes the re-checked WHERE fail, so the
// second of two racing reviews sees no row.
func (r *EventRepository) getForUpdate(ctx context.Context, where string, args ...any) (*events.Event, error) {
	ev, err := scanEvent(r.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events `+where+` FOR UPDATE`, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event for update: %w", err)
	}
	return ev, nil
}

func (r *EventRepository) UpdateEvent(ctx context.Context, ev events.Event) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
UPDATE events
   SET name = $2, event_date = $3::text::date, start_time = $4::text::time, end_time = $5::text::time,
       location = $6, speaker = $7, status = $8, image_url = $9, image_public_id = $10, updated_at = now()
 WHERE id = $1
RETURNING `+eventColumns,
		ev.ID, ev.Name, ev.Date, ev.StartTime, ev.EndTime, ev.Location, ev.Speaker,
		string(ev.Status), ev.ImageURL, ev.ImagePublicID,
	)
	updated, err := scanEvent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

func (r *EventRepository) UpdateEventStatus(ctx context.Context, id string, status events.Status) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
UPDATE events SET status = $2, updated_at = now() WHERE id = $1
RETURNING `+eventColumns, id, string(status))
	updated, err := scanEvent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("update event status: %w", err)
	}
	return updated, nil
}

// DeleteEvent relies on ON DELETE CASCADE for the event's notifications.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		if isInvalidInput(err) {
			return events.ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) InsertNotifications(ctx context.Context, items []notifications.Notification) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range items {
		batch.Queue(`
INSERT INTO notifications (id, event_id, sender_id, recipient_id, feedback, payload, type, is_read, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, n.ID, nullString(n.EventID), nullString(n.SenderID), n.RecipientID, nullString(n.Feedback),
			n.Payload, string(n.Type), n.IsRead, n.CreatedAt, n.UpdatedAt)
	}
	if err := r.queryer().SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

func (r *EventRepository) ListApproved(ctx context.Context, dates events.DateRange) ([]events.Event, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE status = 'approved'
   AND event_date >= COALESCE(NULLIF($1::text, '')::date, '-infinity'::date)
   AND event_date <= COALESCE(NULLIF($2::text, '')::date, 'infinity'::date)
 ORDER BY event_date, start_time
`, dates.From, dates.To)
	if err != nil {
		return nil, fmt.Errorf("list approved events: %w", err)
	}
	return collectEvents(rows)
}

func (r *EventRepository) ListEvents(ctx context.Context, filter events.ListFilter) ([]events.Event, int, error) {
	var total int
	err := r.queryer().QueryRow(ctx,
		`SELECT count(*) FROM events WHERE ($1::text = '' OR creator_id::text = $1::text)`, filter.CreatorID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	rows, err := r.queryer().Query(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE ($1::text = '' OR creator_id::text = $1::text)
 ORDER BY created_at DESC, id DESC
 LIMIT $2 OFFSET $3
`, filter.CreatorID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	list, err := collectEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
