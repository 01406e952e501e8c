package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/events"
	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/eventviewer/server/internal/storage/assets"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvent(t *testing.T, ctx context.Context, repo *EventRepository, creatorID, date string, status events.Status) *events.Event {
	t.Helper()
	ev, err := repo.CreateEvent(ctx, events.Event{
		ID:        uuid.NewString(),
		CreatorID: creatorID,
		Name:      "Seminar " + date,
		Date:      date,
		StartTime: "09:30",
		EndTime:   "11:00",
		Location:  "Auditorium",
		Speaker:   "Dr. Budi",
		Status:    status,
	})
	require.NoError(t, err)
	return ev
}

func TestEventRepositoryRoundTripsCivilDates(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	creator := insertUser(t, ctx, pool, auth.RoleAdmin, "Ana")

	ev := seedEvent(t, ctx, repo.Events(), creator, "2026-04-03", events.StatusPending)
	assert.Equal(t, "2026-04-03", ev.Date)
	assert.Equal(t, "09:30", ev.StartTime)
	assert.Equal(t, "11:00", ev.EndTime)

	name, err := repo.Events().GetUserFirstName(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, "Ana", name)

	owned, err := repo.Events().GetOwnedEvent(ctx, ev.ID, creator)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, owned.ID)
	_, err = repo.Events().GetOwnedEvent(ctx, ev.ID, uuid.NewString())
	assert.ErrorIs(t, err, events.ErrNotFound)

	_, err = repo.Events().GetOwnedEventForUpdate(ctx, ev.ID, uuid.NewString())
	assert.ErrorIs(t, err, events.ErrNotFound)
	_, err = repo.Events().GetOwnedEventForUpdate(ctx, "garbage", creator)
	assert.ErrorIs(t, err, events.ErrNotFound)
}

func TestEventRepositoryListings(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	alice := insertUser(t, ctx, pool, auth.RoleAdmin, "Alice")
	bob := insertUser(t, ctx, pool, auth.RoleAdmin, "Bob")

	seedEvent(t, ctx, repo.Events(), alice, "2026-03-04", events.StatusApproved)
	seedEvent(t, ctx, repo.Events(), alice, "2026-03-06", events.StatusApproved)
	seedEvent(t, ctx, repo.Events(), bob, "2026-03-20", events.StatusApproved)
	seedEvent(t, ctx, repo.Events(), bob, "2026-03-05", events.StatusPending)

	today, week, later := events.WeekRanges(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), time.UTC)
	for _, tc := range []struct {
		dates events.DateRange
		want  []string
	}{
		{today, []string{"2026-03-04"}},
		{week, []string{"2026-03-06"}},
		{later, []string{"2026-03-20"}},
	} {
		list, err := repo.Events().ListApproved(ctx, tc.dates)
		require.NoError(t, err)
		var dates []string
		for _, ev := range list {
			dates = append(dates, ev.Date)
		}
		assert.Equal(t, tc.want, dates, "range %+v", tc.dates)
	}

	mine, total, err := repo.Events().ListEvents(ctx, events.ListFilter{CreatorID: alice, Limit: 1, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, mine, 1)

	all, total, err := repo.Events().ListEvents(ctx, events.ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, all, 4)
}

func newPostgresEngine(t *testing.T, pool *pgxpool.Pool) (*events.Engine, *Repository) {
	t.Helper()
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	store, err := assets.NewLocalStore(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)
	engine := events.NewEngine(repo.Events(), store, nil, nil, zerolog.Nop(),
		events.WithClock(func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }),
		events.WithLocation(time.UTC))
	return engine, repo
}

func TestConcurrentApproveAndRejectOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	engine, repo := newPostgresEngine(t, pool)
	creator := insertUser(t, ctx, pool, auth.RoleAdmin, "Ana")
	reviewerA := insertUser(t, ctx, pool, auth.RoleSuperAdmin, "Rina")
	reviewerB := insertUser(t, ctx, pool, auth.RoleSuperAdmin, "Sari")

	for round := 0; round < 5; round++ {
		ev := seedEvent(t, ctx, repo.Events(), creator, "2026-04-03", events.StatusPending)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			errs  = make([]error, 2)
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[0] = engine.Approve(ctx, reviewerA, ev.ID)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[1] = engine.Reject(ctx, reviewerB, ev.ID, "Poster is blurry")
		}()
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, events.ErrEventNotReviewable)
		}
		assert.Equal(t, 1, succeeded, "round %d: exactly one review must win", round)
		assert.Equal(t, 1, countRows(t, ctx, pool,
			`SELECT count(*) FROM notifications WHERE event_id = $1`, ev.ID))
	}
}

func TestDeleteEventKeepsDeletedNotifications(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	engine, repo := newPostgresEngine(t, pool)
	creator := insertUser(t, ctx, pool, auth.RoleAdmin, "Ana")
	reviewer := insertUser(t, ctx, pool, auth.RoleSuperAdmin, "Rina")

	ev := seedEvent(t, ctx, repo.Events(), creator, "2026-04-03", events.StatusPending)
	_, err := engine.Feedback(ctx, reviewer, ev.ID, "Add the speaker title")
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, ctx, pool, `SELECT count(*) FROM notifications WHERE event_id = $1`, ev.ID))

	require.NoError(t, engine.Delete(ctx, creator, ev.ID))

	assert.Equal(t, 0, countRows(t, ctx, pool, `SELECT count(*) FROM events WHERE id = $1`, ev.ID))
	assert.Equal(t, 0, countRows(t, ctx, pool, `SELECT count(*) FROM notifications WHERE event_id = $1`, ev.ID))
	assert.Equal(t, 1, countRows(t, ctx, pool,
		`SELECT count(*) FROM notifications WHERE event_id IS NULL AND type = 'event_deleted' AND recipient_id = $1`, reviewer))

	list, total, err := repo.Notifications().ListForRecipient(ctx, reviewer, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, notifications.TypeEventDeleted, list[0].Type)
	assert.Equal(t, ev.Name, list[0].Payload.EventName)
	assert.Empty(t, list[0].EventID)
}

func TestNotificationRepositoryMarkAsRead(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	engine, repo := newPostgresEngine(t, pool)
	creator := insertUser(t, ctx, pool, auth.RoleAdmin, "Ana")
	reviewer := insertUser(t, ctx, pool, auth.RoleSuperAdmin, "Rina")
	ev := seedEvent(t, ctx, repo.Events(), creator, "2026-04-03", events.StatusPending)

	n, err := engine.Approve(ctx, reviewer, ev.ID)
	require.NoError(t, err)

	affected, err := repo.Notifications().MarkAsRead(ctx, n.ID, reviewer)
	require.NoError(t, err)
	assert.Zero(t, affected, "only the recipient may mark a notification")

	affected, err = repo.Notifications().MarkAsRead(ctx, n.ID, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.Notifications().MarkAsRead(ctx, "not-a-uuid", creator)
	require.NoError(t, err)
	assert.Zero(t, affected)

	list, _, err := repo.Notifications().ListForRecipient(ctx, creator, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)
	assert.Equal(t, reviewer, list[0].SenderID)
}
