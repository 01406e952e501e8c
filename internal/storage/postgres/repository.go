package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository groups the per-domain repositories over one pool.
type Repository struct {
	pool *pgxpool.Pool

	users         *UserRepository
	sessions      *SessionRepository
	events        *EventRepository
	notifications *NotificationRepository
	cleanup       *CleanupRepository
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	c := conn{pool: pool}
	return &Repository{
		pool:          pool,
		users:         &UserRepository{conn: c},
		sessions:      &SessionRepository{conn: c},
		events:        &EventRepository{conn: c},
		notifications: &NotificationRepository{conn: c},
		cleanup:       &CleanupRepository{conn: c},
	}, nil
}

func (r *Repository) Pool() *pgxpool.Pool { return r.pool }

func (r *Repository) Users() *UserRepository { return r.users }

func (r *Repository) Sessions() *SessionRepository { return r.sessions }

func (r *Repository) Events() *EventRepository { return r.events }

func (r *Repository) Notifications() *NotificationRepository { return r.notifications }

func (r *Repository) Cleanup() *CleanupRepository { return r.cleanup }
