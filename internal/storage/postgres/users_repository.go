package postgres

import (
	"context"
	"fmt"

	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/users"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	conn
}

const userColumns = `id, student_id, role, first_name, last_name, email, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		u         users.User
		studentID *string
		role      string
	)
	if err := row.Scan(&u.ID, &studentID, &role, &u.FirstName, &u.LastName, &u.Email,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.StudentID = derefString(studentID)
	u.Role = auth.NormalizeRole(role)
	return &u, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, params users.CreateParams) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO users (id, student_id, role, first_name, last_name, email, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+userColumns,
		params.ID, nullString(params.StudentID), string(params.Role), params.FirstName,
		params.LastName, params.Email, params.PasswordHash,
	)
	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	return getUserByEmail(ctx, r.queryer(), email)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	return getUserByID(ctx, r.queryer(), id)
}

func getUserByEmail(ctx context.Context, q queryer, email string) (*users.User, error) {
	user, err := scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if isNoRows(err) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func getUserByID(ctx context.Context, q queryer, id string) (*users.User, error) {
	user, err := scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}
