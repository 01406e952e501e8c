package users

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/auth"
)

// Repository-level errors. Postgres maps no-rows and unique violations onto these.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Operational errors returned to callers.
var (
	ErrInvalidCredentials = apperr.New(http.StatusUnauthorized, apperr.CodeClientAuth, "Invalid email or password.")
	ErrEmailExists        = apperr.New(http.StatusConflict, apperr.CodeEmailExists, "Email is already registered.")
	ErrUserNotFound       = apperr.New(http.StatusNotFound, apperr.CodeUserNotFound, "Email is not registered.")
)

// AllowedEmailDomains lists the domains accepted at registration and password reset.
var AllowedEmailDomains = []string{"binus.ac.id", "gmail.com"}

const StudentIDLength = 10

type User struct {
	ID           string
	StudentID    string
	Role         auth.Role
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public is the client-facing view of a user. It never carries the hash.
type Public struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId,omitempty"`
	Role      auth.Role `json:"role"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Public() Public {
	return Public{
		ID:        u.ID,
		StudentID: u.StudentID,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}

type CreateParams struct {
	ID           string
	StudentID    string
	Role         auth.Role
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
}

type Repository interface {
	CreateUser(ctx context.Context, params CreateParams) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
}

// NormalizeEmail lowercases and trims an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AllowedEmailDomain reports whether email belongs to one of AllowedEmailDomains.
func AllowedEmailDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, allowed := range AllowedEmailDomains {
		if domain == allowed {
			return true
		}
	}
	return false
}
