package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/audit"
	"github.com/eventviewer/server/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service handles registration and credential verification.
type Service struct {
	repo        Repository
	hasher      auth.Hasher
	auditLogger *audit.Logger
	logger      zerolog.Logger

	// dummyHash is compared against when the email is unknown so both
	// failure paths spend the same time in bcrypt.
	dummyHash string
}

func NewService(repo Repository, hasher auth.Hasher, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	dummy, _ := hasher.HashPassword(uuid.NewString())
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
		logger:      logger.With().Str("component", "users").Logger(),
		dummyHash:   dummy,
	}
}

type RegisterParams struct {
	StudentID string
	Role      string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	role := auth.NormalizeRole(params.Role)
	if role == "" {
		return nil, apperr.Validation("role", "role must be one of student, admin, super_admin")
	}
	email := NormalizeEmail(params.Email)
	if !AllowedEmailDomain(email) {
		return nil, apperr.Validation("email", "email domain must be binus.ac.id or gmail.com")
	}
	studentID := strings.TrimSpace(params.StudentID)
	if role == auth.RoleStudent && len(studentID) != StudentIDLength {
		return nil, apperr.Validation("studentId", fmt.Sprintf("studentId must be %d characters for students", StudentIDLength))
	}
	if role != auth.RoleStudent {
		studentID = ""
	}

	hash, err := s.hasher.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, CreateParams{
		ID:           id.String(),
		StudentID:    studentID,
		Role:         role,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.auditLogger.LogSuccess("user.register", user.ID, "user", user.ID, map[string]string{"role": string(role)})
	return user, nil
}

// VerifyCredentials returns the user when email and password match. Every
// mismatch yields ErrInvalidCredentials so callers cannot enumerate accounts.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.ComparePassword(s.dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if !s.hasher.ComparePassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByEmail returns ErrUserNotFound for unknown addresses.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// EnsureSuperAdmin creates a super_admin account when no user owns email yet.
func (s *Service) EnsureSuperAdmin(ctx context.Context, email, password, firstName string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return false, errors.New("bootstrap email and password are required")
	}
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("check bootstrap user: %w", err)
	}

	if firstName == "" {
		firstName = "Super"
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return false, fmt.Errorf("generate user id: %w", err)
	}
	if _, err := s.repo.CreateUser(ctx, CreateParams{
		ID:           id.String(),
		Role:         auth.RoleSuperAdmin,
		FirstName:    firstName,
		LastName:     "Admin",
		Email:        email,
		PasswordHash: hash,
	}); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, fmt.Errorf("create bootstrap user: %w", err)
	}
	s.logger.Info().Str("user_id", id.String()).Msg("bootstrapped super_admin user")
	return true, nil
}
