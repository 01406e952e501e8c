package notifications

import (
	"context"
	"fmt"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/rs/zerolog"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var ErrNotificationNotFound = apperr.NotFound("Notification not found.")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "notifications").Logger()}
}

type Pagination struct {
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
}

type Page struct {
	Items      []Notification
	Pagination Pagination
}

// NewPagination computes page counts for total rows.
func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{TotalItems: total, TotalPages: pages, CurrentPage: page, PageSize: limit}
}

// List returns the caller's notifications newest first.
func (s *Service) List(ctx context.Context, recipientID string, page, limit int) (*Page, error) {
	if page < 1 {
		return nil, apperr.Validation("page", "page must be at least 1")
	}
	if limit < 1 || limit > MaxPageSize {
		return nil, apperr.Validation("limit", fmt.Sprintf("limit must be between 1 and %d", MaxPageSize))
	}

	items, total, err := s.repo.ListForRecipient(ctx, recipientID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []Notification{}
	}
	return &Page{Items: items, Pagination: NewPagination(total, page, limit)}, nil
}

// MarkAsRead only touches rows addressed to userID. Someone else's id looks
// exactly like a missing one.
func (s *Service) MarkAsRead(ctx context.Context, id, userID string) error {
	affected, err := s.repo.MarkAsRead(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
