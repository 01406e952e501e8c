package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	listFn func(ctx context.Context, recipientID string, limit, offset int) ([]Notification, int, error)
	markFn func(ctx context.Context, id, recipientID string) (int64, error)
}

func (s *stubRepo) ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]Notification, int, error) {
	return s.listFn(ctx, recipientID, limit, offset)
}

func (s *stubRepo) MarkAsRead(ctx context.Context, id, recipientID string) (int64, error) {
	return s.markFn(ctx, id, recipientID)
}

func TestListComputesOffsetAndPagination(t *testing.T) {
	var gotLimit, gotOffset int
	repo := &stubRepo{listFn: func(_ context.Context, recipientID string, limit, offset int) ([]Notification, int, error) {
		assert.Equal(t, "user-1", recipientID)
		gotLimit, gotOffset = limit, offset
		return []Notification{{ID: "n1"}}, 21, nil
	}}
	svc := NewService(repo, zerolog.Nop())

	page, err := svc.List(context.Background(), "user-1", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 20, gotOffset)
	assert.Equal(t, Pagination{TotalItems: 21, TotalPages: 3, CurrentPage: 3, PageSize: 10}, page.Pagination)
}

func TestListEmptyPageIsNotNil(t *testing.T) {
	repo := &stubRepo{listFn: func(context.Context, string, int, int) ([]Notification, int, error) {
		return nil, 0, nil
	}}
	page, err := NewService(repo, zerolog.Nop()).List(context.Background(), "u", 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, page.Pagination.TotalPages)
}

func TestListValidatesBounds(t *testing.T) {
	svc := NewService(&stubRepo{}, zerolog.Nop())
	for _, tc := range []struct{ page, limit int }{{0, 10}, {1, 0}, {1, 101}} {
		_, err := svc.List(context.Background(), "u", tc.page, tc.limit)
		appErr, ok := apperr.As(err)
		require.True(t, ok, "page=%d limit=%d", tc.page, tc.limit)
		assert.Equal(t, apperr.CodeValidation, appErr.Code)
	}
}

func TestMarkAsRead(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		repoErr  error
		wantErr  error
	}{
		{name: "owned row", affected: 1},
		{name: "foreign or missing row", affected: 0, wantErr: ErrNotificationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{markFn: func(_ context.Context, id, recipientID string) (int64, error) {
				return tt.affected, tt.repoErr
			}}
			err := NewService(repo, zerolog.Nop()).MarkAsRead(context.Background(), "n1", "u1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	repo := &stubRepo{markFn: func(context.Context, string, string) (int64, error) {
		return 0, errors.New("connection reset")
	}}
	err := NewService(repo, zerolog.Nop()).MarkAsRead(context.Background(), "n1", "u1")
	require.Error(t, err)
	_, isApp := apperr.As(err)
	assert.False(t, isApp)
}

func TestTitleQuotesEventNameVerbatim(t *testing.T) {
	assert.Equal(t, `Event "The "Big" Talk" has been updated`, Title(TypeEventUpdated, `The "Big" Talk`))
	assert.Equal(t, `Event "O'Neil & Co" has been deleted.`, Title(TypeEventDeleted, "O'Neil & Co"))
}

func TestMessageShape(t *testing.T) {
	msg := NewMessage(EventNewNotification, SuperAdminRoom, TypeEventDeleted, "Seminar", "Ana removed this event", map[string]string{"id": "e1"})
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"event": "new_notification",
		"room": "super_admin-room",
		"data": {
			"type": "event_deleted",
			"title": "Event \"Seminar\" has been deleted.",
			"message": "Ana removed this event",
			"isRead": false,
			"data": {"id": "e1"}
		}
	}`, string(raw))
}
