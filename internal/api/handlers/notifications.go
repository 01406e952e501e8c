package handlers

import (
	"context"
	"net/http"

	"github.com/eventviewer/server/internal/api/middleware"
	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/domain/notifications"
)

type NotificationService interface {
	List(ctx context.Context, recipientID string, page, limit int) (*notifications.Page, error)
	MarkAsRead(ctx context.Context, id, userID string) error
}

type NotificationsHandler struct {
	base
	notifications NotificationService
}

func NewNotificationsHandler(service NotificationService, env string) *NotificationsHandler {
	return &NotificationsHandler{base: base{env: env}, notifications: service}
}

type notificationPage struct {
	Status     string                       `json:"status"`
	Data       []notifications.Notification `json:"data"`
	Pagination notifications.Pagination     `json:"pagination"`
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Identity(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthorized("Please log in first."))
		return
	}
	page, limit, err := pageParams(r, notifications.DefaultPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.notifications.List(r.Context(), caller.UserID, page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationPage{Status: "success", Data: result.Items, Pagination: result.Pagination})
}

func (h *NotificationsHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Identity(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthorized("Please log in first."))
		return
	}
	id, err := uuidParam(r, "notificationId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.notifications.MarkAsRead(r.Context(), id, caller.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("Notification marked as read.", nil))
}
