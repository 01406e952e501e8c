package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/eventviewer/server/internal/api/middleware"
	"github.com/eventviewer/server/internal/apperr"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/events"
	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/eventviewer/server/internal/storage/assets"
)

// EventService is the slice of the workflow engine the HTTP layer drives.
type EventService interface {
	Create(ctx context.Context, creatorID string, in events.CreateInput) (*events.Event, error)
	Edit(ctx context.Context, creatorID, eventID string, in events.EditInput) (*events.Event, error)
	Delete(ctx context.Context, creatorID, eventID string) error
	Approve(ctx context.Context, reviewerID, eventID string) (*notifications.Notification, error)
	Reject(ctx context.Context, reviewerID, eventID, feedback string) (*notifications.Notification, error)
	Feedback(ctx context.Context, reviewerID, eventID, feedback string) (*notifications.Notification, error)
	Categorized(ctx context.Context) (*events.Categorized, error)
	ViewFor(ctx context.Context, viewer auth.Identity, page, limit int) (*events.View, error)
}

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 12 << 20

const imageField = "image"

var errImageTooLarge = apperr.Validation(imageField, "image must be at most 10 MB")

type EventsHandler struct {
	base
	events EventService
}

func NewEventsHandler(service EventService, env string) *EventsHandler {
	return &EventsHandler{base: base{env: env}, events: service}
}

type eventPage struct {
	Status     string                   `json:"status"`
	Data       []events.Event           `json:"data"`
	Pagination notifications.Pagination `json:"pagination"`
}

// List serves GET /events with a role-dependent shape.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.Identity(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthorized("Please log in first."))
		return
	}
	page, limit, err := pageParams(r, events.DefaultPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.events.ViewFor(r.Context(), viewer, page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if view.Categorized != nil {
		writeJSON(w, http.StatusOK, success("", view.Categorized))
		return
	}
	writeJSON(w, http.StatusOK, eventPage{Status: "success", Data: view.Page.Items, Pagination: view.Page.Pagination})
}

// Categorized serves GET /users/events for any role.
func (h *EventsHandler) Categorized(w http.ResponseWriter, r *http.Request) {
	view, err := h.events.Categorized(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("", view))
}

type createEventForm struct {
	Name      string `json:"eventName" validate:"required"`
	Date      string `json:"date" validate:"required,ymd"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
	Location  string `json:"location" validate:"required"`
	Speaker   string `json:"speaker" validate:"required"`
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	creator, ok := middleware.Identity(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthorized("Please log in first."))
		return
	}
	if err := parseMultipart(r); err != nil {
		h.fail(w, r, err)
		return
	}

	form := createEventForm{
		Name:      formValue(r, "eventName"),
		Date:      formValue(r, "date"),
		StartTime: formValue(r, "startTime"),
		EndTime:   formValue(r, "endTime"),
		Location:  formValue(r, "location"),
		Speaker:   formValue(r, "speaker"),
	}
	if err := validateStruct(form); err != nil {
		h.fail(w, r, err)
		return
	}
	image, err := readImage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(image) == 0 {
		h.fail(w, r, events.ErrImageRequired)
		return
	}

	ev, err := h.events.Create(r.Context(), creator.UserID, events.CreateInput{
		Name:      form.Name,
		Date:      form.Date,
		StartTime: form.StartTime,
		EndTime:   form.EndTime,
		Location:  form.Location,
		Speaker:   form.Speaker,
		Image:     image,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, success("Event created and waiting for approval.", ev))
}

type editEventForm struct {
	Date      *string `json:"date" validate:"omitnil,ymd"`
	StartTime *string `json:"startTime" validate:"omitnil,hhmm"`
	EndTime   *string `json:"endTime" validate:"omitnil,hhmm"`
}

func (h *EventsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	creator, ok := middleware.Identity(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthorized("Please log in first."))
		return
	}
	eventID, err := uuidParam(r, "eventId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := parseMultipart(r); err != nil {
		h.fail(w, r, err)
		return
	}

	in := events.EditInput{
		Name:      optionalFormValue(r, "eventName"),
		Date:      optionalFormValue(r, "date"),
		StartTime: optionalFormValue(r, "startTime"),
		EndTime:   optionalFormValue(r, "endTime"),
		Location:  optionalFormValue(r, "location"),
		Speaker:   optionalFormValue(r, "speaker"),
	}
	if err := validateStruct(editEventForm{Date: in.Date, StartTime: in.StartTime, EndTime: in.EndTime}); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.Image, err = readImage(r); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.Empty() {
		h.fail(w, r, apperr.Validation("", "Provide at least one field to update."))
		return
	}

	ev, err := h.events.Edit(r.Context(), creator.UserID, eventID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("Event updated and waiting for approval.", ev))
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	creator, ok := middleware.Identity(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthorized("Please log in first."))
		return
	}
	eventID, err := uuidParam(r, "eventId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.events.Delete(r.Context(), creator.UserID, eventID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("Event deleted.", nil))
}

type feedbackRequest struct {
	Feedback string `json:"feedback" validate:"required"`
}

func (h *EventsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, false, func(ctx context.Context, reviewerID, eventID, _ string) (*notifications.Notification, error) {
		return h.events.Approve(ctx, reviewerID, eventID)
	}, "Event approved.")
}

func (h *EventsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, true, h.events.Reject, "Event rejected.")
}

func (h *EventsHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, true, h.events.Feedback, "Feedback sent to the event creator.")
}

type reviewFunc func(ctx context.Context, reviewerID, eventID, feedback string) (*notifications.Notification, error)

func (h *EventsHandler) review(w http.ResponseWriter, r *http.Request, withFeedback bool, fn reviewFunc, message string) {
	reviewer, ok := middleware.Identity(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthorized("Please log in first."))
		return
	}
	eventID, err := uuidParam(r, "eventId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req feedbackRequest
	if withFeedback {
		if err := decodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		if err := validateStruct(req); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	n, err := fn(r.Context(), reviewer.UserID, eventID, req.Feedback)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(message, n))
}

func parseMultipart(r *http.Request) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return apperr.Validation("", "Request must be multipart/form-data.")
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return apperr.Validation("", "Malformed multipart form.").Wrap(err)
	}
	return nil
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// optionalFormValue distinguishes an omitted field from an empty one.
func optionalFormValue(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

// readImage returns nil when no file was sent.
func readImage(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperr.Validation(imageField, "image could not be read").Wrap(err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	data, err := io.ReadAll(io.LimitReader(file, assets.MaxImageSize+1))
	if err != nil {
		return nil, apperr.Validation(imageField, "image could not be read").Wrap(err)
	}
	if len(data) > assets.MaxImageSize {
		return nil, errImageTooLarge
	}
	return data, nil
}
