package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/eventviewer/server/internal/api/problem"
	"github.com/eventviewer/server/internal/apperr"
	"github.com/google/uuid"
)

const contentTypeJSON = "application/json"

var (
	errBodyTooLarge = apperr.New(http.StatusRequestEntityTooLarge, apperr.CodeValidation, "Request body is too large.")
	errMalformed    = apperr.Validation("", "Request body must be valid JSON.")
)

// envelope is the standard success body. Handlers with a fixed response shape
// write their own struct instead.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(message string, data any) envelope {
	return envelope{Status: "success", Message: message, Data: data}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.PathValue(key))
}

// uuidParam reads a path id and rejects anything that is not a UUID.
func uuidParam(r *http.Request, key string) (string, error) {
	value := pathParam(r, key)
	if value == "" {
		return "", apperr.Validation(key, key+" is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return "", apperr.Validation(key, key+" must be a valid UUID")
	}
	return id.String(), nil
}

// decodeJSON reads one JSON object into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return apperr.Validation("", "Request body is required.")
		default:
			return errMalformed.Wrap(err)
		}
	}
	return nil
}

// pageParams reads ?page and ?limit. Malformed numbers are validation errors;
// range checks happen in the domain services.
func pageParams(r *http.Request, defaultLimit int) (page, limit int, err error) {
	page, limit = 1, defaultLimit
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			return 0, 0, apperr.Validation("page", "page must be an integer")
		}
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, apperr.Validation("limit", "limit must be an integer")
		}
	}
	return page, limit, nil
}

// base carries what every handler needs to report errors.
type base struct {
	env string
}

func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	problem.Error(w, r, err, b.env)
}

// ErrorWriter adapts the problem mapping for components outside this package.
func ErrorWriter(env string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		problem.Error(w, r, err, env)
	}
}
