// Package problem writes RFC 7807 application/problem+json responses and is
// the single place where errors become HTTP statuses.
package problem

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

const typeBase = "https://eventviewer.local/problems/"

type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
	Field    string `json:"field,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

func WithInstance(instance string) Option {
	return func(p *ProblemDetails) {
		p.Instance = instance
	}
}

func WithField(field string) Option {
	return func(p *ProblemDetails) {
		p.Field = field
	}
}

// TypeFor returns the problem type URI for an error code.
func TypeFor(code string) string {
	return typeBase + strings.ReplaceAll(strings.ToLower(code), "_", "-")
}

// Error maps err onto a problem response. Operational *apperr.Error values
// keep their status, code and message. Everything else is a 500 whose detail
// is only revealed in development and test.
func Error(w http.ResponseWriter, r *http.Request, err error, env string) {
	if appErr, ok := apperr.As(err); ok && appErr.Operational() {
		Write(w, r, appErr.Status, TypeFor(appErr.Code), http.StatusText(appErr.Status), err, env,
			func(p *ProblemDetails) { p.Code = appErr.Code },
			WithDetail(appErr.Message),
			WithField(appErr.Field),
		)
		return
	}

	internal := apperr.Internal(err)
	detail := internal.Message
	if isDebugEnv(env) && err != nil {
		detail = err.Error()
	}
	Write(w, r, internal.Status, TypeFor(internal.Code), http.StatusText(internal.Status), err, env,
		func(p *ProblemDetails) { p.Code = internal.Code },
		WithDetail(detail),
	)
}

func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}

	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil {
		if isDebugEnv(env) {
			problem.Detail = err.Error()
		} else {
			problem.Detail = http.StatusText(status)
		}
	}

	if problem.Instance == "" && r != nil {
		problem.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		var event *zerolog.Event
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		if event != nil {
			event.Err(err).
				Int("status", status).
				Str("code", problem.Code).
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Msg(title)
		}
	}

	WriteProblem(w, problem)
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":\"about:blank\",\"title\":\"%s\",\"status\":500}", http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}

func isDebugEnv(env string) bool {
	return env == "development" || env == "test"
}
