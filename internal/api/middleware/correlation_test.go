package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var gotID string
	handler := CorrelationID(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		LoggerFromContext(r.Context()).Info().Msg("inside")
	}))

	t.Run("reuses valid incoming id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", gotID)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
		assert.Contains(t, buf.String(), `"request_id":"abc-123"`)
	})

	t.Run("replaces unsafe incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "bad id\x01")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.NotEqual(t, "bad id\x01", gotID)
		assert.Len(t, gotID, 36)
	})

	t.Run("replaces oversized incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("a", maxRequestIDLength+1))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, gotID, 36)
	})
}

func TestRequestLoggingUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := CorrelationID(zerolog.New(&buf))(RequestLogging(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("X-Request-ID", "req-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-7"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/api/v1/events"`)
}
