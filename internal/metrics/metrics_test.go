package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	Init("v1.0.0", "abc123", "2026-01-30")

	if testutil.CollectAndCount(AppInfo) == 0 {
		t.Error("AppInfo metric should be registered")
	}
}

func TestOutcome(t *testing.T) {
	if Outcome(nil) != "success" {
		t.Error("nil error should map to success")
	}
	if Outcome(context.Canceled) != "error" {
		t.Error("non-nil error should map to error")
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(EventTransitions.WithLabelValues("approve", "success"))
	EventTransitions.WithLabelValues("approve", "success").Inc()
	after := testutil.ToFloat64(EventTransitions.WithLabelValues("approve", "success"))
	if after != before+1 {
		t.Errorf("expected counter to grow by one, got %v -> %v", before, after)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	// Create a test handler
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Wrap with metrics middleware
	wrapped := HTTPMiddleware(handler)

	// Create test request
	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	// Execute request
	wrapped.ServeHTTP(rec, req)

	// Verify response
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	// Verify metrics were recorded
	if testutil.CollectAndCount(HTTPRequestsTotal) == 0 {
		t.Error("HTTPRequestsTotal should have recorded at least one request")
	}

	if testutil.CollectAndCount(HTTPRequestDuration) == 0 {
		t.Error("HTTPRequestDuration should have recorded at least one request")
	}
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Not Found", http.StatusNotFound},
		{"Internal Server Error", http.StatusInternalServerError},
		{"Unauthorized", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			wrapped := HTTPMiddleware(handler)
			req := httptest.NewRequest("GET", "/test", nil)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != tt.statusCode {
				t.Errorf("Expected status %d, got %d", tt.statusCode, rec.Code)
			}
		})
	}
}

type fakePool struct{ calls int }

func (f *fakePool) Stat() *pgxpool.Stat {
	f.calls++
	return nil
}

func TestDBCollector(t *testing.T) {
	NewDBCollector(nil).collect()

	pool := &fakePool{}
	collector := NewDBCollector(pool)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		collector.Start(ctx, time.Hour)
		close(done)
	}()

	collector.Stop()
	collector.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	cancel()

	if pool.calls != 1 {
		t.Errorf("expected one immediate collection, got %d", pool.calls)
	}
}

func TestRecordQuery(t *testing.T) {
	RecordQuery("test_select", time.Now(), nil)
	if testutil.CollectAndCount(DBQueryDuration) == 0 {
		t.Error("DBQueryDuration should have recorded at least one query")
	}

	before := testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled"))
	RecordQuery("test_failed", time.Now(), context.Canceled)
	if got := testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled")); got != before+1 {
		t.Errorf("expected canceled error counted, got %v", got)
	}
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("wrapped: %w", context.Canceled), "canceled"},
		{pgx.ErrNoRows, "no_rows"},
		{&pgconn.PgError{Code: "23505"}, "unique_violation"},
		{&pgconn.PgError{Code: "40P01"}, "deadlock"},
		{&pgconn.PgError{Code: "42P01"}, "sqlstate_42P01"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := ErrorClass(tt.err); got != tt.want {
			t.Errorf("ErrorClass(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestResponseWriterStatusCode(t *testing.T) {
	// Test that default status code is 200 when WriteHeader is not called
	rec := httptest.NewRecorder()
	rw := &responseWriter{
		ResponseWriter: rec,
		statusCode:     0,
		bytesWritten:   0,
	}

	_, _ = rw.Write([]byte("test"))

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", rw.statusCode)
	}
}

func TestResponseWriterBytesWritten(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{
		ResponseWriter: rec,
		statusCode:     0,
		bytesWritten:   0,
	}

	content := []byte("Hello, World!")
	_, _ = rw.Write(content)

	if rw.bytesWritten != len(content) {
		t.Errorf("Expected %d bytes written, got %d", len(content), rw.bytesWritten)
	}
}
