package middleware

import (
	"net/http"
)

const (
	// DefaultMaxBodySize covers every JSON endpoint.
	DefaultMaxBodySize int64 = 1 << 20 // 1MB

	// UploadMaxBodySize leaves room for a 10MB poster plus the form fields.
	UploadMaxBodySize int64 = 11 << 20 // 11MB
)

// RequestSize wraps the body in http.MaxBytesReader. Reads past maxBytes fail
// and the handler reports 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func JSONRequestSize() func(http.Handler) http.Handler {
	return RequestSize(DefaultMaxBodySize)
}

func UploadRequestSize() func(http.Handler) http.Handler {
	return RequestSize(UploadMaxBodySize)
}
