package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestSize(t *testing.T) {
	var readErr error
	handler := RequestSize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.NoError(t, readErr)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 17))))
	var maxErr *http.MaxBytesError
	assert.True(t, errors.As(readErr, &maxErr))
}

func TestUploadLimitExceedsImageLimit(t *testing.T) {
	assert.Greater(t, UploadMaxBodySize, int64(10<<20))
	assert.Less(t, DefaultMaxBodySize, UploadMaxBodySize)
}
