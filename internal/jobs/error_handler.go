package jobs

import (
	"context"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

// errorHandler logs job failures. Retries that still have attempts left are
// warnings; the last attempt and panics are errors.
type errorHandler struct {
	logger zerolog.Logger
}

func newErrorHandler(logger zerolog.Logger) *errorHandler {
	return &errorHandler{logger: logger.With().Str("component", "jobs").Logger()}
}

func (h *errorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	event := h.logger.Warn()
	if job.Attempt >= job.MaxAttempts {
		event = h.logger.Error()
	}
	event.Err(err).
		Int64("job_id", job.ID).
		Str("kind", job.Kind).
		Int("attempt", job.Attempt).
		Int("max_attempts", job.MaxAttempts).
		Msg("job failed")
	return nil
}

func (h *errorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.logger.Error().
		Interface("panic", panicVal).
		Int64("job_id", job.ID).
		Str("kind", job.Kind).
		Int("attempt", job.Attempt).
		Str("trace", trace).
		Msg("job panicked")
	return nil
}
