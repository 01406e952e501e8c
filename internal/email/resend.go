package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// resendTransport delivers through the Resend HTTP API. Rate limit replies
// are surfaced as errors; the caller decides whether the user retries.
type resendTransport struct {
	client *resend.Client
	from   string
	logger zerolog.Logger
}

func newResendTransport(apiKey, from string, logger zerolog.Logger) *resendTransport {
	return &resendTransport{client: resend.NewClient(apiKey), from: from, logger: logger}
}

func (t *resendTransport) deliver(ctx context.Context, msg message) error {
	sent, err := t.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    t.from,
		To:      []string{msg.to},
		Subject: msg.subject,
		Html:    msg.html,
	})
	if err != nil {
		var limited *resend.RateLimitError
		if errors.As(err, &limited) {
			t.logger.Warn().
				Str("remaining", limited.Remaining).
				Str("reset", limited.Reset).
				Msg("resend rate limited")
			return fmt.Errorf("resend rate limited, resets in %ss: %w", limited.Reset, err)
		}
		return fmt.Errorf("resend: %w", err)
	}
	t.logger.Debug().Str("email_id", sent.Id).Msg("accepted by resend")
	return nil
}
