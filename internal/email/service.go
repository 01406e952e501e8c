package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/eventviewer/server/internal/config"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	ProviderNone   = "none"
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"

	otpSubject = "Your password reset code"
)

type message struct {
	to      string
	subject string
	html    string
}

type transport interface {
	deliver(ctx context.Context, msg message) error
}

// Service renders and delivers OTP emails. With provider "none" delivery is
// skipped and only logged.
type Service struct {
	transport transport
	templates *template.Template
	logger    zerolog.Logger
	otpTTL    time.Duration
}

type otpData struct {
	Subject      string
	FirstName    string
	Code         string
	ValidMinutes int
	CurrentYear  int
}

func NewService(cfg config.EmailConfig, otpTTL time.Duration, logger zerolog.Logger) (*Service, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderNone
	}
	logger = logger.With().Str("component", "email").Str("provider", provider).Logger()

	svc := &Service{logger: logger, otpTTL: otpTTL}
	switch provider {
	case ProviderNone:
	case ProviderResend:
		if cfg.ResendAPIKey == "" {
			return nil, errors.New("RESEND_API_KEY is required for the resend provider")
		}
		svc.transport = newResendTransport(cfg.ResendAPIKey, cfg.From, logger)
	case ProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, errors.New("SMTP_HOST is required for the smtp provider")
		}
		svc.transport = &smtpTransport{cfg: cfg}
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
	if svc.transport != nil {
		if err := validateAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("sender address: %w", err)
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	svc.templates = templates
	return svc, nil
}

// SendOTP mails a password reset code. The code is never logged.
func (s *Service) SendOTP(ctx context.Context, to, firstName, code string) error {
	if err := validateAddress(to); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	if s.transport == nil {
		s.logger.Info().Str("to", to).Msg("email disabled, OTP not sent")
		return nil
	}

	var body bytes.Buffer
	err := s.templates.ExecuteTemplate(&body, "otp.html", otpData{
		Subject:      otpSubject,
		FirstName:    firstName,
		Code:         code,
		ValidMinutes: int(s.otpTTL / time.Minute),
		CurrentYear:  time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}

	if err := s.transport.deliver(ctx, message{to: to, subject: otpSubject, html: body.String()}); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	s.logger.Info().Str("to", to).Msg("otp email sent")
	return nil
}

// validateAddress accepts RFC 5322 addresses and rejects anything that could
// smuggle extra headers.
func validateAddress(addr string) error {
	if strings.ContainsAny(addr, "\r\n") {
		return errors.New("address contains a line break")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return err
	}
	if strings.ContainsAny(parsed.Address, "\r\n") {
		return errors.New("address contains a line break")
	}
	return nil
}
