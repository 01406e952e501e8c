package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/eventviewer/server/internal/config"
)

// smtpTransport relays through an SMTP server with STARTTLS.
type smtpTransport struct {
	cfg config.EmailConfig
}

func (t *smtpTransport) deliver(ctx context.Context, msg message) error {
	sender, err := mail.ParseAddress(t.cfg.From)
	if err != nil {
		return fmt.Errorf("sender: %w", err)
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	nc, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(t.cfg.SMTPHost, strconv.Itoa(t.cfg.SMTPPort)))
	if err != nil {
		return fmt.Errorf("connect smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(nc, t.cfg.SMTPHost)
	if err != nil {
		_ = nc.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.StartTLS(&tls.Config{ServerName: t.cfg.SMTPHost, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if t.cfg.SMTPUser != "" {
		if err := client.Auth(smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPassword, t.cfg.SMTPHost)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(sender.Address); err != nil {
		return fmt.Errorf("smtp MAIL: %w", err)
	}
	if err := client.Rcpt(msg.to); err != nil {
		return fmt.Errorf("smtp RCPT: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(buildMessage(t.cfg.From, msg.to, msg.subject, msg.html)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp DATA close: %w", err)
	}
	return client.Quit()
}

// buildMessage assembles the MIME message with headers in a fixed order.
func buildMessage(from, to, subject, htmlBody string) []byte {
	var msg bytes.Buffer
	for _, h := range [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	} {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return msg.Bytes()
}
