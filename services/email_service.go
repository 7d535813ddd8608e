package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sahilchouksey/univast-api/config"
)

// ErrMailerNotConfigured is returned when SMTP credentials are missing
var ErrMailerNotConfigured = errors.New("SMTP not configured")

// Mailer delivers one plain-text message
type Mailer interface {
	IsConfigured() bool
	Send(ctx context.Context, to, subject, body string) error
}

// EmailService handles sending emails via SMTP
type EmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

// NewEmailService creates a new email service instance
func NewEmailService(cfg *config.EnviornmentVariable) *EmailService {
	return &EmailService{
		host:     cfg.SMTP_HOST,
		port:     cfg.SMTP_PORT,
		username: cfg.SMTP_USERNAME,
		password: cfg.SMTP_PASSWORD,
		from:     cfg.SMTP_FROM,
		timeout:  30 * time.Second,
	}
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.host != "" && e.username != "" && e.password != ""
}

// Send delivers a plain-text message. ctx bounds the whole SMTP exchange.
func (e *EmailService) Send(ctx context.Context, to, subject, body string) error {
	if !e.IsConfigured() {
		return ErrMailerNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.sendEmail(to, subject, body)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}

// buildMessage assembles headers and body
func (e *EmailService) buildMessage(to, subject, body string) string {
	headers := [][2]string{
		{"From", fmt.Sprintf("Univast Admissions <%s>", e.from)},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
		{"X-Mailer", "Univast Mailer"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return message.String()
}

func (e *EmailService) sendEmail(to, subject, body string) error {
	message := e.buildMessage(to, subject, body)

	// Connect to the SMTP server
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	// TLS configuration
	tlsConfig := &tls.Config{
		ServerName: e.host,
	}

	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := conn.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := conn.Mail(e.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}

	if _, err := w.Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return conn.Quit()
}
