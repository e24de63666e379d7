package user

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/FACorreiaa/go-crowd-planner/config"
)

// Mailer delivers account emails.
type Mailer interface {
	SendOTP(ctx context.Context, to, name, otp string) error
	SendWelcome(ctx context.Context, to, name string) error
}

// NewMailer returns an SMTP mailer when a host is configured, otherwise a mailer that only logs.
func NewMailer(cfg config.SMTPConfig, logger *slog.Logger) Mailer {
	if cfg.Host == "" {
		logger.Warn("SMTP not configured, OTP codes will only be logged")
		return &LogMailer{logger: logger}
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	return &SMTPMailer{cfg: cfg, timeout: 10 * time.Second, logger: logger}
}

type LogMailer struct {
	logger *slog.Logger
}

func (m *LogMailer) SendOTP(ctx context.Context, to, name, otp string) error {
	m.logger.InfoContext(ctx, "OTP email", slog.String("to", to), slog.String("name", name), slog.String("otp", otp))
	return nil
}

func (m *LogMailer) SendWelcome(ctx context.Context, to, name string) error {
	m.logger.InfoContext(ctx, "Welcome email", slog.String("to", to), slog.String("name", name))
	return nil
}

type SMTPMailer struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	logger  *slog.Logger
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, otp string) error {
	body := fmt.Sprintf("Hello %s,\r\n\r\nYour verification code is %s. It expires in %d minutes.\r\n",
		name, otp, int(otpTTL.Minutes()))
	return m.send(ctx, to, "Verify your email", body)
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hello %s,\r\n\r\nYour account is verified. Plan your visits around the crowds!\r\n", name)
	return m.send(ctx, to, "Welcome to Crowd Planner", body)
}

func buildMessage(from, to, subject, body string) string {
	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.String()
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)

	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if m.cfg.Username != "" && m.cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write([]byte(buildMessage(m.cfg.From, to, subject, body))); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}
	if err := client.Quit(); err != nil {
		m.logger.DebugContext(ctx, "SMTP quit failed after delivery", slog.Any("error", err))
	}
	return nil
}
