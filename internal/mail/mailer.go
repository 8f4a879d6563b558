// Package mail delivers verification codes over SMTP.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Email    string
	Password string
	AppName  string
}

// SMTPMailer sends OTP emails through an SMTP relay with STARTTLS.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a mailer for the given SMTP settings.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendOTP emails a verification code to the recipient.
func (m *SMTPMailer) SendOTP(_ context.Context, to, code string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Email, m.cfg.Password, m.cfg.Host)

	body := fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: Your %s Verification Code\r\n"+
			"\r\n"+
			"Hello!\r\n\r\n"+
			"Your verification code is: %s\r\n\r\n"+
			"This code will expire in 5 minutes.\r\n\r\n"+
			"If you didn't request this code, please ignore this email.\r\n",
		m.cfg.AppName, m.cfg.Email, to, m.cfg.AppName, code,
	)

	if err := smtp.SendMail(addr, auth, m.cfg.Email, []string{to}, []byte(body)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer logs codes instead of sending them. Used when SMTP is not
// configured, e.g. local development.
type LogMailer struct {
	log *zerolog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	return &LogMailer{log: logger}
}

// SendOTP logs the code at debug level.
func (m *LogMailer) SendOTP(_ context.Context, to, code string) error {
	m.log.Debug().Str("to", to).Str("code", code).Msg("otp email suppressed (smtp not configured)")
	return nil
}
