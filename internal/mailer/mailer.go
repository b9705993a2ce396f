package mailer

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Mailer sends participation notifications. A zero-valued config disables
// sending, so local setups work without an SMTP account.
type Mailer struct {
	cfg Config
	log *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

func (m *Mailer) Enabled() bool {
	return m.cfg.Host != "" && m.cfg.From != ""
}

func (m *Mailer) SendRegistrationConfirmed(email, studentName, eventTitle string, startAt time.Time) error {
	subject := "Registration confirmed: " + eventTitle
	body := fmt.Sprintf(
		"Hi %s,\n\nYou are registered for %q starting %s.\nSee you there!",
		studentName, eventTitle, startAt.Format(time.RFC1123),
	)
	return m.send(email, subject, body)
}

func (m *Mailer) SendRegistrationCancelled(email, studentName, eventTitle string) error {
	subject := "Registration cancelled: " + eventTitle
	body := fmt.Sprintf(
		"Hi %s,\n\nYour registration for %q has been cancelled.",
		studentName, eventTitle,
	)
	return m.send(email, subject, body)
}

func (m *Mailer) send(recipient, subject, body string) error {
	if !m.Enabled() {
		m.log.Debug().Str("email", recipient).Msg("mailer disabled, skipping notification")
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, recipient, subject, body,
	)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{recipient}, []byte(msg)); err != nil {
		m.log.Warn().Msgf("failed to send email to %s: %v", recipient, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("Email sent to %s (%s)", recipient, subject)
	return nil
}
