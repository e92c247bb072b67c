// Package mailer emails rendered briefings to their recipients.
package mailer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wneessen/go-mail"
	"github.com/xaenox/daily-brief/internal/models"
	"go.uber.org/zap"
)

const body = `Here's your personalized daily news briefing.
Reply to this email with any feedback!`

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Dialer sends messages over one SMTP session.
type Dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Mailer struct {
	dialer Dialer
	from   string
	logger *zap.Logger
}

// New creates a mailer that submits over implicit TLS with PLAIN auth.
func New(cfg Config, logger *zap.Logger) (*Mailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithSSL(),
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return NewWithDialer(client, from, logger), nil
}

func NewWithDialer(dialer Dialer, from string, logger *zap.Logger) *Mailer {
	return &Mailer{
		dialer: dialer,
		from:   from,
		logger: logger,
	}
}

// Build assembles the briefing email for date with the PDF at path attached.
// A missing attachment is an error; go-mail would otherwise drop it.
func (m *Mailer) Build(profile models.UserProfile, path string, date time.Time) (*mail.Msg, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(profile.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", profile.Email, err)
	}
	msg.Subject("Your Daily Brief - " + date.Format("2006-01-02"))
	msg.SetBodyString(mail.TypeTextPlain, body)
	msg.AttachFile(path, mail.WithFileName(filepath.Base(path)))
	return msg, nil
}

// Send emails the briefing. The outcome is logged and returned.
func (m *Mailer) Send(ctx context.Context, profile models.UserProfile, path string, date time.Time) error {
	msg, err := m.Build(profile, path, date)
	if err == nil {
		err = m.dialer.DialAndSendWithContext(ctx, msg)
	}
	if err != nil {
		m.logger.Error("Failed to send email",
			zap.Error(err),
			zap.String("email", profile.Email))
		return fmt.Errorf("send to %s: %w", profile.Email, err)
	}

	m.logger.Info("Email sent", zap.String("email", profile.Email))
	return nil
}
