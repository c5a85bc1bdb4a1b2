// Package mailer sends newsletter email through a configurable backend.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailpost/newsletter/internal/domain"
)

// Client sends a single email synchronously. There are no partial-success
// semantics: a nil error means the backend accepted the message.
type Client interface {
	Send(ctx context.Context, to domain.Subscriber, subject, htmlContent string) error
}

// Config selects and configures the mail backend.
type Config struct {
	// Mode selects the implementation: "smtp" or "stdout".
	Mode        string
	SenderEmail string
	SenderName  string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	SendTimeout time.Duration
}

// NewFromConfig builds the Client selected by cfg.Mode.
func NewFromConfig(cfg Config) (Client, error) {
	sender, err := parseSender(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case "smtp":
		return NewSMTP(cfg, sender)
	case "stdout", "":
		return NewStdout(sender), nil
	default:
		return nil, fmt.Errorf("unknown mailer mode %q", cfg.Mode)
	}
}

func parseSender(cfg Config) (domain.Subscriber, error) {
	email, err := domain.ParseEmail(cfg.SenderEmail)
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("invalid sender email: %w", err)
	}
	name, err := domain.ParseName(cfg.SenderName)
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("invalid sender name: %w", err)
	}
	return domain.Subscriber{Email: email, Name: name}, nil
}
