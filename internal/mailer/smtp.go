package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/mailpost/newsletter/internal/domain"
)

// SMTP implements Client by relaying messages through an SMTP server using
// STARTTLS, with optional PLAIN authentication.
type SMTP struct {
	addr     string
	username string
	password string
	sender   domain.Subscriber
	timeout  time.Duration
}

// NewSMTP creates an SMTP client from cfg.
func NewSMTP(cfg Config, sender domain.Subscriber) (*SMTP, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("smtp mailer requires a host")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SMTP{
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, port),
		username: cfg.SMTPUser,
		password: cfg.SMTPPass,
		sender:   sender,
		timeout:  timeout,
	}, nil
}

// Send relays one HTML message. The underlying SMTP exchange has no context
// support, so the call is bounded by the configured timeout and the caller's
// context.
func (c *SMTP) Send(ctx context.Context, to domain.Subscriber, subject, htmlContent string) error {
	msg := buildMessage(c.sender, to, subject, htmlContent)

	var auth sasl.Client
	if c.username != "" {
		auth = sasl.NewPlainClient("", c.username, c.password)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(c.addr, auth, c.sender.Email.String(), []string{to.Email.String()}, bytes.NewReader(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to.Email, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", to.Email, ctx.Err())
	}
}

// buildMessage assembles a minimal single-part HTML RFC 5322 message.
func buildMessage(from, to domain.Subscriber, subject, htmlContent string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", from.Name.String()), from.Email)
	fmt.Fprintf(&b, "To: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", to.Name.String()), to.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlContent)
	b.WriteString("\r\n")
	return b.Bytes()
}
