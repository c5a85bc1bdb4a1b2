package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mailpost/newsletter/internal/domain"
)

// Stdout implements Client by writing messages to standard output.
// Intended for development and debugging; messages are never actually
// delivered.
type Stdout struct {
	sender domain.Subscriber
	writer io.Writer
}

// NewStdout creates a Stdout client that prints messages to os.Stdout.
func NewStdout(sender domain.Subscriber) *Stdout {
	return &Stdout{sender: sender, writer: os.Stdout}
}

// Send prints the message details to stdout and reports success.
func (s *Stdout) Send(_ context.Context, to domain.Subscriber, subject, htmlContent string) error {
	var b strings.Builder
	b.WriteString("--- stdout mailer: message ---\n")
	fmt.Fprintf(&b, "From:    %s <%s>\n", s.sender.Name, s.sender.Email)
	fmt.Fprintf(&b, "To:      %s <%s>\n", to.Name, to.Email)
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "Body:    (%d bytes)\n", len(htmlContent))
	b.WriteString("--- end ---\n")

	if _, err := io.WriteString(s.writer, b.String()); err != nil {
		return fmt.Errorf("stdout: write: %w", err)
	}
	return nil
}
