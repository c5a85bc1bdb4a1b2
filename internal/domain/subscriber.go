// Package domain holds validated value types for subscriber contact data.
// Raw strings from requests or database rows are only promoted to these
// types through their Parse functions.
package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

const maxNameLength = 256

// forbiddenNameChars are rejected in subscriber names to keep stored values
// safe for templating and mail headers.
const forbiddenNameChars = `/()"<>\{}`

// Subscriber is a validated recipient of newsletter issues.
type Subscriber struct {
	Email SubscriberEmail
	Name  SubscriberName
}

// SubscriberEmail is an email address that passed syntactic validation.
type SubscriberEmail struct {
	value string
}

// ParseEmail validates s as a bare email address (no display name).
func ParseEmail(s string) (SubscriberEmail, error) {
	if strings.TrimSpace(s) == "" {
		return SubscriberEmail{}, errors.New("email must not be empty")
	}

	addr, err := mail.ParseAddress(s)
	if err != nil {
		return SubscriberEmail{}, fmt.Errorf("%q is not a valid subscriber email: %w", s, err)
	}
	// mail.ParseAddress also accepts "Name <a@b.com>" forms; only the bare
	// address is a valid subscriber email.
	if addr.Name != "" || addr.Address != s {
		return SubscriberEmail{}, fmt.Errorf("%q is not a valid subscriber email", s)
	}

	return SubscriberEmail{value: s}, nil
}

func (e SubscriberEmail) String() string { return e.value }

// SubscriberName is a display name that passed syntactic validation.
type SubscriberName struct {
	value string
}

// ParseName validates s as a subscriber display name: non-empty after
// trimming, at most 256 characters, and free of characters that could break
// out of markup or header contexts.
func ParseName(s string) (SubscriberName, error) {
	if strings.TrimSpace(s) == "" {
		return SubscriberName{}, errors.New("name must not be empty")
	}
	if len([]rune(s)) > maxNameLength {
		return SubscriberName{}, fmt.Errorf("name exceeds %d characters", maxNameLength)
	}
	if strings.ContainsAny(s, forbiddenNameChars) {
		return SubscriberName{}, fmt.Errorf("name %q contains a forbidden character", s)
	}

	return SubscriberName{value: s}, nil
}

func (n SubscriberName) String() string { return n.value }
