// Package idempotency persists frozen HTTP responses keyed by
// (operator, idempotency key) so that retried publish requests are executed
// at most once and replay the original result byte for byte.
package idempotency

import (
	"errors"
	"fmt"
)

// maxKeyLength bounds caller-supplied keys before they reach the store.
const maxKeyLength = 50

// Key is a syntactically valid caller-supplied idempotency token.
type Key struct {
	value string
}

// ParseKey validates s as an idempotency key: non-empty, at most 50 bytes,
// limited to ASCII letters, digits, '-' and '_'. Invalid keys are rejected
// before any store interaction.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, errors.New("idempotency key must not be empty")
	}
	if len(s) > maxKeyLength {
		return Key{}, fmt.Errorf("idempotency key exceeds %d bytes", maxKeyLength)
	}
	for _, c := range []byte(s) {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return Key{}, fmt.Errorf("idempotency key contains invalid byte %q", c)
		}
	}
	return Key{value: s}, nil
}

func (k Key) String() string { return k.value }
