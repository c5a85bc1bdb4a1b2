package idempotency

import (
	"strings"
	"testing"
)

func TestParseKey_Valid(t *testing.T) {
	valid := []string{
		"abc123",
		"a",
		"retry-2024_01",
		"ABC-xyz_09",
		strings.Repeat("k", 50),
	}
	for _, s := range valid {
		k, err := ParseKey(s)
		if err != nil {
			t.Errorf("ParseKey(%q) unexpected error: %v", s, err)
			continue
		}
		if k.String() != s {
			t.Errorf("ParseKey(%q) value not preserved: %q", s, k.String())
		}
	}
}

func TestParseKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("k", 51)},
		{"whitespace", "abc 123"},
		{"slash", "a/b"},
		{"dot", "a.b"},
		{"unicode", "clé"},
		{"newline", "abc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseKey(tt.key); err == nil {
				t.Errorf("ParseKey(%q) expected error", tt.key)
			}
		})
	}
}
