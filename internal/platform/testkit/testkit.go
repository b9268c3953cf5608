// Package testkit holds assertions and seam helpers shared by locnorm tests
package testkit

import (
	"strings"
	"testing"
)

// maxExcerpt bounds how much captured output a failed assertion prints
const maxExcerpt = 2048

// MustPanic fails t unless fn panics
func MustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic, got none")
		}
	}()
	fn()
}

// MustNotPanic fails t when fn panics
func MustNotPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	fn()
}

// MustContain fails t when captured CLI or log output lacks needle
func MustContain(t *testing.T, out, needle string) {
	t.Helper()
	if !strings.Contains(out, needle) {
		t.Fatalf("output lacks %q:\n%s", needle, excerpt(out))
	}
}

// MustNotContain fails t when captured output holds needle
func MustNotContain(t *testing.T, out, needle string) {
	t.Helper()
	if strings.Contains(out, needle) {
		t.Fatalf("output unexpectedly holds %q:\n%s", needle, excerpt(out))
	}
}

// excerpt keeps the tail of long output, where the failing lines usually are
func excerpt(out string) string {
	if len(out) <= maxExcerpt {
		return out
	}
	return "..." + out[len(out)-maxExcerpt:]
}
