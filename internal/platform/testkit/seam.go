package testkit

import (
	"sync"
	"testing"
)

// seams serializes tests that replace package-level hooks such as the CLI's
// engine opener or migration runner
var seams sync.Mutex

// Swap points *hook at fake until the test ends
func Swap[T any](t *testing.T, hook *T, fake T) {
	t.Helper()
	prev := *hook
	t.Cleanup(func() { *hook = prev })
	*hook = fake
}

// Serial holds the seam lock for the rest of the test, so parallel tests
// never observe each other's swapped hooks
func Serial(t *testing.T) {
	t.Helper()
	seams.Lock()
	t.Cleanup(seams.Unlock)
}
