package testkit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	openStore  = func(dsn string) error { return errors.New("no database at " + dsn) }
	maxRetries = 3
)

func TestSwap_RestoresHook(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Swap(t, &openStore, func(string) error { return nil })
		if err := openStore("postgres://x"); err != nil {
			t.Fatalf("swapped hook not in effect: %v", err)
		}
	})
	if err := openStore("postgres://x"); err == nil {
		t.Fatal("hook not restored after subtest")
	}
}

func TestSwap_Value(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Swap(t, &maxRetries, 0)
		if maxRetries != 0 {
			t.Fatalf("maxRetries = %d, want 0", maxRetries)
		}
	})
	if maxRetries != 3 {
		t.Fatalf("maxRetries = %d after cleanup, want 3", maxRetries)
	}
}

func TestSerial_NoInterleaving(t *testing.T) {
	var (
		mu  sync.Mutex
		log []string
	)
	mark := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}

	t.Run("group", func(t *testing.T) {
		for _, name := range []string{"countries", "states"} {
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				Serial(t)
				mark(name + ">")
				time.Sleep(20 * time.Millisecond)
				mark("<" + name)
			})
		}
	})

	if len(log) != 4 {
		t.Fatalf("log = %v", log)
	}
	for i := 0; i < 4; i += 2 {
		if log[i][:len(log[i])-1] != log[i+1][1:] {
			t.Fatalf("runs interleaved: %v", log)
		}
	}
}
