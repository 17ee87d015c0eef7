package scclient

import (
	"testing"
	"time"
)

func TestBackoffExponentialWithCap(t *testing.T) {
	b := newBackoff(AutoReconnectOptions{
		InitialDelay: 1 * time.Second,
		Randomness:   0,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
	})

	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		got := b.next()
		if got != w*time.Second {
			t.Errorf("attempt %d: backoff = %v, want %v", i, got, w*time.Second)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := newBackoff(AutoReconnectOptions{
		InitialDelay: 1 * time.Second,
		Randomness:   0,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
	})

	b.next()
	b.next()
	b.next()
	b.reset()

	if got := b.next(); got != 1*time.Second {
		t.Errorf("after reset, backoff = %v, want 1s", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	opts := AutoReconnectOptions{
		InitialDelay: 10 * time.Second,
		Randomness:   10 * time.Second,
		Multiplier:   1.5,
		MaxDelay:     60 * time.Second,
	}
	b := newBackoff(opts)

	for i := 0; i < 20; i++ {
		d := b.next()
		if d > opts.MaxDelay {
			t.Fatalf("attempt %d: backoff %v exceeds MaxDelay %v", i, d, opts.MaxDelay)
		}
		if d < 0 {
			t.Fatalf("attempt %d: backoff %v is negative", i, d)
		}
	}
}

func TestDefaultAutoReconnectOptions(t *testing.T) {
	o := DefaultAutoReconnectOptions()
	if o.InitialDelay != 10*time.Second {
		t.Errorf("InitialDelay = %v, want 10s", o.InitialDelay)
	}
	if o.Multiplier != 1.5 {
		t.Errorf("Multiplier = %v, want 1.5", o.Multiplier)
	}
	if o.MaxDelay != 60*time.Second {
		t.Errorf("MaxDelay = %v, want 60s", o.MaxDelay)
	}
}
