package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
		{"wrong scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, Options{URL: "redis://localhost:59999"})
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{DefaultPrefix, []string{"session", "ana"}, "pim:session:ana"},
		{"test", []string{"session", "ana"}, "test:session:ana"},
		{"pim", []string{"x"}, "pim:x"},
	}
	for _, tt := range tests {
		c := &Cache{prefix: tt.prefix}
		if got := c.Key(tt.parts...); got != tt.want {
			t.Errorf("Key(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestNopLocker(t *testing.T) {
	var l Locker = NopLocker{}
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "ana")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if _, err := l.Lock(ctx, "ana"); err != nil {
		t.Errorf("second Lock() error = %v, want nil", err)
	}
	if err := unlock(ctx); err != nil {
		t.Errorf("unlock() error = %v", err)
	}
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	c, err := New(t.Context(), Options{URL: "redis://" + m.Addr()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, m
}

func TestSessionLocker(t *testing.T) {
	c, m := newTestCache(t)
	ctx := t.Context()
	l := NewSessionLocker(c, time.Minute)

	unlock, err := l.Lock(ctx, "ana")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if !m.Exists("pim:session:ana") {
		t.Fatal("lock key pim:session:ana not set")
	}
	if _, err := l.Lock(ctx, "ana"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Lock() error = %v, want ErrSessionActive", err)
	}
	unlockBia, err := l.Lock(ctx, "bia")
	if err != nil {
		t.Fatalf("Lock(bia) error = %v", err)
	}
	defer unlockBia(ctx)
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock() error = %v", err)
	}
	if m.Exists("pim:session:ana") {
		t.Error("lock key still set after unlock")
	}
	if err := unlock(ctx); err != nil {
		t.Errorf("repeated unlock() error = %v", err)
	}

	unlock, err = l.Lock(ctx, "ana")
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	_ = unlock(ctx)
}

func TestSessionLocker_ExtendsWhileHeld(t *testing.T) {
	c, m := newTestCache(t)
	ctx := t.Context()
	ttl := 300 * time.Millisecond
	l := NewSessionLocker(c, ttl)

	unlock, err := l.Lock(ctx, "ana")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock(ctx)

	// Advance the server clock past most of the ttl, then wait for a refresh.
	m.FastForward(250 * time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for m.TTL("pim:session:ana") != ttl {
		if time.Now().After(deadline) {
			t.Fatalf("TTL = %v, want it reset to %v", m.TTL("pim:session:ana"), ttl)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Several ttls of server time pass in steps shorter than the ttl.
	for range 5 {
		m.FastForward(200 * time.Millisecond)
		time.Sleep(150 * time.Millisecond)
	}
	if _, err := l.Lock(ctx, "ana"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("Lock() after %v of server time error = %v, want ErrSessionActive", 5*200*time.Millisecond, err)
	}
}

func TestSessionLocker_LostLockIsNotReleased(t *testing.T) {
	c, m := newTestCache(t)
	ctx := t.Context()
	l := NewSessionLocker(c, time.Minute)

	first, err := l.Lock(ctx, "ana")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	m.FastForward(2 * time.Minute)

	second, err := l.Lock(ctx, "ana")
	if err != nil {
		t.Fatalf("Lock() after expiry error = %v", err)
	}
	defer second(ctx)

	if err := first(ctx); err != nil {
		t.Fatalf("unlock() of expired lock error = %v", err)
	}
	if !m.Exists("pim:session:ana") {
		t.Error("expired holder released the new holder's lock")
	}
}
