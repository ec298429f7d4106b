package challenge

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRequestRecord(t *testing.T) {
	m := NewRequestManager(time.Hour, quietLogger())

	if err := m.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	tests := []struct {
		name     string
		from, to string
		want     error
	}{
		{
			name: "sender already has an outgoing request",
			from: "alice", to: "carol",
			want: ErrPreviousSent,
		},
		{
			name: "sender has an unanswered incoming request",
			from: "bob", to: "carol",
			want: ErrPreviousReceived,
		},
		{
			name: "receiver is engaged as sender",
			from: "carol", to: "alice",
			want: ErrReceiverBusy,
		},
		{
			name: "receiver is engaged as receiver",
			from: "carol", to: "bob",
			want: ErrReceiverBusy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Record(tt.from, tt.to); !errors.Is(err, tt.want) {
				t.Errorf("Record(%s, %s) = %v, want %v", tt.from, tt.to, err, tt.want)
			}
		})
	}

	// An unrelated pair is unaffected.
	if err := m.Record("carol", "dave"); err != nil {
		t.Errorf("Record(carol, dave) returned error: %v", err)
	}
}

func TestRequestDiscard(t *testing.T) {
	m := NewRequestManager(time.Hour, quietLogger())

	if err := m.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	// Only the exact direction matches.
	if m.Discard("bob", "alice") {
		t.Error("Discard(bob, alice) = true, want false")
	}
	if !m.Discard("alice", "bob") {
		t.Error("Discard(alice, bob) = false, want true")
	}
	if m.Discard("alice", "bob") {
		t.Error("second Discard() = true, want false")
	}

	// Both parties are free again.
	if err := m.Record("bob", "alice"); err != nil {
		t.Errorf("Record() after Discard() returned error: %v", err)
	}
}

func TestRequestPendingFor(t *testing.T) {
	m := NewRequestManager(time.Hour, quietLogger())

	if err := m.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	if sender, ok := m.PendingFor("bob"); !ok || sender != "alice" {
		t.Errorf("PendingFor(bob) = %q, %v; want alice, true", sender, ok)
	}
	// The sender has no request pending *toward* them.
	if _, ok := m.PendingFor("alice"); ok {
		t.Error("PendingFor(alice) = true, want false")
	}
}

func TestRequestCancelFor(t *testing.T) {
	m := NewRequestManager(time.Hour, quietLogger())

	if err := m.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	other, ok := m.CancelFor("bob")
	if !ok || other != "alice" {
		t.Errorf("CancelFor(bob) = %q, %v; want alice, true", other, ok)
	}
	if _, ok := m.CancelFor("alice"); ok {
		t.Error("CancelFor(alice) after cancel = true, want false")
	}
}

func TestRequestExpiry(t *testing.T) {
	m := NewRequestManager(20*time.Millisecond, quietLogger())

	if err := m.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	select {
	case event := <-m.Events():
		expired, ok := event.(RequestExpired)
		if !ok {
			t.Fatalf("event = %T, want RequestExpired", event)
		}
		if expired.From != "alice" || expired.To != "bob" {
			t.Errorf("expired parties = %s -> %s, want alice -> bob", expired.From, expired.To)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for expiry event")
	}

	// The reservation is gone: discard is a no-op and both users are free.
	if m.Discard("alice", "bob") {
		t.Error("Discard() after expiry = true, want false")
	}
	if err := m.Record("alice", "bob"); err != nil {
		t.Errorf("Record() after expiry returned error: %v", err)
	}
}

// Expiry events outnumbering the channel buffer must stall only the timer
// goroutines waiting to send, never the manager itself.
func TestSlowEventConsumerDoesNotBlockManager(t *testing.T) {
	m := NewRequestManager(10*time.Millisecond, quietLogger())

	// Nobody consumes Events(); overflow the buffer with expirations.
	for i := 0; i < 80; i++ {
		from := fmt.Sprintf("sender%d", i)
		to := fmt.Sprintf("receiver%d", i)
		if err := m.Record(from, to); err != nil {
			t.Fatalf("Record(%s, %s) returned error: %v", from, to, err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- m.Record("alice", "bob") }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Record() returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Record() blocked behind unconsumed expiry events")
	}
}

func TestDiscardPreventsExpiry(t *testing.T) {
	m := NewRequestManager(20*time.Millisecond, quietLogger())

	if err := m.Record("alice", "bob"); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}
	if !m.Discard("alice", "bob") {
		t.Fatal("Discard() = false, want true")
	}

	select {
	case event := <-m.Events():
		t.Errorf("unexpected event after discard: %v", event)
	case <-time.After(100 * time.Millisecond):
	}
}
