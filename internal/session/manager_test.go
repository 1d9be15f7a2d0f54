package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerAttachIsExclusive(t *testing.T) {
	m := NewManager(time.Minute)
	release, err := m.Attach("u1", func() {})
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if _, err := m.Attach("u1", func() {}); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("second Attach() error = %v, want ErrSessionBusy", err)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", m.ActiveCount())
	}

	release()
	release()
	if m.IsAttached("u1") {
		t.Fatalf("user still attached after release")
	}
	if _, err := m.Attach("u1", func() {}); err != nil {
		t.Fatalf("Attach() after release error = %v", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()
	if _, err := m.Attach("u1", connCancel); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	m.Bind("u1", "s1")

	expired := make(chan Attachment, 1)
	m.SetExpireHook(func(a Attachment) { expired <- a })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case a := <-expired:
		if a.SessionID != "s1" {
			t.Fatalf("expired SessionID = %q, want s1", a.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for expiry")
	}
	select {
	case <-connCtx.Done():
	default:
		t.Fatalf("connection context not cancelled on expiry")
	}
	if m.IsAttached("u1") {
		t.Fatalf("user still attached after expiry")
	}
}

func TestManagerBindAndStaleRelease(t *testing.T) {
	m := NewManager(time.Minute)
	release, err := m.Attach("u1", func() {})
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	// Binding an unclaimed user is a no-op.
	m.Bind("u2", "s2")
	if m.IsAttached("u2") {
		t.Fatalf("Bind() attached an unclaimed user")
	}
	m.Bind("u1", "s1")
	release()

	next, err := m.Attach("u1", func() {})
	if err != nil {
		t.Fatalf("Attach() after release error = %v", err)
	}
	defer next()
	release()
	if !m.IsAttached("u1") {
		t.Fatalf("stale release dropped the newer attachment")
	}
}
