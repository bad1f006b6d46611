package onboard

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/drovertools/drover/internal/mailbox"
	"github.com/drovertools/drover/internal/status"
)

func newFixture(t *testing.T) (*Default, *mailbox.Router, *status.Tracker) {
	t.Helper()
	root := t.TempDir()

	store := mailbox.NewFileStore(filepath.Join(root, "mailbox"), nil)
	if err := store.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout error: %v", err)
	}
	seq := mailbox.NewSequenceTracker(filepath.Join(root, "mailbox"), nil)
	track := status.NewTracker(filepath.Join(root, "status"), nil)
	router := mailbox.NewRouter(store, seq, mailbox.RouterOptions{})

	return New(store, track, router, nil), router, track
}

func TestOnboardNewAgent(t *testing.T) {
	o, router, track := newFixture(t)

	if err := o.Onboard(context.Background(), "backend"); err != nil {
		t.Fatalf("Onboard error: %v", err)
	}

	rec, err := track.Get("backend")
	if err != nil {
		t.Fatalf("status record missing after onboard: %v", err)
	}
	if rec.State != status.StateInitializing {
		t.Errorf("State = %q, want initializing", rec.State)
	}

	msgs, err := router.Receive("backend")
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("inbox has %d messages, want the welcome", len(msgs))
	}
	if msgs[0].From != mailbox.SystemSender || msgs[0].Mode != mailbox.ModeSystem {
		t.Errorf("welcome from %q mode %q, want %s/system", msgs[0].From, msgs[0].Mode, mailbox.SystemSender)
	}
}

func TestOnboardIdempotent(t *testing.T) {
	o, _, track := newFixture(t)

	if err := o.Onboard(context.Background(), "backend"); err != nil {
		t.Fatalf("Onboard error: %v", err)
	}
	if err := track.Heartbeat("backend"); err != nil {
		t.Fatalf("Heartbeat error: %v", err)
	}
	if err := o.Onboard(context.Background(), "backend"); err != nil {
		t.Fatalf("second Onboard error: %v", err)
	}

	// Existing status survives re-onboarding.
	rec, err := track.Get("backend")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.State != status.StateActive {
		t.Errorf("State = %q, want active preserved", rec.State)
	}
}

func TestOnboardRejectsBadID(t *testing.T) {
	o, _, _ := newFixture(t)

	if err := o.Onboard(context.Background(), "bad id"); err == nil {
		t.Error("Onboard with invalid id should fail")
	}
}
