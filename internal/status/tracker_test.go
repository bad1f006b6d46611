package status

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(t.TempDir(), nil)
}

func TestRegisterCreatesInitializing(t *testing.T) {
	tr := newTestTracker(t)

	rec, err := tr.Register("backend")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if rec.State != StateInitializing {
		t.Errorf("State = %q, want initializing", rec.State)
	}
	if rec.LastHeartbeat.IsZero() {
		t.Error("LastHeartbeat should be seeded")
	}

	// Re-registration keeps the existing record.
	if err := tr.Heartbeat("backend"); err != nil {
		t.Fatalf("Heartbeat error: %v", err)
	}
	again, err := tr.Register("backend")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if again.State != StateActive {
		t.Errorf("State after re-register = %q, want active", again.State)
	}
}

func TestRegisterRejectsBadID(t *testing.T) {
	tr := newTestTracker(t)

	if _, err := tr.Register("bad id"); err == nil {
		t.Error("Register with invalid id should fail")
	}
}

func TestGetMissingAgent(t *testing.T) {
	tr := newTestTracker(t)

	if _, err := tr.Get("ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Get = %v, want ErrAgentNotFound", err)
	}
}

func TestHeartbeatPromotes(t *testing.T) {
	tr := newTestTracker(t)

	if _, err := tr.Register("backend"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := tr.Heartbeat("backend"); err != nil {
		t.Fatalf("Heartbeat error: %v", err)
	}

	rec, err := tr.Get("backend")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.State != StateActive {
		t.Errorf("State = %q, want active", rec.State)
	}
}

func TestHeartbeatDoesNotClearFailed(t *testing.T) {
	tr := newTestTracker(t)

	if _, err := tr.Mutate("backend", func(rec *Record) {
		rec.State = StateFailed
		rec.ErrorMessage = "recovery exhausted"
	}); err != nil {
		t.Fatalf("Mutate error: %v", err)
	}

	if err := tr.Heartbeat("backend"); err != nil {
		t.Fatalf("Heartbeat error: %v", err)
	}

	rec, err := tr.Get("backend")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.State != StateFailed {
		t.Errorf("State = %q, failed must persist through heartbeats", rec.State)
	}
}

func TestMarkDegraded(t *testing.T) {
	tr := newTestTracker(t)

	tr.MarkDegraded("backend", "corrupt mailbox records")

	rec, err := tr.Get("backend")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.State != StateDegraded {
		t.Errorf("State = %q, want degraded", rec.State)
	}
	if rec.ErrorMessage != "corrupt mailbox records" {
		t.Errorf("ErrorMessage = %q", rec.ErrorMessage)
	}

	// Degraded must not override failed.
	if _, err := tr.Mutate("backend", func(rec *Record) { rec.State = StateFailed }); err != nil {
		t.Fatalf("Mutate error: %v", err)
	}
	tr.MarkDegraded("backend", "again")
	rec, _ = tr.Get("backend")
	if rec.State != StateFailed {
		t.Errorf("State = %q, want failed", rec.State)
	}
}

func TestMarkIdle(t *testing.T) {
	tr := newTestTracker(t)

	if err := tr.Heartbeat("backend"); err != nil {
		t.Fatalf("Heartbeat error: %v", err)
	}
	if err := tr.MarkIdle("backend"); err != nil {
		t.Fatalf("MarkIdle error: %v", err)
	}

	rec, _ := tr.Get("backend")
	if rec.State != StateIdle {
		t.Errorf("State = %q, want idle", rec.State)
	}
}

func TestListSorted(t *testing.T) {
	tr := newTestTracker(t)

	for _, id := range []string{"zulu", "alpha", "mike"} {
		if _, err := tr.Register(id); err != nil {
			t.Fatalf("Register error: %v", err)
		}
	}

	records, err := tr.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List returned %d records, want 3", len(records))
	}
	want := []string{"alpha", "mike", "zulu"}
	for i, rec := range records {
		if rec.AgentID != want[i] {
			t.Errorf("records[%d] = %q, want %q", i, rec.AgentID, want[i])
		}
	}
}

func TestCorruptRecordTreatedAsMissing(t *testing.T) {
	dir := t.TempDir()
	var logged bool
	tr := NewTracker(dir, func(format string, args ...interface{}) { logged = true })

	if err := os.WriteFile(filepath.Join(dir, "backend.json"), []byte("{broken"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	if _, err := tr.Get("backend"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Get corrupt = %v, want ErrAgentNotFound", err)
	}
	if !logged {
		t.Error("corrupt record should be logged")
	}

	// Mutate recreates the record from scratch.
	rec, err := tr.Mutate("backend", func(rec *Record) { rec.State = StateActive })
	if err != nil {
		t.Fatalf("Mutate error: %v", err)
	}
	if rec.State != StateActive {
		t.Errorf("State = %q, want active", rec.State)
	}
}

func TestMutateConcurrent(t *testing.T) {
	tr := newTestTracker(t)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Mutate("backend", func(rec *Record) { rec.RetryCount++ }); err != nil {
				t.Errorf("Mutate error: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := tr.Get("backend")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.RetryCount != n {
		t.Errorf("RetryCount = %d, want %d", rec.RetryCount, n)
	}
}

func TestRecordHelpers(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Minute)
	rec := &Record{
		LastHeartbeat: now.Add(-90 * time.Second),
		CooldownUntil: &until,
	}

	if !rec.InCooldown(now) {
		t.Error("InCooldown should be true before the deadline")
	}
	if rec.InCooldown(now.Add(2 * time.Minute)) {
		t.Error("InCooldown should be false after the deadline")
	}
	if age := rec.HeartbeatAge(now); age != 90*time.Second {
		t.Errorf("HeartbeatAge = %v, want 90s", age)
	}
	if age := rec.HeartbeatAge(now.Add(-5 * time.Minute)); age != 0 {
		t.Errorf("HeartbeatAge with skew = %v, want 0", age)
	}
}

func TestStateHelpers(t *testing.T) {
	if !StateActive.IsHealthy() || !StateIdle.IsHealthy() {
		t.Error("active and idle should be healthy")
	}
	if StateFailed.IsHealthy() {
		t.Error("failed should not be healthy")
	}
	if !StateDegraded.NeedsAttention() || !StateFailed.NeedsAttention() {
		t.Error("degraded and failed should need attention")
	}
	if State("bogus").Valid() {
		t.Error("unknown state should not be valid")
	}
	if State("bogus").Label() != "Unknown" {
		t.Error("unknown state label should be Unknown")
	}
}
