package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/drovertools/drover/internal/lock"
	"github.com/drovertools/drover/internal/mailbox"
	"github.com/drovertools/drover/internal/util"
)

// ErrAgentNotFound is returned when no status record exists for an agent.
var ErrAgentNotFound = errors.New("agent not found")

// Tracker persists per-agent status records as JSON files in a directory.
// All mutations go through a mutex plus read-modify-write; an flock on the
// status directory serializes the same cycle across processes, so the
// daemon and CLI invocations never lose each other's updates.
type Tracker struct {
	dir  string
	mu   sync.Mutex
	logf func(format string, args ...interface{})
}

// NewTracker creates a tracker over the given status directory.
func NewTracker(dir string, logf func(format string, args ...interface{})) *Tracker {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Tracker{dir: dir, logf: logf}
}

func (t *Tracker) path(agentID string) string {
	return filepath.Join(t.dir, agentID+".json")
}

// lockDir takes the cross-process lock for the status directory. The
// caller must hold t.mu.
func (t *Tracker) lockDir() (func(), error) {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating status dir: %w", err)
	}
	release, err := lock.FlockAcquire(filepath.Join(t.dir, ".lock"))
	if err != nil {
		return nil, fmt.Errorf("locking status dir: %w", err)
	}
	return release, nil
}

// Register creates an initializing record for a new agent. Existing
// records are left untouched, so re-registration is a no-op.
func (t *Tracker) Register(agentID string) (*Record, error) {
	if err := mailbox.ValidateAgentID(agentID); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	release, err := t.lockDir()
	if err != nil {
		return nil, err
	}
	defer release()

	if rec, err := t.read(agentID); err == nil {
		return rec, nil
	}

	now := time.Now()
	rec := &Record{
		AgentID:       agentID,
		State:         StateInitializing,
		LastHeartbeat: now,
		UpdatedAt:     now,
	}
	if err := t.write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the status record for an agent.
func (t *Tracker) Get(agentID string) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read(agentID)
}

// List returns all status records, sorted by agent ID.
func (t *Tracker) List() ([]*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading status dir: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		rec, err := t.read(name[:len(name)-len(".json")])
		if err != nil {
			// Already logged by read; skip the broken record.
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].AgentID < records[j].AgentID
	})
	return records, nil
}

// Mutate applies fn to the agent's record under the lock and persists
// the result. The record passed to fn is created as initializing if none
// exists yet.
func (t *Tracker) Mutate(agentID string, fn func(*Record)) (*Record, error) {
	if err := mailbox.ValidateAgentID(agentID); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	release, err := t.lockDir()
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := t.read(agentID)
	if err != nil {
		if !errors.Is(err, ErrAgentNotFound) {
			return nil, err
		}
		rec = &Record{
			AgentID:       agentID,
			State:         StateInitializing,
			LastHeartbeat: time.Now(),
		}
	}

	fn(rec)
	rec.UpdatedAt = time.Now()
	if err := t.write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Heartbeat records a sign of life. A live heartbeat promotes an
// initializing or idle agent to active; degraded, recovering, and failed
// agents keep their state until recovery or manual reset moves them.
func (t *Tracker) Heartbeat(agentID string) error {
	_, err := t.Mutate(agentID, func(rec *Record) {
		rec.LastHeartbeat = time.Now()
		switch rec.State {
		case StateInitializing, StateIdle:
			rec.State = StateActive
		}
	})
	return err
}

// MarkIdle moves an active agent back to idle without touching the
// heartbeat. Used when the agent is alive but not producing output.
func (t *Tracker) MarkIdle(agentID string) error {
	_, err := t.Mutate(agentID, func(rec *Record) {
		if rec.State == StateActive {
			rec.State = StateIdle
		}
	})
	return err
}

// MarkDegraded flags an agent as degraded with a reason. Failed agents
// stay failed.
func (t *Tracker) MarkDegraded(agentID, reason string) {
	_, err := t.Mutate(agentID, func(rec *Record) {
		if rec.State == StateFailed {
			return
		}
		rec.State = StateDegraded
		rec.ErrorMessage = reason
	})
	if err != nil {
		t.logf("status: cannot mark %s degraded: %v", agentID, err)
	}
}

// Remove deletes an agent's status record.
func (t *Tracker) Remove(agentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.Remove(t.path(agentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing status record: %w", err)
	}
	return nil
}

// read loads one record. A corrupt record is logged and reported as
// not found so callers recreate it rather than crash on it.
func (t *Tracker) read(agentID string) (*Record, error) {
	data, err := os.ReadFile(t.path(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
		}
		return nil, fmt.Errorf("reading status record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.logf("status: corrupt record for %s, treating as missing: %v", agentID, err)
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if rec.AgentID == "" {
		rec.AgentID = agentID
	}
	return &rec, nil
}

func (t *Tracker) write(rec *Record) error {
	if err := util.AtomicWriteJSON(t.path(rec.AgentID), rec); err != nil {
		return fmt.Errorf("writing status record: %w", err)
	}
	return nil
}
