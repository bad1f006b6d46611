package mailbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/drovertools/drover/internal/constants"
	"github.com/drovertools/drover/internal/util"
)

// SequenceState is the persisted sequence counter. Every successful send
// increments CurrentSequence by exactly one, persisted before the send
// returns success; the counter totally orders all sends in the yard.
type SequenceState struct {
	CurrentSequence int64     `json:"current_sequence"`
	LastAgent       string    `json:"last_agent"`
	LastUpdate      time.Time `json:"last_update"`
}

// SequenceTracker allocates monotonic sequence numbers backed by
// mailbox/sequence.json. An in-process mutex serializes callers within the
// process and a gofrs/flock on sequence.json.lock serializes across
// processes, so concurrent senders never interleave partial writes.
type SequenceTracker struct {
	path     string
	lockPath string
	mu       sync.Mutex
	logf     func(format string, args ...interface{})
}

// NewSequenceTracker creates a tracker for the given mailbox directory.
// logf receives data-integrity events (counter resets); nil discards them.
func NewSequenceTracker(mailboxDir string, logf func(format string, args ...interface{})) *SequenceTracker {
	path := filepath.Join(mailboxDir, constants.SequenceFile)
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &SequenceTracker{
		path:     path,
		lockPath: path + ".lock",
		logf:     logf,
	}
}

// Next atomically reads, increments, and persists the counter, returning
// the new value and recording caller as the last sender. The new state is
// durable before Next returns.
func (t *SequenceTracker) Next(caller string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return 0, fmt.Errorf("creating mailbox directory: %w", err)
	}

	fl := flock.New(t.lockPath)
	if err := fl.Lock(); err != nil {
		return 0, fmt.Errorf("locking sequence file: %w", err)
	}
	defer fl.Unlock() //nolint:errcheck

	state := t.read()
	state.CurrentSequence++
	state.LastAgent = caller
	state.LastUpdate = time.Now()

	if err := util.AtomicWriteJSON(t.path, state); err != nil {
		return 0, fmt.Errorf("persisting sequence: %w", err)
	}

	return state.CurrentSequence, nil
}

// Current returns a read-only snapshot of the sequence state.
func (t *SequenceTracker) Current() SequenceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read()
}

// read loads the persisted state. A missing or unreadable file
// reinitializes the counter to zero rather than failing the caller; the
// reset is logged as a data-integrity event.
func (t *SequenceTracker) read() SequenceState {
	var state SequenceState

	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logf("sequence: unreadable %s, resetting counter to 0: %v", t.path, err)
		}
		return state
	}

	if err := json.Unmarshal(data, &state); err != nil {
		t.logf("sequence: corrupt %s, resetting counter to 0: %v", t.path, err)
		return SequenceState{}
	}

	return state
}
