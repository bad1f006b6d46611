package mailbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/drovertools/drover/internal/constants"
)

// EventKind classifies a watcher event.
type EventKind int

const (
	// AgentDirCreated fires when a first-time agent mailbox directory
	// appears. The orchestrator uses this to trigger onboarding.
	AgentDirCreated EventKind = iota

	// MessageWritten fires when a message file lands in an agent's
	// mailbox. Mailbox activity counts as a sign of life.
	MessageWritten
)

// Event is a mailbox filesystem event.
type Event struct {
	Kind    EventKind
	AgentID string
	Path    string
}

// Watcher observes the mailbox tree with fsnotify and reports new agent
// directories and message writes. Polling remains the source of truth for
// liveness; the watcher is the fast path.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	events chan Event
	logf   func(format string, args ...interface{})

	mu      sync.Mutex
	watched map[string]bool

	wg sync.WaitGroup
}

// NewWatcher creates a watcher over the mailbox directory and registers
// the existing agent subdirectories.
func NewWatcher(mailboxDir string, logf func(format string, args ...interface{})) (*Watcher, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:    mailboxDir,
		fsw:     fsw,
		events:  make(chan Event, 64),
		logf:    logf,
		watched: make(map[string]bool),
	}

	if err := fsw.Add(mailboxDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", mailboxDir, err)
	}

	// Register agent directories that already exist so message writes in
	// them are seen from the start.
	entries, err := os.ReadDir(mailboxDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() && !reservedDirs[entry.Name()] {
				w.watchAgentDir(filepath.Join(mailboxDir, entry.Name()))
			}
		}
	}

	return w, nil
}

// Events returns the event stream. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run pumps fsnotify events until ctx is canceled. Call at most once.
func (w *Watcher) Run(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.events)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(ctx, ev)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logf("watcher: %v", err)
			}
		}
	}()
}

// Close releases the underlying fsnotify watcher after Run has exited.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if reservedDirs[parts[0]] || parts[0] == constants.SequenceFile {
		return
	}

	switch len(parts) {
	case 1:
		// Top-level entry: a brand-new agent directory.
		info, err := os.Stat(ev.Name)
		if err != nil || !info.IsDir() {
			return
		}
		if w.watchAgentDir(ev.Name) {
			w.emit(ctx, Event{Kind: AgentDirCreated, AgentID: parts[0], Path: ev.Name})
		}
	case 2:
		// A file inside an agent directory.
		if strings.HasSuffix(parts[1], ".json") && ev.Op.Has(fsnotify.Create) {
			w.emit(ctx, Event{Kind: MessageWritten, AgentID: parts[0], Path: ev.Name})
		}
	}
}

// watchAgentDir adds a watch for an agent directory. Returns true if the
// directory was newly registered.
func (w *Watcher) watchAgentDir(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watched[dir] {
		return false
	}
	if err := w.fsw.Add(dir); err != nil {
		w.logf("watcher: cannot watch %s: %v", dir, err)
		return false
	}
	w.watched[dir] = true
	return true
}

func (w *Watcher) emit(_ context.Context, ev Event) {
	select {
	case w.events <- ev:
	default:
		// Drop rather than block the event pump; the polling monitor
		// will catch anything missed here.
		w.logf("watcher: event buffer full, dropped %v for %s", ev.Kind, ev.AgentID)
	}
}
