package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/drovertools/drover/internal/constants"
	"github.com/drovertools/drover/internal/util"
)

// Store is the durability contract behind the router. The file-backed
// implementation below is the default; the interface keeps the router
// agnostic so an embedded KV store could back it later without changing
// the send/receive contract.
type Store interface {
	// Put appends a message to the agent's active set and the global
	// inbox index. Both writes are atomically visible.
	Put(agentID string, msg *Message) error

	// List returns the agent's active messages, deduplicated by id and
	// ordered by timestamp ascending. Corrupt records are quarantined and
	// counted, never surfaced as a fatal error.
	List(agentID string) (msgs []*Message, quarantined int, err error)

	// Update rewrites an active record in place (status write-back).
	Update(msg *Message) error

	// Find locates an active message by id across all agents.
	// Returns ErrMessageNotFound if no active record has that id.
	Find(id string) (*Message, error)

	// MoveToProcessed relocates a message out of the active set into the
	// immutable archive, removing any inbox index copy.
	MoveToProcessed(msg *Message) error

	// Agents lists agent ids that have a mailbox directory.
	Agents() ([]string, error)

	// PurgeArchives removes processed and quarantined records older than
	// cutoff, retrying transient deletion failures a bounded number of
	// times. Returns the number of records removed.
	PurgeArchives(cutoff time.Time) (int, error)
}

// FileStore implements Store on a mailbox directory of JSON files.
type FileStore struct {
	root string
	logf func(format string, args ...interface{})
}

// NewFileStore creates a file store rooted at the mailbox directory
// (<yard>/mailbox). logf receives warnings about skipped or quarantined
// records; nil discards them.
func NewFileStore(mailboxDir string, logf func(format string, args ...interface{})) *FileStore {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &FileStore{root: mailboxDir, logf: logf}
}

// EnsureLayout creates the shared mailbox directories.
func (s *FileStore) EnsureLayout() error {
	for _, dir := range []string{
		s.root,
		filepath.Join(s.root, constants.DirInbox),
		filepath.Join(s.root, constants.DirProcessed),
		filepath.Join(s.root, constants.DirQuarantine),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureAgent creates the active-message directory for an agent.
func (s *FileStore) EnsureAgent(agentID string) error {
	if err := os.MkdirAll(s.agentDir(agentID), 0755); err != nil {
		return fmt.Errorf("creating agent mailbox: %w", err)
	}
	return nil
}

func (s *FileStore) agentDir(agentID string) string {
	return filepath.Join(s.root, agentID)
}

// activeName is the per-agent filename: zero-padded sequence first so
// lexical order is delivery order.
func activeName(msg *Message) string {
	return fmt.Sprintf("%08d_%s.json", msg.Sequence, msg.ID)
}

// indexName is the global inbox index filename keyed by (sequence, from, to).
func indexName(msg *Message) string {
	return fmt.Sprintf("msg_%08d_%s_to_%s.json", msg.Sequence, msg.From, msg.To)
}

// ReadMessageFile parses a single message record from disk.
func ReadMessageFile(path string) (*Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &CorruptRecordError{Path: path, Err: err}
	}
	return &msg, nil
}

// reservedDirs are mailbox subdirectories that are not agent mailboxes.
var reservedDirs = map[string]bool{
	constants.DirInbox:      true,
	constants.DirProcessed:  true,
	constants.DirQuarantine: true,
}

func (s *FileStore) Put(agentID string, msg *Message) error {
	if err := s.EnsureAgent(agentID); err != nil {
		return err
	}

	activePath := filepath.Join(s.agentDir(agentID), activeName(msg))
	if err := util.AtomicWriteJSON(activePath, msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}

	indexPath := filepath.Join(s.root, constants.DirInbox, indexName(msg))
	if err := util.AtomicWriteJSON(indexPath, msg); err != nil {
		return fmt.Errorf("writing inbox index: %w", err)
	}

	return nil
}

func (s *FileStore) List(agentID string) ([]*Message, int, error) {
	dir := s.agentDir(agentID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("reading mailbox: %w", err)
	}

	var msgs []*Message
	seen := make(map[string]bool)
	quarantined := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logf("mailbox: skipping unreadable %s: %v", path, err)
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.quarantine(agentID, path, err)
			quarantined++
			continue
		}

		if seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true
		msgs = append(msgs, &msg)
	}

	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	return msgs, quarantined, nil
}

// quarantine moves an unreadable record aside so the rest of the mailbox
// stays readable. The move is best-effort; a record that cannot be moved
// is left in place and reported again on the next read.
func (s *FileStore) quarantine(agentID, path string, cause error) {
	dest := filepath.Join(s.root, constants.DirQuarantine,
		fmt.Sprintf("%s_%s", agentID, filepath.Base(path)))
	if err := os.Rename(path, dest); err != nil {
		s.logf("mailbox: quarantine of %s failed: %v (cause: %v)", path, err, cause)
		return
	}
	s.logf("mailbox: quarantined corrupt record %s for %s: %v", path, agentID, cause)
}

func (s *FileStore) Update(msg *Message) error {
	path := filepath.Join(s.agentDir(msg.To), activeName(msg))
	if err := util.AtomicWriteJSON(path, msg); err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	return nil
}

func (s *FileStore) Find(id string) (*Message, error) {
	agents, err := s.Agents()
	if err != nil {
		return nil, err
	}

	for _, agent := range agents {
		matches, err := filepath.Glob(filepath.Join(s.agentDir(agent), "*_"+id+".json"))
		if err != nil || len(matches) == 0 {
			continue
		}

		data, err := os.ReadFile(matches[0])
		if err != nil {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.quarantine(agent, matches[0], err)
			continue
		}
		return &msg, nil
	}

	return nil, ErrMessageNotFound
}

func (s *FileStore) MoveToProcessed(msg *Message) error {
	processedPath := filepath.Join(s.root, constants.DirProcessed, activeName(msg))
	if err := util.AtomicWriteJSON(processedPath, msg); err != nil {
		return fmt.Errorf("archiving message: %w", err)
	}

	activePath := filepath.Join(s.agentDir(msg.To), activeName(msg))
	if err := os.Remove(activePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing active copy: %w", err)
	}

	indexPath := filepath.Join(s.root, constants.DirInbox, indexName(msg))
	if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
		s.logf("mailbox: could not remove index copy %s: %v", indexPath, err)
	}

	return nil
}

func (s *FileStore) Agents() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading mailbox root: %w", err)
	}

	var agents []string
	for _, entry := range entries {
		if entry.IsDir() && !reservedDirs[entry.Name()] {
			agents = append(agents, entry.Name())
		}
	}
	return agents, nil
}

func (s *FileStore) PurgeArchives(cutoff time.Time) (int, error) {
	removed := 0

	for _, sub := range []string{constants.DirProcessed, constants.DirQuarantine} {
		dir := filepath.Join(s.root, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("reading %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			cfg := util.RetryConfig{
				MaxAttempts:  constants.CleanupMaxAttempts,
				InitialDelay: constants.CleanupRetryDelay,
				Jitter:       false,
			}
			_, err = util.Retry(context.Background(), cfg, func() (struct{}, error) {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return struct{}{}, err
				}
				return struct{}{}, nil
			})
			if err != nil {
				// Permanent cleanup failure for this record; do not block
				// the rest of the sweep.
				s.logf("mailbox: cleanup of %s failed permanently: %v", path, err)
				continue
			}
			removed++
		}
	}

	return removed, nil
}
