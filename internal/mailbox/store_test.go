package mailbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s := NewFileStore(t.TempDir(), nil)
	if err := s.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout error: %v", err)
	}
	return s
}

func putMessage(t *testing.T, s *FileStore, to string, seq int64, content string) *Message {
	t.Helper()
	msg := NewMessage("sender", to, content, ModeNormal, 2)
	msg.Sequence = seq
	if err := s.Put(to, msg); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	return msg
}

func TestFileStorePutAndList(t *testing.T) {
	s := newTestStore(t)

	putMessage(t, s, "backend", 1, "first")
	putMessage(t, s, "backend", 2, "second")

	msgs, quarantined, err := s.List("backend")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if quarantined != 0 {
		t.Errorf("quarantined = %d, want 0", quarantined)
	}
	if len(msgs) != 2 {
		t.Fatalf("List returned %d messages, want 2", len(msgs))
	}

	// Index copies should exist under inbox/.
	matches, _ := filepath.Glob(filepath.Join(s.root, "inbox", "msg_*.json"))
	if len(matches) != 2 {
		t.Errorf("inbox index has %d entries, want 2", len(matches))
	}
}

func TestFileStoreListMissingAgent(t *testing.T) {
	s := newTestStore(t)

	msgs, quarantined, err := s.List("ghost")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(msgs) != 0 || quarantined != 0 {
		t.Errorf("List = (%d msgs, %d quarantined), want (0, 0)", len(msgs), quarantined)
	}
}

func TestFileStoreQuarantinesCorrupt(t *testing.T) {
	s := newTestStore(t)

	putMessage(t, s, "backend", 1, "valid")

	// Drop a corrupt record into the agent's mailbox.
	corrupt := filepath.Join(s.root, "backend", "00000002_bad.json")
	if err := os.WriteFile(corrupt, []byte("not json"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	msgs, quarantined, err := s.List("backend")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if quarantined != 1 {
		t.Errorf("quarantined = %d, want 1", quarantined)
	}
	if len(msgs) != 1 {
		t.Fatalf("List returned %d messages, want 1 valid", len(msgs))
	}
	if msgs[0].Content != "valid" {
		t.Errorf("Content = %q, want valid", msgs[0].Content)
	}

	// The corrupt file is moved aside, not left in place.
	if _, err := os.Stat(corrupt); !os.IsNotExist(err) {
		t.Error("corrupt record should be moved out of the mailbox")
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, "quarantine", "backend_*"))
	if len(matches) != 1 {
		t.Errorf("quarantine has %d entries, want 1", len(matches))
	}
}

func TestFileStoreListDeduplicates(t *testing.T) {
	s := newTestStore(t)

	msg := putMessage(t, s, "backend", 1, "original")

	// Write a duplicate copy under a different sequence-derived name.
	dup := *msg
	dup.Sequence = 9
	if err := s.Put("backend", &dup); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	msgs, _, err := s.List("backend")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("List returned %d messages, want 1 after dedup", len(msgs))
	}
}

func TestFileStoreFind(t *testing.T) {
	s := newTestStore(t)

	msg := putMessage(t, s, "backend", 1, "findable")

	got, err := s.Find(msg.ID)
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got.Content != "findable" {
		t.Errorf("Content = %q, want findable", got.Content)
	}

	if _, err := s.Find("nonexistent-id"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("Find nonexistent = %v, want ErrMessageNotFound", err)
	}
}

func TestFileStoreMoveToProcessed(t *testing.T) {
	s := newTestStore(t)

	msg := putMessage(t, s, "backend", 1, "done")
	msg.Status = StatusProcessed

	if err := s.MoveToProcessed(msg); err != nil {
		t.Fatalf("MoveToProcessed error: %v", err)
	}

	// Gone from the active set and the index, present in the archive.
	if _, err := s.Find(msg.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("Find after move = %v, want ErrMessageNotFound", err)
	}
	indexMatches, _ := filepath.Glob(filepath.Join(s.root, "inbox", "msg_*.json"))
	if len(indexMatches) != 0 {
		t.Errorf("inbox index has %d entries after move, want 0", len(indexMatches))
	}
	archived, _ := filepath.Glob(filepath.Join(s.root, "processed", "*.json"))
	if len(archived) != 1 {
		t.Errorf("processed archive has %d entries, want 1", len(archived))
	}
}

func TestFileStoreAgents(t *testing.T) {
	s := newTestStore(t)

	putMessage(t, s, "backend", 1, "x")
	putMessage(t, s, "frontend", 2, "y")

	agents, err := s.Agents()
	if err != nil {
		t.Fatalf("Agents error: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("Agents = %v, want 2 entries", agents)
	}
	for _, a := range agents {
		if a == "inbox" || a == "processed" || a == "quarantine" {
			t.Errorf("Agents includes reserved dir %q", a)
		}
	}
}

func TestFileStorePurgeArchives(t *testing.T) {
	s := newTestStore(t)

	msg := putMessage(t, s, "backend", 1, "old")
	msg.Status = StatusProcessed
	if err := s.MoveToProcessed(msg); err != nil {
		t.Fatalf("MoveToProcessed error: %v", err)
	}

	fresh := putMessage(t, s, "backend", 2, "fresh")
	fresh.Status = StatusProcessed
	if err := s.MoveToProcessed(fresh); err != nil {
		t.Fatalf("MoveToProcessed error: %v", err)
	}

	// Age the first archive entry.
	oldPath := filepath.Join(s.root, "processed", activeName(msg))
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("Chtimes error: %v", err)
	}

	removed, err := s.PurgeArchives(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeArchives error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	remaining, _ := filepath.Glob(filepath.Join(s.root, "processed", "*.json"))
	if len(remaining) != 1 {
		t.Errorf("processed archive has %d entries after purge, want 1", len(remaining))
	}
}
