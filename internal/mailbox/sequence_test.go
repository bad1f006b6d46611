package mailbox

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSequenceTrackerNext(t *testing.T) {
	tmpDir := t.TempDir()
	tr := NewSequenceTracker(tmpDir, nil)

	for i := int64(1); i <= 3; i++ {
		seq, err := tr.Next("frontend")
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if seq != i {
			t.Errorf("Next = %d, want %d", seq, i)
		}
	}

	state := tr.Current()
	if state.CurrentSequence != 3 {
		t.Errorf("CurrentSequence = %d, want 3", state.CurrentSequence)
	}
	if state.LastAgent != "frontend" {
		t.Errorf("LastAgent = %q, want frontend", state.LastAgent)
	}
	if state.LastUpdate.IsZero() {
		t.Error("LastUpdate should be set")
	}
}

func TestSequenceTrackerPersists(t *testing.T) {
	tmpDir := t.TempDir()

	tr1 := NewSequenceTracker(tmpDir, nil)
	if _, err := tr1.Next("a"); err != nil {
		t.Fatalf("Next error: %v", err)
	}

	// A fresh tracker over the same directory continues the count.
	tr2 := NewSequenceTracker(tmpDir, nil)
	seq, err := tr2.Next("b")
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if seq != 2 {
		t.Errorf("Next after reload = %d, want 2", seq)
	}
}

func TestSequenceTrackerConcurrent(t *testing.T) {
	tmpDir := t.TempDir()
	tr := NewSequenceTracker(tmpDir, nil)

	const n = 50
	seqs := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			seq, err := tr.Next("agent")
			if err != nil {
				t.Errorf("Next error: %v", err)
				return
			}
			seqs[idx] = seq
		}(i)
	}
	wg.Wait()

	// Every sequence must be unique; together they must cover 1..n.
	seen := make(map[int64]bool)
	for _, seq := range seqs {
		if seen[seq] {
			t.Errorf("sequence %d issued twice", seq)
		}
		seen[seq] = true
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Errorf("sequence %d never issued", i)
		}
	}
}

func TestSequenceTrackerCorruptResets(t *testing.T) {
	tmpDir := t.TempDir()

	var logged bool
	tr := NewSequenceTracker(tmpDir, func(format string, args ...interface{}) {
		logged = true
	})

	if _, err := tr.Next("a"); err != nil {
		t.Fatalf("Next error: %v", err)
	}

	// Corrupt the state file; the next call must reset, not fail.
	if err := os.WriteFile(filepath.Join(tmpDir, "sequence.json"), []byte("{bad"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	seq, err := tr.Next("b")
	if err != nil {
		t.Fatalf("Next after corruption error: %v", err)
	}
	if seq != 1 {
		t.Errorf("Next after reset = %d, want 1", seq)
	}
	if !logged {
		t.Error("corruption reset should be logged as a data-integrity event")
	}
}
