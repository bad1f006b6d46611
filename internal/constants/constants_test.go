package constants

import "testing"

// Layout names are persisted on disk; renaming one silently orphans
// existing yards. Lock them down.
func TestYardLayoutStable(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{ConfigFile, "drover.toml"},
		{DirMailbox, "mailbox"},
		{DirInbox, "inbox"},
		{DirProcessed, "processed"},
		{DirQuarantine, "quarantine"},
		{DirStatus, "status"},
		{DirRecovery, "recovery"},
		{DirDaemon, "daemon"},
		{SequenceFile, "sequence.json"},
		{AttemptLogFile, "attempts.jsonl"},
		{DaemonLogFile, "daemon.log"},
		{DaemonLockFile, "daemon.lock"},
		{DaemonPIDFile, "daemon.pid"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("layout constant = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCleanupRetryBounds(t *testing.T) {
	if CleanupMaxAttempts < 1 {
		t.Errorf("CleanupMaxAttempts = %d, want at least 1", CleanupMaxAttempts)
	}
	if CleanupRetryDelay <= 0 {
		t.Errorf("CleanupRetryDelay = %v, want positive", CleanupRetryDelay)
	}
}
