// Package constants defines shared directory names and timing defaults.
package constants

import "time"

// Yard layout directories. All paths are relative to the yard root.
const (
	// ConfigFile marks the yard root and holds all configuration.
	ConfigFile = "drover.toml"

	// DirMailbox holds per-agent message directories plus the shared
	// inbox index, processed archive, and quarantine.
	DirMailbox = "mailbox"

	// DirInbox is the global ordered index under DirMailbox.
	DirInbox = "inbox"

	// DirProcessed is the immutable archive under DirMailbox.
	DirProcessed = "processed"

	// DirQuarantine holds corrupt records set aside under DirMailbox.
	DirQuarantine = "quarantine"

	// DirStatus holds per-agent status records.
	DirStatus = "status"

	// DirRecovery holds permanent-failure records and the attempt log.
	DirRecovery = "recovery"

	// DirDaemon holds the daemon log, lock, and pid files.
	DirDaemon = "daemon"
)

// Mailbox files.
const (
	// SequenceFile persists the global sequence counter under DirMailbox.
	SequenceFile = "sequence.json"

	// AttemptLogFile is the append-only recovery attempt log under DirRecovery.
	AttemptLogFile = "attempts.jsonl"
)

// Daemon files under DirDaemon.
const (
	DaemonLogFile  = "daemon.log"
	DaemonLockFile = "daemon.lock"
	DaemonPIDFile  = "daemon.pid"
)

// Timing defaults. Configurable values live in internal/config; these are
// the fixed operational constants.
const (
	// ShutdownGracePeriod bounds how long Stop waits for watcher loops.
	ShutdownGracePeriod = 10 * time.Second

	// CleanupRetryDelay is the pause between transient deletion retries.
	CleanupRetryDelay = 250 * time.Millisecond

	// CleanupMaxAttempts bounds deletion retries per record.
	CleanupMaxAttempts = 3
)
