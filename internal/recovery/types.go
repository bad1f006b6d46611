// Package recovery runs the per-agent recovery state machine.
package recovery

import (
	"path/filepath"
	"time"
)

// Attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Attempt is one append-only recovery attempt record in attempts.jsonl.
// Records are written once, when the attempt resolves.
type Attempt struct {
	// ID uniquely identifies this attempt.
	ID string `json:"id"`

	// AgentID is the agent being recovered.
	AgentID string `json:"agent_id"`

	// AttemptNumber is the retry count at the time of the attempt.
	AttemptNumber int `json:"attempt_number"`

	// StartedAt is when the attempt began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the attempt resolved.
	FinishedAt time.Time `json:"finished_at"`

	// Outcome is success or failure.
	Outcome string `json:"outcome"`

	// Reason explains a failure.
	Reason string `json:"reason,omitempty"`
}

// FailureRecord is the durable permanent-failure marker written to
// recovery/<agent_id>_failure.json when retries are exhausted.
type FailureRecord struct {
	AgentID    string    `json:"agent_id"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
	Status     string    `json:"status"`
}

// PermanentFailureStatus is the status value in a FailureRecord.
const PermanentFailureStatus = "permanent_failure"

// FailureRecordPath returns the permanent-failure record path for an
// agent under the recovery directory.
func FailureRecordPath(dir, agentID string) string {
	return filepath.Join(dir, agentID+"_failure.json")
}
