// Package status tracks per-agent lifecycle state for the fleet.
// Each agent has a persisted record under status/ holding its current
// state, last heartbeat, and recovery bookkeeping.
package status

import "time"

// State represents an agent's lifecycle state.
type State string

const (
	// StateInitializing indicates the agent was registered but has not
	// yet reported a heartbeat.
	StateInitializing State = "initializing"

	// StateIdle indicates a live agent with no current work.
	StateIdle State = "idle"

	// StateActive indicates a live agent producing output.
	StateActive State = "active"

	// StateDegraded indicates the agent is alive but something is wrong
	// (corrupt mailbox records, repeated soft errors).
	StateDegraded State = "degraded"

	// StateRecovering indicates a recovery attempt is in flight.
	StateRecovering State = "recovering"

	// StateFailed indicates recovery was exhausted; manual intervention
	// is required before the agent is monitored again.
	StateFailed State = "failed"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateInitializing, StateIdle, StateActive, StateDegraded, StateRecovering, StateFailed:
		return true
	}
	return false
}

// Label returns a human-readable label for the state.
func (s State) Label() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateIdle:
		return "Idle"
	case StateActive:
		return "Active"
	case StateDegraded:
		return "Degraded"
	case StateRecovering:
		return "Recovering"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsHealthy returns true if the state indicates normal operation.
func (s State) IsHealthy() bool {
	return s == StateIdle || s == StateActive
}

// NeedsAttention returns true if the state indicates potential issues.
func (s State) NeedsAttention() bool {
	return s == StateDegraded || s == StateRecovering || s == StateFailed
}

// Record is the persisted status of one agent.
type Record struct {
	// AgentID is the agent this record belongs to.
	AgentID string `json:"agent_id"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// LastHeartbeat is when the agent last showed a sign of life.
	LastHeartbeat time.Time `json:"last_heartbeat"`

	// RetryCount is the number of recovery attempts since the last
	// successful heartbeat. Reset to zero when the agent comes back.
	RetryCount int `json:"retry_count"`

	// LastRestartAt is when the agent was last restarted by recovery.
	LastRestartAt *time.Time `json:"last_restart_at,omitempty"`

	// CooldownUntil suppresses further recovery attempts until this time.
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`

	// ErrorMessage describes the most recent failure, if any.
	ErrorMessage string `json:"error_message,omitempty"`

	// UpdatedAt is when this record was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// InCooldown reports whether recovery is suppressed at the given time.
func (r *Record) InCooldown(now time.Time) bool {
	return r.CooldownUntil != nil && now.Before(*r.CooldownUntil)
}

// HeartbeatAge returns the time since the last heartbeat. Returns zero
// for clock skew into the future.
func (r *Record) HeartbeatAge(now time.Time) time.Duration {
	age := now.Sub(r.LastHeartbeat)
	if age < 0 {
		return 0
	}
	return age
}
