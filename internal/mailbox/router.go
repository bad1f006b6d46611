package mailbox

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StatusMarker is the narrow slice of the status tracker the router needs:
// flagging an agent as degraded when its records are quarantined.
type StatusMarker interface {
	MarkDegraded(agentID, reason string)
}

// Router validates, sequences, and delivers messages. It owns all mutation
// of the message store and the sequence state.
type Router struct {
	store          Store
	seq            *SequenceTracker
	status         StatusMarker // optional
	roster         func() []string
	maxMessageSize int
	logf           func(format string, args ...interface{})
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// Status receives degraded-agent notifications; nil disables them.
	Status StatusMarker

	// Roster supplies the known agent ids for Broadcast. nil falls back
	// to the agents present in the store.
	Roster func() []string

	// MaxMessageSize bounds content length in bytes; zero means no bound.
	MaxMessageSize int

	// Logf receives delivery warnings; nil discards them.
	Logf func(format string, args ...interface{})
}

// NewRouter creates a router over the given store and sequence tracker.
func NewRouter(store Store, seq *SequenceTracker, opts RouterOptions) *Router {
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Router{
		store:          store,
		seq:            seq,
		status:         opts.Status,
		roster:         opts.Roster,
		maxMessageSize: opts.MaxMessageSize,
		logf:           logf,
	}
}

// Send validates, sequences, and delivers one message, returning its id.
// Validation failures return a *ValidationError before any state is
// mutated: the sequence counter is untouched and nothing is written.
func (r *Router) Send(from, to, content string, mode Mode, priority int, metadata map[string]string) (string, error) {
	if err := ValidateAgentID(from); err != nil {
		return "", err
	}
	if err := ValidateAgentID(to); err != nil {
		return "", err
	}
	if !mode.Valid() {
		return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	if priority < MinPriority || priority > MaxPriority {
		return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("%d outside [%d,%d]", priority, MinPriority, MaxPriority)}
	}
	if content == "" {
		return "", &ValidationError{Field: "content", Reason: "empty"}
	}
	if r.maxMessageSize > 0 && len(content) > r.maxMessageSize {
		return "", &ValidationError{Field: "content", Reason: fmt.Sprintf("%d bytes exceeds limit %d", len(content), r.maxMessageSize)}
	}

	seq, err := r.seq.Next(from)
	if err != nil {
		return "", fmt.Errorf("assigning sequence: %w", err)
	}

	msg := NewMessage(from, to, content, mode, priority)
	msg.Sequence = seq
	msg.Metadata = metadata

	if err := r.store.Put(to, msg); err != nil {
		// The sequence is already consumed; it stays burned rather than
		// reused, preserving strict monotonicity.
		return "", fmt.Errorf("delivering to %s: %w", to, err)
	}

	return msg.ID, nil
}

// BroadcastResult reports per-recipient delivery outcomes.
type BroadcastResult struct {
	// Delivered maps recipient id to delivery success.
	Delivered map[string]bool

	// Errors holds the failure per unsuccessful recipient.
	Errors map[string]error
}

// Failed returns the recipients that did not receive the message, sorted.
func (b *BroadcastResult) Failed() []string {
	var failed []string
	for agent, ok := range b.Delivered {
		if !ok {
			failed = append(failed, agent)
		}
	}
	sort.Strings(failed)
	return failed
}

// OK reports whether every delivery succeeded.
func (b *BroadcastResult) OK() bool {
	return len(b.Errors) == 0
}

// Broadcast sends content to every known agent except the sender. Every
// recipient is attempted regardless of earlier failures; the result always
// reports each recipient. The returned error is non-nil if any delivery
// failed.
func (r *Router) Broadcast(from, content string, mode Mode, priority int) (*BroadcastResult, error) {
	result := &BroadcastResult{
		Delivered: make(map[string]bool),
		Errors:    make(map[string]error),
	}

	for _, agent := range r.recipients(from) {
		if _, err := r.Send(from, agent, content, mode, priority, nil); err != nil {
			result.Delivered[agent] = false
			result.Errors[agent] = err
			r.logf("broadcast: delivery to %s failed: %v", agent, err)
			continue
		}
		result.Delivered[agent] = true
	}

	if !result.OK() {
		return result, fmt.Errorf("broadcast failed for %s", strings.Join(result.Failed(), ", "))
	}
	return result, nil
}

func (r *Router) recipients(from string) []string {
	var agents []string
	if r.roster != nil {
		agents = r.roster()
	} else {
		stored, err := r.store.Agents()
		if err != nil {
			r.logf("broadcast: listing agents: %v", err)
		}
		agents = stored
	}

	var out []string
	for _, agent := range agents {
		if agent != from {
			out = append(out, agent)
		}
	}
	sort.Strings(out)
	return out
}

// Receive returns the agent's pending messages in delivery order (FIFO by
// sequence) and marks them delivered. Corrupt records are quarantined and
// the agent is flagged degraded; the remaining valid messages are still
// returned.
func (r *Router) Receive(agentID string) ([]*Message, error) {
	if err := ValidateAgentID(agentID); err != nil {
		return nil, err
	}

	msgs, quarantined, err := r.store.List(agentID)
	if err != nil {
		return nil, err
	}

	if quarantined > 0 && r.status != nil {
		r.status.MarkDegraded(agentID, fmt.Sprintf("%d corrupt mailbox record(s) quarantined", quarantined))
	}

	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Sequence < msgs[j].Sequence
	})

	for _, msg := range msgs {
		if msg.Status == StatusPending {
			msg.Status = StatusDelivered
			if err := r.store.Update(msg); err != nil {
				r.logf("receive: delivered write-back for %s failed: %v", msg.ID, err)
			}
		}
	}

	return msgs, nil
}

// Acknowledge marks a message acknowledged and relocates it to the
// processed archive. It is idempotent: acknowledging an already-removed or
// unknown message returns false without error.
func (r *Router) Acknowledge(id string) bool {
	msg, err := r.store.Find(id)
	if err != nil {
		return false
	}

	msg.Status = StatusAcknowledged
	if err := r.store.MoveToProcessed(msg); err != nil {
		r.logf("acknowledge: archiving %s failed: %v", id, err)
		return false
	}
	return true
}

// MarkProcessed moves a message to the processed archive, removing any
// duplicate inbox copy.
func (r *Router) MarkProcessed(msg *Message) error {
	msg.Status = StatusProcessed
	if err := r.store.MoveToProcessed(msg); err != nil {
		return fmt.Errorf("marking processed: %w", err)
	}
	return nil
}

// Cleanup removes processed and quarantined records older than maxAge.
// Transient deletion failures are retried a bounded number of times inside
// the store; records that cannot be removed are logged and skipped, so the
// caller is never blocked indefinitely.
func (r *Router) Cleanup(maxAge time.Duration) (int, error) {
	return r.store.PurgeArchives(time.Now().Add(-maxAge))
}
