// Package mailbox implements the durable, sequenced, per-agent message
// mailbox: a file-backed store with a global monotonic sequence, and a
// router that validates, sequences, and delivers messages.
//
// Layout under the yard root:
//
//	mailbox/<agent_id>/<seq>_<id>.json            per-agent active messages
//	mailbox/inbox/msg_<seq>_<from>_to_<to>.json   global ordered index
//	mailbox/processed/*.json                      immutable archive
//	mailbox/quarantine/*.json                     corrupt records set aside
//	mailbox/sequence.json                         sequence counter state
package mailbox

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Mode classifies a message. The set is closed: senders and the router
// share this one enumeration, and validation matches it exhaustively.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModePriority Mode = "priority"
	ModeBulk     Mode = "bulk"
	ModeSystem   Mode = "system"
	ModeSelfTest Mode = "selftest"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeNormal, ModePriority, ModeBulk, ModeSystem, ModeSelfTest:
		return true
	}
	return false
}

// ParseMode parses a mode string. Unknown modes are an error, not a
// default: a bogus mode must reject the send without consuming a sequence.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
	return m, nil
}

// Priority bounds.
const (
	MinPriority = 0
	MaxPriority = 5
)

// SystemSender is the from-agent on coordinator-originated messages
// (welcomes, recovery nudges).
const SystemSender = "drover"

// MessageStatus tracks a message through its lifecycle. Once a message
// reaches StatusAcknowledged or StatusProcessed it is immutable and lives
// in the processed archive, not the active inbox.
type MessageStatus string

const (
	StatusPending      MessageStatus = "pending"
	StatusDelivered    MessageStatus = "delivered"
	StatusAcknowledged MessageStatus = "acknowledged"
	StatusProcessed    MessageStatus = "processed"
	StatusTimeout      MessageStatus = "timeout"
)

// Message is a single mailbox message.
type Message struct {
	ID        string            `json:"id"`
	From      string            `json:"from_agent"`
	To        string            `json:"to_agent"`
	Content   string            `json:"content"`
	Mode      Mode              `json:"mode"`
	Priority  int               `json:"priority"`
	Status    MessageStatus     `json:"status"`
	Sequence  int64             `json:"sequence"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewMessage creates a pending message with a generated id and the current
// timestamp. The sequence is assigned by the router at send time.
func NewMessage(from, to, content string, mode Mode, priority int) *Message {
	return &Message{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Content:   content,
		Mode:      mode,
		Priority:  priority,
		Status:    StatusPending,
		Timestamp: time.Now(),
	}
}

// agentIDRe is the allowed identifier pattern: leading alphanumeric, then
// alphanumerics, underscore, dot, or dash, max 64 chars total.
var agentIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateAgentID checks an agent identifier against the allowed pattern.
func ValidateAgentID(id string) error {
	if id == "" {
		return &ValidationError{Field: "agent_id", Reason: "empty"}
	}
	if !agentIDRe.MatchString(id) {
		return &ValidationError{Field: "agent_id", Reason: fmt.Sprintf("%q does not match allowed pattern", id)}
	}
	return nil
}

// ValidationError describes a precondition failure. Validation errors are
// rejected synchronously and never mutate mailbox state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a validation rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrMessageNotFound indicates a message id that is not in the active set.
var ErrMessageNotFound = errors.New("message not found")

// CorruptRecordError describes an unreadable record that was quarantined.
type CorruptRecordError struct {
	Path string
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record %s: %v", e.Path, e.Err)
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}
