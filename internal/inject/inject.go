// Package inject delivers prompts into running agent sessions.
package inject

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drovertools/drover/internal/tmux"
)

// ErrNoSession is returned when the target agent has no live session.
var ErrNoSession = errors.New("agent session not found")

// Injector delivers text to an agent so it lands as input in the
// agent's session.
type Injector interface {
	Inject(ctx context.Context, agentID, text string) error
}

// IdleChecker reports whether an agent's session appears idle.
type IdleChecker interface {
	IsIdle(ctx context.Context, agentID string) (bool, error)
}

// Idle-detection sampling parameters. Two identical pane captures this
// far apart mean nothing is being written.
const (
	idleSampleGap   = 2 * time.Second
	idleSampleLines = 40
)

// TmuxInjector drives agent sessions through tmux. Session names are
// the configured prefix plus the agent id.
type TmuxInjector struct {
	tmux   *tmux.Tmux
	prefix string
}

// NewTmuxInjector creates an injector with the given session prefix.
func NewTmuxInjector(prefix string) *TmuxInjector {
	return &TmuxInjector{tmux: tmux.NewTmux(), prefix: prefix}
}

// SessionName returns the tmux session name for an agent.
func (inj *TmuxInjector) SessionName(agentID string) string {
	return inj.prefix + agentID
}

// Inject types the text into the agent's session and presses Enter.
func (inj *TmuxInjector) Inject(ctx context.Context, agentID, text string) error {
	session := inj.SessionName(agentID)

	running, err := inj.tmux.HasSession(ctx, session)
	if err != nil {
		return fmt.Errorf("checking session for %s: %w", agentID, err)
	}
	if !running {
		return fmt.Errorf("%w: %s", ErrNoSession, session)
	}

	if err := inj.tmux.SendKeysLiteral(ctx, session, text); err != nil {
		return fmt.Errorf("injecting into %s: %w", session, err)
	}
	if err := inj.tmux.SendEnter(ctx, session); err != nil {
		return fmt.Errorf("submitting input to %s: %w", session, err)
	}
	return nil
}

// IsIdle samples the pane twice and reports idle when the content is
// stable. A missing session counts as idle: nothing is producing output.
func (inj *TmuxInjector) IsIdle(ctx context.Context, agentID string) (bool, error) {
	session := inj.SessionName(agentID)

	running, err := inj.tmux.HasSession(ctx, session)
	if err != nil {
		return false, fmt.Errorf("checking session for %s: %w", agentID, err)
	}
	if !running {
		return true, nil
	}

	first, err := inj.tmux.CapturePane(ctx, session, idleSampleLines)
	if err != nil {
		return false, fmt.Errorf("capturing pane for %s: %w", agentID, err)
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(idleSampleGap):
	}

	second, err := inj.tmux.CapturePane(ctx, session, idleSampleLines)
	if err != nil {
		return false, fmt.Errorf("capturing pane for %s: %w", agentID, err)
	}

	return strings.TrimRight(first, "\n") == strings.TrimRight(second, "\n"), nil
}
