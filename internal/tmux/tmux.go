// Package tmux wraps the tmux CLI for agent session control.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Tmux runs tmux commands. The zero value is not usable; call NewTmux.
type Tmux struct {
	bin string
}

// NewTmux returns a client using the tmux binary on PATH.
func NewTmux() *Tmux {
	return &Tmux{bin: "tmux"}
}

func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, t.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("tmux %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// HasSession reports whether the named session exists.
func (t *Tmux) HasSession(ctx context.Context, session string) (bool, error) {
	// The = prefix forces an exact match instead of prefix matching.
	cmd := exec.CommandContext(ctx, t.bin, "has-session", "-t", "="+session)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("tmux has-session: %w", err)
	}
	return true, nil
}

// ListSessions returns the names of all sessions. A stopped tmux server
// is reported as no sessions, not an error.
func (t *Tmux) ListSessions(ctx context.Context) ([]string, error) {
	out, err := t.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if strings.Contains(err.Error(), "no server running") {
			return nil, nil
		}
		return nil, err
	}

	var sessions []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			sessions = append(sessions, line)
		}
	}
	return sessions, nil
}

// NewSession creates a detached session. An empty command starts the
// default shell; startDir may be empty.
func (t *Tmux) NewSession(ctx context.Context, session, startDir, command string) error {
	args := []string{"new-session", "-d", "-s", session}
	if startDir != "" {
		args = append(args, "-c", startDir)
	}
	if command != "" {
		args = append(args, command)
	}
	_, err := t.run(ctx, args...)
	return err
}

// KillSession terminates the named session.
func (t *Tmux) KillSession(ctx context.Context, session string) error {
	_, err := t.run(ctx, "kill-session", "-t", "="+session)
	return err
}

// SendKeysLiteral types text into the session without interpreting key
// names, and without a trailing Enter.
func (t *Tmux) SendKeysLiteral(ctx context.Context, session, text string) error {
	_, err := t.run(ctx, "send-keys", "-t", session, "-l", text)
	return err
}

// SendEnter presses Enter in the session.
func (t *Tmux) SendEnter(ctx context.Context, session string) error {
	_, err := t.run(ctx, "send-keys", "-t", session, "Enter")
	return err
}

// CapturePane returns the last lines of the session's active pane.
func (t *Tmux) CapturePane(ctx context.Context, session string, lines int) (string, error) {
	return t.run(ctx, "capture-pane", "-p", "-t", session, "-S", fmt.Sprintf("-%d", lines))
}
