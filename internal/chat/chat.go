// Package chat provides a pluggable prompt/response backend.
package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotConfigured is returned when no chat command is set.
var ErrNotConfigured = errors.New("no chat command configured")

// Backend answers a prompt. Implementations are expected to be slow;
// callers bound them with the context.
type Backend interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// ExecBackend shells out to a configured command, writing the prompt to
// its stdin and returning its stdout.
type ExecBackend struct {
	command string
}

// NewExecBackend creates a backend for the given shell command. An
// empty command yields a backend that always reports ErrNotConfigured.
func NewExecBackend(command string) *ExecBackend {
	return &ExecBackend{command: command}
}

// Respond runs the command with the prompt on stdin.
func (b *ExecBackend) Respond(ctx context.Context, prompt string) (string, error) {
	if b.command == "" {
		return "", ErrNotConfigured
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", b.command)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("running chat command: %w: %s", err, detail)
		}
		return "", fmt.Errorf("running chat command: %w", err)
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}
