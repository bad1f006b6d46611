// Package onboard brings newly seen agents into the fleet.
package onboard

import (
	"context"
	"fmt"

	"github.com/drovertools/drover/internal/mailbox"
	"github.com/drovertools/drover/internal/status"
)

// Onboarder prepares a newly discovered agent.
type Onboarder interface {
	Onboard(ctx context.Context, agentID string) error
}

// Default creates the agent's mailbox directory, seeds its status
// record, and sends a welcome message.
type Default struct {
	store  *mailbox.FileStore
	track  *status.Tracker
	router *mailbox.Router
	logf   func(format string, args ...interface{})
}

// New creates the default onboarder.
func New(store *mailbox.FileStore, track *status.Tracker, router *mailbox.Router, logf func(format string, args ...interface{})) *Default {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Default{store: store, track: track, router: router, logf: logf}
}

// Onboard is idempotent; running it twice for the same agent changes
// nothing but sends another welcome.
func (o *Default) Onboard(ctx context.Context, agentID string) error {
	if err := mailbox.ValidateAgentID(agentID); err != nil {
		return err
	}

	if err := o.store.EnsureAgent(agentID); err != nil {
		return fmt.Errorf("creating mailbox for %s: %w", agentID, err)
	}
	if _, err := o.track.Register(agentID); err != nil {
		return fmt.Errorf("registering %s: %w", agentID, err)
	}

	welcome := fmt.Sprintf("Welcome to the yard, %s. Check your inbox with 'drover inbox %s'.", agentID, agentID)
	if _, err := o.router.Send(mailbox.SystemSender, agentID, welcome, mailbox.ModeSystem, 2, nil); err != nil {
		// The agent is registered either way; a lost welcome is not
		// worth failing onboarding over.
		o.logf("onboard: welcome to %s failed: %v", agentID, err)
	}

	o.logf("onboard: agent %s joined", agentID)
	return nil
}
