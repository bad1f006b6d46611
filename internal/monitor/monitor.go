// Package monitor polls agent heartbeats and escalates expired ones.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drovertools/drover/internal/status"
)

// IdleChecker reports whether an agent appears idle. An agent that is
// busy producing output has simply not checked in, so its heartbeat is
// refreshed instead of escalating.
type IdleChecker interface {
	IsIdle(ctx context.Context, agentID string) (bool, error)
}

// FailureHandler is called for each agent whose heartbeat has expired.
type FailureHandler func(agentID string, rec *status.Record)

// Monitor runs the heartbeat sweep. A detected failure is reported to
// the handler; deciding what to do about it is the coordinator's job.
type Monitor struct {
	tracker   *status.Tracker
	roster    func() []string
	timeout   time.Duration
	interval  time.Duration
	idle      IdleChecker
	onFailure FailureHandler
	logf      func(format string, args ...interface{})

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures a Monitor.
type Options struct {
	// Roster lists the agents to watch. Agents without a status record
	// are skipped until they register.
	Roster func() []string

	// Timeout is the heartbeat age past which an agent counts as failed.
	Timeout time.Duration

	// Interval is the poll period.
	Interval time.Duration

	// Idle is optional. When set, a busy agent gets a heartbeat refresh
	// instead of an escalation.
	Idle IdleChecker

	// OnFailure receives each expired agent.
	OnFailure FailureHandler

	// Logf receives monitor log lines.
	Logf func(format string, args ...interface{})
}

// New creates a heartbeat monitor.
func New(tracker *status.Tracker, opts Options) *Monitor {
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	roster := opts.Roster
	if roster == nil {
		roster = func() []string { return nil }
	}
	return &Monitor{
		tracker:   tracker,
		roster:    roster,
		timeout:   opts.Timeout,
		interval:  opts.Interval,
		idle:      opts.Idle,
		onFailure: opts.OnFailure,
		logf:      logf,
	}
}

// Start begins the poll loop. Call Stop to shut down.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.run(ctx)
}

// Stop shuts down the poll loop and waits for it to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce performs a single sweep over the roster. One broken agent
// never blocks the sweep for the rest.
func (m *Monitor) CheckOnce(ctx context.Context) {
	now := time.Now()
	for _, agentID := range m.roster() {
		if ctx.Err() != nil {
			return
		}
		m.checkAgent(ctx, agentID, now)
	}
}

func (m *Monitor) checkAgent(ctx context.Context, agentID string, now time.Time) {
	rec, err := m.tracker.Get(agentID)
	if err != nil {
		if errors.Is(err, status.ErrAgentNotFound) {
			return
		}
		m.logf("monitor: cannot read status for %s: %v", agentID, err)
		return
	}

	// Failed agents wait for manual reset. Recovering agents still get
	// events: that is what drives retry after a cooldown. The coordinator
	// drops duplicates while an attempt is in flight.
	if rec.State == status.StateFailed {
		return
	}

	if rec.HeartbeatAge(now) <= m.timeout {
		return
	}

	if m.idle != nil {
		idle, err := m.idle.IsIdle(ctx, agentID)
		if err != nil {
			m.logf("monitor: idle check for %s failed: %v", agentID, err)
		} else if !idle {
			// Heads-down but alive. Stamp the heartbeat so the next
			// sweep starts the clock fresh.
			if err := m.tracker.Heartbeat(agentID); err != nil {
				m.logf("monitor: cannot refresh heartbeat for %s: %v", agentID, err)
			}
			return
		}
	}

	m.logf("monitor: heartbeat expired for %s (last %s)", agentID, rec.LastHeartbeat.Format(time.RFC3339))
	if m.onFailure != nil {
		m.onFailure(agentID, rec)
	}
}
