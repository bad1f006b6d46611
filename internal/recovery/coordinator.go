package recovery

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drovertools/drover/internal/constants"
	"github.com/drovertools/drover/internal/inject"
	"github.com/drovertools/drover/internal/mailbox"
	"github.com/drovertools/drover/internal/status"
	"github.com/drovertools/drover/internal/util"
)

// Coordinator consumes failure events and attempts to bring agents
// back. State machine per agent: healthy -> recovering -> healthy on
// success, recovering again after cooldown on failure, failed once the
// retry budget is exhausted. Failed is terminal until Reset.
type Coordinator struct {
	track    *status.Tracker
	injector inject.Injector
	router   *mailbox.Router
	dir      string
	logf     func(format string, args ...interface{})

	maxRetries      int
	retryCooldown   time.Duration
	restartCooldown time.Duration
	injectTimeout   time.Duration

	mu         sync.Mutex
	inProgress map[string]bool

	logMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures a Coordinator.
type Options struct {
	// Injector delivers recovery prompts. Optional; without one every
	// attempt goes straight to the mailbox-nudge fallback.
	Injector inject.Injector

	// Router sends the fallback nudge. Optional.
	Router *mailbox.Router

	// MaxRetries bounds automatic attempts per outage.
	MaxRetries int

	// RetryCooldown is the minimum gap between attempts for one agent.
	RetryCooldown time.Duration

	// RestartCooldown is the quiet period after a successful restart.
	RestartCooldown time.Duration

	// InjectTimeout bounds a single injector call.
	InjectTimeout time.Duration

	// Logf receives coordinator log lines.
	Logf func(format string, args ...interface{})
}

// New creates a coordinator writing attempt and failure records under
// recoveryDir.
func New(track *status.Tracker, recoveryDir string, opts Options) *Coordinator {
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Coordinator{
		track:           track,
		injector:        opts.Injector,
		router:          opts.Router,
		dir:             recoveryDir,
		logf:            logf,
		maxRetries:      opts.MaxRetries,
		retryCooldown:   opts.RetryCooldown,
		restartCooldown: opts.RestartCooldown,
		injectTimeout:   opts.InjectTimeout,
		inProgress:      make(map[string]bool),
	}
}

// Start prepares the coordinator for asynchronous HandleFailure calls.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
}

// Stop cancels in-flight attempts (best effort; a running collaborator
// call finishes or times out) and waits for them.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// HandleFailure is the monitor's escalation target. The attempt runs in
// its own goroutine so one slow collaborator call never stalls the
// sweep or other agents' recoveries.
func (c *Coordinator) HandleFailure(agentID string, _ *status.Record) {
	if c.ctx == nil || c.ctx.Err() != nil {
		return
	}
	if !c.begin(agentID) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.end(agentID)
		c.attempt(c.ctx, agentID)
	}()
}

// Recover runs one synchronous recovery attempt, honoring the same
// single-flight, cooldown, and retry-budget guards as HandleFailure.
func (c *Coordinator) Recover(ctx context.Context, agentID string) error {
	if !c.begin(agentID) {
		return nil
	}
	defer c.end(agentID)
	return c.attempt(ctx, agentID)
}

// begin claims the single-flight slot for an agent.
func (c *Coordinator) begin(agentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inProgress[agentID] {
		return false
	}
	c.inProgress[agentID] = true
	return true
}

func (c *Coordinator) end(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inProgress, agentID)
}

// attempt runs the recovery state machine for one failure event. The
// status lock is never held across the collaborator call.
func (c *Coordinator) attempt(ctx context.Context, agentID string) error {
	now := time.Now()

	rec, err := c.track.Get(agentID)
	if err != nil {
		c.logf("recovery: cannot read status for %s: %v", agentID, err)
		return err
	}

	// Terminal: failed agents wait for an operator Reset.
	if rec.State == status.StateFailed {
		return nil
	}

	// Cooldown drop, not queue. The next heartbeat failure re-triggers.
	if rec.InCooldown(now) {
		c.logf("recovery: %s in retry cooldown until %s, dropping event", agentID, rec.CooldownUntil.Format(time.RFC3339))
		return nil
	}
	if rec.LastRestartAt != nil && now.Sub(*rec.LastRestartAt) < c.restartCooldown {
		c.logf("recovery: %s restarted %s ago, dropping event", agentID, now.Sub(*rec.LastRestartAt).Round(time.Second))
		return nil
	}

	// Retry budget exhausted without a successful attempt in between.
	if rec.RetryCount >= c.maxRetries {
		return c.failPermanently(agentID, rec.RetryCount, "retry limit exceeded")
	}

	rec, err = c.track.Mutate(agentID, func(r *status.Record) {
		r.RetryCount++
		r.State = status.StateRecovering
	})
	if err != nil {
		c.logf("recovery: cannot mark %s recovering: %v", agentID, err)
		return err
	}
	attemptNumber := rec.RetryCount

	c.logf("recovery: attempt %d/%d for %s", attemptNumber, c.maxRetries, agentID)
	started := time.Now()
	injectErr := c.deliver(ctx, agentID)

	if injectErr == nil {
		_, err = c.track.Mutate(agentID, func(r *status.Record) {
			r.State = status.StateActive
			r.RetryCount = 0
			r.ErrorMessage = ""
			r.CooldownUntil = nil
			restartedAt := time.Now()
			r.LastRestartAt = &restartedAt
			r.LastHeartbeat = restartedAt
		})
		if err != nil {
			c.logf("recovery: cannot record success for %s: %v", agentID, err)
		}
		c.appendAttempt(Attempt{
			ID:            uuid.New().String(),
			AgentID:       agentID,
			AttemptNumber: attemptNumber,
			StartedAt:     started,
			FinishedAt:    time.Now(),
			Outcome:       OutcomeSuccess,
		})
		c.logf("recovery: %s recovered on attempt %d", agentID, attemptNumber)
		return nil
	}

	c.logf("recovery: attempt %d for %s failed: %v", attemptNumber, agentID, injectErr)
	c.appendAttempt(Attempt{
		ID:            uuid.New().String(),
		AgentID:       agentID,
		AttemptNumber: attemptNumber,
		StartedAt:     started,
		FinishedAt:    time.Now(),
		Outcome:       OutcomeFailure,
		Reason:        injectErr.Error(),
	})

	if attemptNumber >= c.maxRetries {
		return c.failPermanently(agentID, attemptNumber, injectErr.Error())
	}

	_, err = c.track.Mutate(agentID, func(r *status.Record) {
		until := time.Now().Add(c.retryCooldown)
		r.CooldownUntil = &until
		r.ErrorMessage = injectErr.Error()
	})
	if err != nil {
		c.logf("recovery: cannot record failure for %s: %v", agentID, err)
	}
	return injectErr
}

// deliver tries the injector first, the mailbox nudge second. A fallback
// failure is logged, never raised past the attempt.
func (c *Coordinator) deliver(ctx context.Context, agentID string) error {
	prompt := fmt.Sprintf("Heartbeat check failed for %s. Check your inbox and resume reporting.", agentID)

	var injectErr error
	if c.injector != nil {
		attemptCtx := ctx
		if c.injectTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.injectTimeout)
			defer cancel()
		}
		injectErr = c.injector.Inject(attemptCtx, agentID, prompt)
		if injectErr == nil {
			return nil
		}
	} else {
		injectErr = fmt.Errorf("no injector configured")
	}

	if c.router != nil {
		if _, err := c.router.Send(mailbox.SystemSender, agentID, prompt, mailbox.ModeSystem, 3, nil); err != nil {
			c.logf("recovery: fallback nudge to %s failed: %v", agentID, err)
		} else {
			c.logf("recovery: fell back to mailbox nudge for %s", agentID)
		}
	}
	return injectErr
}

// failPermanently marks the agent failed, writes the durable failure
// record, and logs a closing attempt entry. No further injects happen
// for this agent until Reset.
func (c *Coordinator) failPermanently(agentID string, retryCount int, reason string) error {
	_, err := c.track.Mutate(agentID, func(r *status.Record) {
		r.State = status.StateFailed
		r.ErrorMessage = reason
		r.CooldownUntil = nil
	})
	if err != nil {
		c.logf("recovery: cannot mark %s failed: %v", agentID, err)
	}

	record := FailureRecord{
		AgentID:    agentID,
		Timestamp:  time.Now(),
		RetryCount: retryCount,
		Status:     PermanentFailureStatus,
	}
	if err := util.AtomicWriteJSON(FailureRecordPath(c.dir, agentID), record); err != nil {
		c.logf("recovery: cannot write failure record for %s: %v", agentID, err)
	}

	c.logf("recovery: %s permanently failed after %d attempts: %s", agentID, retryCount, reason)
	return fmt.Errorf("agent %s permanently failed: %s", agentID, reason)
}

// Reset clears an agent's permanent failure so automatic recovery can
// resume. This is the manual operator action behind 'drover recover reset'.
func (c *Coordinator) Reset(agentID string) error {
	if err := mailbox.ValidateAgentID(agentID); err != nil {
		return err
	}

	if err := os.Remove(FailureRecordPath(c.dir, agentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing failure record: %w", err)
	}

	_, err := c.track.Mutate(agentID, func(r *status.Record) {
		r.State = status.StateIdle
		r.RetryCount = 0
		r.CooldownUntil = nil
		r.ErrorMessage = ""
		r.LastHeartbeat = time.Now()
	})
	if err != nil {
		return fmt.Errorf("resetting status for %s: %w", agentID, err)
	}

	c.logf("recovery: %s reset by operator", agentID)
	return nil
}

// FailureRecordFor returns the permanent-failure record for an agent,
// or nil when none exists.
func (c *Coordinator) FailureRecordFor(agentID string) (*FailureRecord, error) {
	data, err := os.ReadFile(FailureRecordPath(c.dir, agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading failure record: %w", err)
	}
	var record FailureRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parsing failure record: %w", err)
	}
	return &record, nil
}

// History returns the attempt log for one agent, oldest first. Corrupt
// lines are skipped.
func (c *Coordinator) History(agentID string) ([]Attempt, error) {
	f, err := os.Open(filepath.Join(c.dir, constants.AttemptLogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening attempt log: %w", err)
	}
	defer f.Close()

	var attempts []Attempt
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var a Attempt
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			continue
		}
		if agentID == "" || a.AgentID == agentID {
			attempts = append(attempts, a)
		}
	}
	if err := scanner.Err(); err != nil {
		return attempts, fmt.Errorf("reading attempt log: %w", err)
	}
	return attempts, nil
}

// appendAttempt writes one closed attempt record to attempts.jsonl.
func (c *Coordinator) appendAttempt(a Attempt) {
	c.logMu.Lock()
	defer c.logMu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		c.logf("recovery: cannot create recovery dir: %v", err)
		return
	}

	f, err := os.OpenFile(filepath.Join(c.dir, constants.AttemptLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		c.logf("recovery: cannot open attempt log: %v", err)
		return
	}
	defer f.Close()

	line, err := json.Marshal(a)
	if err != nil {
		c.logf("recovery: cannot encode attempt: %v", err)
		return
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		c.logf("recovery: cannot append attempt: %v", err)
	}
}
