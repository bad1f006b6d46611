// Package daemon runs the yard orchestrator: it wires the mailbox,
// status tracker, heartbeat monitor, and recovery coordinator together
// and supervises them until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"github.com/drovertools/drover/internal/config"
	"github.com/drovertools/drover/internal/constants"
	"github.com/drovertools/drover/internal/inject"
	"github.com/drovertools/drover/internal/mailbox"
	"github.com/drovertools/drover/internal/monitor"
	"github.com/drovertools/drover/internal/onboard"
	"github.com/drovertools/drover/internal/recovery"
	"github.com/drovertools/drover/internal/status"
)

// Common errors.
var (
	ErrAlreadyRunning = errors.New("daemon already running")
	ErrNotRunning     = errors.New("daemon not running")
)

// Daemon is the yard-level background service. Everything it needs is
// constructed once here and passed by reference; there is no global
// mutable state.
type Daemon struct {
	yardRoot string
	cfg      *config.Config
	logger   *log.Logger
	logFile  *os.File

	store   *mailbox.FileStore
	seq     *mailbox.SequenceTracker
	track   *status.Tracker
	router  *mailbox.Router
	coord   *recovery.Coordinator
	mon     *monitor.Monitor
	watcher *mailbox.Watcher
	onb     onboard.Onboarder
	cron    *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a daemon for the yard. Config-load failure is fatal here;
// a daemon running on guessed settings is worse than no daemon.
// logFileOverride may be empty to use the default daemon/daemon.log.
func New(yardRoot, logFileOverride string) (*Daemon, error) {
	cfg, err := config.Load(yardRoot)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logPath := logFileOverride
	if logPath == "" {
		logPath = filepath.Join(yardRoot, constants.DirDaemon, constants.DaemonLogFile)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("creating daemon directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := log.New(logFile, "", log.LstdFlags)
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		yardRoot: yardRoot,
		cfg:      cfg,
		logger:   logger,
		logFile:  logFile,
		ctx:      ctx,
		cancel:   cancel,
	}
	d.wire()
	return d, nil
}

// wire constructs the component graph.
func (d *Daemon) wire() {
	logf := d.logger.Printf
	mailboxDir := filepath.Join(d.yardRoot, constants.DirMailbox)

	d.store = mailbox.NewFileStore(mailboxDir, logf)
	d.seq = mailbox.NewSequenceTracker(mailboxDir, logf)
	d.track = status.NewTracker(filepath.Join(d.yardRoot, constants.DirStatus), logf)
	d.router = mailbox.NewRouter(d.store, d.seq, mailbox.RouterOptions{
		Roster:         d.roster,
		Status:         d.track,
		MaxMessageSize: d.cfg.MaxMessageSize,
		Logf:           logf,
	})

	injector := inject.NewTmuxInjector(d.cfg.Tmux.SessionPrefix)
	d.coord = recovery.New(d.track, filepath.Join(d.yardRoot, constants.DirRecovery), recovery.Options{
		Injector:        injector,
		Router:          d.router,
		MaxRetries:      d.cfg.MaxRetries,
		RetryCooldown:   d.cfg.RetryCooldown(),
		RestartCooldown: d.cfg.RestartCooldown(),
		InjectTimeout:   d.cfg.InjectTimeout(),
		Logf:            logf,
	})
	d.mon = monitor.New(d.track, monitor.Options{
		Roster:    d.roster,
		Timeout:   d.cfg.HeartbeatTimeout(),
		Interval:  d.cfg.PollInterval(),
		Idle:      injector,
		OnFailure: d.coord.HandleFailure,
		Logf:      logf,
	})
	d.onb = onboard.New(d.store, d.track, d.router, logf)
}

func (d *Daemon) roster() []string {
	return d.cfg.Agents
}

// Run starts the daemon and blocks until shutdown. Returns
// ErrAlreadyRunning when another daemon holds the yard lock.
func (d *Daemon) Run() error {
	d.logger.Printf("daemon starting (pid %d)", os.Getpid())
	defer d.logFile.Close()

	// The flock is the authoritative singleton guard; the pid file is
	// informational for status checks.
	lockPath := filepath.Join(d.yardRoot, constants.DirDaemon, constants.DaemonLockFile)
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring daemon lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	defer func() { _ = fileLock.Unlock() }()

	pidPath := filepath.Join(d.yardRoot, constants.DirDaemon, constants.DaemonPIDFile)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	if err := d.store.EnsureLayout(); err != nil {
		return fmt.Errorf("preparing mailbox layout: %w", err)
	}

	// Onboard the configured roster up front so every agent has a
	// mailbox and a status record before the first sweep.
	for _, agentID := range d.cfg.Agents {
		if err := d.onb.Onboard(d.ctx, agentID); err != nil {
			d.logger.Printf("onboarding %s failed: %v", agentID, err)
		}
	}

	d.coord.Start(d.ctx)
	d.mon.Start(d.ctx)

	watcher, err := mailbox.NewWatcher(filepath.Join(d.yardRoot, constants.DirMailbox), d.logger.Printf)
	if err != nil {
		d.logger.Printf("mailbox watcher unavailable, polling only: %v", err)
	} else {
		d.watcher = watcher
		d.watcher.Run(d.ctx)
	}

	d.cron = cron.New()
	if _, err := d.cron.AddFunc(d.cfg.CleanupSchedule, d.runCleanup); err != nil {
		d.logger.Printf("invalid cleanup_schedule %q, cleanup disabled: %v", d.cfg.CleanupSchedule, err)
	} else {
		d.cron.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	d.logger.Printf("daemon running: %d agents, heartbeat timeout %s, poll every %s",
		len(d.cfg.Agents), d.cfg.HeartbeatTimeout(), d.cfg.PollInterval())

	var events <-chan mailbox.Event
	if d.watcher != nil {
		events = d.watcher.Events()
	}

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Printf("context canceled, shutting down")
			return d.shutdown()

		case sig := <-sigChan:
			d.logger.Printf("received signal %v, shutting down", sig)
			return d.shutdown()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.handleEvent(ev)
		}
	}
}

// Stop requests shutdown from another goroutine.
func (d *Daemon) Stop() {
	d.cancel()
}

// handleEvent reacts to mailbox filesystem activity: new directories
// trigger onboarding, message writes count as a sign of life from the
// sender.
func (d *Daemon) handleEvent(ev mailbox.Event) {
	switch ev.Kind {
	case mailbox.AgentDirCreated:
		d.logger.Printf("new mailbox directory for %s, onboarding", ev.AgentID)
		if err := d.onb.Onboard(d.ctx, ev.AgentID); err != nil {
			d.logger.Printf("onboarding %s failed: %v", ev.AgentID, err)
		}

	case mailbox.MessageWritten:
		msg, err := mailbox.ReadMessageFile(ev.Path)
		if err != nil {
			// Quarantine happens on the next List; nothing to do here.
			return
		}
		if msg.From == mailbox.SystemSender {
			return
		}
		if err := d.track.Heartbeat(msg.From); err != nil {
			d.logger.Printf("heartbeat refresh for %s failed: %v", msg.From, err)
		}
	}
}

func (d *Daemon) runCleanup() {
	removed, err := d.router.Cleanup(d.cfg.MaxAge())
	if err != nil {
		d.logger.Printf("cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		d.logger.Printf("cleanup removed %d archived records", removed)
	}
}

// shutdown stops every component within the grace period. A component
// that will not stop in time is abandoned rather than allowed to hang
// the exit.
func (d *Daemon) shutdown() error {
	d.logger.Printf("daemon shutting down")
	d.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if d.cron != nil {
			<-d.cron.Stop().Done()
		}
		d.mon.Stop()
		d.coord.Stop()
		if d.watcher != nil {
			if err := d.watcher.Close(); err != nil {
				d.logger.Printf("closing watcher: %v", err)
			}
		}
	}()

	select {
	case <-done:
		d.logger.Printf("daemon stopped")
		return nil
	case <-time.After(constants.ShutdownGracePeriod):
		d.logger.Printf("shutdown grace period expired, exiting anyway")
		return nil
	}
}

// IsRunning reports whether a daemon is running for the yard, and its
// pid. The pid file plus a liveness probe; the flock in Run is the
// authoritative duplicate guard.
func IsRunning(yardRoot string) (bool, int, error) {
	pidPath := filepath.Join(yardRoot, constants.DirDaemon, constants.DaemonPIDFile)
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("reading pid file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return false, 0, fmt.Errorf("invalid pid in file %q: %w", pidStr, err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0, nil
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, pid, nil
	}
	return true, pid, nil
}
