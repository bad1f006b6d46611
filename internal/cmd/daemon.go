package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drovertools/drover/internal/constants"
	"github.com/drovertools/drover/internal/daemon"
	"github.com/drovertools/drover/internal/workspace"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the yard orchestrator",
	Long: `Manage the background orchestrator for this yard.

The daemon onboards agents, watches heartbeats, runs recovery for dead
agents, and cleans up old mailbox archives on a schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runDaemonStart,
}

var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the daemon in the foreground (internal)",
	Hidden: true,
	RunE:   runDaemonRun,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runDaemonStatus,
}

var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the daemon log",
	RunE:  runDaemonLogs,
}

var (
	daemonLogFile  string
	daemonLogLines int
)

func init() {
	daemonRunCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: daemon/daemon.log)")
	daemonLogsCmd.Flags().IntVarP(&daemonLogLines, "lines", "n", 50, "Number of lines to show")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonRunCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	yardRoot, err := workspace.FindFromCwdOrError()
	if err != nil {
		return err
	}

	running, pid, err := daemon.IsRunning(yardRoot)
	if err != nil {
		return fmt.Errorf("checking daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding executable: %w", err)
	}

	child := exec.Command(exe, "daemon", "run")
	child.Dir = yardRoot
	child.Stdin = nil
	child.Stdout = nil
	child.Stderr = nil
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	// The child re-acquires the yard lock itself; losing the race to a
	// concurrent start is fine.
	_ = child.Process.Release()

	fmt.Printf("Daemon starting (pid %d)\n", child.Process.Pid)
	return nil
}

func runDaemonRun(cmd *cobra.Command, args []string) error {
	yardRoot, err := workspace.FindFromCwdOrError()
	if err != nil {
		return err
	}

	d, err := daemon.New(yardRoot, daemonLogFile)
	if err != nil {
		return err
	}
	if err := d.Run(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("daemon already running in %s", yardRoot)
		}
		return err
	}
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	yardRoot, err := workspace.FindFromCwdOrError()
	if err != nil {
		return err
	}

	running, pid, err := daemon.IsRunning(yardRoot)
	if err != nil {
		return fmt.Errorf("checking daemon status: %w", err)
	}
	if !running {
		return daemon.ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding daemon process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling daemon: %w", err)
	}

	// Wait for the pid file to disappear, bounded by the daemon's own
	// shutdown grace period.
	deadline := time.Now().Add(constants.ShutdownGracePeriod + 2*time.Second)
	for time.Now().Before(deadline) {
		if running, _, _ := daemon.IsRunning(yardRoot); !running {
			fmt.Println("Daemon stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) did not stop within the grace period", pid)
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	yardRoot, err := workspace.FindFromCwdOrError()
	if err != nil {
		return err
	}

	running, pid, err := daemon.IsRunning(yardRoot)
	if err != nil {
		return fmt.Errorf("checking daemon status: %w", err)
	}
	if running {
		fmt.Printf("Daemon running (pid %d)\n", pid)
	} else {
		fmt.Println("Daemon not running")
	}
	return nil
}

func runDaemonLogs(cmd *cobra.Command, args []string) error {
	yardRoot, err := workspace.FindFromCwdOrError()
	if err != nil {
		return err
	}

	logPath := filepath.Join(yardRoot, constants.DirDaemon, constants.DaemonLogFile)
	data, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No daemon log yet")
			return nil
		}
		return fmt.Errorf("reading daemon log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > daemonLogLines {
		lines = lines[len(lines)-daemonLogLines:]
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
