package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/drovertools/drover/internal/config"
	"github.com/drovertools/drover/internal/constants"
	"github.com/drovertools/drover/internal/mailbox"
)

var initAgents []string

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a new yard",
	Long: `Create a new yard in the given directory (default: current directory).

Writes drover.toml with default settings and creates the mailbox,
status, recovery, and daemon directories.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringSliceVar(&initAgents, "agents", nil, "Initial agent roster (comma-separated)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	if _, err := os.Stat(config.Path(root)); err == nil {
		return fmt.Errorf("%s is already a yard", root)
	}

	for _, agentID := range initAgents {
		if err := mailbox.ValidateAgentID(agentID); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("creating yard directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Agents = initAgents
	if err := config.Save(root, cfg); err != nil {
		return err
	}

	for _, sub := range []string{
		constants.DirMailbox,
		filepath.Join(constants.DirMailbox, constants.DirInbox),
		filepath.Join(constants.DirMailbox, constants.DirProcessed),
		filepath.Join(constants.DirMailbox, constants.DirQuarantine),
		constants.DirStatus,
		constants.DirRecovery,
		constants.DirDaemon,
	} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", sub, err)
		}
	}

	fmt.Printf("Initialized yard in %s\n", root)
	if len(initAgents) > 0 {
		fmt.Printf("Roster: %v\n", initAgents)
	}
	fmt.Println("Start the orchestrator with 'drover daemon start'.")
	return nil
}
