package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/drovertools/drover/internal/recovery"
	"github.com/drovertools/drover/internal/style"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Inspect and reset agent recovery state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var recoverResetCmd = &cobra.Command{
	Use:   "reset <agent>",
	Short: "Clear an agent's permanent-failure state",
	Long: `Clear an agent's permanent-failure record and retry count so the
monitor resumes watching it. Run this after fixing whatever killed the
agent; nothing clears a permanent failure automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecoverReset,
}

var recoverHistoryCmd = &cobra.Command{
	Use:   "history [agent]",
	Short: "Show recovery attempts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRecoverHistory,
}

func init() {
	recoverCmd.AddCommand(recoverResetCmd)
	recoverCmd.AddCommand(recoverHistoryCmd)
	rootCmd.AddCommand(recoverCmd)
}

func (y *yard) coordinator() *recovery.Coordinator {
	return recovery.New(y.track, y.recoveryDir(), recovery.Options{
		Router:          y.router,
		MaxRetries:      y.cfg.MaxRetries,
		RetryCooldown:   y.cfg.RetryCooldown(),
		RestartCooldown: y.cfg.RestartCooldown(),
		InjectTimeout:   y.cfg.InjectTimeout(),
	})
}

func runRecoverReset(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	coord := y.coordinator()
	record, err := coord.FailureRecordFor(args[0])
	if err != nil {
		return err
	}
	if err := coord.Reset(args[0]); err != nil {
		return err
	}

	if record != nil {
		fmt.Printf("Cleared permanent failure for %s (failed %s after %d retries)\n",
			args[0], record.Timestamp.Format(time.RFC3339), record.RetryCount)
	} else {
		fmt.Printf("Reset %s\n", args[0])
	}
	return nil
}

func runRecoverHistory(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	agentID := ""
	if len(args) == 1 {
		agentID = args[0]
	}

	attempts, err := y.coordinator().History(agentID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Println("No recovery attempts recorded")
		return nil
	}

	tbl := style.NewTable(
		style.Column{Name: "Agent", Width: 16},
		style.Column{Name: "Attempt", Width: 8, Align: style.AlignRight},
		style.Column{Name: "Started", Width: 20},
		style.Column{Name: "Outcome", Width: 8},
		style.Column{Name: "Reason", Width: 40},
	)
	for _, a := range attempts {
		outcome := style.Apply(style.Healthy, string(a.Outcome))
		if a.Outcome == recovery.OutcomeFailure {
			outcome = style.Apply(style.Bad, string(a.Outcome))
		}
		tbl.AddRow(
			a.AgentID,
			fmt.Sprintf("%d", a.AttemptNumber),
			a.StartedAt.Format("2006-01-02 15:04:05"),
			outcome,
			a.Reason,
		)
	}
	fmt.Print(tbl.Render())
	return nil
}
