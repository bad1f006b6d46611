package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/drovertools/drover/internal/status"
	"github.com/drovertools/drover/internal/style"
)

var statusCmd = &cobra.Command{
	Use:   "status [agent]",
	Short: "Show agent status",
	Long: `Show the lifecycle state, heartbeat age, and retry count for every
agent, or for one agent in detail.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return statusDetail(y, args[0])
	}

	records, err := y.track.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No agents yet. Start the daemon or send a message to onboard some.")
		return nil
	}

	now := time.Now()
	tbl := style.NewTable(
		style.Column{Name: "Agent", Width: 16},
		style.Column{Name: "State", Width: 14},
		style.Column{Name: "Heartbeat", Width: 10, Align: style.AlignRight},
		style.Column{Name: "Retries", Width: 8, Align: style.AlignRight},
		style.Column{Name: "Error", Width: 32},
	)
	for _, rec := range records {
		tbl.AddRow(
			rec.AgentID,
			style.Apply(stateStyle(rec.State), rec.State.Label()),
			formatAge(rec.HeartbeatAge(now)),
			fmt.Sprintf("%d", rec.RetryCount),
			rec.ErrorMessage,
		)
	}
	fmt.Print(tbl.Render())
	return nil
}

func statusDetail(y *yard, agentID string) error {
	rec, err := y.track.Get(agentID)
	if err != nil {
		return err
	}

	fmt.Printf("Agent:      %s\n", rec.AgentID)
	fmt.Printf("State:      %s\n", style.Apply(stateStyle(rec.State), rec.State.Label()))
	fmt.Printf("Heartbeat:  %s ago (%s)\n", formatAge(rec.HeartbeatAge(time.Now())), rec.LastHeartbeat.Format(time.RFC3339))
	fmt.Printf("Retries:    %d\n", rec.RetryCount)
	if rec.LastRestartAt != nil {
		fmt.Printf("Restarted:  %s\n", rec.LastRestartAt.Format(time.RFC3339))
	}
	if rec.CooldownUntil != nil {
		fmt.Printf("Cooldown:   until %s\n", rec.CooldownUntil.Format(time.RFC3339))
	}
	if rec.ErrorMessage != "" {
		fmt.Printf("Error:      %s\n", style.Apply(style.Bad, rec.ErrorMessage))
	}

	msgs, _, err := y.store.List(agentID)
	if err == nil {
		fmt.Printf("Inbox:      %d pending\n", len(msgs))
	}
	return nil
}

func stateStyle(s status.State) lipgloss.Style {
	switch {
	case s.IsHealthy():
		return style.Healthy
	case s == status.StateFailed:
		return style.Bad
	case s.NeedsAttention():
		return style.Warn
	default:
		return style.Muted
	}
}
