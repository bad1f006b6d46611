package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/drovertools/drover/internal/style"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox <agent>",
	Short: "Show an agent's pending messages",
	Long: `Show an agent's pending messages in delivery order.

Listing marks pending messages as delivered. Acknowledge a message with
'drover ack <id>' to move it to the processed archive.`,
	Args: cobra.ExactArgs(1),
	RunE: runInbox,
}

func init() {
	rootCmd.AddCommand(inboxCmd)
}

func runInbox(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	msgs, err := y.router.Receive(args[0])
	if err != nil {
		return err
	}

	if len(msgs) == 0 {
		fmt.Printf("No messages for %s\n", args[0])
		return nil
	}

	tbl := style.NewTable(
		style.Column{Name: "Seq", Width: 6, Align: style.AlignRight},
		style.Column{Name: "From", Width: 14},
		style.Column{Name: "Mode", Width: 8},
		style.Column{Name: "Age", Width: 8},
		style.Column{Name: "ID", Width: 36},
		style.Column{Name: "Content", Width: 40},
	)
	for _, msg := range msgs {
		tbl.AddRow(
			fmt.Sprintf("%d", msg.Sequence),
			msg.From,
			string(msg.Mode),
			formatAge(time.Since(msg.Timestamp)),
			style.Apply(style.Muted, msg.ID),
			msg.Content,
		)
	}
	fmt.Print(tbl.Render())
	return nil
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
