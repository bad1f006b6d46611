package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drovertools/drover/internal/mailbox"
	"github.com/drovertools/drover/internal/style"
)

var (
	broadcastMode     string
	broadcastPriority int
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <from> <content>",
	Short: "Send a message to every agent in the roster",
	Long: `Send a message to every agent in the roster except the sender.

Every recipient is attempted even when some fail; failed recipients are
listed and the command exits non-zero.`,
	Args: cobra.ExactArgs(2),
	RunE: runBroadcast,
}

func init() {
	broadcastCmd.Flags().StringVar(&broadcastMode, "mode", "bulk", "Message mode")
	broadcastCmd.Flags().IntVar(&broadcastPriority, "priority", 1, "Message priority (0-5)")
	rootCmd.AddCommand(broadcastCmd)
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	mode, err := mailbox.ParseMode(broadcastMode)
	if err != nil {
		return err
	}

	result, err := y.router.Broadcast(args[0], args[1], mode, broadcastPriority)
	if result != nil {
		for agentID, ok := range result.Delivered {
			if ok {
				fmt.Printf("  %s %s\n", style.Apply(style.Healthy, "ok"), agentID)
			} else {
				fmt.Printf("  %s %s: %v\n", style.Apply(style.Bad, "failed"), agentID, result.Errors[agentID])
			}
		}
	}
	if err != nil {
		return fmt.Errorf("broadcast incomplete: %w", err)
	}

	fmt.Printf("Broadcast delivered to %d agents\n", len(result.Delivered))
	return nil
}
