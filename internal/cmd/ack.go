package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ackCmd = &cobra.Command{
	Use:   "ack <message-id>...",
	Short: "Acknowledge messages",
	Long: `Acknowledge one or more messages, moving them to the processed
archive. Acknowledging an unknown or already-acknowledged id is a no-op.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAck,
}

func init() {
	rootCmd.AddCommand(ackCmd)
}

func runAck(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	for _, id := range args {
		if y.router.Acknowledge(id) {
			fmt.Printf("Acknowledged %s\n", id)
		} else {
			fmt.Printf("Not found (already acknowledged?): %s\n", id)
		}
	}
	return nil
}
