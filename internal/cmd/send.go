package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drovertools/drover/internal/mailbox"
)

var (
	sendMode     string
	sendPriority int
	sendMeta     []string
)

var sendCmd = &cobra.Command{
	Use:   "send <from> <to> <content>",
	Short: "Send a message to an agent",
	Long: `Send a message from one agent to another through the yard mailbox.

The message is assigned the next global sequence number and becomes
visible to the recipient's next 'drover inbox' call.`,
	Args: cobra.ExactArgs(3),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendMode, "mode", "normal", "Message mode (normal|priority|bulk|system|selftest)")
	sendCmd.Flags().IntVar(&sendPriority, "priority", 1, "Message priority (0-5)")
	sendCmd.Flags().StringArrayVar(&sendMeta, "meta", nil, "Metadata key=value pairs (repeatable)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	mode, err := mailbox.ParseMode(sendMode)
	if err != nil {
		return err
	}

	metadata, err := parseMeta(sendMeta)
	if err != nil {
		return err
	}

	id, err := y.router.Send(args[0], args[1], args[2], mode, sendPriority, metadata)
	if err != nil {
		return err
	}

	fmt.Printf("Sent %s -> %s (%s)\n", args[0], args[1], id)
	return nil
}

func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}
