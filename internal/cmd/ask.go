package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/drovertools/drover/internal/chat"
)

var askTimeoutSeconds int

var askCmd = &cobra.Command{
	Use:   "ask <prompt>...",
	Short: "Ask the configured chat backend",
	Long: `Send a prompt to the chat command configured under [chat] in
drover.toml and print the response.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTimeoutSeconds, "timeout", 120, "Seconds to wait for a response")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	backend := chat.NewExecBackend(y.cfg.Chat.Command)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(askTimeoutSeconds)*time.Second)
	defer cancel()

	reply, err := backend.Respond(ctx, strings.Join(args, " "))
	if err != nil {
		if errors.Is(err, chat.ErrNotConfigured) {
			return fmt.Errorf("no chat command configured; set [chat] command in drover.toml")
		}
		return err
	}

	fmt.Println(reply)
	return nil
}
