package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupMaxAgeDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old processed and quarantined records",
	Long: `Remove processed and quarantined records older than the retention
window. The daemon runs this on a schedule; run it manually to reclaim
space sooner.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupMaxAgeDays, "max-age-days", 0, "Override retention window in days (default: config max_age_days)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	y, err := openYard()
	if err != nil {
		return err
	}

	maxAge := y.cfg.MaxAge()
	if cleanupMaxAgeDays > 0 {
		maxAge = time.Duration(cleanupMaxAgeDays) * 24 * time.Hour
	}

	removed, err := y.router.Cleanup(maxAge)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d archived record(s) older than %s\n", removed, maxAge)
	return nil
}
