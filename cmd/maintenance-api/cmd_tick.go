package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/maintenance-slot-api/internal/app"
	"github.com/noah-isme/maintenance-slot-api/pkg/clock"
)

var tickDate string

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one daily tick and exit",
	Long: `Promote every Planned task whose planned date is before the given date to Pending.

The tick is idempotent, so it is safe to run from an external cron alongside the server.

Examples:
  maintenance-api tick
  maintenance-api tick --date 2025-01-15
`,
	RunE: runTick,
}

func init() {
	tickCmd.Flags().StringVar(&tickDate, "date", "", "Civil date to tick for (YYYY-MM-DD), defaults to today in the scheduling timezone")
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	var today clock.Date
	if tickDate != "" {
		parsed, err := clock.ParseDate(tickDate)
		if err != nil {
			return err
		}
		today = parsed
	}

	application, err := app.New(cfg, logr)
	if err != nil {
		return err
	}
	defer application.Close() //nolint:errcheck

	result, err := application.Transitions.DailyTick(cmd.Context(), today)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
