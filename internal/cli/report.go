package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wellmind/crisisgate/internal/config"
	"github.com/wellmind/crisisgate/internal/event"
	"github.com/wellmind/crisisgate/internal/risk"
)

var reportSince time.Duration

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize recorded escalation events by decision",
	Long: `Read the event store and print how many events were recorded per
decision within the reporting window.

Example:
  crisisgate report --since 24h`,
	RunE: reportCommand,
}

func init() {
	reportCmd.Flags().DurationVar(&reportSince, "since", 24*time.Hour, "Reporting window")
	rootCmd.AddCommand(reportCmd)
}

func reportCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rulesPath, packsDir, auditPath, eventsDB)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := event.NewSQLiteStore(cfg.EventsDB)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer store.Close()

	counts, err := store.CountByDecision(time.Now().Add(-reportSince))
	if err != nil {
		return fmt.Errorf("failed to query event store: %w", err)
	}

	fmt.Printf("Events in the last %s:\n", reportSince)
	for _, d := range []risk.Decision{risk.DecisionCrisis, risk.DecisionCaution, risk.DecisionSafe} {
		fmt.Printf("  %-8s %d\n", d, counts[d])
	}
	return nil
}
