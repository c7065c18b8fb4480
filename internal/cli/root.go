package cli

import (
	"github.com/spf13/cobra"
)

var (
	rulesPath string
	packsDir  string
	auditPath string
	eventsDB  string
)

var rootCmd = &cobra.Command{
	Use:   "crisisgate",
	Short: "CrisisGate - Deterministic crisis-safety gate for student messages",
	Long: `CrisisGate screens every student message before an AI tutor is allowed
to respond. A deterministic keyword and pattern classifier, backed by a
bounded secondary scorer, sorts messages into SAFE, CAUTION, or CRISIS;
crisis detections bypass the tutoring pipeline entirely and are durably
recorded before anything else happens.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to rules YAML file (default: ~/.crisisgate/rules.yaml)")
	rootCmd.PersistentFlags().StringVar(&packsDir, "packs", "", "Path to rule packs directory (default: ~/.crisisgate/packs)")
	rootCmd.PersistentFlags().StringVar(&auditPath, "audit-log", "", "Path to audit log file (default: ~/.crisisgate/audit.jsonl)")
	rootCmd.PersistentFlags().StringVar(&eventsDB, "events-db", "", "Path to escalation event store (default: ~/.crisisgate/events.db)")
}

func Execute() error {
	return rootCmd.Execute()
}
