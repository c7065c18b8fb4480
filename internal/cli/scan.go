package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wellmind/crisisgate/internal/classifier"
	"github.com/wellmind/crisisgate/internal/config"
	"github.com/wellmind/crisisgate/internal/decision"
	"github.com/wellmind/crisisgate/internal/pattern"
	"github.com/wellmind/crisisgate/internal/risk"
)

var scanCmd = &cobra.Command{
	Use:   "scan <message text>",
	Short: "Evaluate a single message without touching session state",
	Long: `Run one message through the risk classifier and print the decision,
matched rules, and classifier score. No session state is updated and no
events are published, so scan is safe for testing rule changes.

Example:
  crisisgate scan "I can't do this anymore"`,
	Args: cobra.MinimumNArgs(1),
	RunE: scanCommand,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rulesPath, packsDir, auditPath, eventsDB)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	set, err := pattern.Load(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	set, _, err = pattern.LoadPacks(cfg.PacksDir, set)
	if err != nil {
		return fmt.Errorf("failed to load rule packs: %w", err)
	}

	scorer := classifier.WithTimeout(classifier.NewLexicalScorer(), cfg.ClassifierTimeout)
	engine := decision.NewEngine(scorer, cfg.CautionScore, zap.NewNop())

	msg := risk.Message{
		SessionID:  "scan",
		StudentID:  "scan",
		Text:       strings.Join(args, " "),
		ReceivedAt: time.Now(),
		SequenceNo: 1,
	}

	sig := engine.Evaluate(cmd.Context(), msg, set)

	fmt.Printf("Decision:  %s\n", sig.Decision)
	fmt.Printf("Rule set:  %s\n", sig.RuleSetVersion)
	if len(sig.MatchedRules) > 0 {
		fmt.Printf("Matched:   %s\n", strings.Join(sig.MatchedRules, ", "))
	} else {
		fmt.Println("Matched:   (none)")
	}
	if sig.ClassifierScore != nil {
		fmt.Printf("Score:     %.2f (threshold %.2f)\n", *sig.ClassifierScore, cfg.CautionScore)
	} else {
		fmt.Println("Score:     (classifier bypassed)")
	}
	return nil
}
