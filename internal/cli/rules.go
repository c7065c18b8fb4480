package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wellmind/crisisgate/internal/config"
	"github.com/wellmind/crisisgate/internal/pattern"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage rule packs",
	Long: `Manage CrisisGate rule packs.

Rule packs are curated YAML rule files layered on top of the base rules.
Packs live in ~/.crisisgate/packs/ and merge with the base rules at load
time; a leading underscore on the filename disables a pack.

Examples:
  crisisgate rules list                 # List installed packs
  crisisgate rules enable coded-terms   # Enable a pack
  crisisgate rules disable coded-terms  # Disable a pack`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed rule packs",
	RunE:  rulesList,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled rule pack",
	Args:  cobra.ExactArgs(1),
	RunE:  rulesEnable,
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a rule pack (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  rulesDisable,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rootCmd.AddCommand(rulesCmd)
}

func resolvePacksDir() (string, error) {
	cfg, err := config.Load(rulesPath, packsDir, auditPath, eventsDB)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.PacksDir, 0700); err != nil {
		return "", err
	}
	return cfg.PacksDir, nil
}

func rulesList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rulesPath, packsDir, auditPath, eventsDB)
	if err != nil {
		return err
	}

	base, err := pattern.Load(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("failed to load base rules: %w", err)
	}
	merged, packs, err := pattern.LoadPacks(cfg.PacksDir, base)
	if err != nil {
		return fmt.Errorf("failed to load rule packs: %w", err)
	}

	fmt.Printf("Base rules: %s (%d rules)\n", base.Version, len(base.Rules))
	if len(packs) == 0 {
		fmt.Println("No rule packs installed.")
		return nil
	}
	fmt.Println("Installed packs:")
	for _, p := range packs {
		fmt.Printf("  %-24s %-12s %s\n", p.Name, p.Version, p.Description)
	}
	fmt.Printf("Merged rule set: %s (%d rules)\n", merged.Version, len(merged.Rules))
	return nil
}

func rulesEnable(cmd *cobra.Command, args []string) error {
	dir, err := resolvePacksDir()
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(args[0], ".yaml")
	disabled := filepath.Join(dir, "_"+name+".yaml")
	enabled := filepath.Join(dir, name+".yaml")

	if _, err := os.Stat(enabled); err == nil {
		fmt.Printf("Pack %q is already enabled.\n", name)
		return nil
	}
	if _, err := os.Stat(disabled); err != nil {
		return fmt.Errorf("pack %q not found in %s", name, dir)
	}
	if err := os.Rename(disabled, enabled); err != nil {
		return fmt.Errorf("failed to enable pack: %w", err)
	}
	fmt.Printf("Enabled pack %q.\n", name)
	return nil
}

func rulesDisable(cmd *cobra.Command, args []string) error {
	dir, err := resolvePacksDir()
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(args[0], ".yaml")
	enabled := filepath.Join(dir, name+".yaml")
	disabled := filepath.Join(dir, "_"+name+".yaml")

	if _, err := os.Stat(disabled); err == nil {
		fmt.Printf("Pack %q is already disabled.\n", name)
		return nil
	}
	if _, err := os.Stat(enabled); err != nil {
		return fmt.Errorf("pack %q not found in %s", name, dir)
	}
	if err := os.Rename(enabled, disabled); err != nil {
		return fmt.Errorf("failed to disable pack: %w", err)
	}
	fmt.Printf("Disabled pack %q.\n", name)
	return nil
}
