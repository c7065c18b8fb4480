package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRISISGATE_CONFIG_DIR", dir)

	cfg, err := Load("", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RulesPath != filepath.Join(dir, DefaultRulesFile) {
		t.Errorf("rules path = %s", cfg.RulesPath)
	}
	if cfg.EventsDB != filepath.Join(dir, DefaultEventsDB) {
		t.Errorf("events db = %s", cfg.EventsDB)
	}
	if cfg.CautionScore != 0.3 {
		t.Errorf("caution score = %v", cfg.CautionScore)
	}
	if cfg.ClassifierTimeout != 40*time.Millisecond {
		t.Errorf("classifier timeout = %v", cfg.ClassifierTimeout)
	}
	if cfg.Cooldown != 15*time.Minute {
		t.Errorf("cooldown = %v", cfg.Cooldown)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRISISGATE_CONFIG_DIR", dir)
	t.Setenv("CRISISGATE_CAUTION_SCORE", "0.5")
	t.Setenv("CRISISGATE_CAUTION_COUNT", "2")

	cfg, err := Load("", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CautionScore != 0.5 {
		t.Errorf("caution score = %v", cfg.CautionScore)
	}
	if cfg.CautionCount != 2 {
		t.Errorf("caution count = %d", cfg.CautionCount)
	}
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRISISGATE_CONFIG_DIR", dir)
	t.Setenv("CRISISGATE_RULES", "/env/rules.yaml")

	cfg, err := Load("/flag/rules.yaml", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RulesPath != "/flag/rules.yaml" {
		t.Errorf("rules path = %s", cfg.RulesPath)
	}
}

func TestLoadRejectsBadScore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRISISGATE_CONFIG_DIR", dir)
	t.Setenv("CRISISGATE_CAUTION_SCORE", "1.5")

	if _, err := Load("", "", "", ""); err == nil {
		t.Fatal("expected validation error for score above 1")
	}
}

func TestEscalationMapping(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRISISGATE_CONFIG_DIR", dir)

	cfg, err := Load("", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	esc := cfg.Escalation()
	if esc.CautionCount != cfg.CautionCount || esc.CautionWindow != cfg.CautionWindow {
		t.Error("escalation config does not mirror loaded values")
	}
	rp := cfg.RetryPolicy()
	if rp.MaxAttempts != cfg.PublishAttempts || rp.FatalDeadline != cfg.CrisisDeadline {
		t.Error("retry policy does not mirror loaded values")
	}
}
