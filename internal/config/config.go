package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/wellmind/crisisgate/internal/escalation"
	"github.com/wellmind/crisisgate/internal/event"
)

const (
	DefaultConfigDir = ".crisisgate"
	DefaultRulesFile = "rules.yaml"
	DefaultPacksDir  = "packs"
	DefaultAuditFile = "audit.jsonl"
	DefaultEventsDB  = "events.db"
)

// Config holds all tunables. Every field can be set through the
// environment (CRISISGATE_* variables); flags override the environment.
type Config struct {
	ConfigDir string `env:"CRISISGATE_CONFIG_DIR"`
	RulesPath string `env:"CRISISGATE_RULES"`
	PacksDir  string `env:"CRISISGATE_PACKS"`
	AuditPath string `env:"CRISISGATE_AUDIT_LOG"`
	EventsDB  string `env:"CRISISGATE_EVENTS_DB"`

	// CautionScore is the classifier score at or above which a message
	// without rule matches is still held at CAUTION.
	CautionScore float64 `env:"CRISISGATE_CAUTION_SCORE" envDefault:"0.3"`

	// ClassifierTimeout bounds the secondary classifier. On expiry the
	// decision falls back to CAUTION, never SAFE.
	ClassifierTimeout time.Duration `env:"CRISISGATE_CLASSIFIER_TIMEOUT" envDefault:"40ms"`

	// Escalation thresholds.
	CautionCount  int           `env:"CRISISGATE_CAUTION_COUNT" envDefault:"3"`
	CautionWindow int           `env:"CRISISGATE_CAUTION_WINDOW" envDefault:"5"`
	CautionSpan   time.Duration `env:"CRISISGATE_CAUTION_SPAN" envDefault:"10m"`
	SafeStreak    int           `env:"CRISISGATE_SAFE_STREAK" envDefault:"3"`
	Cooldown      time.Duration `env:"CRISISGATE_COOLDOWN" envDefault:"15m"`

	// Publisher retry tuning.
	PublishAttempts uint64        `env:"CRISISGATE_PUBLISH_ATTEMPTS" envDefault:"5"`
	PublishBackoff  time.Duration `env:"CRISISGATE_PUBLISH_BACKOFF" envDefault:"10ms"`
	PublishCap      time.Duration `env:"CRISISGATE_PUBLISH_CAP" envDefault:"250ms"`
	CrisisDeadline  time.Duration `env:"CRISISGATE_CRISIS_DEADLINE" envDefault:"2s"`
}

// Load parses the environment and then applies non-empty flag values
// on top. Paths default into ~/.crisisgate, which is created on first use.
func Load(rulesPath, packsDir, auditPath, eventsDB string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ConfigDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.ConfigDir = filepath.Join(home, DefaultConfigDir)
	}
	if err := ensureDir(cfg.ConfigDir); err != nil {
		return nil, err
	}

	if rulesPath != "" {
		cfg.RulesPath = rulesPath
	}
	if packsDir != "" {
		cfg.PacksDir = packsDir
	}
	if auditPath != "" {
		cfg.AuditPath = auditPath
	}
	if eventsDB != "" {
		cfg.EventsDB = eventsDB
	}

	if cfg.RulesPath == "" {
		cfg.RulesPath = filepath.Join(cfg.ConfigDir, DefaultRulesFile)
	}
	if cfg.PacksDir == "" {
		cfg.PacksDir = filepath.Join(cfg.ConfigDir, DefaultPacksDir)
	}
	if cfg.AuditPath == "" {
		cfg.AuditPath = filepath.Join(cfg.ConfigDir, DefaultAuditFile)
	}
	if cfg.EventsDB == "" {
		cfg.EventsDB = filepath.Join(cfg.ConfigDir, DefaultEventsDB)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CautionScore < 0 || c.CautionScore > 1 {
		return fmt.Errorf("caution score %v outside [0,1]", c.CautionScore)
	}
	if c.CautionCount < 1 {
		return fmt.Errorf("caution count %d must be at least 1", c.CautionCount)
	}
	if c.CautionWindow < 1 {
		return fmt.Errorf("caution window must be at least 1")
	}
	if c.PublishAttempts == 0 {
		return fmt.Errorf("publish attempts must be at least 1")
	}
	return nil
}

// Escalation returns the state-machine thresholds.
func (c *Config) Escalation() escalation.Config {
	return escalation.Config{
		CautionCount:  c.CautionCount,
		CautionWindow: c.CautionWindow,
		CautionSpan:   c.CautionSpan,
		SafeStreak:    c.SafeStreak,
		Cooldown:      c.Cooldown,
	}
}

// RetryPolicy returns the publisher retry tuning.
func (c *Config) RetryPolicy() event.RetryPolicy {
	return event.RetryPolicy{
		MaxAttempts:   c.PublishAttempts,
		BackoffBase:   c.PublishBackoff,
		BackoffCap:    c.PublishCap,
		FatalDeadline: c.CrisisDeadline,
	}
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
