package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadError marks a rule file that could not be loaded or validated.
// Fatal at startup; at hot-reload the previous valid set stays active.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("pattern load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ruleFile is the on-disk schema of a rule file or pack.
type ruleFile struct {
	Version     string `yaml:"version"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Author      string `yaml:"author,omitempty"`
	Rules       []Rule `yaml:"rules"`
}

// PackInfo is a summary of a rule pack for listing.
type PackInfo struct {
	Name        string
	Description string
	Version     string
	Author      string
	Enabled     bool
	Path        string
	RuleCount   int
}

// Load reads and compiles the base rule file. A missing file yields the
// built-in default set; a present-but-invalid file is a LoadError.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSet()
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	set, err := Compile(f.Version, f.Rules)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return set, nil
}

// LoadPacks reads all .yaml files from the packs directory and merges their
// rules after the base set's rules. Files prefixed with underscore are
// disabled. The merged set's version is the base version plus the pack names,
// so every RiskSignal still pins the exact rule provenance.
func LoadPacks(packsDir string, base *Set) (*Set, []PackInfo, error) {
	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil, nil
		}
		return nil, nil, &LoadError{Path: packsDir, Err: err}
	}

	var infos []PackInfo
	version := base.Version
	rules := make([]Rule, len(base.Rules))
	copy(rules, base.Rules)

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(packsDir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, &LoadError{Path: path, Err: err}
		}
		var f ruleFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, nil, &LoadError{Path: path, Err: err}
		}

		info := PackInfo{
			Name:        f.Name,
			Description: f.Description,
			Version:     f.Version,
			Author:      f.Author,
			Enabled:     enabled,
			Path:        path,
			RuleCount:   len(f.Rules),
		}
		if info.Name == "" {
			info.Name = baseName
		}
		infos = append(infos, info)

		if !enabled {
			continue
		}
		rules = append(rules, f.Rules...)
		version = version + "+" + info.Name
		if f.Version != "" {
			version = version + "@" + f.Version
		}
	}

	merged, err := Compile(version, rules)
	if err != nil {
		return nil, nil, &LoadError{Path: packsDir, Err: err}
	}
	return merged, infos, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// DefaultSet returns the built-in rule set used when no rule file exists yet.
// Deployments are expected to replace it with a clinically reviewed file.
func DefaultSet() (*Set, error) {
	return Compile("builtin-1", []Rule{
		{
			ID:       "crisis-kill-self",
			Category: CategoryCrisisKeyword,
			Severity: SeverityCrisis,
			Literal:  "kill myself",
			Reason:   "Explicit self-harm statement.",
		},
		{
			ID:       "crisis-suicide",
			Category: CategoryCrisisKeyword,
			Severity: SeverityCrisis,
			Literal:  "suicide",
			Reason:   "Explicit crisis keyword.",
		},
		{
			ID:       "crisis-end-my-life",
			Category: CategoryCrisisKeyword,
			Severity: SeverityCrisis,
			Literal:  "end my life",
			Reason:   "Explicit self-harm statement.",
		},
		{
			ID:       "crisis-want-to-die",
			Category: CategoryCrisisKeyword,
			Severity: SeverityCrisis,
			Literal:  "want to die",
			Reason:   "Explicit crisis keyword.",
		},
		{
			ID:       "crisis-hurt-myself",
			Category: CategoryCrisisKeyword,
			Severity: SeverityCrisis,
			Literal:  "hurt myself",
			Reason:   "Explicit self-harm statement.",
		},
		{
			ID:       "crisis-kms",
			Category: CategoryCodedLanguage,
			Severity: SeverityCrisis,
			Literal:  "kms",
			Reason:   "Common self-harm abbreviation.",
		},
		{
			ID:       "crisis-unalive",
			Category: CategoryCodedLanguage,
			Severity: SeverityCrisis,
			Literal:  "unalive",
			Reason:   "Coded self-harm term used to evade moderation.",
		},
		{
			ID:       "crisis-catch-the-bus",
			Category: CategoryCodedLanguage,
			Severity: SeverityCrisis,
			Phrase:   "catch the bus",
			Reason:   "Coded self-harm idiom.",
		},
		{
			ID:       "crisis-better-off-without",
			Category: CategoryCodedLanguage,
			Severity: SeverityCrisis,
			Phrase:   "better off without me",
			Reason:   "Indirect self-harm statement.",
		},
		{
			ID:       "crisis-kill-variants",
			Category: CategoryObfuscatedVariant,
			Severity: SeverityCrisis,
			Regex:    `\bk[i1l!|]{1,2}ll? myse[l1|]f\b`,
			Reason:   "Obfuscated spelling the normalizer cannot fold.",
		},
		{
			ID:       "caution-self-harm-adjacent",
			Category: CategoryCrisisKeyword,
			Severity: SeverityCaution,
			Literal:  "hopeless",
			Reason:   "Elevated-risk language; monitor.",
		},
		{
			ID:       "caution-no-point",
			Category: CategoryCodedLanguage,
			Severity: SeverityCaution,
			Phrase:   "no point anymore",
			Reason:   "Elevated-risk language; monitor.",
		},
	})
}
