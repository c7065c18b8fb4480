package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wellmind/crisisgate/internal/normalize"
)

// Category describes how a rule tries to catch its target phrasing.
type Category string

const (
	// CategoryCrisisKeyword is an explicit crisis keyword or phrase.
	CategoryCrisisKeyword Category = "crisis-keyword"
	// CategoryCodedLanguage is a multi-word idiom used as an indirect
	// reference (e.g. "catch the bus").
	CategoryCodedLanguage Category = "coded-language"
	// CategoryObfuscatedVariant is a regex covering spellings the
	// deterministic normalizer cannot fold (e.g. "ki11").
	CategoryObfuscatedVariant Category = "obfuscated-variant"
)

// Severity classes a rule's match for the decision engine.
type Severity string

const (
	SeverityCrisis  Severity = "crisis"
	SeverityCaution Severity = "caution"
)

// Rule is a single immutable pattern rule. Rule sets are swapped atomically
// as a new version, never mutated in place.
type Rule struct {
	ID       string   `yaml:"id"`
	Category Category `yaml:"category"`
	Severity Severity `yaml:"severity"`
	Weight   float64  `yaml:"weight,omitempty"`
	Reason   string   `yaml:"reason,omitempty"`

	// Exactly one matcher form per rule.
	Literal string `yaml:"literal,omitempty"`
	Regex   string `yaml:"regex,omitempty"`
	Phrase  string `yaml:"phrase,omitempty"`
}

// Set is a compiled, versioned rule set. Read-only after Compile; shared by
// reference across all workers.
type Set struct {
	Version string
	Rules   []Rule

	literals []CompiledLiteral
	regexes  []CompiledRegex
	phrases  []CompiledPhrase
	byID     map[string]*Rule
}

// CompiledLiteral is a literal rule normalized the same way message text is,
// so "kill myself" matches post-normalization forms directly.
type CompiledLiteral struct {
	Rule    *Rule
	Joined  string // normalized, space-separated
	Compact string // normalized, separators removed
}

// CompiledRegex is a regex rule compiled once at load time.
type CompiledRegex struct {
	Rule *Rule
	Re   *regexp.Regexp
}

// CompiledPhrase is a coded-language idiom as a normalized token sequence.
type CompiledPhrase struct {
	Rule   *Rule
	Tokens []string
}

// Compile validates and precompiles a rule set. Any invalid rule fails the
// whole set: a partially valid rule set must never serve.
func Compile(version string, rules []Rule) (*Set, error) {
	if version == "" {
		return nil, fmt.Errorf("rule set has no version")
	}
	s := &Set{
		Version: version,
		Rules:   rules,
		byID:    make(map[string]*Rule, len(rules)),
	}
	for i := range rules {
		r := &s.Rules[i]
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: missing id", i)
		}
		if _, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("rule %q: duplicate id", r.ID)
		}
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		if r.Weight == 0 {
			r.Weight = defaultWeight(r.Severity)
		}
		s.byID[r.ID] = r

		switch {
		case r.Literal != "":
			n := normalize.Text(r.Literal)
			if len(n.Tokens) == 0 {
				return nil, fmt.Errorf("rule %q: literal normalizes to nothing", r.ID)
			}
			s.literals = append(s.literals, CompiledLiteral{
				Rule:    r,
				Joined:  n.Joined,
				Compact: n.Compact,
			})
		case r.Regex != "":
			re, err := regexp.Compile(r.Regex)
			if err != nil {
				return nil, fmt.Errorf("rule %q: bad regex: %w", r.ID, err)
			}
			s.regexes = append(s.regexes, CompiledRegex{Rule: r, Re: re})
		case r.Phrase != "":
			n := normalize.Text(r.Phrase)
			if len(n.Tokens) < 2 {
				return nil, fmt.Errorf("rule %q: phrase needs at least two words", r.ID)
			}
			s.phrases = append(s.phrases, CompiledPhrase{Rule: r, Tokens: n.Tokens})
		}
	}
	return s, nil
}

func validateRule(r *Rule) error {
	forms := 0
	for _, f := range []string{r.Literal, r.Regex, r.Phrase} {
		if strings.TrimSpace(f) != "" {
			forms++
		}
	}
	if forms != 1 {
		return fmt.Errorf("exactly one of literal, regex, phrase required")
	}
	switch r.Category {
	case CategoryCrisisKeyword, CategoryCodedLanguage, CategoryObfuscatedVariant:
	default:
		return fmt.Errorf("unknown category %q", r.Category)
	}
	switch r.Severity {
	case SeverityCrisis, SeverityCaution:
	default:
		return fmt.Errorf("unknown severity %q", r.Severity)
	}
	if r.Weight < 0 || r.Weight > 1 {
		return fmt.Errorf("weight %v outside [0,1]", r.Weight)
	}
	return nil
}

func defaultWeight(sev Severity) float64 {
	if sev == SeverityCrisis {
		return 1.0
	}
	return 0.5
}

// Literals returns the compiled literal rules.
func (s *Set) Literals() []CompiledLiteral { return s.literals }

// Regexes returns the compiled regex rules.
func (s *Set) Regexes() []CompiledRegex { return s.regexes }

// Phrases returns the compiled phrase rules.
func (s *Set) Phrases() []CompiledPhrase { return s.phrases }

// Rule returns the rule with the given id, or nil.
func (s *Set) Rule(id string) *Rule { return s.byID[id] }
