// Package scanner applies the pattern library to a single message. Scanning
// is a pure function of text + rule-set version: deterministic, synchronous,
// no I/O on the hot path.
package scanner

import (
	"strings"

	"github.com/wellmind/crisisgate/internal/normalize"
	"github.com/wellmind/crisisgate/internal/pattern"
)

// Match is one rule hit, tagged with its source rule.
type Match struct {
	RuleID   string
	Category pattern.Category
	Severity pattern.Severity
	Weight   float64
}

// Result is the deterministic risk signal for one message.
type Result struct {
	Matches        []Match // union of all passes, first-hit order, deduped by rule id
	CategoryHits   map[pattern.Category]int
	RuleSetVersion string
}

// HasSeverity reports whether any matched rule carries the given severity.
func (r Result) HasSeverity(sev pattern.Severity) bool {
	for _, m := range r.Matches {
		if m.Severity == sev {
			return true
		}
	}
	return false
}

// RuleIDs returns the matched rule ids in match order.
func (r Result) RuleIDs() []string {
	ids := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.RuleID
	}
	return ids
}

// Scan normalizes the text and runs the three matching passes: literal,
// regex, then phrase table. All passes run against the same normalized text.
func Scan(text string, set *pattern.Set) Result {
	n := normalize.Text(text)

	res := Result{
		CategoryHits:   make(map[pattern.Category]int),
		RuleSetVersion: set.Version,
	}
	seen := make(map[string]bool)

	add := func(r *pattern.Rule) {
		if seen[r.ID] {
			return
		}
		seen[r.ID] = true
		res.Matches = append(res.Matches, Match{
			RuleID:   r.ID,
			Category: r.Category,
			Severity: r.Severity,
			Weight:   r.Weight,
		})
		res.CategoryHits[r.Category]++
	}

	// Pass 1: literals. Word-boundary match on the joined form catches
	// normal phrasing; substring match on the compact form catches words
	// split by spacing or punctuation.
	for _, lit := range set.Literals() {
		if containsWordBounded(n.Joined, lit.Joined) || strings.Contains(n.Compact, lit.Compact) {
			add(lit.Rule)
		}
	}

	// Pass 2: regex rules against the joined normalized text.
	for _, cr := range set.Regexes() {
		if cr.Re.MatchString(n.Joined) {
			add(cr.Rule)
		}
	}

	// Pass 3: coded-language phrases as consecutive token runs.
	for _, ph := range set.Phrases() {
		if containsTokenRun(n.Tokens, ph.Tokens) {
			add(ph.Rule)
		}
	}

	return res
}

// containsWordBounded reports whether needle occurs in haystack starting and
// ending on token boundaries. Both strings are normalized and space-joined.
func containsWordBounded(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		startOK := start == 0 || haystack[start-1] == ' '
		endOK := end == len(haystack) || haystack[end] == ' '
		if startOK && endOK {
			return true
		}
		idx = start + 1
	}
}

func containsTokenRun(tokens, run []string) bool {
	if len(run) == 0 || len(run) > len(tokens) {
		return false
	}
	for i := 0; i+len(run) <= len(tokens); i++ {
		matched := true
		for j := range run {
			if tokens[i+j] != run[j] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
