package classifier

import (
	"context"
	"regexp"
)

// LexicalScorer is the built-in heuristic provider. It sums weighted clinical
// marker patterns and clamps to [0,1]. Intentionally coarse: it exists to
// exercise the capability contract, not to replace a reviewed model.
type LexicalScorer struct {
	markers []marker
}

type marker struct {
	re     *regexp.Regexp
	weight float64
}

// NewLexicalScorer creates the built-in lexical scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{markers: buildMarkers()}
}

func (s *LexicalScorer) Name() string { return "lexical" }

// Score sums marker weights for the text. Synchronous and allocation-light;
// checks ctx once up front since a lexical pass cannot block.
func (s *LexicalScorer) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var total float64
	for _, m := range s.markers {
		if m.re.MatchString(text) {
			total += m.weight
		}
	}
	if total > 1 {
		total = 1
	}
	return total, nil
}

func buildMarkers() []marker {
	return []marker{
		{regexp.MustCompile(`(?i)\b(feeling|feel|felt)\s+(really\s+)?(down|low|empty|numb)\b`), 0.35},
		{regexp.MustCompile(`(?i)\bno\s+(one|body)\s+(cares|would\s+care|notices)\b`), 0.40},
		{regexp.MustCompile(`(?i)\bcan'?t\s+(sleep|eat|focus|get\s+out\s+of\s+bed)\b`), 0.25},
		{regexp.MustCompile(`(?i)\b(hopeless|worthless|pointless)\b`), 0.40},
		{regexp.MustCompile(`(?i)\b(hate|hating)\s+myself\b`), 0.45},
		{regexp.MustCompile(`(?i)\b(so|really|completely)\s+(alone|lonely|isolated)\b`), 0.30},
		{regexp.MustCompile(`(?i)\bwhat'?s\s+the\s+point\b`), 0.35},
		{regexp.MustCompile(`(?i)\b(tired\s+of|done\s+with)\s+(everything|it\s+all|life)\b`), 0.45},
		{regexp.MustCompile(`(?i)\bgiving\s+(up|away\s+my)\b`), 0.30},
		{regexp.MustCompile(`(?i)\bnothing\s+(matters|helps|works)\b`), 0.35},
	}
}
