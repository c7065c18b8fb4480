package scanner

import (
	"testing"

	"github.com/wellmind/crisisgate/internal/pattern"
)

func testSet(t *testing.T) *pattern.Set {
	t.Helper()
	set, err := pattern.Compile("test-1", []pattern.Rule{
		{
			ID:       "crisis-kill-self",
			Category: pattern.CategoryCrisisKeyword,
			Severity: pattern.SeverityCrisis,
			Literal:  "kill myself",
		},
		{
			ID:       "crisis-suicide",
			Category: pattern.CategoryCrisisKeyword,
			Severity: pattern.SeverityCrisis,
			Literal:  "suicide",
		},
		{
			ID:       "crisis-catch-the-bus",
			Category: pattern.CategoryCodedLanguage,
			Severity: pattern.SeverityCrisis,
			Phrase:   "catch the bus",
		},
		{
			ID:       "crisis-kill-variants",
			Category: pattern.CategoryObfuscatedVariant,
			Severity: pattern.SeverityCrisis,
			Regex:    `\bki1l myself\b`,
		},
		{
			ID:       "caution-hopeless",
			Category: pattern.CategoryCrisisKeyword,
			Severity: pattern.SeverityCaution,
			Literal:  "hopeless",
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return set
}

func TestScan_PlainCrisisKeyword(t *testing.T) {
	res := Scan("I want to kill myself", testSet(t))
	if !res.HasSeverity(pattern.SeverityCrisis) {
		t.Fatal("expected crisis match")
	}
	if res.Matches[0].RuleID != "crisis-kill-self" {
		t.Errorf("rule = %q", res.Matches[0].RuleID)
	}
	if res.RuleSetVersion != "test-1" {
		t.Errorf("version = %q", res.RuleSetVersion)
	}
}

func TestScan_LeetspeakVariant(t *testing.T) {
	res := Scan("I want to k1ll myself", testSet(t))
	if !res.HasSeverity(pattern.SeverityCrisis) {
		t.Fatal("expected crisis match for leetspeak, got none")
	}
}

func TestScan_UnicodeHomoglyphs(t *testing.T) {
	// Cyrillic к and і in "kill"
	res := Scan("i will кіll myself", testSet(t))
	if !res.HasSeverity(pattern.SeverityCrisis) {
		t.Fatal("expected crisis match for homoglyph text")
	}
}

func TestScan_SeparatorSplit(t *testing.T) {
	res := Scan("s.u.i.c.i.d.e", testSet(t))
	if !res.HasSeverity(pattern.SeverityCrisis) {
		t.Fatal("expected crisis match for separator-split keyword")
	}
}

func TestScan_CodedPhrase(t *testing.T) {
	res := Scan("maybe i should just catch the bus tonight", testSet(t))
	if !res.HasSeverity(pattern.SeverityCrisis) {
		t.Fatal("expected coded-language match")
	}
	if res.CategoryHits[pattern.CategoryCodedLanguage] != 1 {
		t.Errorf("coded-language hits = %d", res.CategoryHits[pattern.CategoryCodedLanguage])
	}
}

func TestScan_PhraseNotSplitAcrossOtherWords(t *testing.T) {
	res := Scan("I'll catch you later, the bus was late", testSet(t))
	if res.CategoryHits[pattern.CategoryCodedLanguage] != 0 {
		t.Error("phrase must match consecutive tokens only")
	}
}

func TestScan_CautionOnly(t *testing.T) {
	res := Scan("everything feels hopeless", testSet(t))
	if res.HasSeverity(pattern.SeverityCrisis) {
		t.Fatal("unexpected crisis match")
	}
	if !res.HasSeverity(pattern.SeverityCaution) {
		t.Fatal("expected caution match")
	}
}

func TestScan_NoMatch(t *testing.T) {
	res := Scan("what homework is due tomorrow", testSet(t))
	if len(res.Matches) != 0 {
		t.Errorf("expected no matches, got %v", res.RuleIDs())
	}
}

func TestScan_WordBoundary(t *testing.T) {
	// "suicidal" must not trigger the "suicide" literal.
	res := Scan("the suicidal thoughts lecture", testSet(t))
	for _, m := range res.Matches {
		if m.RuleID == "crisis-suicide" {
			t.Error("did not expect embedded-word match")
		}
	}
}

func TestScan_DedupAcrossPasses(t *testing.T) {
	res := Scan("kill myself kill myself", testSet(t))
	count := 0
	for _, m := range res.Matches {
		if m.RuleID == "crisis-kill-self" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("rule reported %d times, want 1", count)
	}
}

func TestScan_Deterministic(t *testing.T) {
	set := testSet(t)
	a := Scan("I want to kill myself, it all feels hopeless", set)
	b := Scan("I want to kill myself, it all feels hopeless", set)
	if len(a.Matches) != len(b.Matches) {
		t.Fatalf("non-deterministic match count: %d vs %d", len(a.Matches), len(b.Matches))
	}
	for i := range a.Matches {
		if a.Matches[i] != b.Matches[i] {
			t.Errorf("match %d differs: %+v vs %+v", i, a.Matches[i], b.Matches[i])
		}
	}
}
