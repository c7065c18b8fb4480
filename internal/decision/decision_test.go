package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wellmind/crisisgate/internal/classifier"
	"github.com/wellmind/crisisgate/internal/pattern"
	"github.com/wellmind/crisisgate/internal/risk"
)

type fixedScorer struct {
	score  float64
	err    error
	called *bool
}

func (f fixedScorer) Name() string { return "fixed" }

func (f fixedScorer) Score(ctx context.Context, text string) (float64, error) {
	if f.called != nil {
		*f.called = true
	}
	return f.score, f.err
}

func testSet(t *testing.T) *pattern.Set {
	t.Helper()
	set, err := pattern.Compile("t1", []pattern.Rule{
		{ID: "crisis-kill-self", Category: pattern.CategoryCrisisKeyword, Severity: pattern.SeverityCrisis, Literal: "kill myself"},
		{ID: "caution-hopeless", Category: pattern.CategoryCrisisKeyword, Severity: pattern.SeverityCaution, Literal: "hopeless"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func msg(text string) risk.Message {
	return risk.Message{
		SessionID:  "s1",
		StudentID:  "stu1",
		Text:       text,
		ReceivedAt: time.Now(),
		SequenceNo: 1,
	}
}

func TestEvaluate_CrisisIgnoresClassifier(t *testing.T) {
	called := false
	e := NewEngine(fixedScorer{score: 0.0, called: &called}, 0.3, zap.NewNop())

	sig := e.Evaluate(context.Background(), msg("I want to k1ll myself"), testSet(t))
	if sig.Decision != risk.DecisionCrisis {
		t.Fatalf("decision = %s, want CRISIS", sig.Decision)
	}
	if called {
		t.Error("classifier must not run on the crisis path")
	}
	if sig.ClassifierScore != nil {
		t.Error("crisis signal must not carry a classifier score")
	}
	if len(sig.MatchedRules) == 0 {
		t.Error("crisis signal must reference the matched rules")
	}
	if sig.RuleSetVersion != "t1" {
		t.Errorf("rule set version = %q", sig.RuleSetVersion)
	}
}

func TestEvaluate_ScoreAboveThresholdIsCaution(t *testing.T) {
	e := NewEngine(fixedScorer{score: 0.4}, 0.3, zap.NewNop())
	sig := e.Evaluate(context.Background(), msg("I've been feeling really down lately"), testSet(t))
	if sig.Decision != risk.DecisionCaution {
		t.Fatalf("decision = %s, want CAUTION", sig.Decision)
	}
	if sig.ClassifierScore == nil || *sig.ClassifierScore != 0.4 {
		t.Error("signal must record the classifier score")
	}
}

func TestEvaluate_ScoreBelowThresholdIsSafe(t *testing.T) {
	e := NewEngine(fixedScorer{score: 0.1}, 0.3, zap.NewNop())
	sig := e.Evaluate(context.Background(), msg("what homework is due tomorrow"), testSet(t))
	if sig.Decision != risk.DecisionSafe {
		t.Fatalf("decision = %s, want SAFE", sig.Decision)
	}
}

func TestEvaluate_CautionRuleWithoutScore(t *testing.T) {
	e := NewEngine(fixedScorer{score: 0.0}, 0.3, zap.NewNop())
	sig := e.Evaluate(context.Background(), msg("everything is hopeless"), testSet(t))
	if sig.Decision != risk.DecisionCaution {
		t.Fatalf("decision = %s, want CAUTION from caution-severity rule", sig.Decision)
	}
}

func TestEvaluate_TimeoutFailsOpenToCaution(t *testing.T) {
	e := NewEngine(fixedScorer{err: classifier.ErrTimeout}, 0.3, zap.NewNop())
	sig := e.Evaluate(context.Background(), msg("ordinary text"), testSet(t))
	if sig.Decision != risk.DecisionCaution {
		t.Fatalf("decision = %s, want CAUTION on classifier timeout", sig.Decision)
	}
	if sig.ClassifierScore != nil {
		t.Error("timed-out score must not be recorded")
	}
}

func TestEvaluate_ClassifierErrorFailsOpen(t *testing.T) {
	e := NewEngine(fixedScorer{err: errors.New("connection refused")}, 0.3, zap.NewNop())
	sig := e.Evaluate(context.Background(), msg("ordinary text"), testSet(t))
	if sig.Decision != risk.DecisionCaution {
		t.Fatalf("decision = %s, want CAUTION on classifier failure", sig.Decision)
	}
}

func TestEvaluate_CrisisRecallUnderObfuscation(t *testing.T) {
	e := NewEngine(fixedScorer{score: 0.0}, 0.3, zap.NewNop())
	set := testSet(t)
	variants := []string{
		"I want to kill myself",
		"I want to k1ll myself",
		"I want to KILL MYSELF",
		"i want to k.i.l.l myself",
		"I want to кіll myself",                           // Cyrillic homoglyphs
		"\U0001D55C\U0001D55A\U0001D55D\U0001D55D myself", // math double-struck
	}
	for _, text := range variants {
		sig := e.Evaluate(context.Background(), msg(text), set)
		if sig.Decision != risk.DecisionCrisis {
			t.Errorf("decision for %q = %s, want CRISIS", text, sig.Decision)
		}
	}
}
