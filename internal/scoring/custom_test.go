package scoring

import (
	"testing"

	"github.com/opensource-finance/shrike/internal/domain"
)

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "test-rule-001",
		Name:       "Test Rule",
		Expression: "amount > 100.0",
		Reason:     "Amount over limit",
		Weight:     0.2,
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "invalid-rule",
		Name:       "Invalid Rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestContribution(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "gift-card",
		Name:       "Gift card purchases",
		Expression: `category == "gift_card" ? 0.5 : 0.0`,
		Reason:     "Gift card purchase pattern",
		Weight:     0.4,
		Enabled:    true,
	})

	score, reasons := engine.Contribution(&domain.Transaction{
		Amount:   40,
		Merchant: "Corner Store",
		Category: "gift_card",
	})
	if score != 0.2 {
		t.Errorf("expected contribution 0.2, got %v", score)
	}
	if len(reasons) != 1 || reasons[0] != "Gift card purchase pattern" {
		t.Errorf("unexpected reasons: %v", reasons)
	}

	score, reasons = engine.Contribution(&domain.Transaction{
		Amount:   40,
		Merchant: "Corner Store",
		Category: "grocery",
	})
	if score != 0 || reasons != nil {
		t.Errorf("expected no contribution, got %v %v", score, reasons)
	}
}

func TestContributionFoldsIntoWeightedScore(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "late-hour",
		Name:       "Late hour",
		Expression: "hour >= 0 && hour < 5",
		Reason:     "Late-night card-not-present purchase",
		Weight:     0.3,
		Enabled:    true,
	})

	w := &Weighted{Custom: engine}

	base := NewWeighted().Score(&domain.Transaction{Amount: 50, Merchant: "Cafe", Location: "Denver"})
	withRule := w.Score(&domain.Transaction{Amount: 50, Merchant: "Cafe", Location: "Denver", Time: "02:00"})

	if withRule.Score <= base.Score {
		t.Errorf("expected custom rule to raise score: base %v, with rule %v", base.Score, withRule.Score)
	}
	if withRule.Score > 1 {
		t.Errorf("score must stay clamped to 1, got %v", withRule.Score)
	}
}

func TestEvaluateAllReportsErrors(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	// Integer division by a zero-amount transaction fails at eval time,
	// not load time; the error must surface per-rule instead of panicking.
	engine.LoadRule(&domain.RuleConfig{
		ID:         "ratio",
		Name:       "Ratio rule",
		Expression: "100 / int(amount) > 2",
		Weight:     1,
		Enabled:    true,
	})

	results := engine.EvaluateAll(&domain.Transaction{ID: "TX-1", Amount: 0})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err == "" {
		t.Error("expected evaluation error to be reported")
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID: "a", Name: "A", Expression: "amount > 1.0", Weight: 1, Enabled: true,
	})
	engine.LoadRule(&domain.RuleConfig{
		ID: "b", Name: "B", Expression: "amount > 2.0", Weight: 1, Enabled: true,
	})

	err := engine.ReloadRules([]*domain.RuleConfig{
		{ID: "c", Name: "C", Expression: "amount > 3.0", Weight: 1, Enabled: true},
		{ID: "d", Name: "D", Expression: "amount > 4.0", Weight: 1, Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
	if engine.GetLoadedRules()[0].ID != "c" {
		t.Errorf("expected rule c to survive reload")
	}
}
