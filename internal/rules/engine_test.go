package rules

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(store.NewMemoryStore(), 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func scoredEntry(amount, risk float64, prediction string) domain.HistoryEntry {
	return domain.HistoryEntry{
		Transaction: domain.Transaction{
			TransactionID:     "T_1",
			CustomerID:        "C1",
			TransactionAmount: amount,
			Channel:           "Online",
		},
		Prediction: prediction,
		Risk:       risk,
	}
}

func TestEngineCreation(t *testing.T) {
	engine := newTestEngine(t)

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestSaveRule(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	rule := domain.AlertRule{
		Name:       "Large amount",
		Expression: "amount > 100.0",
		Message:    "amount limit exceeded",
		Enabled:    true,
	}

	saved, err := engine.Save(ctx, rule)
	if err != nil {
		t.Fatalf("failed to save rule: %v", err)
	}
	if saved.ID == "" {
		t.Error("expected generated rule ID")
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 compiled rule, got %d", engine.RulesCount())
	}
}

func TestSaveInvalidRule(t *testing.T) {
	engine := newTestEngine(t)

	rule := domain.AlertRule{
		ID:         "invalid-rule",
		Name:       "Invalid Rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if _, err := engine.Save(context.Background(), rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
	if engine.RulesCount() != 0 {
		t.Error("invalid rule must not be loaded")
	}
}

func TestSaveRejectsNonBoolExpression(t *testing.T) {
	engine := newTestEngine(t)

	rule := domain.AlertRule{
		ID:         "numeric-rule",
		Expression: "amount * 2.0",
		Enabled:    true,
	}

	if _, err := engine.Save(context.Background(), rule); err == nil {
		t.Error("expected error for non-bool expression")
	}
}

func TestEvaluateAmountRule(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Save(ctx, domain.AlertRule{
		ID:         "amount-check",
		Name:       "Amount Check",
		Expression: "amount > 1000.0",
		Message:    "amount above limit",
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// Below the limit
	alerts := engine.EvaluateAll(ctx, scoredEntry(500, 20, domain.LabelLegit), domain.Signals{Hour: 12})
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts for low amount, got %d", len(alerts))
	}

	// Above the limit
	alerts = engine.EvaluateAll(ctx, scoredEntry(5000, 20, domain.LabelLegit), domain.Signals{Hour: 12})
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert for high amount, got %d", len(alerts))
	}
	if alerts[0].Type != domain.AlertCustomRule {
		t.Errorf("alert type = %s, want custom-rule", alerts[0].Type)
	}
	if !strings.Contains(alerts[0].Message, "amount above limit") {
		t.Errorf("message = %q", alerts[0].Message)
	}
}

func TestEvaluateCompositeRule(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Save(ctx, domain.AlertRule{
		ID:         "night-fraud",
		Name:       "Night fraud",
		Expression: `prediction == "Fraud" && hour < 6 && fraud_count >= 2`,
		Message:    "repeat fraud at night",
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	sig := domain.Signals{Hour: 3, RecentFraudCount: 2}
	alerts := engine.EvaluateAll(ctx, scoredEntry(500, 80, domain.LabelFraud), sig)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}

	sig.Hour = 14
	alerts = engine.EvaluateAll(ctx, scoredEntry(500, 80, domain.LabelFraud), sig)
	if len(alerts) != 0 {
		t.Fatalf("daytime entry must not match, got %d alerts", len(alerts))
	}
}

func TestDisabledRuleNotEvaluated(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Save(ctx, domain.AlertRule{
		ID:         "disabled-rule",
		Expression: "amount > 0.0",
		Message:    "always",
		Enabled:    false,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if engine.RulesCount() != 0 {
		t.Error("disabled rule must not compile")
	}
	if len(engine.Rules()) != 1 {
		t.Error("disabled rule must still list")
	}
	if alerts := engine.EvaluateAll(ctx, scoredEntry(100, 20, domain.LabelLegit), domain.Signals{}); len(alerts) != 0 {
		t.Error("disabled rule must not fire")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	kv := store.NewMemoryStore()
	ctx := context.Background()

	engine, err := NewEngine(kv, 5)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := engine.Save(ctx, domain.AlertRule{
		ID:         "persisted",
		Expression: "risk > 90.0",
		Message:    "extreme risk",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	engine.Close()

	// Fresh engine over the same store picks the rule up.
	reloaded, err := NewEngine(kv, 5)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer reloaded.Close()

	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.RulesCount() != 1 {
		t.Fatalf("expected 1 rule after reload, got %d", reloaded.RulesCount())
	}

	alerts := reloaded.EvaluateAll(ctx, scoredEntry(100, 95, domain.LabelFraud), domain.Signals{})
	if len(alerts) != 1 {
		t.Errorf("expected reloaded rule to fire, got %d alerts", len(alerts))
	}
}

func TestLoadToleratesMalformedRules(t *testing.T) {
	kv := store.NewMemoryStore()
	ctx := context.Background()
	_ = kv.Set(ctx, domain.KeyRules, []byte("{broken"))

	engine, err := NewEngine(kv, 5)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Close()

	if err := engine.Load(ctx); err != nil {
		t.Fatalf("Load must not fail on malformed data: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Error("malformed data must degrade to no rules")
	}
}

func TestParallelEvaluation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := engine.Save(ctx, domain.AlertRule{
			ID:         fmt.Sprintf("rule-%d", i),
			Name:       fmt.Sprintf("Rule %d", i),
			Expression: "amount > 0.0",
			Message:    fmt.Sprintf("match %d", i),
			Enabled:    true,
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	if engine.RulesCount() != 10 {
		t.Fatalf("expected 10 rules, got %d", engine.RulesCount())
	}

	alerts := engine.EvaluateAll(ctx, scoredEntry(100, 20, domain.LabelLegit), domain.Signals{})
	if len(alerts) != 10 {
		t.Errorf("expected 10 alerts, got %d", len(alerts))
	}
}

func TestSaveUpsertsByID(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Save(ctx, domain.AlertRule{
		ID:         "r1",
		Expression: "amount > 100.0",
		Message:    "v1",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := engine.Save(ctx, domain.AlertRule{
		ID:         "r1",
		Expression: "amount > 200.0",
		Message:    "v2",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if n := len(engine.Rules()); n != 1 {
		t.Fatalf("expected 1 rule after upsert, got %d", n)
	}

	alerts := engine.EvaluateAll(ctx, scoredEntry(150, 20, domain.LabelLegit), domain.Signals{})
	if len(alerts) != 0 {
		t.Error("updated expression must apply (150 is under the new 200 limit)")
	}
}
