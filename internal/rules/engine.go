// Package rules provides the CEL-Go based custom alert rule engine.
// Operators define boolean expressions over scored entries; matching rules
// emit custom-rule alerts next to the built-in checks.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/uuid"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Engine compiles and evaluates custom alert rules. Rules persist as a
// JSON list in the key-value store and are hot-reloadable.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   map[string]*CompiledRule
	all        []domain.AlertRule
	kv         domain.Store
	maxWorkers int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    domain.AlertRule
	Program cel.Program
}

// NewEngine creates a rule engine backed by the given store.
func NewEngine(kv domain.Store, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment over the scored-entry fields
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("risk", cel.DoubleType),
		cel.Variable("prediction", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("fraud_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		compiled:   make(map[string]*CompiledRule),
		kv:         kv,
		maxWorkers: maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule domain.AlertRule) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// Load reads persisted rules and compiles the enabled ones. Missing keys
// and malformed JSON degrade to an empty rule set.
func (e *Engine) Load(ctx context.Context) error {
	raw, err := e.kv.Get(ctx, domain.KeyRules)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	var rules []domain.AlertRule
	if raw != nil {
		if err := json.Unmarshal(raw, &rules); err != nil {
			slog.Warn("discarding malformed persisted rules", "error", err)
			rules = nil
		}
	}

	return e.ReloadRules(rules)
}

// Save upserts a rule into the persisted list, compiling it first so bad
// expressions never reach the store. Assigns an ID when missing. The rule
// takes effect immediately.
func (e *Engine) Save(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return domain.AlertRule{}, err
	}

	replaced := false
	for i, r := range e.all {
		if r.ID == rule.ID {
			e.all[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		e.all = append(e.all, rule)
	}

	if err := e.persistLocked(ctx); err != nil {
		return domain.AlertRule{}, err
	}

	if rule.Enabled {
		e.compiled[rule.ID] = compiled
	} else {
		delete(e.compiled, rule.ID)
	}

	return rule, nil
}

// ReloadRules replaces all loaded rules. Disabled rules are retained in
// the listing but not compiled.
func (e *Engine) ReloadRules(rules []domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newCompiled := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newCompiled[rule.ID] = compiled
	}

	e.all = rules
	e.compiled = newCompiled

	return nil
}

// Rules returns all persisted rules, enabled or not.
func (e *Engine) Rules() []domain.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.AlertRule, len(e.all))
	copy(out, e.all)
	return out
}

// RulesCount returns the number of compiled (enabled) rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// EvaluateAll evaluates all enabled rules against a scored entry in
// parallel and returns one custom-rule alert per matching rule.
func (e *Engine) EvaluateAll(ctx context.Context, entry domain.HistoryEntry, sig domain.Signals) []domain.Alert {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiled))
	for _, rule := range e.compiled {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"amount":      entry.TransactionAmount,
		"risk":        entry.Risk,
		"prediction":  entry.Prediction,
		"customer_id": entry.CustomerID,
		"channel":     entry.Channel,
		"hour":        int64(sig.Hour),
		"fraud_count": int64(sig.RecentFraudCount),
	}

	// Parallel evaluation using worker pool pattern
	matched := make([]bool, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			out, _, err := r.Program.Eval(activation)
			if err != nil {
				slog.Warn("rule evaluation error",
					"rule_id", r.Rule.ID,
					"rule_name", r.Rule.Name,
					"error", err,
				)
				return
			}
			matched[idx] = toBool(out)
		}(i, rule)
	}

	wg.Wait()

	var alerts []domain.Alert
	for i, rule := range rules {
		if !matched[i] {
			continue
		}
		alerts = append(alerts, domain.Alert{
			Type:          domain.AlertCustomRule,
			Message:       fmt.Sprintf("%s [%s]", rule.Rule.Message, rule.Rule.Name),
			TransactionID: entry.TransactionID,
			CustomerID:    entry.CustomerID,
			Amount:        entry.TransactionAmount,
			Prediction:    entry.Prediction,
		})
	}
	return alerts
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledRule)
	e.all = nil
	return nil
}

func (e *Engine) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(e.all)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	if err := e.kv.Set(ctx, domain.KeyRules, raw); err != nil {
		return fmt.Errorf("failed to persist rules: %w", err)
	}
	return nil
}

func (e *Engine) compileRule(rule domain.AlertRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}

// toBool converts a CEL value to a match decision.
func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}
