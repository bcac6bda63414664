// Package engine orchestrates the prediction pipeline: normalize, derive
// signals, score, explain, record to history, evaluate alerts, publish
// events.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fraudshield/fraudshield/internal/alerts"
	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/history"
	"github.com/fraudshield/fraudshield/internal/normalize"
	"github.com/fraudshield/fraudshield/internal/patterns"
	"github.com/fraudshield/fraudshield/internal/rules"
	"github.com/fraudshield/fraudshield/internal/scoring"
)

// Engine is the prediction engine. All mutations of history, batch data
// and alerts flow through it.
type Engine struct {
	history  *history.Store
	batch    *history.BatchData
	alerts   *alerts.Manager
	rules    *rules.Engine
	verifier normalize.Verifier
	bus      domain.EventBus

	chunkSize int

	// now is swappable for deterministic capture times in tests.
	now func() time.Time
}

// New creates a prediction engine. The verifier supplies KYC defaults for
// rows that carry no KYC column; nil disables the lookup.
func New(hist *history.Store, batch *history.BatchData, mgr *alerts.Manager, ruleEngine *rules.Engine, verifier normalize.Verifier, bus domain.EventBus, cfg domain.EngineConfig) *Engine {
	chunk := cfg.BatchChunkSize
	if chunk <= 0 {
		chunk = 20
	}
	return &Engine{
		history:   hist,
		batch:     batch,
		alerts:    mgr,
		rules:     ruleEngine,
		verifier:  verifier,
		bus:       bus,
		chunkSize: chunk,
		now:       time.Now,
	}
}

// Normalize converts a raw row into a Transaction, consulting the KYC
// registry for customers whose rows omit the KYC column.
func (e *Engine) Normalize(raw map[string]any) domain.Transaction {
	return normalize.RowWithKYC(raw, e.verifier)
}

// History exposes the underlying history store.
func (e *Engine) History() *history.Store { return e.history }

// Batch exposes the uploaded batch data.
func (e *Engine) Batch() *history.BatchData { return e.batch }

// Alerts exposes the alert manager.
func (e *Engine) Alerts() *alerts.Manager { return e.alerts }

// Rules exposes the custom rule engine.
func (e *Engine) Rules() *rules.Engine { return e.rules }

// Predict scores a single transaction end to end: the entry is recorded,
// alerts are refreshed and events published. A persistence failure does not
// abort the prediction; the result carries Persisted=false.
func (e *Engine) Predict(ctx context.Context, tx domain.Transaction) (domain.PredictionResult, error) {
	entry, sig := e.score(tx)

	persisted := true
	if err := e.history.Append(ctx, entry); err != nil {
		if !errors.Is(err, history.ErrNotPersisted) {
			return domain.PredictionResult{}, err
		}
		slog.Warn("prediction recorded in memory only",
			"transaction_id", entry.TransactionID,
			"error", err,
		)
		persisted = false
	}

	alertList := e.refreshAlerts(ctx, entry, sig)
	e.publishChange(ctx, 1)

	return domain.PredictionResult{
		Entry:     entry,
		Alerts:    alertList,
		Persisted: persisted,
	}, nil
}

// Patterns returns the fraud patterns over the current history.
func (e *Engine) Patterns() domain.FraudPatterns {
	return patterns.Detect(e.history.Entries())
}

// CustomerProfile summarises one customer's retained history.
func (e *Engine) CustomerProfile(customerID string) domain.CustomerProfile {
	return patterns.Profile(e.history.Entries(), customerID)
}

// RemoveHistoryEntry deletes one entry and refreshes derived state.
func (e *Engine) RemoveHistoryEntry(ctx context.Context, idx int) error {
	if err := e.history.RemoveAt(ctx, idx); err != nil {
		return err
	}
	e.alerts.Refresh(e.history.Entries(), nil)
	e.publishChange(ctx, -1)
	return nil
}

// ClearHistory drops the history and alerts.
func (e *Engine) ClearHistory(ctx context.Context) error {
	if err := e.history.Clear(ctx); err != nil {
		return err
	}
	e.alerts.Clear()
	e.publishChange(ctx, 0)
	return nil
}

// score runs the pure part of the pipeline and stamps the capture time.
func (e *Engine) score(tx domain.Transaction) (domain.HistoryEntry, domain.Signals) {
	sig := e.signals(tx)

	raw := scoring.Score(tx)
	expl := scoring.Explain(tx, sig)

	entry := domain.HistoryEntry{
		Transaction: tx,
		Prediction:  scoring.Label(raw),
		Risk:        scoring.RiskPercent(raw),
		Reason:      expl.Detail,
		Summary:     expl.Short,
		Time:        e.now().Format(domain.CaptureTimeLayout),
	}
	return entry, sig
}

// signals derives the per-prediction context. The customer average comes
// from the uploaded batch, falling back to the customer's own history,
// then to the fixed default.
func (e *Engine) signals(tx domain.Transaction) domain.Signals {
	avg, ok := e.batch.AvgAmountForCustomer(tx.CustomerID)
	if !ok {
		avg, ok = e.history.AvgAmountForCustomer(tx.CustomerID)
	}
	if !ok {
		avg = domain.DefaultAvgCustomerAmount
	}

	return domain.Signals{
		AvgCustomerAmount: avg,
		Hour:              tx.Hour(),
		RecentFraudCount:  e.history.FraudCountForCustomer(tx.CustomerID),
	}
}

// refreshAlerts recomputes the alert window, folding in custom rule
// matches for the freshly scored entry, and publishes per-alert events.
func (e *Engine) refreshAlerts(ctx context.Context, entry domain.HistoryEntry, sig domain.Signals) []domain.Alert {
	var custom []domain.Alert
	if e.rules != nil {
		custom = e.rules.EvaluateAll(ctx, entry, sig)
	}

	refreshed := e.alerts.Refresh(e.history.Entries(), custom)

	for _, a := range refreshed {
		if a.TransactionID == entry.TransactionID {
			e.publish(ctx, domain.TopicAlertGenerated, a)
		}
	}
	return refreshed
}

func (e *Engine) publishChange(ctx context.Context, delta int) {
	e.publish(ctx, domain.TopicHistoryChanged, map[string]any{
		"size":  e.history.Len(),
		"delta": delta,
	})
}

func (e *Engine) publish(ctx context.Context, topic string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, topic, data); err != nil {
		slog.Warn("event publish failed", "topic", topic, "error", err)
	}
}
