// Package worker provides async row processing for the Pro tier. Rows
// published to the ingest topic are scored through the prediction engine
// off the request path.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/engine"
	"github.com/fraudshield/fraudshield/internal/history"
)

// Worker consumes ingested rows from the EventBus and runs batch
// predictions asynchronously.
type Worker struct {
	bus    domain.EventBus
	engine *engine.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, eng *engine.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the row ingest topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicRowsIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("ingest worker started",
		"topic", domain.TopicRowsIngested,
	)
	return nil
}

// RowsMessage is the payload published to the ingest topic: raw
// loosely-typed rows, normalized by the worker before scoring.
type RowsMessage struct {
	TraceID string           `json:"traceId,omitempty"`
	Rows    []map[string]any `json:"rows"`
}

// handleMessage stores one batch of ingested rows and scores it. Ingest
// mirrors the sync upload contract: the rows become the current batch
// (feeding the per-customer average signal) before scoring starts.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var rowsMsg RowsMessage
	if err := json.Unmarshal(msg.Payload, &rowsMsg); err != nil {
		slog.Error("failed to parse rows message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	traceID := rowsMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	rows, err := w.engine.IngestRows(ctx, rowsMsg.Rows)
	if err != nil {
		if !errors.Is(err, history.ErrBatchNotPersisted) {
			slog.Error("async batch ingest failed",
				"trace_id", traceID,
				"error", err,
			)
			return err
		}
		slog.Warn("ingested rows not persisted",
			"trace_id", traceID,
			"error", err,
		)
	}

	slog.Debug("processing ingested rows",
		"trace_id", traceID,
		"rows", len(rows),
	)

	result, err := w.engine.PredictBatch(ctx, rows)
	if err != nil {
		slog.Error("async batch prediction failed",
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	slog.Info("ingested rows processed",
		"trace_id", traceID,
		"rows", len(rows),
		"fraud", result.FraudCount,
		"legit", result.LegitCount,
		"interrupted", result.Interrupted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("ingest worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
