package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/history"
	"github.com/fraudshield/fraudshield/internal/normalize"
)

// IngestRows normalizes raw uploaded rows, replaces the stored batch and
// publishes a batch-updated event. The rows feed the per-customer average
// signal and the analytics views. On a failed write-through the in-memory
// batch still holds the rows; they are returned alongside the error.
func (e *Engine) IngestRows(ctx context.Context, raw []map[string]any) ([]domain.Transaction, error) {
	rows := make([]domain.Transaction, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, normalize.RowWithKYC(r, e.verifier))
	}

	if err := e.batch.Replace(ctx, rows); err != nil {
		if !errors.Is(err, history.ErrBatchNotPersisted) {
			return nil, err
		}
		return rows, err
	}

	e.publish(ctx, domain.TopicBatchUpdated, map[string]any{"rows": len(rows)})
	return rows, nil
}

// PredictBatch scores rows in fixed-size chunks. Chunk boundaries never
// affect computed results; they only bound how much work happens between
// cancellation checks. On cancellation the entries already recorded remain
// valid partial progress and the result reports Interrupted.
func (e *Engine) PredictBatch(ctx context.Context, rows []domain.Transaction) (domain.BatchResult, error) {
	var result domain.BatchResult

	for start := 0; start < len(rows); start += e.chunkSize {
		select {
		case <-ctx.Done():
			result.Interrupted = true
			slog.Info("batch prediction interrupted",
				"scored", len(result.Entries),
				"total", len(rows),
			)
			return result, nil
		default:
		}

		end := start + e.chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		chunk := make([]domain.HistoryEntry, 0, end-start)
		var lastSig domain.Signals
		for _, tx := range rows[start:end] {
			entry, sig := e.score(tx)
			chunk = append(chunk, entry)
			lastSig = sig

			if entry.Prediction == domain.LabelFraud {
				result.FraudCount++
			} else {
				result.LegitCount++
			}
		}

		// Newest-first within the chunk: the last row scored lands at
		// index 0, matching one-at-a-time appends.
		reversed := make([]domain.HistoryEntry, len(chunk))
		for i, entry := range chunk {
			reversed[len(chunk)-1-i] = entry
		}
		if err := e.history.AppendAll(ctx, reversed); err != nil && !errors.Is(err, history.ErrNotPersisted) {
			return result, err
		}

		result.Entries = append(result.Entries, chunk...)

		if len(chunk) > 0 {
			e.refreshAlerts(ctx, chunk[len(chunk)-1], lastSig)
		}
	}

	e.publishChange(ctx, len(result.Entries))
	return result, nil
}
