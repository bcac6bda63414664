package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// ErrBatchNotPersisted signals a failed write-through of the uploaded batch.
var ErrBatchNotPersisted = errors.New("batch rows not persisted")

// BatchData holds the most recently uploaded batch of normalized rows. It
// backs the per-customer average-amount signal and the dashboard analytics,
// and persists under its own storage key.
type BatchData struct {
	mu   sync.RWMutex
	rows []domain.Transaction
	kv   domain.Store
}

// NewBatchData creates a batch-row store backed by the persistence adapter.
func NewBatchData(kv domain.Store) *BatchData {
	return &BatchData{kv: kv}
}

// Load reads persisted batch rows; missing keys or malformed JSON degrade
// to an empty batch.
func (b *BatchData) Load(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := b.kv.Get(ctx, domain.KeyBatchRows)
	if err != nil {
		return fmt.Errorf("failed to load batch rows: %w", err)
	}
	if raw == nil {
		b.rows = nil
		return nil
	}

	var rows []domain.Transaction
	if err := json.Unmarshal(raw, &rows); err != nil {
		slog.Warn("discarding malformed persisted batch rows", "error", err)
		b.rows = nil
		return nil
	}
	b.rows = rows
	return nil
}

// Replace swaps in a freshly uploaded batch and persists it.
func (b *BatchData) Replace(ctx context.Context, rows []domain.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rows = rows
	return b.persistLocked(ctx)
}

// Clear removes the batch.
func (b *BatchData) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rows = nil
	if err := b.kv.Delete(ctx, domain.KeyBatchRows); err != nil {
		return fmt.Errorf("%w: %v", ErrBatchNotPersisted, err)
	}
	return nil
}

// Rows returns a snapshot copy of the batch.
func (b *BatchData) Rows() []domain.Transaction {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Transaction, len(b.rows))
	copy(out, b.rows)
	return out
}

// Len returns the batch size.
func (b *BatchData) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rows)
}

// AvgAmountForCustomer returns the mean transaction amount over the batch
// rows for a customer, ok=false when the customer has no rows.
func (b *BatchData) AvgAmountForCustomer(customerID string) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var sum float64
	var n int
	for _, r := range b.rows {
		if r.CustomerID == customerID {
			sum += r.TransactionAmount
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (b *BatchData) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(b.rows)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBatchNotPersisted, err)
	}
	if err := b.kv.Set(ctx, domain.KeyBatchRows, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrBatchNotPersisted, err)
	}
	return nil
}
