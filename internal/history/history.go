// Package history owns the prediction history collection: a prepend-ordered
// list of history entries, FIFO-capped, persisted through the key-value
// store port. The in-memory copy is authoritative for the session; a failed
// persist is surfaced as a recoverable condition, never a crash.
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

var (
	// ErrNotPersisted signals that an in-memory mutation succeeded but the
	// write-through to the store failed. Callers may surface it to the UI
	// and continue; history is not lost for the session.
	ErrNotPersisted = errors.New("history not persisted")

	// ErrIndexOutOfRange is returned for deletions past the end.
	ErrIndexOutOfRange = errors.New("history index out of range")
)

// Store holds the ordered history collection. Index 0 is always the most
// recent entry. Mutations happen only on the request path; the mutex
// serializes concurrent HTTP callers so each load-modify-persist cycle is
// logically atomic.
type Store struct {
	mu      sync.RWMutex
	entries []domain.HistoryEntry
	maxSize int
	kv      domain.Store
}

// NewStore creates a history store backed by the given persistence adapter.
func NewStore(kv domain.Store) *Store {
	return &Store{
		maxSize: domain.MaxHistoryEntries,
		kv:      kv,
	}
}

// Load reads the persisted history into memory. Missing keys and malformed
// JSON both degrade to an empty collection.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(ctx, domain.KeyHistory)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if raw == nil {
		s.entries = nil
		return nil
	}

	var entries []domain.HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("discarding malformed persisted history", "error", err)
		s.entries = nil
		return nil
	}

	if len(entries) > s.maxSize {
		entries = entries[:s.maxSize]
	}
	s.entries = entries
	return nil
}

// Append prepends a new entry, evicts past the cap, and persists. On
// persist failure the entry stays in memory and ErrNotPersisted is
// returned.
func (s *Store) Append(ctx context.Context, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]domain.HistoryEntry{entry}, s.entries...)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[:s.maxSize]
	}

	return s.persistLocked(ctx)
}

// AppendAll prepends a batch of entries in order (first entry of the batch
// ends up most recent) and persists once.
func (s *Store) AppendAll(ctx context.Context, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]domain.HistoryEntry, 0, len(entries)+len(s.entries))
	merged = append(merged, entries...)
	merged = append(merged, s.entries...)
	if len(merged) > s.maxSize {
		merged = merged[:s.maxSize]
	}
	s.entries = merged

	return s.persistLocked(ctx)
}

// RemoveAt deletes the entry at the given index.
func (s *Store) RemoveAt(ctx context.Context, idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx < 0 || idx >= len(s.entries) {
		return ErrIndexOutOfRange
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)

	return s.persistLocked(ctx)
}

// Clear drops all entries.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	return s.persistLocked(ctx)
}

// Entries returns a snapshot copy of the full history, newest first.
func (s *Store) Entries() []domain.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the current history size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// FraudCountForCustomer counts Fraud-labelled entries for a customer over
// the full retained history. No time window is applied; "recent" in the
// signal name is historical naming kept for output parity.
func (s *Store) FraudCountForCustomer(customerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.CustomerID == customerID && e.Prediction == domain.LabelFraud {
			count++
		}
	}
	return count
}

// AvgAmountForCustomer returns the mean transaction amount over all history
// entries for a customer. Returns 0 with ok=false when the customer has no
// entries.
func (s *Store) AvgAmountForCustomer(customerID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	var n int
	for _, e := range s.entries {
		if e.CustomerID == customerID {
			sum += e.TransactionAmount
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	if err := s.kv.Set(ctx, domain.KeyHistory, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return nil
}
