package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fraudshield/fraudshield/internal/alerts"
	"github.com/fraudshield/fraudshield/internal/bus"
	"github.com/fraudshield/fraudshield/internal/domain"
	"github.com/fraudshield/fraudshield/internal/engine"
	"github.com/fraudshield/fraudshield/internal/history"
	"github.com/fraudshield/fraudshield/internal/rules"
	"github.com/fraudshield/fraudshield/internal/store"
)

func newTestEngine(t *testing.T, eventBus domain.EventBus) *engine.Engine {
	t.Helper()

	kv := store.NewMemoryStore()
	ruleEngine, err := rules.NewEngine(kv, 5)
	if err != nil {
		t.Fatalf("rules.NewEngine: %v", err)
	}
	t.Cleanup(func() { ruleEngine.Close() })

	return engine.New(
		history.NewStore(kv),
		history.NewBatchData(kv),
		alerts.NewManager(),
		ruleEngine,
		nil,
		eventBus,
		domain.EngineConfig{BatchChunkSize: 20},
	)
}

func TestWorkerStartAndStop(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := NewWorker(eventBus, newTestEngine(t, eventBus))

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 1 {
		t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
	}
	if stats.Topics[0] != domain.TopicRowsIngested {
		t.Errorf("expected ingest topic, got %s", stats.Topics[0])
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	stats = w.GetStats()
	if stats.SubscriptionCount != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
	}
}

func TestWorkerProcessesIngestedRows(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	eng := newTestEngine(t, eventBus)
	w := NewWorker(eventBus, eng)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Track history-changed events emitted after async scoring.
	var changed atomic.Bool
	eventBus.Subscribe(context.Background(), domain.TopicHistoryChanged, func(ctx context.Context, msg *domain.Message) error {
		changed.Store(true)
		return nil
	})

	// Allow subscriptions to be active
	time.Sleep(50 * time.Millisecond)

	payload, _ := json.Marshal(RowsMessage{
		TraceID: "trace-001",
		Rows: []map[string]any{
			{"transaction_id": "T_1", "customer_id": "C1", "transaction_amount": 500.0, "account_age_days": 730.0, "kyc_verified": true, "channel": "ATM", "timestamp": "2025-06-01T10:00:00Z"},
			{"transaction_id": "T_2", "customer_id": "C2", "transaction_amount": 50000.0, "account_age_days": 5.0, "kyc_verified": false, "channel": "Online", "timestamp": "2025-06-01T02:00:00Z"},
		},
	})
	if err := eventBus.Publish(context.Background(), domain.TopicRowsIngested, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Wait for processing
	deadline := time.After(2 * time.Second)
	for eng.History().Len() < 2 {
		select {
		case <-deadline:
			t.Fatalf("timeout: history len %d, want 2", eng.History().Len())
		case <-time.After(10 * time.Millisecond):
		}
	}

	entries := eng.History().Entries()
	if entries[0].TransactionID != "T_2" {
		t.Errorf("newest entry = %s, want T_2", entries[0].TransactionID)
	}

	// The uploaded rows must become the current batch, mirroring a sync
	// upload: GET /batch sees them and the batch-average signal is fed.
	if got := eng.Batch().Len(); got != 2 {
		t.Errorf("batch len = %d, want 2", got)
	}
	if avg, ok := eng.Batch().AvgAmountForCustomer("C1"); !ok || avg != 500 {
		t.Errorf("batch avg for C1 = %v (ok=%v), want 500", avg, ok)
	}

	time.Sleep(50 * time.Millisecond)
	if !changed.Load() {
		t.Error("expected history-changed event after async scoring")
	}
}

func TestWorkerSkipsMalformedPayload(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	eng := newTestEngine(t, eventBus)
	w := NewWorker(eventBus, eng)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)

	eventBus.Publish(context.Background(), domain.TopicRowsIngested, []byte("{not json"))
	time.Sleep(100 * time.Millisecond)

	if eng.History().Len() != 0 {
		t.Error("malformed payload must not produce history entries")
	}
}

func TestRowsMessageParsing(t *testing.T) {
	msg := RowsMessage{
		TraceID: "trace-456",
		Rows: []map[string]any{
			{"transaction_id": "T_1", "amount": 1234.56},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed RowsMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.TraceID != msg.TraceID {
		t.Errorf("expected TraceID '%s', got '%s'", msg.TraceID, parsed.TraceID)
	}
	if len(parsed.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(parsed.Rows))
	}
}
