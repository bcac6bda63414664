// Package alerts implements the alert generator: three built-in checks
// evaluated against each scored entry, plus a windowed refresh that
// recomputes the retained alert list from the most recent history entries
// whenever the history changes.
package alerts

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Check runs the built-in alert checks for one entry against a full
// history snapshot (newest first, entry already appended). Pure;
// returns zero or more alerts.
func Check(entry domain.HistoryEntry, history []domain.HistoryEntry) []domain.Alert {
	var out []domain.Alert

	if entry.Risk > domain.HighRiskAlertThreshold {
		out = append(out, domain.Alert{
			Type:          domain.AlertHighRisk,
			Message:       fmt.Sprintf("High-risk transaction detected (%s%%)", formatNumber(entry.Risk)),
			TransactionID: entry.TransactionID,
			CustomerID:    entry.CustomerID,
			Amount:        entry.TransactionAmount,
			Prediction:    entry.Prediction,
		})
	}

	var frauds, total int
	var sum float64
	for _, h := range history {
		if h.CustomerID != entry.CustomerID {
			continue
		}
		total++
		sum += h.TransactionAmount
		if h.Prediction == domain.LabelFraud {
			frauds++
		}
	}

	if frauds > domain.RepeatFraudAlertThreshold {
		out = append(out, domain.Alert{
			Type:          domain.AlertRepeatFraud,
			Message:       fmt.Sprintf("Customer %s has %d fraud cases", entry.CustomerID, frauds),
			TransactionID: entry.TransactionID,
			CustomerID:    entry.CustomerID,
			Amount:        entry.TransactionAmount,
			Prediction:    entry.Prediction,
		})
	}

	// Mean over all of the customer's entries, including the new one.
	if total > 0 {
		avg := sum / float64(total)
		if entry.TransactionAmount > avg*2 {
			out = append(out, domain.Alert{
				Type:          domain.AlertUnusualAmount,
				Message:       fmt.Sprintf("Amount %s is 2x customer average (%.0f)", formatNumber(entry.TransactionAmount), avg),
				TransactionID: entry.TransactionID,
				CustomerID:    entry.CustomerID,
				Amount:        entry.TransactionAmount,
				Prediction:    entry.Prediction,
			})
		}
	}

	return out
}

// formatNumber renders a float without trailing zeros, so 82.5 prints as
// "82.5" and 5000 as "5000".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Manager owns the retained alert list. Alerts are ephemeral and derived:
// every history change triggers a full recompute over the alert window.
type Manager struct {
	mu     sync.RWMutex
	alerts []domain.Alert
}

// NewManager creates an empty alert manager.
func NewManager() *Manager {
	return &Manager{}
}

// Refresh recomputes the retained alerts: the built-in checks run for each
// of the AlertWindow most recent history entries, custom-rule alerts are
// appended, duplicates collapse to unique messages (last occurrence wins),
// and the list is capped to the MaxAlerts most recent. Returns the new
// snapshot.
func (m *Manager) Refresh(history []domain.HistoryEntry, custom []domain.Alert) []domain.Alert {
	window := domain.AlertWindow
	if window > len(history) {
		window = len(history)
	}

	var generated []domain.Alert

	// Oldest-to-newest within the window, so later entries override
	// duplicates from earlier ones.
	for i := window - 1; i >= 0; i-- {
		generated = append(generated, Check(history[i], history)...)
	}
	generated = append(generated, custom...)

	deduped := dedupe(generated)
	if len(deduped) > domain.MaxAlerts {
		deduped = deduped[len(deduped)-domain.MaxAlerts:]
	}

	m.mu.Lock()
	m.alerts = deduped
	m.mu.Unlock()

	return m.Alerts()
}

// Alerts returns a snapshot copy of the retained list.
func (m *Manager) Alerts() []domain.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Clear drops all retained alerts.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = nil
}

// dedupe collapses alerts to unique messages. First-occurrence order is
// preserved; the last alert with a given message wins.
func dedupe(in []domain.Alert) []domain.Alert {
	idx := make(map[string]int, len(in))
	var out []domain.Alert
	for _, a := range in {
		if i, ok := idx[a.Message]; ok {
			out[i] = a
			continue
		}
		idx[a.Message] = len(out)
		out = append(out, a)
	}
	return out
}
