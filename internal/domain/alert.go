package domain

// Alert types.
const (
	AlertHighRisk      = "high-risk"
	AlertRepeatFraud   = "repeat-fraud"
	AlertUnusualAmount = "unusual-amount"
	AlertCustomRule    = "custom-rule"
)

// Alert thresholds and window sizes.
const (
	// HighRiskAlertThreshold is on the percentage risk scale.
	HighRiskAlertThreshold = 75.0

	// RepeatFraudAlertThreshold is the fraud-case count a customer must
	// exceed before a repeat-fraud alert fires.
	RepeatFraudAlertThreshold = 2

	// AlertWindow is how many of the most recent history entries are
	// re-evaluated on every history change.
	AlertWindow = 10

	// MaxAlerts caps the retained alert list.
	MaxAlerts = 20
)

// Alert is an ephemeral, derived record. Alerts are recomputed from the
// most recent history entries on every history change, collapsed to unique
// messages, and capped at MaxAlerts.
type Alert struct {
	Type          string  `json:"type"`
	Message       string  `json:"message"`
	TransactionID string  `json:"transactionId"`
	CustomerID    string  `json:"customerId"`
	Amount        float64 `json:"amount"`
	Prediction    string  `json:"prediction"`
}
