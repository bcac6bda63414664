package domain

// Prediction labels.
const (
	LabelFraud = "Fraud"
	LabelLegit = "Legit"
)

// FraudThreshold is the raw-score boundary for the Fraud label:
// prediction == Fraud ⟺ raw risk score >= 0.5.
const FraudThreshold = 0.5

// DefaultAvgCustomerAmount is the fallback average used when no batch data
// exists for a customer.
const DefaultAvgCustomerAmount = 2000

// Signals is the derived per-prediction context fed to the explanation
// generator alongside the transaction itself.
type Signals struct {
	// AvgCustomerAmount is the mean transaction amount over the known
	// batch rows for this customer, DefaultAvgCustomerAmount when none.
	AvgCustomerAmount float64 `json:"avg_customer_amount"`

	// Hour is the hour-of-day [0,23] extracted from the transaction
	// timestamp.
	Hour int `json:"hour"`

	// RecentFraudCount is the number of Fraud-labelled history entries for
	// this customer. Despite the name it is computed over the full retained
	// history with no time window; see the pattern-detection notes.
	RecentFraudCount int `json:"recent_fraud_count"`
}

// Explanation is the structured output of the explanation generator.
type Explanation struct {
	// Short is the top risk factor, or a fixed all-clear message.
	Short string `json:"short"`

	// Detail is the full factor list joined with " | ".
	Detail string `json:"detail"`
}

// CaptureTimeLayout is the human-readable format of HistoryEntry.Time.
const CaptureTimeLayout = "2006-01-02 15:04:05"

// HistoryEntry is the persisted record of a single prediction. Entries are
// created exclusively by the prediction engine and are immutable once
// created, except for deletion by index.
type HistoryEntry struct {
	Transaction

	// Prediction is LabelFraud or LabelLegit.
	Prediction string `json:"prediction"`

	// Risk is the percentage-scale risk score, rounded to two decimals.
	Risk float64 `json:"risk"`

	// Reason is the explanation detail; Summary its top factor.
	Reason  string `json:"reason"`
	Summary string `json:"summary"`

	// Time is the human-readable capture time of the prediction.
	Time string `json:"time"`
}

// PredictionResult is the immediate response for a scored transaction.
type PredictionResult struct {
	Entry  HistoryEntry `json:"entry"`
	Alerts []Alert      `json:"alerts,omitempty"`

	// Persisted is false when the history write failed; the in-memory
	// history remains authoritative for the session.
	Persisted bool `json:"persisted"`
}

// BatchResult summarises a chunked batch prediction run.
type BatchResult struct {
	Entries    []HistoryEntry `json:"entries"`
	FraudCount int            `json:"fraud_count"`
	LegitCount int            `json:"legit_count"`

	// Interrupted is true when the run was cancelled between chunks;
	// entries already computed remain valid partial progress.
	Interrupted bool `json:"interrupted"`
}
