package domain

import (
	"time"
)

// Transaction is the canonical shape of an incoming transaction, produced
// by the row normalizer from a form submission or an uploaded batch row.
type Transaction struct {
	TransactionID string `json:"transaction_id"`
	CustomerID    string `json:"customer_id"`

	// Financial details
	TransactionAmount float64 `json:"transaction_amount"`

	// Account context
	AccountAgeDays float64 `json:"account_age_days"`
	KYCVerified    bool    `json:"kyc_verified"`

	// Channel is free-form; known values include "Online", "ATM", "POS",
	// "Mobile", "Branch". Unknown values are permitted.
	Channel string `json:"channel"`

	// Timestamp is the ISO-8601 transaction time as supplied by the caller.
	Timestamp string `json:"timestamp"`

	// IsFraud carries the ground-truth label from uploaded datasets, when
	// present. It is never consulted by the scorer.
	IsFraud bool `json:"is_fraud,omitempty"`
}

// Time parses the transaction timestamp. A zero time is returned for
// timestamps that cannot be parsed.
func (t *Transaction) Time() time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, t.Timestamp); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Hour extracts the hour-of-day [0,23] from the transaction timestamp.
// Unparseable timestamps fall back to noon, the neutral hour for the
// unusual-timing check.
func (t *Transaction) Hour() int {
	ts := t.Time()
	if ts.IsZero() {
		return 12
	}
	return ts.Hour()
}
