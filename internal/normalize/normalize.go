// Package normalize converts loosely-typed input rows into the canonical
// Transaction shape. Rows arrive from form submissions or uploaded batches
// with arbitrary header keys; normalization is tolerant and never fails.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Alias tables, resolved by first match in order. Keys are matched exactly
// after lower-casing.
var (
	aliasTransactionID = []string{"transaction_id", "txn_id", "id"}
	aliasCustomerID    = []string{"customer_id", "customer", "cust"}
	aliasKYC           = []string{"kyc_verified", "kyc", "is_kyc"}
	aliasAccountAge    = []string{"account_age_days", "account_age", "age_days"}
	aliasAmount        = []string{"transaction_amount", "amount", "txn_amount"}
	aliasChannel       = []string{"channel", "txn_channel", "method"}
	aliasTimestamp     = []string{"timestamp", "time"}
	aliasIsFraud       = []string{"is_fraud", "fraud"}
)

// DefaultChannel is assumed for rows that carry no channel column.
const DefaultChannel = "Online"

// Row normalizes a loosely-typed row into a Transaction. Missing or
// malformed fields coerce to defaults; a missing transaction ID is
// generated from the current epoch milliseconds.
func Row(raw map[string]any) domain.Transaction {
	row := lowerKeys(raw)

	id := asString(pick(row, aliasTransactionID))
	if id == "" {
		id = NewTransactionID()
	}

	channel := asString(pick(row, aliasChannel))
	if channel == "" {
		channel = DefaultChannel
	}

	ts := asString(pick(row, aliasTimestamp))
	if ts == "" {
		ts = time.Now().Format(time.RFC3339)
	}

	return domain.Transaction{
		TransactionID:     id,
		CustomerID:        asString(pick(row, aliasCustomerID)),
		KYCVerified:       asBool(pick(row, aliasKYC)),
		AccountAgeDays:    asFloat(pick(row, aliasAccountAge)),
		TransactionAmount: asFloat(pick(row, aliasAmount)),
		Channel:           channel,
		Timestamp:         ts,
		IsFraud:           asBool(pick(row, aliasIsFraud)),
	}
}

// Verifier reports stored KYC verifications. Satisfied by kyc.Registry.
type Verifier interface {
	IsVerified(customerID string) bool
}

// RowWithKYC normalizes like Row but, when the row carries no KYC column
// at all, defaults KYCVerified from the verifier's records for the
// customer. An explicit KYC value in the row always wins.
func RowWithKYC(raw map[string]any, verifier Verifier) domain.Transaction {
	tx := Row(raw)
	if verifier == nil || tx.CustomerID == "" || tx.KYCVerified {
		return tx
	}
	if pick(lowerKeys(raw), aliasKYC) != nil {
		return tx
	}
	tx.KYCVerified = verifier.IsVerified(tx.CustomerID)
	return tx
}

// NewTransactionID generates a client-side transaction ID. Uniqueness is
// by construction only (epoch milliseconds), matching the wire format of
// batch uploads.
func NewTransactionID() string {
	return fmt.Sprintf("T_%d", time.Now().UnixMilli())
}

func lowerKeys(raw map[string]any) map[string]any {
	row := make(map[string]any, len(raw))
	for k, v := range raw {
		row[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return row
}

func pick(row map[string]any, aliases []string) any {
	for _, key := range aliases {
		if v, ok := row[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		if s {
			return "1"
		}
		return "0"
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", s))
	}
}

// asFloat coerces numeric-ish values; empty or non-numeric input becomes 0.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "yes", "y":
			return true
		}
		return false
	default:
		return asFloat(v) != 0
	}
}
