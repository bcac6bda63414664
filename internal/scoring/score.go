// Package scoring implements the deterministic risk heuristic that stands
// in for a backend model: a weighted scoring function plus a structured
// natural-language explanation generator. Both are pure functions.
package scoring

import (
	"math"
	"strings"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Scoring constants. The weights and the /2 normalization are a fixed
// design choice, not derived from data; they must not drift because stored
// history entries encode their output.
const (
	amountSaturation = 100000 // currency units at which the amount factor saturates
	ageHalfLifeDays  = 365

	kycVerifiedFactor   = 0.15
	kycUnverifiedFactor = 0.8

	onlineChannelFactor  = 1.1
	offlineChannelFactor = 0.9

	amountWeight  = 0.35
	ageWeight     = 0.25
	kycWeight     = 0.25
	channelWeight = 0.15
)

// Score computes the raw risk score in [0,1] for a transaction. Pure and
// deterministic: higher amounts, younger accounts, missing KYC and the
// online channel all push the score up.
func Score(tx domain.Transaction) float64 {
	amountFactor := math.Min(tx.TransactionAmount/amountSaturation, 1)

	// Max risk at 0 days, decaying over account lifetime.
	ageFactor := math.Exp(-tx.AccountAgeDays / ageHalfLifeDays)

	kycFactor := kycUnverifiedFactor
	if tx.KYCVerified {
		kycFactor = kycVerifiedFactor
	}

	channelFactor := offlineChannelFactor
	if strings.Contains(strings.ToLower(tx.Channel), "online") {
		channelFactor = onlineChannelFactor
	}

	raw := (amountWeight*amountFactor + ageWeight*ageFactor + kycWeight*kycFactor + channelWeight*channelFactor) / 2

	return math.Min(1, math.Max(0, raw))
}

// RiskPercent converts a raw score to the percentage scale stored on
// history entries, rounded to two decimals.
func RiskPercent(raw float64) float64 {
	return math.Round(raw*10000) / 100
}

// Label maps a raw score to its prediction label.
func Label(raw float64) string {
	if raw >= domain.FraudThreshold {
		return domain.LabelFraud
	}
	return domain.LabelLegit
}
