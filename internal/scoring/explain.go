package scoring

import (
	"fmt"
	"strings"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Explanation thresholds.
const (
	newAccountDays       = 30
	establishedDays      = 365
	youngAccountAmount   = 10000
	unusualAmountRatio   = 5
	normalSpendingRatio  = 2
	lateNightHour        = 6
	fraudHistoryMinCount = 2

	maxRiskFactors  = 4
	factorDelimiter = " | "
)

// Fixed messages.
const (
	legitimateSummary = "Transaction appears legitimate"
	allChecksPassed   = "All checks passed. Normal transaction profile."
	positivesHeading  = "Positive factors:"
)

// Explain produces the structured explanation for a scored transaction.
// Risk-factor checks run in a fixed order and are not mutually exclusive
// with the positive-factor checks. Pure and deterministic; this is the seam
// where a real model explanation service would be invoked.
func Explain(tx domain.Transaction, sig domain.Signals) domain.Explanation {
	avg := sig.AvgCustomerAmount
	if avg == 0 {
		avg = domain.DefaultAvgCustomerAmount
	}

	var risks []string

	if !tx.KYCVerified {
		risks = append(risks, "KYC not verified - high risk indicator")
	}
	if tx.AccountAgeDays < newAccountDays {
		risks = append(risks, "New account - less than 30 days old")
	}
	if tx.AccountAgeDays < establishedDays && tx.TransactionAmount > youngAccountAmount {
		risks = append(risks, "Young account + high amount - suspicious combination")
	}
	if tx.TransactionAmount > avg*unusualAmountRatio {
		ratio := tx.TransactionAmount / avg
		risks = append(risks, fmt.Sprintf("Unusual amount - %.1fx above customer average", ratio))
	}
	if strings.Contains(strings.ToLower(tx.Channel), "online") && sig.Hour < lateNightHour {
		risks = append(risks, fmt.Sprintf("Unusual timing - online at %d:00 (late night/early morning)", sig.Hour))
	}
	if sig.RecentFraudCount >= fraudHistoryMinCount {
		risks = append(risks, fmt.Sprintf("Fraud history - %d recent fraud(s) on this customer", sig.RecentFraudCount))
	}

	var positives []string

	if tx.KYCVerified {
		positives = append(positives, "KYC verified")
	}
	if tx.AccountAgeDays > establishedDays {
		years := int(tx.AccountAgeDays / establishedDays)
		positives = append(positives, fmt.Sprintf("Established account (%d years)", years))
	}
	if tx.TransactionAmount <= avg*normalSpendingRatio {
		positives = append(positives, "Within normal spending range")
	}
	if sig.RecentFraudCount == 0 {
		positives = append(positives, "No fraud history")
	}

	if len(risks) > maxRiskFactors {
		risks = risks[:maxRiskFactors]
	}

	short := legitimateSummary
	if len(risks) > 0 {
		short = risks[0]
	}

	parts := risks
	if len(positives) > 0 {
		parts = append(parts, positivesHeading)
		parts = append(parts, positives...)
	}

	detail := strings.Join(parts, factorDelimiter)
	if detail == "" {
		detail = allChecksPassed
	}

	return domain.Explanation{Short: short, Detail: detail}
}
