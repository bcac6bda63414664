// Package patterns derives aggregate fraud patterns from the prediction
// history: rapid-fire submission groups, repeated-amount clusters,
// fraud-by-hour timing, and per-customer fraud counts. Detection is a pure
// function over a history snapshot, recomputed on every history change.
package patterns

import (
	"math"
	"sort"
	"time"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Detect computes fraud patterns over a history snapshot. The input order
// does not matter; all groupings are by value.
func Detect(entries []domain.HistoryEntry) domain.FraudPatterns {
	p := domain.FraudPatterns{
		SameTimingCounts:    make(map[int]int),
		CustomerFraudCounts: make(map[string]int),
	}

	// Rapid-fire groups entries by their exact capture instant at second
	// resolution. Entries captured within the same second count as one
	// burst; anything one second apart does not. Kept as-is for parity
	// with the stored data.
	byInstant := make(map[string]int)
	for _, e := range entries {
		byInstant[e.Time]++
	}
	instants := make([]string, 0, len(byInstant))
	for k, n := range byInstant {
		if n > domain.RapidFireMinGroup {
			instants = append(instants, k)
		}
	}
	sort.Strings(instants)
	for _, k := range instants {
		p.RapidFireGroupSizes = append(p.RapidFireGroupSizes, byInstant[k])
	}

	byAmount := make(map[float64]int)
	hourByEntry := make(map[int]int)
	for _, e := range entries {
		byAmount[e.TransactionAmount]++

		if e.Prediction == domain.LabelFraud {
			p.CustomerFraudCounts[e.CustomerID]++
			hourByEntry[captureHour(e)]++
		}
	}

	amounts := make([]float64, 0, len(byAmount))
	for amt, n := range byAmount {
		if n > domain.SameAmountMinCount {
			amounts = append(amounts, amt)
		}
	}
	sort.Float64s(amounts)
	for _, amt := range amounts {
		p.SameAmountClusters = append(p.SameAmountClusters, domain.AmountCluster{
			Amount: amt,
			Count:  byAmount[amt],
		})
	}

	for hour, n := range hourByEntry {
		if n > domain.SameTimingMinCount {
			p.SameTimingCounts[hour] = n
		}
	}

	return p
}

// Profile summarises one customer's slice of a history snapshot. Entries
// are expected newest first, as the history store returns them; an unknown
// customer yields a zero-count Low profile.
func Profile(entries []domain.HistoryEntry, customerID string) domain.CustomerProfile {
	p := domain.CustomerProfile{
		CustomerID: customerID,
		RiskLevel:  domain.RiskBandLow,
	}

	var riskSum float64
	for _, e := range entries {
		if e.CustomerID != customerID {
			continue
		}
		p.TotalTransactions++
		p.TotalAmount += e.TransactionAmount
		riskSum += e.Risk
		if e.Prediction == domain.LabelFraud {
			p.FraudCount++
		} else {
			p.LegitCount++
		}
		if p.LastSeen == "" {
			p.LastSeen = e.Time
		}
		p.FirstSeen = e.Time
	}
	if p.TotalTransactions == 0 {
		return p
	}

	p.AvgRisk = math.Round(riskSum/float64(p.TotalTransactions)*100) / 100
	p.TrustRating = int(math.Round(float64(p.LegitCount) / float64(p.TotalTransactions) * 100))

	fraudPct := float64(p.FraudCount) / float64(p.TotalTransactions) * 100
	switch {
	case fraudPct > 50:
		p.RiskLevel = domain.RiskBandCritical
	case fraudPct > 25:
		p.RiskLevel = domain.RiskBandHigh
	case fraudPct > 10:
		p.RiskLevel = domain.RiskBandMedium
	}
	return p
}

// captureHour extracts the hour-of-day from an entry's capture time,
// falling back to the transaction timestamp when the capture time fails to
// parse.
func captureHour(e domain.HistoryEntry) int {
	if ts, err := time.Parse(domain.CaptureTimeLayout, e.Time); err == nil {
		return ts.Hour()
	}
	return e.Hour()
}
