// Package analytics computes dashboard summaries over the uploaded batch
// rows. The batch carries ground-truth fraud labels, so these views report
// labelled data rather than model output.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Amount bucket boundaries for the distribution view.
const (
	lowAmountLimit  = 2000
	highAmountLimit = 8000
)

// highRiskUserMinTxns is the transaction count at which a customer counts
// as high-activity.
const highRiskUserMinTxns = 5

// DayCount is one point on the fraud-per-day series.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AmountBuckets is the low/medium/high amount distribution.
type AmountBuckets struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Summary is the aggregate dashboard view over a labelled batch.
type Summary struct {
	TotalTransactions int     `json:"totalTransactions"`
	FraudCases        int     `json:"fraudCases"`
	FraudRate         float64 `json:"fraudRate"`

	AvgTransactionAmount int    `json:"avgTxAmount"`
	AvgAccountAge        string `json:"avgAccountAge"`

	MostRiskyChannel   string `json:"mostRiskyChannel"`
	MostActiveCustomer string `json:"mostActiveCustomer"`
	HighRiskUsers      int    `json:"highRiskUsers"`

	FraudPerDay    []DayCount     `json:"fraudPerDay"`
	AmountBuckets  AmountBuckets  `json:"amountBuckets"`
	FraudByChannel map[string]int `json:"fraudByChannel"`
}

// Summarize computes the dashboard summary. A nil or empty batch yields a
// zero summary with "--" placeholders.
func Summarize(rows []domain.Transaction) Summary {
	s := Summary{
		MostRiskyChannel:   "--",
		MostActiveCustomer: "--",
		FraudByChannel:     make(map[string]int),
	}
	if len(rows) == 0 {
		return s
	}

	s.TotalTransactions = len(rows)

	var amountSum, ageSum float64
	channelFraud := make(map[string]int)
	customerCount := make(map[string]int)
	fraudByDay := make(map[string]int)

	for _, r := range rows {
		amountSum += r.TransactionAmount
		ageSum += r.AccountAgeDays

		ch := r.Channel
		if ch == "" {
			ch = "Unknown"
		}
		if _, ok := channelFraud[ch]; !ok {
			channelFraud[ch] = 0
		}

		customerCount[r.CustomerID]++

		if r.IsFraud {
			s.FraudCases++
			channelFraud[ch]++
			if day := dayOf(r.Timestamp); day != "" {
				fraudByDay[day]++
			}
		}

		switch {
		case r.TransactionAmount < lowAmountLimit:
			s.AmountBuckets.Low++
		case r.TransactionAmount < highAmountLimit:
			s.AmountBuckets.Medium++
		default:
			s.AmountBuckets.High++
		}
	}

	s.FraudRate = math.Round(float64(s.FraudCases)/float64(len(rows))*1000) / 10
	s.AvgTransactionAmount = int(math.Round(amountSum / float64(len(rows))))
	s.AvgAccountAge = formatAge(int(math.Round(ageSum / float64(len(rows)))))

	s.MostRiskyChannel = maxKey(channelFraud, "--")
	s.MostActiveCustomer = maxKey(customerCount, "--")

	for _, n := range customerCount {
		if n >= highRiskUserMinTxns {
			s.HighRiskUsers++
		}
	}

	days := make([]string, 0, len(fraudByDay))
	for d := range fraudByDay {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		s.FraudPerDay = append(s.FraudPerDay, DayCount{Date: d, Count: fraudByDay[d]})
	}

	s.FraudByChannel = channelFraud
	return s
}

// dayOf extracts the YYYY-MM-DD date portion of a timestamp, tolerating
// the same loose formats the row normalizer accepts.
func dayOf(ts string) string {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return ""
	}
	if i := strings.IndexAny(ts, "T "); i > 0 {
		ts = ts[:i]
	}
	if len(ts) >= 10 && ts[4] == '-' && ts[7] == '-' {
		return ts[:10]
	}
	// DD/MM/YYYY
	if len(ts) == 10 && ts[2] == '/' && ts[5] == '/' {
		return ts[6:] + "-" + ts[3:5] + "-" + ts[:2]
	}
	return ""
}

// formatAge renders a day count as "Xy Ym".
func formatAge(days int) string {
	years := days / 365
	months := (days % 365) / 30
	return fmt.Sprintf("%dy %dm", years, months)
}

// maxKey returns the key with the highest count, ties broken
// alphabetically for determinism.
func maxKey(m map[string]int, empty string) string {
	best := empty
	bestN := -1
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if m[k] > bestN {
			best = k
			bestN = m[k]
		}
	}
	return best
}
