package patterns

import (
	"testing"

	"github.com/fraudshield/fraudshield/internal/domain"
)

func entry(customer string, amount float64, prediction, captureTime string) domain.HistoryEntry {
	return domain.HistoryEntry{
		Transaction: domain.Transaction{
			CustomerID:        customer,
			TransactionAmount: amount,
			Timestamp:         "2025-01-15T10:00:00Z",
		},
		Prediction: prediction,
		Time:       captureTime,
	}
}

func TestDetectEmptyHistory(t *testing.T) {
	p := Detect(nil)

	if len(p.RapidFireGroupSizes) != 0 {
		t.Errorf("expected no rapid-fire groups, got %v", p.RapidFireGroupSizes)
	}
	if len(p.SameAmountClusters) != 0 {
		t.Errorf("expected no amount clusters, got %v", p.SameAmountClusters)
	}
	if len(p.SameTimingCounts) != 0 {
		t.Errorf("expected no timing counts, got %v", p.SameTimingCounts)
	}
	if len(p.CustomerFraudCounts) != 0 {
		t.Errorf("expected no customer counts, got %v", p.CustomerFraudCounts)
	}
}

func TestDetectRapidFireRequiresStrictlyMoreThanThreshold(t *testing.T) {
	at := "2025-01-15 10:00:00"
	entries := []domain.HistoryEntry{
		entry("C1", 100, domain.LabelLegit, at),
		entry("C1", 200, domain.LabelLegit, at),
	}
	if p := Detect(entries); len(p.RapidFireGroupSizes) != 0 {
		t.Fatalf("group of 2 must not report, got %v", p.RapidFireGroupSizes)
	}

	entries = append(entries, entry("C2", 300, domain.LabelLegit, at))
	p := Detect(entries)
	if len(p.RapidFireGroupSizes) != 1 || p.RapidFireGroupSizes[0] != 3 {
		t.Fatalf("expected single group of 3, got %v", p.RapidFireGroupSizes)
	}
}

func TestDetectRapidFireSplitsOnDifferentSeconds(t *testing.T) {
	entries := []domain.HistoryEntry{
		entry("C1", 100, domain.LabelLegit, "2025-01-15 10:00:00"),
		entry("C1", 100, domain.LabelLegit, "2025-01-15 10:00:00"),
		entry("C1", 100, domain.LabelLegit, "2025-01-15 10:00:01"),
		entry("C1", 100, domain.LabelLegit, "2025-01-15 10:00:01"),
	}
	// Two groups of 2, both under the reporting threshold even though the
	// four entries land within two seconds. Exact-instant grouping misses
	// bursts that straddle a second boundary.
	if p := Detect(entries); len(p.RapidFireGroupSizes) != 0 {
		t.Fatalf("expected no groups across second boundary, got %v", p.RapidFireGroupSizes)
	}
}

func TestDetectSameAmountClusters(t *testing.T) {
	var entries []domain.HistoryEntry
	for i := 0; i < 4; i++ {
		entries = append(entries, entry("C1", 999.99, domain.LabelLegit, "2025-01-15 10:00:00"))
	}
	for i := 0; i < 3; i++ {
		entries = append(entries, entry("C2", 50, domain.LabelLegit, "2025-01-15 11:00:00"))
	}

	p := Detect(entries)
	if len(p.SameAmountClusters) != 1 {
		t.Fatalf("expected one cluster (count of 3 excluded), got %v", p.SameAmountClusters)
	}
	c := p.SameAmountClusters[0]
	if c.Amount != 999.99 || c.Count != 4 {
		t.Errorf("cluster = %+v, want amount 999.99 count 4", c)
	}
}

func TestDetectSameTimingCountsFraudOnly(t *testing.T) {
	var entries []domain.HistoryEntry
	for i := 0; i < 3; i++ {
		entries = append(entries, entry("C1", 5000, domain.LabelFraud, "2025-01-15 02:15:00"))
	}
	// Legit entries at the same hour must not count.
	for i := 0; i < 5; i++ {
		entries = append(entries, entry("C2", 100, domain.LabelLegit, "2025-01-15 02:30:00"))
	}

	p := Detect(entries)
	if len(p.SameTimingCounts) != 1 || p.SameTimingCounts[2] != 3 {
		t.Fatalf("timing counts = %v, want {2:3}", p.SameTimingCounts)
	}
}

func TestDetectCustomerFraudCountsNoThreshold(t *testing.T) {
	entries := []domain.HistoryEntry{
		entry("C1", 100, domain.LabelFraud, "2025-01-15 10:00:00"),
		entry("C1", 200, domain.LabelFraud, "2025-01-15 11:00:00"),
		entry("C2", 300, domain.LabelFraud, "2025-01-15 12:00:00"),
		entry("C3", 400, domain.LabelLegit, "2025-01-15 13:00:00"),
	}

	p := Detect(entries)
	if p.CustomerFraudCounts["C1"] != 2 {
		t.Errorf("C1 count = %d, want 2", p.CustomerFraudCounts["C1"])
	}
	if p.CustomerFraudCounts["C2"] != 1 {
		t.Errorf("C2 count = %d, want 1 (no minimum applies)", p.CustomerFraudCounts["C2"])
	}
	if _, ok := p.CustomerFraudCounts["C3"]; ok {
		t.Error("legit-only customer must not appear")
	}
}

func TestProfileBandsAndAggregates(t *testing.T) {
	// Newest first, as the history store returns entries.
	entries := []domain.HistoryEntry{
		entry("C1", 900, domain.LabelLegit, "2025-01-15 13:00:00"),
		entry("C2", 100, domain.LabelFraud, "2025-01-15 12:30:00"),
		entry("C1", 80000, domain.LabelFraud, "2025-01-15 12:00:00"),
		entry("C1", 300, domain.LabelLegit, "2025-01-15 11:00:00"),
		entry("C1", 200, domain.LabelLegit, "2025-01-15 10:00:00"),
	}
	entries[0].Risk = 15
	entries[2].Risk = 82
	entries[3].Risk = 18
	entries[4].Risk = 13

	p := Profile(entries, "C1")
	if p.TotalTransactions != 4 || p.FraudCount != 1 || p.LegitCount != 3 {
		t.Fatalf("counts = %d/%d/%d, want 4/1/3", p.TotalTransactions, p.FraudCount, p.LegitCount)
	}
	if p.TotalAmount != 81400 {
		t.Errorf("total amount = %v, want 81400", p.TotalAmount)
	}
	if p.AvgRisk != 32 {
		t.Errorf("avg risk = %v, want 32", p.AvgRisk)
	}
	if p.TrustRating != 75 {
		t.Errorf("trust rating = %d, want 75", p.TrustRating)
	}
	// 25% fraud is the Medium boundary; High starts above 25.
	if p.RiskLevel != domain.RiskBandMedium {
		t.Errorf("risk level = %q, want %q", p.RiskLevel, domain.RiskBandMedium)
	}
	if p.LastSeen != "2025-01-15 13:00:00" || p.FirstSeen != "2025-01-15 10:00:00" {
		t.Errorf("seen range = %q .. %q", p.FirstSeen, p.LastSeen)
	}
}

func TestProfileBandThresholds(t *testing.T) {
	mix := func(fraud, legit int) []domain.HistoryEntry {
		var out []domain.HistoryEntry
		for i := 0; i < fraud; i++ {
			out = append(out, entry("C1", 100, domain.LabelFraud, "2025-01-15 10:00:00"))
		}
		for i := 0; i < legit; i++ {
			out = append(out, entry("C1", 100, domain.LabelLegit, "2025-01-15 10:00:00"))
		}
		return out
	}

	tests := []struct {
		fraud, legit int
		want         string
	}{
		{0, 10, domain.RiskBandLow},
		{1, 9, domain.RiskBandLow},
		{2, 8, domain.RiskBandMedium},
		{1, 3, domain.RiskBandMedium},
		{3, 7, domain.RiskBandHigh},
		{1, 1, domain.RiskBandHigh},
		{6, 4, domain.RiskBandCritical},
	}
	for _, tt := range tests {
		p := Profile(mix(tt.fraud, tt.legit), "C1")
		if p.RiskLevel != tt.want {
			t.Errorf("%d fraud / %d legit: band = %q, want %q", tt.fraud, tt.legit, p.RiskLevel, tt.want)
		}
	}
}

func TestProfileUnknownCustomer(t *testing.T) {
	entries := []domain.HistoryEntry{
		entry("C1", 100, domain.LabelLegit, "2025-01-15 10:00:00"),
	}

	p := Profile(entries, "C404")
	if p.TotalTransactions != 0 || p.FraudCount != 0 {
		t.Errorf("unexpected counts: %+v", p)
	}
	if p.RiskLevel != domain.RiskBandLow {
		t.Errorf("risk level = %q, want %q", p.RiskLevel, domain.RiskBandLow)
	}
	if p.FirstSeen != "" || p.LastSeen != "" {
		t.Errorf("seen range should be empty, got %q .. %q", p.FirstSeen, p.LastSeen)
	}
}
