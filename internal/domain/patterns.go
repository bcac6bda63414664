package domain

// Pattern-detection thresholds.
const (
	RapidFireMinGroup  = 2 // group sizes must exceed this
	SameAmountMinCount = 3 // amount clusters must exceed this
	SameTimingMinCount = 2 // fraud-per-hour counts must exceed this
)

// Risk bands for the per-customer profile, derived from the customer's
// fraud percentage over the retained history.
const (
	RiskBandLow      = "Low"
	RiskBandMedium   = "Medium"
	RiskBandHigh     = "High"
	RiskBandCritical = "Critical"
)

// CustomerProfile summarises one customer's retained history.
type CustomerProfile struct {
	CustomerID        string  `json:"customer_id"`
	TotalTransactions int     `json:"totalTransactions"`
	FraudCount        int     `json:"fraudCount"`
	LegitCount        int     `json:"legitCount"`
	TotalAmount       float64 `json:"totalAmount"`
	AvgRisk           float64 `json:"avgRisk"`

	// TrustRating is the percentage of Legit predictions, rounded.
	TrustRating int `json:"trustRating"`

	// RiskLevel is the band for the customer's fraud percentage:
	// above 50 Critical, above 25 High, above 10 Medium, else Low.
	RiskLevel string `json:"riskLevel"`

	FirstSeen string `json:"firstSeen,omitempty"`
	LastSeen  string `json:"lastSeen,omitempty"`
}

// AmountCluster is a group of entries sharing an exact transaction amount.
type AmountCluster struct {
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// FraudPatterns is the aggregate output of the pattern detector, recomputed
// from the full history snapshot on every history change.
type FraudPatterns struct {
	// RapidFireGroupSizes holds the sizes of entry groups sharing the same
	// capture instant, for groups larger than RapidFireMinGroup.
	RapidFireGroupSizes []int `json:"rapidFire"`

	// SameAmountClusters holds exact-amount groups larger than
	// SameAmountMinCount.
	SameAmountClusters []AmountCluster `json:"sameAmount"`

	// SameTimingCounts maps hour-of-day to fraud-entry counts above
	// SameTimingMinCount.
	SameTimingCounts map[int]int `json:"sameTiming"`

	// CustomerFraudCounts maps customer ID to fraud-entry count, with no
	// threshold; consumers apply their own (e.g. >2 for high-risk).
	CustomerFraudCounts map[string]int `json:"sameCustomer"`
}
