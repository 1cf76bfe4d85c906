package batch

import (
	"log/slog"

	"github.com/opensource-finance/shrike/internal/domain"
)

// Aggregate merges partial analysis results into one. trueTotal is the
// authoritative record count for the whole batch; safe counts and the
// fraud percentage are recomputed from it rather than summed, so skipped
// partitions do not skew the rate. Detected frauds are concatenated in
// partition order and capped. An empty result set yields the fallback.
//
// Aggregating a single result is an identity apart from the recomputed
// derived fields.
func Aggregate(results []*domain.AnalysisResult, trueTotal int) *domain.AnalysisResult {
	if len(results) == 0 || trueTotal <= 0 {
		slog.Warn("no partial results to aggregate, returning fallback result",
			"true_total", trueTotal,
		)
		return domain.FallbackResult()
	}

	fraudulent := 0
	var detected []domain.ScoredTransaction
	for _, r := range results {
		fraudulent += r.FraudulentTransactions
		detected = append(detected, r.DetectedFrauds...)
	}

	merged := &domain.AnalysisResult{
		TotalTransactions:      trueTotal,
		FraudulentTransactions: fraudulent,
		SafeTransactions:       trueTotal - fraudulent,
		FraudPercentage:        float64(fraudulent) / float64(trueTotal) * 100,
		DetectedFrauds:         detected,
	}
	merged.CapDetectedFrauds()
	return merged
}
