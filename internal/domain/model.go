package domain

// ModelStats holds the simulated detection-model metrics. The core does not
// produce these; they are seeded into storage once and passed through
// unchanged.
type ModelStats struct {
	Accuracy     float64 `json:"accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1Score      float64 `json:"f1Score"`
	LastTrained  string  `json:"lastTrained"` // ISO date
	TotalSamples int     `json:"totalSamples"`
	FraudSamples int     `json:"fraudSamples"`
}

// DefaultModelStats returns the metrics seeded on first read.
func DefaultModelStats(lastTrained string) *ModelStats {
	return &ModelStats{
		Accuracy:     0.9876,
		Precision:    0.9532,
		Recall:       0.8721,
		F1Score:      0.9109,
		LastTrained:  lastTrained,
		TotalSamples: 284807,
		FraudSamples: 492,
	}
}
