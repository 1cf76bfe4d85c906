// Package scoring implements the fraud scoring strategies.
//
// Two deliberately distinct strategies coexist: the weighted/sigmoid model
// used for batch analysis and the additive risk-point model used for
// discrete single-transaction checks. Their thresholds and reason sets
// differ by design and are never merged.
package scoring

import (
	"github.com/opensource-finance/shrike/internal/domain"
)

// Verdict is the common output of a scoring strategy.
type Verdict struct {
	Fraudulent bool
	// Score is strategy-scaled: [0,1] for the weighted model,
	// non-negative integer points for the additive model.
	Score   float64
	Reasons []string
}

// Strategy maps one transaction to a fraud verdict. Implementations are
// pure: O(1) per record, never blocking, no shared mutable state.
type Strategy interface {
	Name() string
	Score(tx *domain.Transaction) Verdict
}
