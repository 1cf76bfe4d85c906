package scoring

import (
	"strings"

	"github.com/opensource-finance/shrike/internal/domain"
)

// Additive-model reason strings.
const (
	ReasonHighAmount         = "Unusually high transaction amount"
	ReasonSuspiciousMerchant = "Transaction with suspicious merchant"
	ReasonSuspiciousLocation = "Transaction from suspicious location"
	ReasonUnusualHours       = "Transaction occurred during unusual hours"
)

// RiskThreshold is the additive-model classification cut.
const RiskThreshold = 50

// Risk point increments. A risk score is always a sum drawn from these.
const (
	riskHighAmount   = 30
	riskMerchant     = 25
	riskLocation     = 25
	riskUnusualHours = 15
)

var (
	suspiciousMerchantTerms = []string{"unknown", "international", "foreign", "unverified"}
	suspiciousLocationTerms = []string{"international", "foreign", "unknown"}
)

// Additive is the risk-point strategy used for discrete single-transaction
// checks.
type Additive struct{}

// NewAdditive creates the additive strategy.
func NewAdditive() *Additive {
	return &Additive{}
}

// Name implements Strategy.
func (a *Additive) Name() string { return "additive" }

// Score implements Strategy. Verdict.Score carries the risk point total.
func (a *Additive) Score(tx *domain.Transaction) Verdict {
	risk, reasons := a.RiskScore(tx)
	return Verdict{
		Fraudulent: risk >= RiskThreshold,
		Score:      float64(risk),
		Reasons:    reasons,
	}
}

// RiskScore computes the additive risk point total and triggered reasons.
func (a *Additive) RiskScore(tx *domain.Transaction) (int, []string) {
	risk := 0
	var reasons []string

	if tx.Amount > 5000 {
		risk += riskHighAmount
		reasons = append(reasons, ReasonHighAmount)
	}

	if containsAny(strings.ToLower(tx.MerchantOrUnknown()), suspiciousMerchantTerms) {
		risk += riskMerchant
		reasons = append(reasons, ReasonSuspiciousMerchant)
	}

	if containsAny(strings.ToLower(tx.LocationOrUnknown()), suspiciousLocationTerms) {
		risk += riskLocation
		reasons = append(reasons, ReasonSuspiciousLocation)
	}

	if h := tx.Hour(); h >= 0 && h < 5 {
		risk += riskUnusualHours
		reasons = append(reasons, ReasonUnusualHours)
	}

	return risk, reasons
}

// Check screens one transaction and builds the full single-check response.
// Confidence guarantees a visible gap: fraudulent verdicts report <= 40,
// safe verdicts report >= 70.
func (a *Additive) Check(tx *domain.Transaction) *domain.CheckResponse {
	risk, reasons := a.RiskScore(tx)
	fraudulent := risk >= RiskThreshold

	result := "safe"
	confidence := max(100-risk, 70)
	if fraudulent {
		result = "suspicious"
		confidence = min(100-risk, 40)
	}

	return &domain.CheckResponse{
		IsFraudulent: fraudulent,
		RiskScore:    risk,
		Reasons:      reasons,
		Result:       result,
		Score:        confidence,
	}
}
