package scoring

import (
	"math"
	"strings"

	"github.com/opensource-finance/shrike/internal/domain"
)

// Weighted-model reason strings. Reported verbatim in analysis results.
const (
	ReasonUnusualAmount      = "Unusual transaction amount"
	ReasonHighRiskMerchant   = "High-risk merchant category"
	ReasonMediumRiskMerchant = "Medium-risk merchant category"
	ReasonUnusualLocation    = "Unusual transaction location"

	// ReasonFallback substitutes when the weighted sum of sub-threshold
	// factors crosses the fraud threshold without any discrete reason.
	ReasonFallback = "detected unusual pattern"
)

// FraudThreshold is the weighted-model classification cut. Deliberately low
// and biased toward flagging: the model maximizes detection sensitivity.
const FraudThreshold = 0.15

// Factor weights. Each factor score is <= 1, so the total is <= 1.
const (
	amountWeight   = 0.4
	merchantWeight = 0.3
	locationWeight = 0.3
)

var (
	highRiskMerchantTerms   = []string{"international", "foreign", "unverified"}
	mediumRiskMerchantTerms = []string{"online", "digital", "electronic", "payment", "transfer", "unknown"}
	riskLocationTerms       = []string{"international", "foreign"}
)

// Weighted is the sigmoid-weighted scoring strategy used by batch analysis.
type Weighted struct {
	// Custom holds optional operator-defined rules whose contributions
	// are folded into the fraud score. Nil disables custom rules.
	Custom *Engine
}

// NewWeighted creates the weighted strategy without custom rules.
func NewWeighted() *Weighted {
	return &Weighted{}
}

// Name implements Strategy.
func (w *Weighted) Name() string { return "weighted" }

// Score computes the weighted fraud score for one transaction.
//
// fraudScore = 0.4*amountScore + 0.3*merchantScore + 0.3*locationScore,
// where amountScore = sigmoid(0.001*(amount-1000)). amount=1000 scores
// exactly 0.5; the amount reason fires strictly above that.
func (w *Weighted) Score(tx *domain.Transaction) Verdict {
	var score float64
	var reasons []string

	if tx.Amount > 0 {
		amountScore := sigmoid(0.001 * (tx.Amount - 1000))
		score += amountScore * amountWeight
		if amountScore > 0.5 {
			reasons = append(reasons, ReasonUnusualAmount)
		}
	}

	merchant := strings.ToLower(tx.MerchantOrUnknown())
	var merchantScore float64
	switch {
	case containsAny(merchant, highRiskMerchantTerms):
		merchantScore = 0.8
		reasons = append(reasons, ReasonHighRiskMerchant)
	case containsAny(merchant, mediumRiskMerchantTerms):
		merchantScore = 0.5
		reasons = append(reasons, ReasonMediumRiskMerchant)
	}
	score += merchantScore * merchantWeight

	location := strings.ToLower(tx.LocationOrUnknown())
	var locationScore float64
	if containsAny(location, riskLocationTerms) {
		locationScore = 0.7
		reasons = append(reasons, ReasonUnusualLocation)
	}
	score += locationScore * locationWeight

	if w.Custom != nil {
		extra, extraReasons := w.Custom.Contribution(tx)
		score += extra
		reasons = append(reasons, extraReasons...)
		// Built-in factors sum to <= 1; custom contributions must not
		// push the score out of range.
		score = math.Min(score, 1)
	}

	return Verdict{
		Fraudulent: score > FraudThreshold,
		Score:      score,
		Reasons:    reasons,
	}
}

// Reason joins the triggered reasons for a flagged transaction, falling
// back to the generic pattern string when none fired discretely.
func Reason(v Verdict) string {
	if len(v.Reasons) == 0 {
		return ReasonFallback
	}
	return strings.Join(v.Reasons, "; ")
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
