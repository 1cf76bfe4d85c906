package domain

// RuleConfig defines a custom screening rule layered on top of the built-in
// scoring strategies. The CEL expression is evaluated against transaction
// fields and its numeric result contributes Weight * score to the weighted
// fraud score, recording Reason when the contribution is non-zero.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over amount, merchant, location, category,
	// card_type, hour. Must return bool, int, or double.
	Expression string `json:"expression"`

	// Reason recorded when the rule contributes to the score.
	Reason string `json:"reason"`

	// Weight applied to the expression's score contribution.
	Weight float64 `json:"weight"`

	Enabled bool `json:"enabled"`
}

// RuleResult is the output of a custom rule evaluation.
type RuleResult struct {
	RuleID string  `json:"ruleId"`
	TxID   string  `json:"txId"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
	Err    string  `json:"error,omitempty"`
}
