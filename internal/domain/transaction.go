// Package domain defines the core interfaces and types for Shrike.
package domain

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Transaction represents a single card transaction to be screened.
// Immutable once scored; only the derived ScoredTransaction and aggregate
// counters survive into an AnalysisResult.
type Transaction struct {
	ID       string  `json:"id,omitempty"`
	Amount   float64 `json:"amount"`
	Merchant string  `json:"merchant"`
	Date     string  `json:"date"`
	Location string  `json:"location,omitempty"`
	Time     string  `json:"time,omitempty"`
	CardType string  `json:"cardType,omitempty"`
	Category string  `json:"category,omitempty"`
}

// TransactionRecord is a screened transaction as persisted, carrying the
// verdict alongside the input.
type TransactionRecord struct {
	Transaction

	TenantID   string    `json:"tenantId"`
	Fraudulent bool      `json:"isFraudulent"`
	RiskScore  float64   `json:"riskScore"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EnsureID synthesizes a TX-<7-digit> identifier when the input carries none.
// The format is not globally unique, only unlikely to collide within one
// batch; stronger identity (uuid) lives at the analysis level.
func (t *Transaction) EnsureID() {
	if t.ID == "" {
		t.ID = "TX-" + strconv.Itoa(rand.IntN(10_000_000))
	}
}

// MerchantOrUnknown returns the merchant name with the parse-tolerant default.
func (t *Transaction) MerchantOrUnknown() string {
	if t.Merchant == "" {
		return "Unknown"
	}
	return t.Merchant
}

// LocationOrUnknown returns the location with the parse-tolerant default.
func (t *Transaction) LocationOrUnknown() string {
	if t.Location == "" {
		return "Unknown"
	}
	return t.Location
}

// DateOrToday returns the transaction date, defaulting to today (UTC ISO
// date) for rows that omit it.
func (t *Transaction) DateOrToday() string {
	if t.Date == "" {
		return time.Now().UTC().Format("2006-01-02")
	}
	return t.Date
}

// Hour parses the hour from the transaction time ("HH:MM").
// Returns -1 when the time is absent or unparseable.
func (t *Transaction) Hour() int {
	if t.Time == "" {
		return -1
	}
	raw, _, _ := strings.Cut(t.Time, ":")
	h, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || h < 0 || h > 23 {
		return -1
	}
	return h
}

// ParseAmount converts a raw amount field to a number. Missing or
// unparseable amounts score as 0 rather than failing the row.
func ParseAmount(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

// CheckRequest is the API request payload for single-transaction screening.
type CheckRequest struct {
	Transaction Transaction `json:"transaction"`
}

// CheckResponse is the API response for single-transaction screening.
// Score is a confidence value, not the risk score: fraudulent verdicts
// always report <= 40, safe verdicts always >= 70.
type CheckResponse struct {
	IsFraudulent bool     `json:"isFraudulent"`
	RiskScore    int      `json:"riskScore"`
	Reasons      []string `json:"reasons"`
	Result       string   `json:"result"` // "suspicious" or "safe"
	Score        int      `json:"score"`
}
