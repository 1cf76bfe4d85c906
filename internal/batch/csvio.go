// Package batch implements the batch analysis pipeline: chunked reading,
// sampling, scoring, extrapolation, and result aggregation.
package batch

import (
	"strings"

	"github.com/opensource-finance/shrike/internal/domain"
)

// ParseHeader splits a CSV header line into trimmed, lower-cased column
// names. Parsing is header-driven, not positional.
func ParseHeader(line string) []string {
	parts := strings.Split(line, ",")
	headers := make([]string, len(parts))
	for i, p := range parts {
		headers[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return headers
}

// ParseRow maps one CSV line onto a Transaction using the header names.
// Malformed rows are tolerated, never fatal: missing fields stay zero and
// score with defaults (amount=0, merchant "Unknown").
func ParseRow(headers []string, line string) domain.Transaction {
	values := strings.Split(line, ",")

	var tx domain.Transaction
	for i, h := range headers {
		if i >= len(values) {
			break
		}
		v := strings.TrimSpace(values[i])
		switch h {
		case "id":
			tx.ID = v
		case "amount":
			tx.Amount = domain.ParseAmount(v)
		case "date":
			tx.Date = v
		case "merchant":
			tx.Merchant = v
		case "location":
			tx.Location = v
		case "time":
			tx.Time = v
		case "cardtype", "card_type":
			tx.CardType = v
		case "category":
			tx.Category = v
		}
	}
	return tx
}

// ParseRows parses a batch of lines, skipping blanks.
func ParseRows(headers []string, lines []string) []domain.Transaction {
	txs := make([]domain.Transaction, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		txs = append(txs, ParseRow(headers, line))
	}
	return txs
}
