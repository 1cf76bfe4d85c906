package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
)

// reportHeader is the column header for the detected-fraud rows.
var reportHeader = []string{"Transaction ID", "Date", "Merchant", "Amount", "Fraud Reason"}

// WriteReport renders an analysis result as a downloadable CSV report: a
// summary block, a blank separator, then one row per detected fraud.
func WriteReport(w io.Writer, result *domain.AnalysisResult) error {
	cw := csv.NewWriter(w)

	summary := [][]string{
		{"SUMMARY REPORT", "", "", "", ""},
		{"Total Transactions", strconv.Itoa(result.TotalTransactions), "", "", ""},
		{"Safe Transactions", strconv.Itoa(result.SafeTransactions), "", "", ""},
		{"Fraudulent Transactions", strconv.Itoa(result.FraudulentTransactions), "", "", ""},
		{"Fraud Percentage", fmt.Sprintf("%.2f%%", result.FraudPercentage), "", "", ""},
		{"", "", "", "", ""},
		{"DETECTED FRAUDULENT TRANSACTIONS", "", "", "", ""},
	}
	for _, row := range summary {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report summary: %w", err)
		}
	}
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, fraud := range result.DetectedFrauds {
		row := []string{
			fraud.ID,
			fraud.Date,
			fraud.Merchant,
			formatCurrency(fraud.Amount),
			fraud.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReportFilename returns the download filename for a report generated on
// the given day, e.g. fraud_analysis_report_2026-08-30.csv.
func ReportFilename(now time.Time) string {
	return "fraud_analysis_report_" + now.UTC().Format("2006-01-02") + ".csv"
}

// formatCurrency renders a USD amount with thousands separators, e.g.
// $7,500.00.
func formatCurrency(amount float64) string {
	neg := amount < 0
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, d := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := "$" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
