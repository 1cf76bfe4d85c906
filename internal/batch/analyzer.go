package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/sampling"
	"github.com/opensource-finance/shrike/internal/scoring"
	"github.com/opensource-finance/shrike/internal/stream"
)

var (
	// ErrNotCSV rejects uploads without a .csv extension before any
	// processing; surfaced verbatim to the caller.
	ErrNotCSV = errors.New("file must be a CSV")

	// ErrTooLarge rejects oversized uploads before any processing.
	ErrTooLarge = errors.New("file size exceeds limit")

	errNoRecords = errors.New("no valid records in input")
)

// Analyzer orchestrates the batch pipeline: chunked reader, sampler, and
// the weighted scorer, with extrapolation for sampled inputs. Construct
// one per process and inject it; the Analyzer itself is stateless across
// calls.
type Analyzer struct {
	scorer *scoring.Weighted
	cfg    domain.BatchConfig
}

// NewAnalyzer creates a batch analyzer using the weighted scoring strategy.
func NewAnalyzer(scorer *scoring.Weighted, cfg domain.BatchConfig) *Analyzer {
	if cfg.SizeThresholdBytes <= 0 {
		cfg = domain.DefaultBatchConfig()
	}
	return &Analyzer{scorer: scorer, cfg: cfg}
}

// ValidateUpload rejects invalid uploads before any byte is processed.
func (a *Analyzer) ValidateUpload(filename string, size int64) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return ErrNotCSV
	}
	if size > a.cfg.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return nil
}

// AnalyzeReader analyzes a CSV byte source and always produces a result:
// any failure (I/O error, parse failure, zero valid records) yields the
// canned fallback instead of an error. sizeHint selects the path — below
// the threshold the input is parsed exactly, above it the sampled path
// extrapolates from a reservoir sample plus a full-scan record count.
func (a *Analyzer) AnalyzeReader(ctx context.Context, src io.Reader, sizeHint int64) *domain.AnalysisResult {
	var result *domain.AnalysisResult
	var err error

	if sizeHint < a.cfg.SizeThresholdBytes {
		result, err = a.analyzeExact(ctx, src, sizeHint)
	} else {
		result, err = a.analyzeSampled(ctx, src, sizeHint)
	}
	if err != nil {
		slog.Warn("batch analysis failed, returning fallback result",
			"size_hint", sizeHint,
			"error", err,
		)
		return domain.FallbackResult()
	}
	return result
}

// analyzeExact parses the whole input (capped at MaxRows) and scores every
// record individually. Exact, not sampled.
func (a *Analyzer) analyzeExact(ctx context.Context, src io.Reader, sizeHint int64) (*domain.AnalysisResult, error) {
	reader := stream.NewReader(src, sizeHint, a.cfg.ChunkSizeBytes)

	var txs []domain.Transaction
	for len(txs) < a.cfg.MaxRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		txs = append(txs, ParseRows(ParseHeader(reader.Header()), chunk.Lines)...)
	}
	if len(txs) > a.cfg.MaxRows {
		txs = txs[:a.cfg.MaxRows]
	}
	if len(txs) == 0 {
		return nil, errNoRecords
	}

	return a.scoreAll(txs), nil
}

// analyzeSampled runs the reservoir over chunked reads, scores the sample,
// and extrapolates the sample fraud rate to the full population. The
// stream is always scanned to the end so the total record count is
// accurate even after the reservoir fills.
func (a *Analyzer) analyzeSampled(ctx context.Context, src io.Reader, sizeHint int64) (*domain.AnalysisResult, error) {
	reader := stream.NewReader(src, sizeHint, a.cfg.ChunkSizeBytes)
	reservoir := sampling.New(a.cfg.SampleSize, a.cfg.MaxSamplesPerChunk)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		reservoir.AddChunk(chunk.Lines)
	}

	total := int(reader.LineCount())
	if total <= 0 || len(reservoir.Samples()) == 0 {
		return nil, errNoRecords
	}

	headers := ParseHeader(reader.Header())
	sampleTxs := ParseRows(headers, reservoir.Samples())
	sampleResult := a.scoreAll(sampleTxs)

	// Extrapolate the sample fraud rate onto the full population. The
	// detailed fraud list stays the sample's flagged records; detections
	// are never synthesized.
	fraudulent := int(math.Round(sampleResult.FraudPercentage / 100 * float64(total)))

	result := &domain.AnalysisResult{
		TotalTransactions:      total,
		FraudulentTransactions: fraudulent,
		SafeTransactions:       total - fraudulent,
		FraudPercentage:        sampleResult.FraudPercentage,
		DetectedFrauds:         sampleResult.DetectedFrauds,
		Sampled:                true,
	}
	result.CapDetectedFrauds()
	return result, nil
}

// AnalyzeRecords analyzes an in-memory batch exactly, partitioning large
// batches for parallel scoring. Always produces a result.
func (a *Analyzer) AnalyzeRecords(ctx context.Context, txs []domain.Transaction) *domain.AnalysisResult {
	if len(txs) == 0 {
		slog.Warn("empty batch, returning fallback result")
		return domain.FallbackResult()
	}
	if len(txs) > a.cfg.PartitionSize*2 {
		return a.analyzePartitioned(ctx, txs)
	}
	return a.scoreAll(txs)
}

// scoreAll scores every transaction with the weighted strategy and builds
// the aggregate result. The divide is guarded by the empty-input fallback
// in the callers.
func (a *Analyzer) scoreAll(txs []domain.Transaction) *domain.AnalysisResult {
	total := len(txs)
	fraudulent := 0
	var detected []domain.ScoredTransaction

	for i := range txs {
		tx := &txs[i]
		v := a.scorer.Score(tx)
		if !v.Fraudulent {
			continue
		}
		fraudulent++
		if len(detected) < domain.MaxDetectedFrauds {
			tx.EnsureID()
			detected = append(detected, domain.ScoredTransaction{
				ID:       tx.ID,
				Amount:   tx.Amount,
				Merchant: tx.MerchantOrUnknown(),
				Date:     tx.DateOrToday(),
				Reason:   scoring.Reason(v),
			})
		}
	}

	return &domain.AnalysisResult{
		TotalTransactions:      total,
		FraudulentTransactions: fraudulent,
		SafeTransactions:       total - fraudulent,
		FraudPercentage:        float64(fraudulent) / float64(total) * 100,
		DetectedFrauds:         detected,
	}
}
