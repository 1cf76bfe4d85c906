package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/opensource-finance/shrike/internal/domain"
)

// maxPartitionWorkers bounds concurrent partition scoring.
const maxPartitionWorkers = 4

// analyzePartitioned splits an oversized batch into fixed-size partitions,
// scores them concurrently under a semaphore, and merges the partial
// results. A partition that panics or is cancelled is skipped rather than
// failing the batch; the aggregator recomputes totals from the true count
// so skipped partitions only lose their detail rows.
func (a *Analyzer) analyzePartitioned(ctx context.Context, txs []domain.Transaction) *domain.AnalysisResult {
	partitions := partition(txs, a.cfg.PartitionSize)

	results := make([]*domain.AnalysisResult, len(partitions))
	sem := make(chan struct{}, maxPartitionWorkers)
	var wg sync.WaitGroup

	for i, part := range partitions {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, part []domain.Transaction) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("partition scoring panicked, skipping partition",
						"partition", i,
						"records", len(part),
						"panic", r,
					)
				}
			}()
			results[i] = a.scoreAll(part)
		}(i, part)
	}
	wg.Wait()

	completed := results[:0]
	for _, r := range results {
		if r != nil {
			completed = append(completed, r)
		}
	}
	return Aggregate(completed, len(txs))
}

// partition splits txs into slices of at most size records. Slices alias
// the input; callers must not mutate txs while partitions are in flight.
func partition(txs []domain.Transaction, size int) [][]domain.Transaction {
	if size <= 0 {
		return [][]domain.Transaction{txs}
	}
	var parts [][]domain.Transaction
	for start := 0; start < len(txs); start += size {
		end := start + size
		if end > len(txs) {
			end = len(txs)
		}
		parts = append(parts, txs[start:end])
	}
	return parts
}
