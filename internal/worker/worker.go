// Package worker provides async batch analysis processing.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/opensource-finance/shrike/internal/batch"
	"github.com/opensource-finance/shrike/internal/domain"
)

// Worker processes submitted batches asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	analyzer *batch.Analyzer

	alertFraudPct float64
	cacheTTL      time.Duration
	tenants       map[string]struct{}

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs restricts processing to the listed tenants. Empty
	// processes every tenant's submissions.
	TenantIDs []string

	// AlertFraudPercentage is the threshold above which a completed
	// analysis also publishes a fraud alert.
	AlertFraudPercentage float64
}

// NewWorker creates a new async batch worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, analyzer *batch.Analyzer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		analyzer: analyzer,
		cacheTTL: time.Hour,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes the worker to the batch submission queue.
func (w *Worker) Start(cfg Config) error {
	w.alertFraudPct = cfg.AlertFraudPercentage
	if w.alertFraudPct <= 0 {
		w.alertFraudPct = domain.DefaultBatchConfig().AlertFraudPercentage
	}

	if len(cfg.TenantIDs) > 0 {
		w.tenants = make(map[string]struct{}, len(cfg.TenantIDs))
		for _, tenantID := range cfg.TenantIDs {
			w.tenants[tenantID] = struct{}{}
		}
	}

	sub, err := w.bus.Subscribe(w.ctx, domain.QueueScope, domain.TopicBatchSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicBatchSubmitted,
		"tenant_filter", len(cfg.TenantIDs),
	)

	return nil
}

// handleMessage handles messages from the submission queue.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processBatch(ctx, msg.TenantID, msg)
}

// BatchMessage is the payload for an async batch submission. The CSV is
// spooled to a file by the API before publishing; the worker owns and
// removes it once the analysis is stored.
type BatchMessage struct {
	AnalysisID string `json:"analysisId"`
	TenantID   string `json:"tenantId"`
	FilePath   string `json:"filePath"`
	FileSize   int64  `json:"fileSize"`
	Filename   string `json:"filename"`
}

// processBatch runs the analysis pipeline for one submitted batch.
func (w *Worker) processBatch(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var batchMsg BatchMessage
	if err := json.Unmarshal(msg.Payload, &batchMsg); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if batchMsg.TenantID != "" {
		tenantID = batchMsg.TenantID
	}

	if len(w.tenants) > 0 {
		if _, ok := w.tenants[tenantID]; !ok {
			slog.Debug("skipping batch for unassigned tenant",
				"analysis_id", batchMsg.AnalysisID,
				"tenant_id", tenantID,
			)
			return nil
		}
	}

	slog.Debug("processing batch",
		"analysis_id", batchMsg.AnalysisID,
		"tenant_id", tenantID,
		"file", batchMsg.Filename,
		"size", batchMsg.FileSize,
	)

	result := w.analyze(ctx, &batchMsg)
	result.ID = batchMsg.AnalysisID

	// Save and cache the result so the API can serve it
	if w.repo != nil {
		if err := w.repo.SaveAnalysis(ctx, tenantID, result); err != nil {
			slog.Error("failed to save analysis",
				"analysis_id", result.ID,
				"error", err,
			)
		}
	}
	if w.cache != nil {
		if err := w.cache.SetAnalysis(ctx, tenantID, result.ID, result, w.cacheTTL); err != nil {
			slog.Warn("failed to cache analysis",
				"analysis_id", result.ID,
				"error", err,
			)
		}
	}

	// Publish completion
	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis completion",
			"analysis_id", result.ID,
			"error", err,
		)
	}

	// High fraud rate also raises an alert
	if result.FraudPercentage >= w.alertFraudPct {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicFraudAlert, resultPayload); err != nil {
			slog.Error("failed to publish fraud alert",
				"analysis_id", result.ID,
				"error", err,
			)
		}
	}

	slog.Info("batch processed",
		"analysis_id", result.ID,
		"tenant_id", tenantID,
		"total", result.TotalTransactions,
		"fraudulent", result.FraudulentTransactions,
		"fraud_pct", result.FraudPercentage,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// analyze opens the spooled file and runs the pipeline. A missing or
// unreadable file degrades to the fallback result, like every other batch
// failure.
func (w *Worker) analyze(ctx context.Context, msg *BatchMessage) *domain.AnalysisResult {
	f, err := os.Open(msg.FilePath)
	if err != nil {
		slog.Error("failed to open spooled batch file",
			"analysis_id", msg.AnalysisID,
			"path", msg.FilePath,
			"error", err,
		)
		return domain.FallbackResult()
	}
	defer func() {
		f.Close()
		if err := os.Remove(msg.FilePath); err != nil {
			slog.Warn("failed to remove spooled batch file",
				"path", msg.FilePath,
				"error", err,
			)
		}
	}()

	return w.analyzer.AnalyzeReader(ctx, f, msg.FileSize)
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
