package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/shrike/internal/batch"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/metrics"
	"github.com/opensource-finance/shrike/internal/scoring"
)

// analysisCacheTTL is how long completed analyses stay cached for report
// export and polling.
const analysisCacheTTL = time.Hour

// maxAsyncPerMinute caps async batch submissions per tenant. Each
// submission spools a file to disk and occupies a worker.
const maxAsyncPerMinute = 60

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	analyzer *batch.Analyzer
	additive *scoring.Additive
	engine   *scoring.Engine
	metrics  *metrics.Metrics
	batchCfg domain.BatchConfig
	version  string
	spoolDir string

	statsMu    sync.Mutex
	stats      *domain.ModelStats
	statsUntil time.Time
}

// modelStatsTTL bounds staleness of the memoized model stats row.
const modelStatsTTL = 5 * time.Minute

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, analyzer *batch.Analyzer, engine *scoring.Engine, m *metrics.Metrics, batchCfg domain.BatchConfig, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		analyzer: analyzer,
		additive: scoring.NewAdditive(),
		engine:   engine,
		metrics:  m,
		batchCfg: batchCfg,
		version:  version,
		spoolDir: os.TempDir(),
	}
}

// Check handles POST /check: single-transaction screening with the
// additive model.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx := req.Transaction
	if tx.Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must not be negative",
		})
		return
	}
	tx.EnsureID()

	resp := h.additive.Check(&tx)

	if h.metrics != nil {
		h.metrics.ChecksTotal.WithLabelValues(resp.Result).Inc()
		if resp.IsFraudulent {
			h.metrics.FraudsDetected.WithLabelValues("check").Inc()
		}
	}

	// Persist the screened transaction for history
	if h.repo != nil {
		rec := &domain.TransactionRecord{
			Transaction: tx,
			Fraudulent:  resp.IsFraudulent,
			RiskScore:   float64(resp.RiskScore),
			CreatedAt:   time.Now().UTC(),
		}
		if err := h.repo.SaveTransaction(ctx, tenantID, rec); err != nil {
			slog.Error("failed to save checked transaction", "tx_id", tx.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// AnalyzeRequest is the request body for POST /analyze.
type AnalyzeRequest struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// Analyze handles POST /analyze: synchronous batch analysis of an
// in-memory transaction list.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result := h.analyzer.AnalyzeRecords(ctx, req.Transactions)
	h.finishAnalysis(ctx, tenantID, result)

	writeJSON(w, http.StatusOK, result)
}

// AnalyzeCSV handles POST /analyze/csv: synchronous analysis of an
// uploaded CSV file.
func (h *Handler) AnalyzeCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	file, header, ok := h.openUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	result := h.analyzer.AnalyzeReader(ctx, file, header.size)
	h.finishAnalysis(ctx, tenantID, result)

	writeJSON(w, http.StatusOK, result)
}

// AnalyzeAsync handles POST /analyze/async: the CSV is spooled to disk and
// the analysis runs in the background worker. Responds 202 with the
// analysis ID to poll.
func (h *Handler) AnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	if h.cache != nil {
		n, err := h.cache.IncrementCounter(ctx, tenantID, "async_submissions", time.Minute)
		if err == nil && n > maxAsyncPerMinute {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "async submission rate limit exceeded",
			})
			return
		}
	}

	file, header, ok := h.openUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	analysisID := uuid.NewString()

	spooled, err := os.CreateTemp(h.spoolDir, "shrike-batch-*.csv")
	if err != nil {
		slog.Error("failed to spool batch file", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to accept upload",
		})
		return
	}
	size, err := io.Copy(spooled, file)
	spooled.Close()
	if err != nil {
		os.Remove(spooled.Name())
		slog.Error("failed to spool batch file", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to accept upload",
		})
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"analysisId": analysisID,
		"tenantId":   tenantID,
		"filePath":   spooled.Name(),
		"fileSize":   size,
		"filename":   header.filename,
	})
	if err := h.bus.Publish(ctx, domain.QueueScope, domain.TopicBatchSubmitted, payload); err != nil {
		os.Remove(spooled.Name())
		slog.Error("failed to publish batch submission", "analysis_id", analysisID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to submit batch",
		})
		return
	}

	slog.Info("batch submitted",
		"analysis_id", analysisID,
		"tenant_id", tenantID,
		"file", header.filename,
		"size", size,
	)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"analysisId": analysisID,
		"status":     "processing",
	})
}

type uploadInfo struct {
	filename string
	size     int64
}

// openUpload extracts and validates the multipart "file" field. On
// failure it writes the error response and returns ok=false.
func (h *Handler) openUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, uploadInfo, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "multipart field 'file' is required",
		})
		return nil, uploadInfo{}, false
	}

	if err := h.analyzer.ValidateUpload(header.Filename, header.Size); err != nil {
		file.Close()
		status := http.StatusBadRequest
		if errors.Is(err, batch.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
		})
		return nil, uploadInfo{}, false
	}

	return file, uploadInfo{filename: header.Filename, size: header.Size}, true
}

// finishAnalysis persists, caches, and counts a completed analysis.
func (h *Handler) finishAnalysis(ctx context.Context, tenantID string, result *domain.AnalysisResult) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if h.repo != nil {
		if err := h.repo.SaveAnalysis(ctx, tenantID, result); err != nil {
			slog.Error("failed to save analysis", "error", err)
		}
	}
	if h.cache != nil && result.ID != "" {
		if err := h.cache.SetAnalysis(ctx, tenantID, result.ID, result, analysisCacheTTL); err != nil {
			slog.Warn("failed to cache analysis", "analysis_id", result.ID, "error", err)
		}
	}
	if h.metrics != nil {
		path := "exact"
		if result.Sampled {
			path = "sampled"
		}
		h.metrics.ObserveAnalysis(path, result.TotalTransactions, result.FraudulentTransactions)
	}
}

// GetAnalysis handles GET /analyses/{id}, checking the cache before the
// repository.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	result, err := h.lookupAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetAnalysisReport handles GET /analyses/{id}/report: the downloadable
// CSV report for a stored analysis.
func (h *Handler) GetAnalysisReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	result, err := h.lookupAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	filename := batch.ReportFilename(time.Now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := batch.WriteReport(w, result); err != nil {
		slog.Error("failed to write report", "analysis_id", analysisID, "error", err)
	}
}

func (h *Handler) lookupAnalysis(ctx context.Context, tenantID, analysisID string) (*domain.AnalysisResult, error) {
	if analysisID == "" {
		return nil, errors.New("analysis id is required")
	}

	if h.cache != nil {
		if result, err := h.cache.GetAnalysis(ctx, tenantID, analysisID); err == nil && result != nil {
			return result, nil
		}
	}

	if h.repo == nil {
		return nil, errors.New("repository not available")
	}
	result, err := h.repo.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.SetAnalysis(ctx, tenantID, analysisID, result, analysisCacheTTL)
	}
	return result, nil
}

// ListTransactions handles GET /transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer between 1 and 1000",
			})
			return
		}
		limit = n
	}

	records, err := h.repo.ListTransactions(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// GetTransaction handles GET /transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetModelStats handles GET /model/stats.
func (h *Handler) GetModelStats(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	h.statsMu.Lock()
	if h.stats != nil && time.Now().Before(h.statsUntil) {
		stats := h.stats
		h.statsMu.Unlock()
		writeJSON(w, http.StatusOK, stats)
		return
	}
	h.statsMu.Unlock()

	stats, err := h.repo.GetModelStats(r.Context())
	if err != nil {
		slog.Error("failed to get model stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get model stats",
		})
		return
	}

	h.statsMu.Lock()
	h.stats = stats
	h.statsUntil = time.Now().Add(modelStatsTTL)
	h.statsMu.Unlock()

	writeJSON(w, http.StatusOK, stats)
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Reason      string  `json:"reason"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Reason:      req.Reason,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository (global tenant ID)
	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// TestRules handles POST /rules/test: dry-runs one transaction against
// every loaded rule and returns the per-rule results. Nothing is
// persisted; this is for validating rule behavior before relying on it.
func (h *Handler) TestRules(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx := req.Transaction
	tx.EnsureID()

	results := h.engine.EvaluateAll(&tx)
	writeJSON(w, http.StatusOK, map[string]any{
		"transactionId": tx.ID,
		"results":       results,
		"count":         len(results),
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
