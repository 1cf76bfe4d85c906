package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opensource-finance/shrike/internal/batch"
	"github.com/opensource-finance/shrike/internal/bus"
	"github.com/opensource-finance/shrike/internal/cache"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/metrics"
	"github.com/opensource-finance/shrike/internal/scoring"
)

// createTestServer creates a server with in-memory dependencies for testing.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	engine, err := scoring.NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	batchCfg := domain.DefaultBatchConfig()
	analyzer := batch.NewAnalyzer(scoring.NewWeighted(), batchCfg)

	return NewServer(cfg, batchCfg, nil, cache.NewLRUCache(100), eventBus, analyzer, engine, metrics.New(), "test-v1")
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func uploadCSV(t *testing.T, server *Server, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestCheckEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SafeTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/check", domain.CheckRequest{
			Transaction: domain.Transaction{
				Amount:   120,
				Merchant: "Grocery Mart",
				Location: "Seattle",
				Time:     "14:30",
			},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.CheckResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.IsFraudulent {
			t.Error("expected safe verdict")
		}
		if resp.Result != "safe" {
			t.Errorf("expected result 'safe', got %q", resp.Result)
		}
		if resp.Score < 70 {
			t.Errorf("safe confidence must be >= 70, got %d", resp.Score)
		}
	})

	t.Run("SuspiciousTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/check", domain.CheckRequest{
			Transaction: domain.Transaction{
				Amount:   6000,
				Merchant: "Unknown International Vendor",
				Location: "International Zone",
				Time:     "03:00",
			},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp domain.CheckResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if !resp.IsFraudulent {
			t.Error("expected suspicious verdict")
		}
		if resp.Result != "suspicious" {
			t.Errorf("expected result 'suspicious', got %q", resp.Result)
		}
		if resp.Score > 40 {
			t.Errorf("fraud confidence must be <= 40, got %d", resp.Score)
		}
		if len(resp.Reasons) == 0 {
			t.Error("expected reasons for suspicious verdict")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/check", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/check", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		rr := postJSON(t, server, "/check", domain.CheckRequest{
			Transaction: domain.Transaction{Amount: -100},
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := postJSON(t, server, "/check", domain.CheckRequest{
			Transaction: domain.Transaction{Amount: 100, Merchant: "Shop"},
		})

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestAnalyzeEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("MixedBatch", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze", AnalyzeRequest{
			Transactions: []domain.Transaction{
				{ID: "TX-0000001", Amount: 50, Merchant: "Local Cafe", Location: "Denver"},
				{ID: "TX-0000002", Amount: 10000, Merchant: "Unknown International Vendor", Location: "International Zone"},
				{ID: "TX-0000003", Amount: 80, Merchant: "Book Shop", Location: "Austin"},
			},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result domain.AnalysisResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if result.TotalTransactions != 3 {
			t.Errorf("expected 3 transactions, got %d", result.TotalTransactions)
		}
		if result.FraudulentTransactions != 1 {
			t.Errorf("expected 1 fraudulent, got %d", result.FraudulentTransactions)
		}
	})

	t.Run("EmptyBatchFallsBack", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze", AnalyzeRequest{})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var result domain.AnalysisResult
		json.Unmarshal(rr.Body.Bytes(), &result)

		if result.TotalTransactions != domain.FallbackResult().TotalTransactions {
			t.Errorf("expected fallback result, got total %d", result.TotalTransactions)
		}
	})
}

func TestAnalyzeCSVEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("ValidUpload", func(t *testing.T) {
		csv := "id,amount,merchant,location\n" +
			"TX-0000001,50,Local Cafe,Denver\n" +
			"TX-0000002,10000,Unknown International Vendor,International Zone\n"

		rr := uploadCSV(t, server, "/analyze/csv", "transactions.csv", csv)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result domain.AnalysisResult
		json.Unmarshal(rr.Body.Bytes(), &result)

		if result.TotalTransactions != 2 {
			t.Errorf("expected 2 transactions, got %d", result.TotalTransactions)
		}
		if result.FraudulentTransactions != 1 {
			t.Errorf("expected 1 fraudulent, got %d", result.FraudulentTransactions)
		}
	})

	t.Run("RejectsNonCSV", func(t *testing.T) {
		rr := uploadCSV(t, server, "/analyze/csv", "transactions.xlsx", "data")

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/analyze/csv", strings.NewReader(""))
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestAnalyzeAsyncEndpoint(t *testing.T) {
	server := createTestServer(t)

	csv := "id,amount,merchant\nTX-0000001,50,Local Cafe\n"
	rr := uploadCSV(t, server, "/analyze/async", "transactions.csv", csv)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)

	if resp["analysisId"] == "" {
		t.Error("expected analysisId in response")
	}
	if resp["status"] != "processing" {
		t.Errorf("expected status 'processing', got %q", resp["status"])
	}
}

func TestGetAnalysisEndpoint(t *testing.T) {
	server := createTestServer(t)

	// Run an analysis so something is cached
	rr := postJSON(t, server, "/analyze", AnalyzeRequest{
		Transactions: []domain.Transaction{
			{ID: "TX-0000001", Amount: 50, Merchant: "Local Cafe", Location: "Denver"},
		},
	})
	var created domain.AnalysisResult
	json.Unmarshal(rr.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatal("expected analysis ID to be assigned")
	}

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/analyses/"+created.ID, nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("Report", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/analyses/"+created.ID+"/report", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("expected CSV content type, got %q", ct)
		}
		if !strings.Contains(rec.Body.String(), "SUMMARY REPORT") {
			t.Error("expected report body to contain summary section")
		}
	})
}

func TestGetAnalysisNotFound(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/analyses/nonexistent", nil)
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateAndListRules", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			ID:         "rule-001",
			Name:       "Large nighttime transaction",
			Expression: "amount > 2000.0 && hour < 6",
			Reason:     "Large transaction at unusual hour",
			Weight:     0.5,
			Enabled:    true,
		})

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded rule, got %d", resp.Count)
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/rule-001", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("TestRulesDryRun", func(t *testing.T) {
		rr := postJSON(t, server, "/rules/test", domain.CheckRequest{
			Transaction: domain.Transaction{
				ID:     "TX-0000099",
				Amount: 5000,
				Time:   "03:30",
			},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			TransactionID string              `json:"transactionId"`
			Results       []domain.RuleResult `json:"results"`
			Count         int                 `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Count != 1 {
			t.Fatalf("expected 1 rule result, got %d", resp.Count)
		}
		if resp.Results[0].RuleID != "rule-001" {
			t.Errorf("expected rule-001 result, got %s", resp.Results[0].RuleID)
		}
		if resp.Results[0].Score <= 0 {
			t.Errorf("expected positive score for matching rule, got %v", resp.Results[0].Score)
		}
	})

	t.Run("RejectsInvalidExpression", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			ID:         "rule-bad",
			Name:       "Broken",
			Expression: "amount >>> nonsense",
			Enabled:    true,
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RejectsMissingFields", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{Name: "No ID"})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("MetricsEndpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
