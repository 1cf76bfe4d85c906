package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAnalysis(t *testing.T) {
	m := New()

	m.ObserveAnalysis("exact", 100, 7)
	m.ObserveAnalysis("exact", 50, 3)
	m.ObserveAnalysis("sampled", 200000, 1200)

	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("exact")); got != 2 {
		t.Errorf("expected 2 exact analyses, got %v", got)
	}
	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("sampled")); got != 1 {
		t.Errorf("expected 1 sampled analysis, got %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsScreened); got != 200150 {
		t.Errorf("expected 200150 records screened, got %v", got)
	}
	if got := testutil.ToFloat64(m.FraudsDetected.WithLabelValues("batch")); got != 1210 {
		t.Errorf("expected 1210 frauds detected, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ChecksTotal.WithLabelValues("safe").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "shrike_checks_total") {
		t.Error("expected shrike_checks_total in exposition")
	}
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not clash; each carries its own registry.
	a := New()
	b := New()

	a.ChecksTotal.WithLabelValues("suspicious").Inc()

	if got := testutil.ToFloat64(b.ChecksTotal.WithLabelValues("suspicious")); got != 0 {
		t.Errorf("expected fresh instance to start at 0, got %v", got)
	}
}
