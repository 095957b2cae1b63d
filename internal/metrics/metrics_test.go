package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CollectorはMetricsCollectorインターフェースを満たすことを検証
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
}

// TestNewCollector_RegistersMetrics はメトリクスが登録されることを検証する。
func TestNewCollector_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	if c == nil {
		t.Fatal("expected non-nil collector")
	}

	// 同じレジストリへの二重登録はpanicする
	defer func() {
		if r := recover(); r == nil {
			t.Error("duplicate registration should panic")
		}
	}()
	NewCollector(reg)
}

// TestCollector_RecordsWithoutPanic は記録メソッドが安全に呼べることを検証する。
func TestCollector_RecordsWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestCreated("ebook")
	c.RecordStatusTransition("approved")
	c.RecordOrchestratorOutcome("queued")
	c.RecordOrchestratorLatency(2 * time.Second)
	c.RecordLibraryRefreshItems(42)
	c.RecordLibraryRefreshFailure()
	c.RecordHTTPStatus(200)
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordOrchestratorOutcome("queued")

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "bookman_orchestrator_outcomes_total") {
		t.Error("response should contain bookman_orchestrator_outcomes_total metric")
	}
}
