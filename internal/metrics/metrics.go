// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・オーケストレーター・ワーカーから利用する。
type MetricsCollector interface {
	RecordRequestCreated(contentType string)
	RecordStatusTransition(status string)
	RecordOrchestratorOutcome(outcome string)
	RecordOrchestratorLatency(duration time.Duration)
	RecordLibraryRefreshItems(count int)
	RecordLibraryRefreshFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requestsCreated      *prometheus.CounterVec
	statusTransitions    *prometheus.CounterVec
	orchestratorOutcomes *prometheus.CounterVec
	orchestratorLatency  prometheus.Histogram
	libraryItems         prometheus.Gauge
	libraryRefreshFail   prometheus.Counter
	httpStatus           *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookman_requests_created_total",
			Help: "コンテンツ種別ごとの作成済みリクエスト数",
		}, []string{"content_type"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookman_status_transitions_total",
			Help: "遷移先ステータスごとのステータス遷移数",
		}, []string{"status"}),
		orchestratorOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookman_orchestrator_outcomes_total",
			Help: "結果ごとのオーケストレーター実行数",
		}, []string{"outcome"}),
		orchestratorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookman_orchestrator_latency_seconds",
			Help:    "オーケストレーター実行のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		libraryItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookman_library_items",
			Help: "蔵書キャッシュの現在の件数",
		}),
		libraryRefreshFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookman_library_refresh_fail_total",
			Help: "蔵書キャッシュ更新失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.requestsCreated,
		c.statusTransitions,
		c.orchestratorOutcomes,
		c.orchestratorLatency,
		c.libraryItems,
		c.libraryRefreshFail,
		c.httpStatus,
	)

	return c
}

// RecordRequestCreated はリクエスト作成を記録する。
func (c *Collector) RecordRequestCreated(contentType string) {
	c.requestsCreated.WithLabelValues(contentType).Inc()
}

// RecordStatusTransition はステータス遷移を記録する。
func (c *Collector) RecordStatusTransition(status string) {
	c.statusTransitions.WithLabelValues(status).Inc()
}

// RecordOrchestratorOutcome はオーケストレーター実行の結果を記録する。
func (c *Collector) RecordOrchestratorOutcome(outcome string) {
	c.orchestratorOutcomes.WithLabelValues(outcome).Inc()
}

// RecordOrchestratorLatency はオーケストレーター実行のレイテンシを記録する。
func (c *Collector) RecordOrchestratorLatency(duration time.Duration) {
	c.orchestratorLatency.Observe(duration.Seconds())
}

// RecordLibraryRefreshItems は蔵書キャッシュの件数を記録する。
func (c *Collector) RecordLibraryRefreshItems(count int) {
	c.libraryItems.Set(float64(count))
}

// RecordLibraryRefreshFailure は蔵書キャッシュ更新失敗を記録する。
func (c *Collector) RecordLibraryRefreshFailure() {
	c.libraryRefreshFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
