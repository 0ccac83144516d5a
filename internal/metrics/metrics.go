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
// ワーカーやハンドラー層から利用する。
type MetricsCollector interface {
	RecordSyncSuccess()
	RecordSyncFailure(reason string)
	RecordEventsMerged(count int)
	RecordSyncLatency(duration time.Duration)
	RecordTriageDecision(direction string)
	ObserveHTTPRequest(method, path string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess     prometheus.Counter
	syncFail        *prometheus.CounterVec
	eventsMerged    prometheus.Counter
	syncLatency     prometheus.Histogram
	triageDecisions *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	httpLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ourcal_sync_success_total",
			Help: "Googleカレンダー同期成功の合計数",
		}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ourcal_sync_fail_total",
			Help: "Googleカレンダー同期失敗の合計数（理由別）",
		}, []string{"reason"}),
		eventsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ourcal_events_merged_total",
			Help: "同期でマージされた予定の合計数",
		}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ourcal_sync_latency_seconds",
			Help:    "Googleカレンダー同期のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		triageDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ourcal_triage_decisions_total",
			Help: "スワイプ仕分けの決定数（方向別）",
		}, []string{"direction"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ourcal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ourcal_http_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.eventsMerged,
		c.syncLatency,
		c.triageDecisions,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess() {
	c.syncSuccess.Inc()
}

// RecordSyncFailure は同期失敗を理由付きで記録する。
func (c *Collector) RecordSyncFailure(reason string) {
	c.syncFail.WithLabelValues(reason).Inc()
}

// RecordEventsMerged はマージされた予定数を記録する。
func (c *Collector) RecordEventsMerged(count int) {
	c.eventsMerged.Add(float64(count))
}

// RecordSyncLatency は同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// RecordTriageDecision はスワイプ仕分けの決定を方向別に記録する。
// directionは"right"（共有）または"left"（非共有）。
func (c *Collector) RecordTriageDecision(direction string) {
	c.triageDecisions.WithLabelValues(direction).Inc()
}

// ObserveHTTPRequest はHTTPリクエストの結果を記録する。
// middleware.RequestObserverを実装する。
func (c *Collector) ObserveHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
