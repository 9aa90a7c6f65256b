// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// アグリゲータ、ストリームサービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordSourceFetch(kind string, items int, duration time.Duration)
	RecordSourceFailure(kind, reason string)
	RecordRefresh(items int, superseded bool)
	RecordHTTPStatus(statusCode int)
	RecordPanic(route string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sourceFetch   *prometheus.CounterVec
	sourceFail    *prometheus.CounterVec
	sourceLatency *prometheus.HistogramVec
	sourceItems   *prometheus.CounterVec
	refresh       *prometheus.CounterVec
	refreshItems  prometheus.Gauge
	httpStatus    *prometheus.CounterVec
	httpPanics    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sourceFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyfeed_source_fetch_total",
			Help: "ソース取得成功の合計数",
		}, []string{"source"}),
		sourceFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyfeed_source_fail_total",
			Help: "ソース取得失敗の合計数",
		}, []string{"source", "reason"}),
		sourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policyfeed_source_latency_seconds",
			Help:    "ソース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		sourceItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyfeed_source_items_total",
			Help: "ソースから取得した記事の合計数",
		}, []string{"source"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyfeed_refresh_total",
			Help: "ストリーム更新の合計数",
		}, []string{"superseded"}),
		refreshItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "policyfeed_refresh_items",
			Help: "直近のストリーム更新で得た記事数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyfeed_http_panics_total",
			Help: "ハンドラーで回復したpanicの数",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.sourceFetch,
		c.sourceFail,
		c.sourceLatency,
		c.sourceItems,
		c.refresh,
		c.refreshItems,
		c.httpStatus,
		c.httpPanics,
	)

	return c
}

// RecordSourceFetch はソース取得の成功と件数、所要時間を記録する。
func (c *Collector) RecordSourceFetch(kind string, items int, duration time.Duration) {
	c.sourceFetch.WithLabelValues(kind).Inc()
	c.sourceItems.WithLabelValues(kind).Add(float64(items))
	c.sourceLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordSourceFailure はソース取得の失敗を理由付きで記録する。
func (c *Collector) RecordSourceFailure(kind, reason string) {
	c.sourceFail.WithLabelValues(kind, reason).Inc()
}

// RecordRefresh はストリーム更新を記録する。
// 後続の更新に追い越された結果は superseded="true" として数える。
func (c *Collector) RecordRefresh(items int, superseded bool) {
	c.refresh.WithLabelValues(strconv.FormatBool(superseded)).Inc()
	if !superseded {
		c.refreshItems.Set(float64(items))
	}
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPanic はハンドラーで回復したpanicをルートパターン別に記録する。
func (c *Collector) RecordPanic(route string) {
	if route == "" {
		route = "unknown"
	}
	c.httpPanics.WithLabelValues(route).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewRegistry はGoランタイムとプロセスのメトリクスを登録済みのレジストリを返す。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
