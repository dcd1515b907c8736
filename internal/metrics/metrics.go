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
// リレーフェッチャーと集約パイプラインから利用する。
type MetricsCollector interface {
	RecordRelaySuccess(relay string)
	RecordRelayFailure(relay string)
	RecordRelayStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordFeedUnreachable(url string)
	RecordParseFailure(url string)
	RecordArticlesMerged(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	relaySuccess    *prometheus.CounterVec
	relayFail       *prometheus.CounterVec
	relayStatus     *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	feedUnreachable prometheus.Counter
	parseFail       prometheus.Counter
	articlesMerged  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		relaySuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_relay_success_total",
			Help: "リレー別のフェッチ成功数",
		}, []string{"relay"}),
		relayFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_relay_fail_total",
			Help: "リレー別のフェッチ失敗数",
		}, []string{"relay"}),
		relayStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_relay_status_total",
			Help: "リレー応答のHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsdesk_fetch_latency_seconds",
			Help:    "最初のリレー成功までのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		feedUnreachable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdesk_feed_unreachable_total",
			Help: "全リレー失敗でフィードに到達できなかった合計数",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdesk_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		articlesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdesk_articles_merged_total",
			Help: "日アーカイブへ新規マージされた記事の合計数",
		}),
	}

	reg.MustRegister(
		c.relaySuccess,
		c.relayFail,
		c.relayStatus,
		c.fetchLatency,
		c.feedUnreachable,
		c.parseFail,
		c.articlesMerged,
	)

	return c
}

// RecordRelaySuccess はリレー経由のフェッチ成功を記録する。
func (c *Collector) RecordRelaySuccess(relay string) {
	c.relaySuccess.WithLabelValues(relay).Inc()
}

// RecordRelayFailure はリレー経由のフェッチ失敗を記録する。
func (c *Collector) RecordRelayFailure(relay string) {
	c.relayFail.WithLabelValues(relay).Inc()
}

// RecordRelayStatus はリレー応答のHTTPステータスコードを記録する。
func (c *Collector) RecordRelayStatus(statusCode int) {
	c.relayStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordFeedUnreachable はフィード到達不能を記録する。
func (c *Collector) RecordFeedUnreachable(url string) {
	c.feedUnreachable.Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure(url string) {
	c.parseFail.Inc()
}

// RecordArticlesMerged は新規マージされた記事数を記録する。
func (c *Collector) RecordArticlesMerged(count int) {
	c.articlesMerged.Add(float64(count))
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
