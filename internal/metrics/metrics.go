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
// HTTPミドルウェア、イベント配信、リアルタイム接続、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordEventPublished(channel string)
	RecordEventPublishFailure(channel string)
	RecordRelayMessage(channel string)
	RecordRelayFailure(channel string, reason string)
	SetLiveConnections(count int)
	RecordNotificationsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
	eventsPublished     *prometheus.CounterVec
	eventPublishFail    *prometheus.CounterVec
	relayMessages       *prometheus.CounterVec
	relayFail           *prometheus.CounterVec
	liveConnections     prometheus.Gauge
	notificationCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetstream_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tweetstream_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetstream_events_published_total",
			Help: "ブローカーに送信したイベント数",
		}, []string{"channel"}),
		eventPublishFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetstream_event_publish_fail_total",
			Help: "ブローカーへの送信に失敗したイベント数",
		}, []string{"channel"}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetstream_relay_messages_total",
			Help: "リレーがWebSocketへ中継したメッセージ数",
		}, []string{"channel"}),
		relayFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetstream_relay_fail_total",
			Help: "リレーで処理に失敗したメッセージ数",
		}, []string{"channel", "reason"}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tweetstream_live_connections",
			Help: "現在のWebSocket接続数",
		}),
		notificationCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetstream_notifications_cleaned_total",
			Help: "クリーンアップで削除した通知の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.eventsPublished,
		c.eventPublishFail,
		c.relayMessages,
		c.relayFail,
		c.liveConnections,
		c.notificationCleaned,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordEventPublished はイベント送信成功を記録する。
func (c *Collector) RecordEventPublished(channel string) {
	c.eventsPublished.WithLabelValues(channel).Inc()
}

// RecordEventPublishFailure はイベント送信失敗を記録する。
func (c *Collector) RecordEventPublishFailure(channel string) {
	c.eventPublishFail.WithLabelValues(channel).Inc()
}

// RecordRelayMessage はリレーの中継成功を記録する。
func (c *Collector) RecordRelayMessage(channel string) {
	c.relayMessages.WithLabelValues(channel).Inc()
}

// RecordRelayFailure はリレーの処理失敗を記録する。
func (c *Collector) RecordRelayFailure(channel string, reason string) {
	c.relayFail.WithLabelValues(channel, reason).Inc()
}

// SetLiveConnections は現在の接続数を設定する。
func (c *Collector) SetLiveConnections(count int) {
	c.liveConnections.Set(float64(count))
}

// RecordNotificationsCleaned は削除した通知数を記録する。
func (c *Collector) RecordNotificationsCleaned(count int64) {
	c.notificationCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// workerコマンドがAPIサーバーとは別にメトリクスを公開する際に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
