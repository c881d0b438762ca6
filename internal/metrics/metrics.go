// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 認証フロー、Webhook処理、HTTPレスポンスの観測値を記録する。
type Collector struct {
	loginSuccess     prometheus.Counter
	loginFail        *prometheus.CounterVec
	sessionsCreated  prometheus.Counter
	degradedIdentity prometheus.Counter
	webhookEvents    *prometheus.CounterVec
	webhookFailures  *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsboard_login_success_total",
			Help: "OAuthログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsboard_login_fail_total",
			Help: "OAuthログイン失敗の合計数（理由別）",
		}, []string{"reason"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsboard_sessions_created_total",
			Help: "発行されたセッションの合計数",
		}),
		degradedIdentity: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oddsboard_degraded_identity_total",
			Help: "トークン由来の擬似顧客IDにフォールバックしたログインの合計数",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsboard_webhook_events_total",
			Help: "受信したWebhookイベントの合計数（種別別）",
		}, []string{"type"}),
		webhookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsboard_webhook_failures_total",
			Help: "適用に失敗したWebhookイベントの合計数（種別別）",
		}, []string{"type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.sessionsCreated,
		c.degradedIdentity,
		c.webhookEvents,
		c.webhookFailures,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を理由付きで記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordSessionCreated はセッション発行を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordDegradedIdentity は擬似顧客IDへのフォールバックを記録する。
func (c *Collector) RecordDegradedIdentity() {
	c.degradedIdentity.Inc()
}

// RecordWebhookEvent はWebhookイベントの受信を記録する。
func (c *Collector) RecordWebhookEvent(eventType string) {
	c.webhookEvents.WithLabelValues(eventType).Inc()
}

// RecordWebhookFailure はWebhookイベントの適用失敗を記録する。
func (c *Collector) RecordWebhookFailure(eventType string) {
	c.webhookFailures.WithLabelValues(eventType).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
