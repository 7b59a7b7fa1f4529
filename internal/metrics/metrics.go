// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン失敗理由のラベル値
const (
	LoginFailureAuth     = "auth"     // IdPの応答またはトークン検証の失敗
	LoginFailureCallback = "callback" // stateやcodeが欠けたコールバック
	LoginFailureInternal = "internal" // セッション確立またはプロフィール作成の失敗
)

// Collector はPrometheusメトリクスを収集する実装。
// profile.Recorderとmiddleware.StatusObserverを満たす。
type Collector struct {
	loginSuccess    prometheus.Counter
	loginFailure    *prometheus.CounterVec
	logout          prometheus.Counter
	profileCreated  prometheus.Counter
	profileConflict prometheus.Counter
	profileUpdated  prometheus.Counter
	sessionsPurged  prometheus.Counter
	httpStatus      *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilekeeper_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilekeeper_login_failure_total",
			Help: "理由別のログイン失敗数",
		}, []string{"reason"}),
		logout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilekeeper_logout_total",
			Help: "ログアウトの合計数",
		}),
		profileCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilekeeper_profile_created_total",
			Help: "初回ログインで作成されたプロフィール数",
		}),
		profileConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilekeeper_profile_create_conflict_total",
			Help: "同時作成の競合を再読込で解消した回数",
		}),
		profileUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilekeeper_profile_updated_total",
			Help: "プロフィール更新の合計数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "profilekeeper_sessions_purged_total",
			Help: "期限切れで削除したセッション数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilekeeper_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profilekeeper_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFailure,
		c.logout,
		c.profileCreated,
		c.profileConflict,
		c.profileUpdated,
		c.sessionsPurged,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を理由別に記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFailure.WithLabelValues(reason).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logout.Inc()
}

// RecordProfileCreated はプロフィール作成を記録する。
func (c *Collector) RecordProfileCreated() {
	c.profileCreated.Inc()
}

// RecordProfileConflict は同時作成の競合を記録する。
func (c *Collector) RecordProfileConflict() {
	c.profileConflict.Inc()
}

// RecordProfileUpdated はプロフィール更新を記録する。
func (c *Collector) RecordProfileUpdated() {
	c.profileUpdated.Inc()
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// ObserveHTTPRequest はHTTPステータスコードと処理時間を記録する。
func (c *Collector) ObserveHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
