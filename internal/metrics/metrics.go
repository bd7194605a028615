// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// サインアップ結果ラベル
const (
	SignupSuccess           = "success"
	SignupValidationError   = "validation_error"
	SignupAlreadyRegistered = "already_registered"
	SignupProviderError     = "provider_error"
	SignupCreationFailed    = "creation_failed"
	SignupPersistenceFailed = "persistence_failed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordSignup(result string)
	RecordBackfillFailure(table string)
	RecordProviderLatency(operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordGuardDecision(state string)
	RecordReconciled(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups         *prometheus.CounterVec
	backfillFail    *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	reconciled      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_signup_total",
			Help: "カスタムサインアップの結果別件数",
		}, []string{"result"}),
		backfillFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_backfill_failures_total",
			Help: "サインアップ後のバックフィル失敗数（テーブル別）",
		}, []string{"table"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authgate_provider_request_duration_seconds",
			Help:    "認証プロバイダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_guard_decisions_total",
			Help: "セッションガードの判定結果別件数",
		}, []string{"state"}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_reconciled_subscriptions_total",
			Help: "リコンサイルジョブが補完した購読の合計数",
		}),
	}

	reg.MustRegister(
		c.signups,
		c.backfillFail,
		c.providerLatency,
		c.httpStatus,
		c.guardDecisions,
		c.reconciled,
	)

	return c
}

// RecordSignup はサインアップの結果を記録する。
func (c *Collector) RecordSignup(result string) {
	c.signups.WithLabelValues(result).Inc()
}

// RecordBackfillFailure はバックフィル失敗を記録する。
func (c *Collector) RecordBackfillFailure(table string) {
	c.backfillFail.WithLabelValues(table).Inc()
}

// RecordProviderLatency はプロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(operation string, duration time.Duration) {
	c.providerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordGuardDecision はセッションガードの判定を記録する。
func (c *Collector) RecordGuardDecision(state string) {
	c.guardDecisions.WithLabelValues(state).Inc()
}

// RecordReconciled は補完した購読数を記録する。
func (c *Collector) RecordReconciled(count int) {
	c.reconciled.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordSignup(string)                         {}
func (Nop) RecordBackfillFailure(string)                {}
func (Nop) RecordProviderLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                        {}
func (Nop) RecordGuardDecision(string)                  {}
func (Nop) RecordReconciled(int)                        {}
