package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 保留作成の試行数（reason, outcome: success, insufficient, invalid, error）
	HoldsCreatedTotal *prometheus.CounterVec

	// 保留の終端遷移数（status: committed, released, expired）
	HoldTransitionsTotal *prometheus.CounterVec

	// 掃除1回あたりの所要時間
	SweepDuration prometheus.Histogram

	// 掃除で期限切れにした保留数と失敗数
	SweepExpiredTotal  prometheus.Counter
	SweepFailuresTotal prometheus.Counter

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 在庫キャッシュの参照結果（result: hit, miss, error）
	AvailabilityCacheTotal *prometheus.CounterVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HoldsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holds_created_total",
				Help: "Total number of hold creation attempts",
			},
			[]string{"reason", "outcome"},
		),
		HoldTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hold_transitions_total",
				Help: "Total number of holds moved into a terminal status",
			},
			[]string{"status"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hold_sweep_duration_seconds",
				Help:    "Duration of a single expiry sweep pass",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		SweepExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hold_sweep_expired_total",
				Help: "Total number of holds expired by the sweeper",
			},
		),
		SweepFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hold_sweep_failures_total",
				Help: "Total number of holds the sweeper failed to expire",
			},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		AvailabilityCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "availability_cache_lookups_total",
				Help: "Availability cache lookups by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HoldsCreatedTotal,
		m.HoldTransitionsTotal,
		m.SweepDuration,
		m.SweepExpiredTotal,
		m.SweepFailuresTotal,
		m.DistributedLockDuration,
		m.AvailabilityCacheTotal,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す。Init 前は nil
func Get() *Metrics {
	return defaultMetrics
}
