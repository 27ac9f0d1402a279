package presence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReconcilerMetrics tracks snapshot and tick related metrics
var ReconcilerMetrics = struct {
	SnapshotsTotal *prometheus.CounterVec
	TicksTotal     *prometheus.CounterVec
	State          *prometheus.GaugeVec
	ActiveTickers  prometheus.Gauge
}{
	SnapshotsTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_snapshots_total",
			Help: "Total number of snapshots applied, split by user",
		},
		[]string{"user_id"},
	),
	TicksTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_ticks_total",
			Help: "Total number of playback ticks handled, split by user",
		},
		[]string{"user_id"},
	),
	State: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_reconciler_state",
			Help: "State of the reconciler, 0 loading and 1 ready",
		},
		[]string{"user_id"},
	),
	ActiveTickers: promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_active_tickers",
			Help: "Number of playback tickers currently running",
		},
	),
}

func RecordSnapshot(userID string) {
	ReconcilerMetrics.SnapshotsTotal.WithLabelValues(userID).Inc()
}

func RecordTick(userID string) {
	ReconcilerMetrics.TicksTotal.WithLabelValues(userID).Inc()
}

func UpdateReconcilerState(userID string, state ReconcilerState) {
	ReconcilerMetrics.State.WithLabelValues(userID).Set(float64(state))
}

func UpdateActiveTickers(delta float64) {
	ReconcilerMetrics.ActiveTickers.Add(delta)
}

// FeedMetrics tracks transport related metrics
var FeedMetrics = struct {
	ErrorsTotal *prometheus.CounterVec
	Latency     *prometheus.GaugeVec
	CardStatus  *prometheus.GaugeVec
}{
	ErrorsTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_feed_errors_total",
			Help: "Total number of errors raised by a feed",
		},
		[]string{"feed"},
	),
	Latency: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_feed_latency_seconds",
			Help: "Feed latency in seconds, measured by heartbeat or request time",
		},
		[]string{"feed"},
	),
	CardStatus: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_card_status",
			Help: "Status of the mounted card",
		},
		[]string{"user_id"},
	),
}

func RecordFeedError(feed string) {
	FeedMetrics.ErrorsTotal.WithLabelValues(feed).Inc()
}

func UpdateFeedLatency(feed string, seconds float64) {
	FeedMetrics.Latency.WithLabelValues(feed).Set(seconds)
}

func UpdateCardStatus(userID string, status CardStatus) {
	FeedMetrics.CardStatus.WithLabelValues(userID).Set(float64(status))
}
