package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Trade pipeline
var (
	TradesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_relay_trades_ingested_total",
			Help: "Trade events merged into the state store",
		},
	)

	TradesDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_relay_trades_discarded_total",
			Help: "Trade events dropped for missing symbol or price",
		},
	)

	QuotesPushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_relay_quotes_pushed_total",
			Help: "Quote updates pushed to clients by result",
		},
		[]string{"result"},
	)
)

// Upstream stream
var (
	UpstreamState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quote_relay_upstream_state",
			Help: "Upstream connection state (0 disconnected, 1 connecting, 2 connected)",
		},
	)

	UpstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_relay_upstream_calls_total",
			Help: "Calls made on the upstream stream by operation and result",
		},
		[]string{"op", "result"},
	)

	ReconcilePasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_relay_reconcile_passes_total",
			Help: "Reconciliation passes executed",
		},
	)

	ActiveSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quote_relay_active_symbols",
			Help: "Symbols currently subscribed upstream",
		},
	)
)

// Downstream and snapshots
var (
	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quote_relay_connected_clients",
			Help: "Open websocket client connections",
		},
	)

	SnapshotRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_relay_snapshot_requests_total",
			Help: "Snapshot fetches by result",
		},
		[]string{"result"},
	)

	StateFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_relay_state_flushes_total",
			Help: "Persisted state flushes by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(TradesIngested, TradesDiscarded, QuotesPushed)
	prometheus.MustRegister(UpstreamState, UpstreamCalls, ReconcilePasses, ActiveSymbols)
	prometheus.MustRegister(ConnectedClients, SnapshotRequests, StateFlushes)
}

// Result label helper.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
