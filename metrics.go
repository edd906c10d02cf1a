// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Primary metrics the pipeline updates during operation:
//   • bot_trades_ingested_total{pair}        – Trades read off the stream
//   • bot_depth_events_total{side}           – Incremental depth updates
//   • bot_depth_snapshots_total{pair}        – REST depth snapshots fetched
//   • bot_orderbook_states_total{pair}       – Merged depth states emitted
//   • bot_periods_closed_total{pair,kind}    – Period closures (trades|synthetic)
//   • bot_signals_total{pair,side}           – Buy/sell events emitted
//   • bot_ws_reconnects_total                – Exchange stream (re)connects
//   • bot_rate_limited_total                 – HTTP 429 latches
//   • bot_server_latency_ms                  – EWMA REST round-trip latency
//   • bot_queue_depth{queue}                 – Buffered messages per queue
//
// Registered in init() and served at /metrics (see main.go).

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxTradesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trades_ingested_total",
			Help: "Trades read off the exchange stream",
		},
		[]string{"pair"},
	)

	mtxDepthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_depth_events_total",
			Help: "Incremental depth updates by side",
		},
		[]string{"side"}, // bid|ask
	)

	mtxSnapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_depth_snapshots_total",
			Help: "REST depth snapshots fetched",
		},
		[]string{"pair"},
	)

	mtxOrderbookStates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orderbook_states_total",
			Help: "Merged depth states emitted",
		},
		[]string{"pair"},
	)

	mtxPeriodsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_periods_closed_total",
			Help: "Trading periods closed by kind (trades|synthetic)",
		},
		[]string{"pair", "kind"},
	)

	mtxSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Buy/sell signals emitted",
		},
		[]string{"pair", "side"},
	)

	mtxWSReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_ws_reconnects_total",
			Help: "Exchange websocket (re)connects",
		},
	)

	mtxRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_rate_limited_total",
			Help: "HTTP 429 responses that latched RATE_LIMITED",
		},
	)

	mtxLatency = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_server_latency_ms",
			Help: "EWMA REST round-trip latency in milliseconds",
		},
	)

	mtxQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_queue_depth",
			Help: "Buffered messages per internal queue",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(mtxTradesIngested, mtxDepthEvents, mtxSnapshots)
	prometheus.MustRegister(mtxOrderbookStates, mtxPeriodsClosed, mtxSignals)
	prometheus.MustRegister(mtxWSReconnects, mtxRateLimited, mtxLatency, mtxQueueDepth)
}

// Helper setters (optional use by other files)
func SetLatencyMetric(ms int64) { mtxLatency.Set(float64(ms)) }
func IncRateLimited()           { mtxRateLimited.Inc() }
func IncWSReconnects()          { mtxWSReconnects.Inc() }

// RecordQueueDepths samples the buffered length of every pipeline queue.
func RecordQueueDepths(s *AppState) {
	mtxQueueDepth.WithLabelValues("trade").Set(float64(s.TradeQueue.Len()))
	mtxQueueDepth.WithLabelValues("bid_depth_event").Set(float64(s.BidDepthEventQueue.Len()))
	mtxQueueDepth.WithLabelValues("ask_depth_event").Set(float64(s.AskDepthEventQueue.Len()))
	mtxQueueDepth.WithLabelValues("bid_snapshot").Set(float64(s.BidSnapshotQueue.Len()))
	mtxQueueDepth.WithLabelValues("ask_snapshot").Set(float64(s.AskSnapshotQueue.Len()))
	mtxQueueDepth.WithLabelValues("orderbook_state").Set(float64(s.OrderbookStateQueue.Len()))
	mtxQueueDepth.WithLabelValues("executor").Set(float64(s.ExecutorQueue.Len()))
}
