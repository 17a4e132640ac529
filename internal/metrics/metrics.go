// Package metrics registers the detector's Prometheus collectors and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "snapshots_total", Help: "Market snapshots ingested"},
		[]string{"ticker"},
	)
	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_emitted_total", Help: "Trading signals emitted by the engine"},
		[]string{"ticker", "strength"},
	)
	SignalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_rejected_total", Help: "Signals discarded below minimum confidence"},
		[]string{"ticker"},
	)
	TickerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticker_failures_total", Help: "Tickers skipped during analysis"},
		[]string{"ticker", "kind"},
	)
	ResolverActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "resolver_actions_total", Help: "Post-auction actions by decision"},
		[]string{"decision"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"ticker", "side"},
	)
	OpenSignals = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_signals", Help: "Signals currently tracked as open positions"},
	)
)

func init() {
	prometheus.MustRegister(SnapshotsTotal, SignalsEmitted, SignalsRejected, TickerFailures, ResolverActions, OrdersTotal, OpenSignals)
}

// Serve exposes /metrics on addr in a background goroutine.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
