// Package metrics exposes Prometheus counters for the automation cycles and
// a standalone /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tokenops_verifications_total", Help: "Signed requests verified, by outcome"},
		[]string{"outcome"},
	)
	MarketMakerCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tokenops_marketmaker_cycles_total", Help: "Market-maker cycles run, by result"},
		[]string{"result"},
	)
	PlanCostUSD = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tokenops_plan_cost_usd",
			Help:    "Cost of executed purchase plans in USD",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)
	BuybacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tokenops_buybacks_total", Help: "Buyback swaps executed, by result"},
		[]string{"result"},
	)
	ArchivedRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tokenops_archived_rows_total", Help: "Rows moved to cold storage, by table"},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(VerificationsTotal, MarketMakerCycles, PlanCostUSD, BuybacksTotal, ArchivedRows)
}

// Serve starts a metrics-only HTTP server on addr and returns it. The caller
// owns shutdown.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
