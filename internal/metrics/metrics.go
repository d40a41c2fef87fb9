package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Signal decisions produced"},
		[]string{"signal"},
	)
	TradesExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_executed_total", Help: "Lots executed by the paper ledger"},
		[]string{"side"},
	)
	RejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rejected_payloads_total", Help: "Payloads rejected before reaching the ledger"},
		[]string{"reason"},
	)
	SinkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "record_sink_errors_total", Help: "Failures delivering records to optional sinks"},
		[]string{"sink"},
	)
	FeedPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_polls_total", Help: "Price feed polls by outcome"},
		[]string{"provider", "status"},
	)
	PortfolioCash = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "portfolio_cash", Help: "Paper cash balance"},
	)
	PortfolioHoldings = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "portfolio_holdings", Help: "Paper share holdings"},
	)
)

func init() {
	prometheus.MustRegister(
		DecisionsTotal,
		TradesExecutedTotal,
		RejectedTotal,
		SinkErrorsTotal,
		FeedPollsTotal,
		PortfolioCash,
		PortfolioHoldings,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Serve runs a standalone /metrics listener in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
