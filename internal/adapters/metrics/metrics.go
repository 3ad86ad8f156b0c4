// Package metrics exposes internal counters and gauges in Prometheus
// text exposition format, for a sidecar scraper to pull from /metrics.
//
//   - probedge_fills_total{symbol,side}       – fills recorded by the paper engine
//   - probedge_exits_total{reason}            – position closes split by exit reason
//   - probedge_realized_pnl_rs                – running realized P&L for the day (gauge)
//   - probedge_open_positions                 – count of currently OPEN positions (gauge)
//   - probedge_risk_halted                    – 1 if the daily-loss latch has tripped, else 0
//   - probedge_plan_build_duration_seconds    – histogram of plan-builder wall time
//   - probedge_agent_heartbeats_total{component,status} – heartbeat observations per component
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric Probedge exports, all attached to a
// private prometheus.Registry rather than the global default — so tests
// can construct independent instances without collector collisions.
type Registry struct {
	reg *prometheus.Registry

	Fills             *prometheus.CounterVec
	Exits             *prometheus.CounterVec
	RealizedPnL       prometheus.Gauge
	OpenPositions     prometheus.Gauge
	RiskHalted        prometheus.Gauge
	PlanBuildSeconds  prometheus.Histogram
	AgentHeartbeats   *prometheus.CounterVec
}

// New constructs and registers every Probedge metric.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.Fills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "probedge_fills_total",
		Help: "Fills recorded by the paper execution engine.",
	}, []string{"symbol", "side"})

	r.Exits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "probedge_exits_total",
		Help: "Position closes split by exit reason.",
	}, []string{"reason"})

	r.RealizedPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "probedge_realized_pnl_rs",
		Help: "Running realized P&L for the day, in rupees.",
	})

	r.OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "probedge_open_positions",
		Help: "Count of currently OPEN positions.",
	})

	r.RiskHalted = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "probedge_risk_halted",
		Help: "1 if the daily loss latch has tripped, 0 otherwise.",
	})

	r.PlanBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "probedge_plan_build_duration_seconds",
		Help:    "Wall time taken to build the 09:40 portfolio plan.",
		Buckets: prometheus.DefBuckets,
	})

	r.AgentHeartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "probedge_agent_heartbeats_total",
		Help: "Heartbeat observations per component and status.",
	}, []string{"component", "status"})

	r.reg.MustRegister(
		r.Fills, r.Exits, r.RealizedPnL, r.OpenPositions,
		r.RiskHalted, r.PlanBuildSeconds, r.AgentHeartbeats,
	)
	return r
}

// Handler returns the HTTP handler serving this registry's metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// SetHalted records the daily-loss latch state as 0/1.
func (r *Registry) SetHalted(halted bool) {
	if halted {
		r.RiskHalted.Set(1)
		return
	}
	r.RiskHalted.Set(0)
}
