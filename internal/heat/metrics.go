package heat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the session's Prometheus instruments.
type Metrics struct {
	Clicks        prometheus.Counter
	Flushes       prometheus.Counter
	FlushedWrites prometheus.Counter
	FailedWrites  prometheus.Counter
	Beacons       prometheus.Counter
	Adoptions     prometheus.Counter
	Evictions     prometheus.Counter
	BreakerTrips  prometheus.Counter
	PendingWrites prometheus.Gauge
}

// NewMetrics registers the heatmap instruments with reg. A nil reg uses a
// private registry, which keeps the instruments working but unexported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Clicks: f.NewCounter(prometheus.CounterOpts{
			Name: "dotheat_clicks_total",
			Help: "Local click increments recorded.",
		}),
		Flushes: f.NewCounter(prometheus.CounterOpts{
			Name: "dotheat_flushes_total",
			Help: "Batch flushes that reached the remote service.",
		}),
		FlushedWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "dotheat_flushed_writes_total",
			Help: "Pending writes delivered by batch flushes.",
		}),
		FailedWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "dotheat_failed_writes_total",
			Help: "Pending writes that failed and were requeued.",
		}),
		Beacons: f.NewCounter(prometheus.CounterOpts{
			Name: "dotheat_beacon_writes_total",
			Help: "Pending writes handed to fire-and-forget delivery on page exit.",
		}),
		Adoptions: f.NewCounter(prometheus.CounterOpts{
			Name: "dotheat_remote_adoptions_total",
			Help: "Cells raised to a larger remote count during reconciliation.",
		}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "dotheat_evictions_total",
			Help: "Cells evicted from the local cache.",
		}),
		BreakerTrips: f.NewCounter(prometheus.CounterOpts{
			Name: "dotheat_breaker_trips_total",
			Help: "Times the remote availability breaker opened.",
		}),
		PendingWrites: f.NewGauge(prometheus.GaugeOpts{
			Name: "dotheat_pending_writes",
			Help: "Writes waiting for the next flush.",
		}),
	}
}
