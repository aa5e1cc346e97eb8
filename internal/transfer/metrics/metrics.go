package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for transfer posting.
type Metrics struct {
	TransfersPosted prometheus.Counter
	SharesMoved     prometheus.Counter
	LotsIssued      prometheus.Counter
	PostFailures    *prometheus.CounterVec
	PostDuration    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransfersPosted: f.NewCounter(prometheus.CounterOpts{
			Name: "sharereg_transfers_posted_total",
			Help: "Total number of transfers posted to the ledger",
		}),
		SharesMoved: f.NewCounter(prometheus.CounterOpts{
			Name: "sharereg_transfer_shares_moved_total",
			Help: "Total shares withdrawn from source lots by posted transfers",
		}),
		LotsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "sharereg_transfer_lots_issued_total",
			Help: "Destination lots created by posted transfers",
		}),
		PostFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sharereg_transfer_post_failures_total",
			Help: "Transfer post attempts that were rolled back, by error code",
		}, []string{"code"}),
		PostDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sharereg_transfer_post_duration_seconds",
			Help:    "Duration of the transfer posting transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) RecordPosted(shares int64, lotsIssued int) {
	m.TransfersPosted.Inc()
	m.SharesMoved.Add(float64(shares))
	m.LotsIssued.Add(float64(lotsIssued))
}

func (m *Metrics) IncrementPostFailure(code string) {
	m.PostFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) ObservePost(start time.Time) {
	m.PostDuration.Observe(time.Since(start).Seconds())
}
