package photolite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sessionMetrics instruments a session. The collectors are only exported
// when a registerer is given with WithMetrics.
type sessionMetrics struct {
	operations    *prometheus.CounterVec
	undos         *prometheus.CounterVec
	snapshotBytes prometheus.Histogram
	renderSeconds prometheus.Histogram
	historyDepth  prometheus.Gauge
	layers        prometheus.Gauge
}

func newSessionMetrics(reg prometheus.Registerer) *sessionMetrics {
	factory := promauto.With(reg)

	return &sessionMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photolite",
			Name:      "operations_total",
			Help:      "Editing operations applied to the session, by operation.",
		}, []string{"op"}),
		undos: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photolite",
			Name:      "undo_total",
			Help:      "Undo requests, by outcome.",
		}, []string{"result"}),
		snapshotBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photolite",
			Name:      "snapshot_bytes",
			Help:      "Encoded size of the history snapshots.",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 8),
		}),
		renderSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photolite",
			Name:      "render_duration_seconds",
			Help:      "Time spent compositing the layer stack.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		historyDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "photolite",
			Name:      "history_entries",
			Help:      "Number of available undo steps.",
		}),
		layers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "photolite",
			Name:      "layers",
			Help:      "Number of layers in the stack.",
		}),
	}
}

// WithMetrics registers the session collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Session) { s.registerer = reg }
}
