package stagepipe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the stages. A nil *Metrics records nothing.
type Metrics struct {
	ItemsProcessed    *prometheus.CounterVec
	ItemsFailed       *prometheus.CounterVec
	WorkersRunning    *prometheus.GaugeVec
	TransformDuration *prometheus.HistogramVec
}

// NewMetrics creates the stage collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ItemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagepipe_items_processed_total",
				Help: "Total number of items successfully transformed and forwarded",
			},
			[]string{"stage"},
		),
		ItemsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagepipe_items_failed_total",
				Help: "Total number of items whose transform failed",
			},
			[]string{"stage"},
		),
		WorkersRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stagepipe_workers_running",
				Help: "Number of workers currently running",
			},
			[]string{"stage"},
		),
		TransformDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagepipe_transform_duration_seconds",
				Help:    "Transform duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
	for _, c := range []prometheus.Collector{m.ItemsProcessed, m.ItemsFailed, m.WorkersRunning, m.TransformDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) processed(stage string) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(stage).Inc()
}

func (m *Metrics) failed(stage string) {
	if m == nil {
		return
	}
	m.ItemsFailed.WithLabelValues(stage).Inc()
}

func (m *Metrics) workerStarted(stage string) {
	if m == nil {
		return
	}
	m.WorkersRunning.WithLabelValues(stage).Inc()
}

func (m *Metrics) workerStopped(stage string) {
	if m == nil {
		return
	}
	m.WorkersRunning.WithLabelValues(stage).Dec()
}

func (m *Metrics) observe(stage string, since time.Time) {
	if m == nil {
		return
	}
	m.TransformDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
}
