package pipeline

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Metrics records batch counters on a private registry so several runs in
// one process do not collide.
type Metrics struct {
	registry      *prometheus.Registry
	images        *prometheus.CounterVec
	cells         prometheus.Counter
	stageDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		images: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vesscoop_images_total",
			Help: "Number of images handled, by outcome.",
		}, []string{"status"}),
		cells: factory.NewCounter(prometheus.CounterOpts{
			Name: "vesscoop_cells_detected_total",
			Help: "Number of cell regions measured.",
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vesscoop_stage_duration_seconds",
			Help:    "Duration of pipeline stages, prompts included.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
	}
}

func (m *Metrics) ImageDone(status string) {
	m.images.WithLabelValues(status).Inc()
}

func (m *Metrics) CellsDetected(n int) {
	m.cells.Add(float64(n))
}

type timingKey struct{}

type timing struct {
	stage string
	start time.Time
}

// StartTiming begins timing a stage. Pass the returned context to EndTiming.
func (m *Metrics) StartTiming(stage string) context.Context {
	return context.WithValue(context.Background(), timingKey{}, timing{stage: stage, start: time.Now()})
}

func (m *Metrics) EndTiming(ctx context.Context) {
	t, ok := ctx.Value(timingKey{}).(timing)
	if !ok {
		return
	}
	m.stageDuration.WithLabelValues(t.stage).Observe(time.Since(t.start).Seconds())
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
