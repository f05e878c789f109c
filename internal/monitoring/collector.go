package monitoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the Prometheus metrics of pipeline runs. A nil
// *Collector is valid and records nothing.
type Collector struct {
	SamplesProcessed *prometheus.CounterVec
	SamplesSkipped   *prometheus.CounterVec
	BatchesFlushed   *prometheus.CounterVec
	RunDuration      prometheus.Histogram
}

// NewCollector registers the pipeline metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry returns the existing metrics.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	processed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lom_samples_processed_total",
		Help: "Metric samples produced, labeled by metric kind.",
	}, []string{"kind"}), "lom_samples_processed_total")
	if err != nil {
		return nil, err
	}
	skipped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lom_samples_skipped_total",
		Help: "Snapshots rejected for a metric kind, labeled by kind and reason.",
	}, []string{"kind", "reason"}), "lom_samples_skipped_total")
	if err != nil {
		return nil, err
	}
	batches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lom_batches_flushed_total",
		Help: "Batched matrix products computed, labeled by metric kind.",
	}, []string{"kind"}), "lom_batches_flushed_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lom_run_duration_seconds",
		Help:    "Wall time of pipeline runs in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 1800},
	})
	if err := reg.Register(duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Histogram)
		if !ok {
			return nil, fmt.Errorf("collector lom_run_duration_seconds already registered with incompatible type")
		}
		duration = existing
	}

	return &Collector{
		SamplesProcessed: processed,
		SamplesSkipped:   skipped,
		BatchesFlushed:   batches,
		RunDuration:      duration,
	}, nil
}

// ObserveSamples counts n produced samples of kind.
func (c *Collector) ObserveSamples(kind string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.SamplesProcessed.WithLabelValues(kind).Add(float64(n))
}

// ObserveSkip counts one rejected snapshot.
func (c *Collector) ObserveSkip(kind, reason string) {
	if c == nil {
		return
	}
	c.SamplesSkipped.WithLabelValues(kind, reason).Inc()
}

// ObserveBatch counts one flushed batch.
func (c *Collector) ObserveBatch(kind string) {
	if c == nil {
		return
	}
	c.BatchesFlushed.WithLabelValues(kind).Inc()
}

// ObserveRun records the duration of one run.
func (c *Collector) ObserveRun(d time.Duration) {
	if c == nil {
		return
	}
	c.RunDuration.Observe(d.Seconds())
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
