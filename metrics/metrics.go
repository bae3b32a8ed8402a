package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hintd"

// Metrics holds the flush pipeline counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	EventsDrained    prometheus.Counter
	HintsCommitted   prometheus.Counter
	BatchesCommitted prometheus.Counter
	BatchesFailed    *prometheus.CounterVec
	FlushDuration    prometheus.Histogram
	Pending          prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the pipeline metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		EventsDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_drained_total",
			Help:      "Raw change events drained from the pending queue.",
		}),
		HintsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hints_committed_total",
			Help:      "Unique hints handed to the sink successfully.",
		}),
		BatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_committed_total",
			Help:      "Batches committed without error.",
		}),
		BatchesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_failed_total",
			Help:      "Batches whose commit reported an error, by error kind.",
		}, []string{"kind"}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Duration of drain, build and commit cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_events",
			Help:      "Raw events waiting in the queue at the last tick.",
		}),
		registry: registry,
	}
	registry.MustRegister(
		m.EventsDrained,
		m.HintsCommitted,
		m.BatchesCommitted,
		m.BatchesFailed,
		m.FlushDuration,
		m.Pending,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFlush records one completed cycle.
func (m *Metrics) ObserveFlush(drained, committed int, failureKind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EventsDrained.Add(float64(drained))
	m.HintsCommitted.Add(float64(committed))
	m.FlushDuration.Observe(elapsed.Seconds())
	if failureKind == "" {
		m.BatchesCommitted.Inc()
		return
	}
	m.BatchesFailed.WithLabelValues(failureKind).Inc()
}

// SetPending records the queue depth.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}

// Serve exposes the registry on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
