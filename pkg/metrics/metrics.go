// Package metrics exposes Prometheus instrumentation for the crawl pipeline.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mywi"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ExtractionAttempts *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	ExpressionsTotal   *prometheus.CounterVec
	LLMVerdicts        *prometheus.CounterVec
	ClaimedBatchSize   prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg, or on a fresh registry when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ExtractionAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_attempts_total",
			Help:      "Extraction attempts by method and outcome",
		}, []string{"method", "outcome"}),
		ExtractionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of extraction attempts",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"method"}),
		ExpressionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expressions_processed_total",
			Help:      "Expressions processed by outcome",
		}, []string{"outcome"}),
		LLMVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_verdicts_total",
			Help:      "LLM relevance gate verdicts",
		}, []string{"verdict"}),
		ClaimedBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frontier_claim_batch_size",
			Help:      "Number of expressions claimed per batch",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveAttempt(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionAttempts.WithLabelValues(method, outcome).Inc()
	m.ExtractionDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveExpression(outcome string) {
	if m == nil {
		return
	}
	m.ExpressionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.LLMVerdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ObserveClaim(n int) {
	if m == nil {
		return
	}
	m.ClaimedBatchSize.Observe(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve metrics: %w", err)
	}
}
