package metric

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yndnr/quicksave-go/internal/core/domain"
)

const namespace = "quicksave"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ArtifactSize      prometheus.Gauge
	CompatVerdicts    *prometheus.CounterVec
	LastSuccess       *prometheus.GaugeVec
}

// NewRegistry creates a registry with every quicksave metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Pipeline calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of pipeline calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"op"}),
		ArtifactSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_size_bytes",
			Help:      "Size of the most recently written artifact.",
		}),
		CompatVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compat_verdicts_total",
			Help:      "Compatibility precheck verdicts by level.",
		}, []string{"verdict"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful call per operation.",
		}, []string{"op"}),
	}

	r.reg.MustRegister(
		r.OperationsTotal,
		r.OperationDuration,
		r.ArtifactSize,
		r.CompatVerdicts,
		r.LastSuccess,
		collectors.NewBuildInfoCollector(),
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveResult records a finished pipeline call. Nil results are ignored.
func (r *Registry) ObserveResult(res *domain.Result) {
	if r == nil || res == nil {
		return
	}
	op := string(res.Op)
	r.OperationsTotal.WithLabelValues(op, string(res.Outcome)).Inc()
	r.OperationDuration.WithLabelValues(op).Observe(res.Elapsed.Seconds())
	if res.OK() {
		r.LastSuccess.WithLabelValues(op).Set(float64(time.Now().Unix()))
		if res.Op == domain.OpDump && res.Artifact != nil {
			r.ArtifactSize.Set(float64(res.Artifact.Size))
		}
	}
}

// ObserveVerdict records a compatibility verdict.
func (r *Registry) ObserveVerdict(v domain.Verdict) {
	if r == nil {
		return
	}
	r.CompatVerdicts.WithLabelValues(string(v.Level)).Inc()
}

// WriteTextfile atomically writes the registry to path in the text
// exposition format. An empty path is a no-op.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
