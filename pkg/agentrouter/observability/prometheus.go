package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricsRecorder with Prometheus collectors.
type PrometheusRecorder struct {
	workerExecutions *prometheus.CounterVec
	workerDuration   *prometheus.HistogramVec
	decisions        *prometheus.CounterVec
	runs             *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	checkpointSize   *prometheus.HistogramVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		workerExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_worker_executions_total",
				Help: "Total number of worker executions by outcome",
			},
			[]string{"worker", "outcome"},
		),
		workerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrouter_worker_duration_seconds",
				Help:    "Duration of worker executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"worker"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_dispatch_decisions_total",
				Help: "Total number of dispatcher decisions by target",
			},
			[]string{"next"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrouter_workflow_runs_total",
				Help: "Total number of workflow invocations by returned status",
			},
			[]string{"workflow", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrouter_workflow_duration_seconds",
				Help:    "Duration of workflow invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"workflow"},
		),
		checkpointSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrouter_checkpoint_size_bytes",
				Help:    "Size of saved checkpoints",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"workflow"},
		),
	}

	for _, c := range []prometheus.Collector{
		r.workerExecutions, r.workerDuration, r.decisions,
		r.runs, r.runDuration, r.checkpointSize,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RecordWorkerExecution implements MetricsRecorder.
func (r *PrometheusRecorder) RecordWorkerExecution(_ context.Context, worker string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.workerExecutions.WithLabelValues(worker, outcome).Inc()
	r.workerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordDecision implements MetricsRecorder.
func (r *PrometheusRecorder) RecordDecision(_ context.Context, next string) {
	r.decisions.WithLabelValues(next).Inc()
}

// RecordRun implements MetricsRecorder.
func (r *PrometheusRecorder) RecordRun(_ context.Context, workflow, status string, duration time.Duration) {
	r.runs.WithLabelValues(workflow, status).Inc()
	r.runDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// RecordCheckpoint implements MetricsRecorder.
func (r *PrometheusRecorder) RecordCheckpoint(_ context.Context, workflow string, sizeBytes int64) {
	r.checkpointSize.WithLabelValues(workflow).Observe(float64(sizeBytes))
}
