// Package observability provides structured logging, metrics, and tracing
// for workflow runs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with workflow_id, worker, and iteration fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "wf-123", "credit_score_checker", 1)
//	enriched.Info("calling credit API") // includes workflow_id, worker, iteration
func EnrichLogger(logger *slog.Logger, workflowID, worker string, iteration int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("workflow_id", workflowID),
		slog.String("worker", worker),
		slog.Int("iteration", iteration),
	)
}

// LogRunStart logs the start (op "start") or continuation (op "resume") of a run.
func LogRunStart(logger *slog.Logger, workflow, workflowID, op string) {
	if logger == nil {
		return
	}
	logger.Info("workflow run starting",
		slog.String("workflow", workflow),
		slog.String("workflow_id", workflowID),
		slog.String("op", op),
	)
}

// LogRunComplete logs a run that returned control without a fatal error,
// either finished or suspended at a gate.
func LogRunComplete(logger *slog.Logger, workflowID, status string, durationMs float64, iterations int) {
	if logger == nil {
		return
	}
	logger.Info("workflow run returned",
		slog.String("workflow_id", workflowID),
		slog.String("status", status),
		slog.Float64("duration_ms", durationMs),
		slog.Int("iterations", iterations),
	)
}

// LogRunError logs a fatal run abort.
func LogRunError(logger *slog.Logger, workflowID string, err error, durationMs float64, lastWorker string) {
	if logger == nil {
		return
	}
	logger.Error("workflow run failed",
		slog.String("workflow_id", workflowID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_worker", lastWorker),
	)
}

// LogDecision logs a dispatcher decision.
func LogDecision(logger *slog.Logger, next string, iteration int) {
	if logger == nil {
		return
	}
	logger.Debug("dispatcher decided",
		slog.String("next", next),
		slog.Int("iteration", iteration),
	)
}

// LogWorkerStart logs worker execution start.
func LogWorkerStart(logger *slog.Logger, worker string) {
	if logger == nil {
		return
	}
	logger.Debug("worker starting",
		slog.String("worker", worker),
	)
}

// LogWorkerComplete logs successful worker completion.
func LogWorkerComplete(logger *slog.Logger, worker string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("worker completed",
		slog.String("worker", worker),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogWorkerError logs a worker failure that was absorbed into the log.
func LogWorkerError(logger *slog.Logger, worker string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("worker failed, error recorded in log",
		slog.String("worker", worker),
		slog.String("error", err.Error()),
	)
}

// LogSuspend logs a run parking at an interrupt gate.
func LogSuspend(logger *slog.Logger, workflowID, gate string) {
	if logger == nil {
		return
	}
	logger.Info("workflow awaiting input",
		slog.String("workflow_id", workflowID),
		slog.String("gate", gate),
	)
}

// LogResume logs external input arriving for a suspended run.
func LogResume(logger *slog.Logger, workflowID, gate string) {
	if logger == nil {
		return
	}
	logger.Info("workflow resumed",
		slog.String("workflow_id", workflowID),
		slog.String("gate", gate),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, workflowID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("workflow_id", workflowID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal).
func LogCheckpointError(logger *slog.Logger, workflowID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("workflow_id", workflowID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
