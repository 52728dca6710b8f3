package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/checkpoint"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/config"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/llm"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/lock"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/observability"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/runtime"
)

// env is everything a command needs, built from Settings.
type env struct {
	settings Settings
	logger   *slog.Logger
	runtime  *runtime.Runtime
	metrics  *prometheus.Registry
	closers  []func() error
}

func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *app) setup(ctx context.Context, cmd *cobra.Command) (*env, error) {
	s := a.settings()
	logger, err := a.logger(cmd, s)
	if err != nil {
		return nil, err
	}
	e := &env{settings: s, logger: logger}

	var redis *backend.Client
	if s.StoreDriver == "redis" || s.RedisLock {
		redis = backend.NewClient(&backend.Options{Addr: s.RedisAddr})
		e.closers = append(e.closers, redis.Close)
	}

	store, err := openStore(ctx, s, redis)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	opts := []runtime.Option{runtime.WithLogger(logger)}
	completion := completionClient(s.Completion)
	if completion != nil {
		opts = append(opts, runtime.WithCompletion(completion))
	}
	if s.RedisLock {
		opts = append(opts,
			runtime.WithLocker(lock.NewRedisLocker(redis)),
			runtime.WithLockTTL(s.LockTTL))
	}
	if s.MaxIterations > 0 {
		opts = append(opts, runtime.WithMaxIterations(s.MaxIterations))
	}
	if s.Metrics {
		e.metrics = prometheus.NewRegistry()
		recorder, err := observability.NewPrometheusRecorder(e.metrics)
		if err != nil {
			_ = store.Close()
			_ = e.Close()
			return nil, err
		}
		opts = append(opts, runtime.WithMetrics(recorder))
	}

	e.runtime = runtime.New(store, opts...)
	e.closers = append(e.closers, e.runtime.Close)

	defs, err := config.LoadDir(s.WorkflowsDir)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	deps := config.Deps{
		Completion:  completion,
		ToolBaseURL: s.ToolsBaseURL,
		ToolToken:   s.ToolsToken,
		Logger:      logger,
	}
	for _, def := range defs {
		compiled, err := config.Build(def, deps)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		if err := e.runtime.Register(compiled); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("register %s: %w", def.Name, err)
		}
	}

	logger.Debug("runtime ready",
		slog.String("store", s.StoreDriver),
		slog.Any("workflows", e.runtime.Workflows()),
	)
	return e, nil
}

func openStore(ctx context.Context, s Settings, redis *backend.Client) (checkpoint.Store, error) {
	switch s.StoreDriver {
	case "", "memory":
		return checkpoint.NewMemoryStore(), nil
	case "sqlite":
		return checkpoint.NewSQLiteStore(orDefault(s.StoreDSN, "agentrouter.db"))
	case "file":
		return checkpoint.NewFileStore(orDefault(s.StoreDSN, ".agentrouter/runs"))
	case "redis":
		return checkpoint.NewRedisStoreFromClient(redis), nil
	case "postgres":
		if s.StoreDSN == "" {
			return nil, errors.New("store.dsn is required for postgres")
		}
		return checkpoint.OpenPostgresStore(ctx, s.StoreDSN)
	}
	return nil, fmt.Errorf("unknown store driver %q", s.StoreDriver)
}

// completionClient runs an external command for completions, for example
// "claude --print". Empty means workflows must not need one.
func completionClient(command string) llm.Client {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil
	}
	return llm.NewCommandClient(parts[0], llm.WithArgs(parts[1:]...))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
