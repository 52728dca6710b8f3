package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/agentrouter/internal/httpapi"
	"github.com/randalmurphal/agentrouter/internal/mcpserver"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow HTTP API",
		Long: `Serve the workflow HTTP API.

Endpoints:
  GET  /healthz
  GET  /v1/workflows
  POST /v1/workflows/{name}/runs
  GET  /v1/runs/{id}
  POST /v1/runs/{id}/resume
  GET  /metrics

With --metrics-listen, /metrics moves to its own listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := a.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			metricsAddr := a.v.GetString("metrics.listen")
			opts := []httpapi.Option{httpapi.WithLogger(e.logger)}
			if e.metrics != nil && metricsAddr == "" {
				opts = append(opts, httpapi.WithMetrics(e.metrics))
			}
			api := httpapi.New(e.runtime, opts...)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return api.ListenAndServe(ctx, e.settings.Listen)
			})
			if e.metrics != nil && metricsAddr != "" {
				g.Go(func() error {
					return serveMetrics(ctx, metricsAddr, e.metrics, e.logger)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().String("listen", ":8080", "API listen address")
	cmd.Flags().String("metrics-listen", "", "separate listen address for /metrics")
	_ = a.v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	_ = a.v.BindPFlag("metrics.listen", cmd.Flags().Lookup("metrics-listen"))
	return cmd
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting metrics server", slog.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve workflows as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return mcpserver.New(e.runtime, a.version, e.logger).ServeStdio()
		},
	}
}
