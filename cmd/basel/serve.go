package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/basel-bench/basel/internal/api"
	"github.com/basel-bench/basel/internal/compute"
	"github.com/basel-bench/basel/internal/config"
	"github.com/basel-bench/basel/internal/health"
	"github.com/basel-bench/basel/internal/store"
	"github.com/basel-bench/basel/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve partial sums over HTTP, WebSocket and gRPC health",
		Long: `Runs a long-lived server that computes partial sums on request and caches them.

HTTP (server.http_port):  /api/v1/series?n=N, /api/v1/results, /api/v1/health,
                          /metrics, /ws/stream
gRPC (server.grpc_port):  grpc.health.v1.Health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, opts.configPath)
		},
	}
}

// newMux routes the REST API, metrics and the WebSocket stream.
func newMux(h *api.Handler, hub *ws.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/", h)
	mux.Handle("/metrics", h)
	mux.Handle("/ws/stream", hub)
	return mux
}

// runServe blocks until ctx is cancelled or a component fails. When
// configPath is non-empty the file is watched and reloads are applied live.
func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	st := store.New(cfg.Server.CacheTTL)
	slog.Info("basel-server starting",
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"warm_terms", len(cfg.Server.WarmTerms),
		"cache_ttl", st.TTL(),
	)

	eng := compute.NewEngine(st, cfg.Run.Tolerance)
	handler := api.New(eng, cfg.Server.MaxN)
	hub := ws.New(eng, cfg.Server.BroadcastInterval)
	hs := health.New()
	grpcSrv := health.NewGRPCServer(hs)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
		return err
	}
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           newMux(handler, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st.Run(ctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := warmUp(ctx, eng, cfg.Server.WarmTerms, hs, hub); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		return nil
	})
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, configPath, func(updated *config.Config) {
				applyReload(ctx, updated, eng, handler, hs, hub)
			})
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("basel-server shutting down")
		hs.Shutdown()
		grpcSrv.GracefulStop()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	return g.Wait()
}

// warmUp computes terms and only then reports SERVING, so a health check
// never passes while the first requests would still pay for the summation.
func warmUp(ctx context.Context, eng *compute.Engine, terms []int, hs *health.Server, hub *ws.Hub) error {
	if err := eng.Warm(ctx, terms); err != nil {
		return err
	}
	hs.MarkServing()
	hub.Kick()
	return nil
}

// applyReload pushes the settings that can change at runtime. Ports and the
// cache TTL need a restart. Health drops to NOT_SERVING while new warm terms
// are summed.
func applyReload(ctx context.Context, cfg *config.Config, eng *compute.Engine, h *api.Handler, hs *health.Server, hub *ws.Hub) {
	eng.SetTolerance(cfg.Run.Tolerance)
	h.SetMaxN(cfg.Server.MaxN)
	hs.MarkNotServing()
	if err := warmUp(ctx, eng, cfg.Server.WarmTerms, hs, hub); err != nil {
		slog.Warn("reload: warm-up incomplete", "err", err)
		hs.MarkServing()
		hub.Kick()
	}
}
