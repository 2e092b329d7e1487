package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/cell-controller/internal/config"
	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"github.com/danielpatrickdp/cell-controller/internal/rpc"
	"github.com/danielpatrickdp/cell-controller/internal/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// #region main
func main() {
	configPath := flag.String("config", "", "path to YAML config (embedded defaults when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("controller exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("controller shut down gracefully")
}

// #endregion main

// #region run
func run(cfg *config.Config, logger *slog.Logger) error {
	var recorder controller.Recorder
	if cfg.Journal.Enabled {
		store, err := state.NewStore(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		journal, err := state.NewJournal(store, cfg.Participant.ID)
		if err != nil {
			return err
		}
		recorder = journal
		logger.Info("journal opened", "db", cfg.Journal.DBPath, "head", journal.Head())
	}

	ctrl, err := controller.New(cfg.Core(), logger, recorder)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	grpcServer := grpc.NewServer()
	rpc.RegisterParticipantServer(grpcServer, rpc.NewServer(ctrl, logger))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("participant ready",
			"participant", cfg.Participant.ID,
			"addr", lis.Addr().String(),
			"capacity", cfg.Participant.Capacity,
			"journal", cfg.Journal.Enabled,
		)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			return runHealthServer(gCtx, cfg.Server.MetricsAddr, logger)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// #endregion run

// #region health
func runHealthServer(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// #endregion health
