package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/nicktill/obsdemo/pkg/config"
	"github.com/nicktill/obsdemo/pkg/live"
	"github.com/nicktill/obsdemo/pkg/logging"
	"github.com/nicktill/obsdemo/pkg/metrics"
	"github.com/nicktill/obsdemo/pkg/server"
)

func main() {
	logger := logging.NewStdout()
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.Addr()), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, ln, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

// serve runs the service on ln until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, cfg config.Config, ln net.Listener, logger *zap.Logger) error {
	m := metrics.New()
	m.Registry().MustRegister(collectors.NewBuildInfoCollector())
	hub := live.NewHub(logger)

	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(hubCtx)
	}()

	srv := server.NewServer(cfg, server.NewHandler(server.Deps{
		Metrics: m,
		Hub:     hub,
		Logger:  logger,
	}))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("service", config.ServiceName),
			zap.String("addr", ln.Addr().String()),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		cancelHub()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	// Stop the hub first so websocket handlers return and Shutdown can finish
	cancelHub()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown warning", zap.Error(err))
		shutdownErr = err
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("background tasks stopped")
	case <-time.After(config.BackgroundStopWait):
		logger.Warn("background tasks did not stop in time")
	}

	return shutdownErr
}
