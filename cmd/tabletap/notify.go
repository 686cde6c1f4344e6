package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/httputil"
	mw "github.com/tabletap/tabletap/pkg/httputil/middleware"
	"github.com/tabletap/tabletap/pkg/metrics"
	"github.com/tabletap/tabletap/pkg/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run only the dashboard notifier (broker consumer + SSE endpoint)",
	Long: `Notify runs the subscriber side on its own: it consumes the order
topics and serves the dashboard event stream, without the ordering API.
Useful for scaling dashboard fan-out separately from order intake.`,
	RunE: runNotify,
}

func runNotify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	hub := notify.NewHub(cfg.Consumer.HubBuffer, logger)
	startConsumer(ctx, &wg, hub, errChan)

	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, logger, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr})
	}

	router := httputil.NewRouter(httputil.WithServerOptions(func(srv *http.Server) {
		srv.ReadHeaderTimeout = 3 * time.Second
	}))
	router.Use(mw.RequestID)
	router.Use(mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}))
	router.Use(mw.CORSWithOptions(nil))
	router.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.Text(w, http.StatusOK, "ok")
	}))
	router.Handle("GET /api/kitchen/events", notify.NewSSEHandler(hub, logger, 0))

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting notifier HTTP server", zap.String("addr", cfg.HTTP.ListenAddr))
		if err := router.ListenAndServe(cfg.HTTP.ListenAddr); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Received termination signal, shutting down gracefully")
	case err := <-errChan:
		logger.Error("Runtime error, shutting down", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	cancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()
	select {
	case <-doneChan:
		logger.Info("Shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("Shutdown timed out after 10 seconds")
	}

	return nil
}
