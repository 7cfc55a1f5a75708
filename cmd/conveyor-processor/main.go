// Conveyor Processor — выполняет tasks, полученные от dispatcher'ов.
//
// Processor:
//   - Читает список dispatcher'ов из dispatcher.yaml
//   - Периодически обменивается с ними: отчёты в одну сторону, tasks в другую
//   - Выполняет tasks на ядрах и загружает результаты
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/processor"
	"github.com/shaiso/Conveyor/internal/selector"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-processor")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	path := config.String("DISPATCHER_YAML", "dispatcher.yaml")
	cfg, err := selector.LoadConfig(path)
	if err != nil {
		logger.Error("failed to load dispatcher config", "path", path, "error", err)
		os.Exit(1)
	}
	sel, err := selector.FromConfig(cfg, metrics)
	if err != nil {
		logger.Error("invalid dispatcher config", "path", path, "error", err)
		os.Exit(1)
	}

	proc := processor.New(processor.Config{
		ID:           config.String("PROCESSOR_ID", ""),
		Cores:        config.Int("PROCESSOR_CORES", 1),
		PollInterval: config.Duration("PROCESSOR_POLL_INTERVAL", 5*time.Second),
		Selector:     sel,
		Client:       processor.NewClient(config.Duration("PROCESSOR_HTTP_TIMEOUT", 30*time.Second)),
		Logger:       logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := config.Addr("PROCESSOR_PORT", 8090)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return proc.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("processor failed", "error", err)
		os.Exit(1)
	}
	logger.Info("conveyor-processor stopped", "processor_id", proc.ID())
}
