// Conveyor Dispatcher — управляет выполнением exec contexts.
//
// Dispatcher:
//   - Принимает source codes и запускает exec contexts (REST API)
//   - Строит граф tasks и раздаёт готовые tasks processor'ам (southbridge)
//   - Принимает отчёты о выполнении и продвигает граф
//   - Сбрасывает назначения, зависшие на ушедших processor'ах (reaper)
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

	"github.com/shaiso/Conveyor/internal/api"
	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/reaper"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

var startTime = time.Now()

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-dispatcher")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// DB pool
	pool, err := repo.NewPool(ctx, repo.PoolConfigFromEnv())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	taskRepo := repo.NewTaskRepo(pool)
	execContextRepo := repo.NewExecContextRepo(pool)
	sourceCodeRepo := repo.NewSourceCodeRepo(pool)

	// RabbitMQ: опционален, без него события идут напрямую в orchestrator
	var mqConn *mq.Connection
	var publisher api.EventPublisher
	if config.Bool("RABBITMQ_ENABLED", true) {
		mqConn, err = mq.NewConnection(config.String("RABBITMQ_URL", mq.DefaultURL()), "conveyor-dispatcher", logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in direct mode", "error", err)
			mqConn = nil
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(mqConn, logger)
		}
	}

	orch := orchestrator.New(orchestrator.Config{
		Tasks:        taskRepo,
		ExecContexts: execContextRepo,
		SourceCodes:  sourceCodeRepo,
		Conn:         mqConn,
		PollInterval: config.Duration("ORCHESTRATOR_POLL_INTERVAL", 10*time.Second),
		IdleTimeout:  config.Duration("TENANT_IDLE_TIMEOUT", 2*time.Second),
		Logger:       logger,
		Metrics:      metrics,
	})
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	rp, err := reaper.New(reaper.Config{
		Tasks:             taskRepo,
		Resetter:          orch,
		Schedule:          config.String("REAPER_SCHEDULE", "@every 1m"),
		AssignmentTimeout: config.Duration("ASSIGNMENT_TIMEOUT", 10*time.Minute),
		Logger:            logger,
		Metrics:           metrics,
	})
	if err != nil {
		logger.Error("failed to create reaper", "error", err)
		os.Exit(1)
	}
	rp.Start()

	handler := api.NewHandler(api.Config{
		SourceCodes:  sourceCodeRepo,
		ExecContexts: execContextRepo,
		Tasks:        taskRepo,
		Dispatcher:   orch,
		Publisher:    publisher,
		Username:     config.String("SOUTHBRIDGE_USERNAME", ""),
		Password:     config.String("SOUTHBRIDGE_PASSWORD", ""),
		Metrics:      metrics,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := config.Addr("DISPATCHER_PORT", 8080)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("dispatcher failed", "error", err)
	}

	rp.Stop()
	orch.Stop()
	logger.Info("conveyor-dispatcher stopped")
}
