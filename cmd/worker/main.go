package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/lot-photo-reconciler/internal/bootstrap"
	"github.com/kirillkom/lot-photo-reconciler/internal/config"
	"github.com/kirillkom/lot-photo-reconciler/internal/observability/logging"
	"github.com/kirillkom/lot-photo-reconciler/internal/observability/metrics"
)

const service = "reconciler-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	reconcileMetrics := metrics.NewReconcileMetrics(service, workerMetrics.Registerer())

	app, err := bootstrap.New(ctx, cfg, logger, reconcileMetrics)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeScanSubmitted(ctx, func(handlerCtx context.Context, scanID string) error {
		if scan, err := app.Scans.GetByID(handlerCtx, scanID); err == nil {
			workerMetrics.ObserveQueueLag(service, time.Since(scan.CreatedAt))
		}

		workerMetrics.StartScan()
		start := time.Now()
		err := app.ProcessUC.ProcessByID(handlerCtx, scanID)
		workerMetrics.FinishScan(service, time.Since(start), err)
		if err != nil {
			return err
		}
		logger.Info("scan_processed", "scan_id", scanID, "duration_ms", time.Since(start).Milliseconds())
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
