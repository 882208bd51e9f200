package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/loop-safety/cmd/mainconfig"
	"github.com/wolfman30/loop-safety/internal/app/bootstrap"
	appconfig "github.com/wolfman30/loop-safety/internal/config"
	"github.com/wolfman30/loop-safety/internal/observability/metrics"
	"github.com/wolfman30/loop-safety/internal/review"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.ReviewQueueURL == "" {
		logger.Error("REVIEW_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool, sqlDB, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil || pool == nil {
		logger.Error("review worker requires DATABASE_URL", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	defer sqlDB.Close()

	reg := bootstrap.NewRegistry()
	safetyMetrics := metrics.NewSafetyMetrics(reg)
	go serveMetrics(cfg.Port, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)

	queue := review.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.ReviewQueueURL)
	worker := review.NewWorker(
		queue,
		bootstrap.BuildArchiver(cfg, awsConfig),
		review.NewPostgresStore(pool),
		logger,
		review.WithWorkerCount(2),
		review.WithReceiveWaitSeconds(int(cfg.ReviewWaitTime/time.Second)),
		review.WithObserver(safetyMetrics),
	)

	worker.Start(ctx)
	logger.Info("review worker started", "queue", cfg.ReviewQueueURL, "archive_bucket", cfg.ReviewArchiveBucket)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down review worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("review worker stopped")
	case <-doneCtx.Done():
		logger.Error("review worker shutdown timed out", "error", doneCtx.Err())
	}
}
