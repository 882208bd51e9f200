package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/loop-safety/internal/api/router"
	"github.com/wolfman30/loop-safety/internal/audit"
	appconfig "github.com/wolfman30/loop-safety/internal/config"
	"github.com/wolfman30/loop-safety/internal/hatespeech"
	"github.com/wolfman30/loop-safety/internal/moderation"
	"github.com/wolfman30/loop-safety/internal/notify"
	"github.com/wolfman30/loop-safety/internal/observability/metrics"
	"github.com/wolfman30/loop-safety/internal/review"
	"github.com/wolfman30/loop-safety/internal/safety"
	"github.com/wolfman30/loop-safety/internal/sentiment"
	"github.com/wolfman30/loop-safety/internal/submission"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

// App is the assembled HTTP service shared by cmd/api and
// cmd/moderation-lambda.
type App struct {
	Handler   http.Handler
	Metrics   *metrics.SafetyMetrics
	Moderator *moderation.Moderator
	Gate      *submission.Gate

	inlineReview *review.Worker
	closers      []func()
}

// ConnectPostgres opens a pgx pool and a database/sql handle over the same
// pool. Both are nil when databaseURL is empty.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, *sql.DB, error) {
	if databaseURL == "" {
		return nil, nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, stdlib.OpenDBFromPool(pool), nil
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

type buildOptions struct {
	inlineReview bool
}

// BuildOption adjusts BuildApp.
type BuildOption func(*buildOptions)

// WithoutInlineReview is for hosts that never call StartInlineReview, such as
// Lambda. Without REVIEW_QUEUE_URL, review queueing is then disabled instead
// of buffering items nobody drains.
func WithoutInlineReview() BuildOption {
	return func(o *buildOptions) {
		o.inlineReview = false
	}
}

// BuildApp wires every component from cfg. AWS clients are only created for
// the features that are configured.
func BuildApp(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger, opts ...BuildOption) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	options := buildOptions{inlineReview: true}
	for _, opt := range opts {
		opt(&options)
	}
	app := &App{}
	reg := NewRegistry()
	app.Metrics = metrics.NewSafetyMetrics(reg)

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}

	gateway, closeGateway, err := BuildGateway(ctx, cfg, awsCfg, redisClient, app.Metrics, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, closeGateway)

	pool, sqlDB, err := ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		app.Close()
		return nil, err
	}
	if pool != nil {
		app.closers = append(app.closers, func() {
			_ = sqlDB.Close()
			pool.Close()
		})
	}

	var dynamoClient safety.DynamoAPI
	if cfg.SafetyStore == StoreDynamo {
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
	}
	repo, err := BuildSafetyRepository(cfg, pool, dynamoClient)
	if err != nil {
		app.Close()
		return nil, err
	}

	var sesClient notify.SESAPI
	if cfg.EmailProvider == "ses" {
		sesClient = sesv2.NewFromConfig(awsCfg)
	}
	notifications := notify.NewService(
		BuildNotificationStore(sqlDB),
		BuildEmailSender(cfg, sesClient, logger),
		cfg.SafetyOpsEmail,
		logger,
	)
	policy := safety.NewPolicy(repo, notifications, logger,
		safety.WithSuspension(cfg.SuspensionDuration),
		safety.WithObserver(app.Metrics),
	)

	detector := hatespeech.NewDetector(gateway, logger)
	analyzer := sentiment.NewAnalyzer(gateway, logger)
	modOpts := []moderation.Option{moderation.WithObserver(app.Metrics)}
	var auditService *audit.AuditService
	if sqlDB != nil {
		auditService = audit.NewAuditService(sqlDB)
		modOpts = append(modOpts, moderation.WithRecorder(auditService))
	}
	app.Moderator = moderation.NewModerator(detector, analyzer, gateway, logger, modOpts...)

	gateOpts := []submission.Option{submission.WithObserver(app.Metrics)}
	if publisher := app.buildReview(cfg, awsCfg, pool, options.inlineReview, logger); publisher != nil {
		gateOpts = append(gateOpts, submission.WithReviewPublisher(publisher))
	}
	app.Gate = submission.NewGate(repo, app.Moderator, detector, analyzer, policy, logger, gateOpts...)

	routerCfg := &router.Config{
		Logger:              logger,
		SentimentHandler:    sentiment.NewHandler(analyzer, logger),
		HateSpeechHandler:   hatespeech.NewHandler(detector, logger),
		ModerationHandler:   moderation.NewHandler(app.Moderator, logger),
		SubmissionHandler:   submission.NewHandler(app.Gate, logger),
		SafetyHandler:       safety.NewHandler(repo, logger),
		NotificationHandler: notify.NewHandler(notifications, logger),
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		DashboardHandler:    metrics.SnapshotHandler(reg),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
	}
	if auditService != nil {
		routerCfg.AuditHandler = audit.NewHandler(auditService, logger)
	}
	app.Handler = router.New(routerCfg)
	return app, nil
}

// buildReview returns the publisher for flagged content. Without a remote
// queue the items are drained by an in-process worker, which needs Postgres
// and a host that runs it; otherwise review queueing is disabled.
func (a *App) buildReview(cfg *appconfig.Config, awsCfg aws.Config, pool *pgxpool.Pool, inline bool, logger *logging.Logger) *review.Publisher {
	var sqsClient review.SQSAPI
	if cfg.ReviewQueueURL != "" {
		sqsClient = sqs.NewFromConfig(awsCfg)
	}
	queue, remote := BuildReviewQueue(cfg, sqsClient)
	if remote {
		return review.NewPublisher(queue)
	}
	if !inline {
		logger.Warn("review queue disabled: REVIEW_QUEUE_URL is required without an in-process worker")
		return nil
	}
	if pool == nil {
		logger.Warn("review queue disabled: set REVIEW_QUEUE_URL or DATABASE_URL")
		return nil
	}
	a.inlineReview = review.NewWorker(queue, BuildArchiver(cfg, awsCfg), review.NewPostgresStore(pool), logger,
		review.WithObserver(a.Metrics),
		review.WithReceiveWaitSeconds(1),
	)
	return review.NewPublisher(queue)
}

// BuildArchiver returns the S3 snapshot archiver, or nil when no bucket is
// configured.
func BuildArchiver(cfg *appconfig.Config, awsCfg aws.Config) review.Archiver {
	if cfg.ReviewArchiveBucket == "" {
		return nil
	}
	return review.NewS3Archiver(s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	}), cfg.ReviewArchiveBucket)
}

// StartInlineReview starts the in-process review worker, if one was built.
func (a *App) StartInlineReview(ctx context.Context) bool {
	if a.inlineReview == nil {
		return false
	}
	a.inlineReview.Start(ctx)
	return true
}

// WaitInlineReview blocks until the in-process review worker exits.
func (a *App) WaitInlineReview() {
	if a.inlineReview != nil {
		a.inlineReview.Wait()
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
