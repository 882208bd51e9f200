package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/loop-safety/internal/config"
	"github.com/wolfman30/loop-safety/internal/llm"
	"github.com/wolfman30/loop-safety/internal/notify"
	"github.com/wolfman30/loop-safety/internal/review"
	"github.com/wolfman30/loop-safety/internal/safety"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true))
}

func TestBuildGateway(t *testing.T) {
	awsCfg := aws.Config{Region: "us-east-1"}

	gw, closer, err := BuildGateway(context.Background(), &appconfig.Config{LLMProvider: ProviderNone}, awsCfg, nil, nil, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, gw)
	closer()

	_, _, err = BuildGateway(context.Background(), &appconfig.Config{LLMProvider: "openai"}, awsCfg, nil, nil, logging.Discard())
	require.Error(t, err)

	_, _, err = BuildGateway(context.Background(), &appconfig.Config{LLMProvider: ProviderBedrock}, awsCfg, nil, nil, logging.Discard())
	require.Error(t, err, "bedrock needs a model id")

	cfg := &appconfig.Config{
		LLMProvider:      ProviderBedrock,
		BedrockModelID:   "anthropic.claude-3-haiku-20240307-v1:0",
		LLMTimeout:       time.Second,
		LLMMaxConcurrent: 2,
	}
	gw, closer, err = BuildGateway(context.Background(), cfg, awsCfg, nil, nil, logging.Discard())
	require.NoError(t, err)
	defer closer()
	_, ok := gw.(*llm.GuardedGateway)
	assert.True(t, ok, "single provider should be guarded, got %T", gw)
}

func TestBuildGatewayWithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), false)
	defer redisClient.Close()

	cfg := &appconfig.Config{
		LLMProvider:    ProviderBedrock,
		BedrockModelID: "anthropic.claude-3-haiku-20240307-v1:0",
		LLMCacheTTL:    time.Minute,
	}
	gw, closer, err := BuildGateway(context.Background(), cfg, aws.Config{Region: "us-east-1"}, redisClient, nil, logging.Discard())
	require.NoError(t, err)
	defer closer()
	_, ok := gw.(*llm.CachingGateway)
	assert.True(t, ok, "expected caching gateway, got %T", gw)
}

func TestBuildSafetyRepository(t *testing.T) {
	repo, err := BuildSafetyRepository(&appconfig.Config{SafetyStore: StoreMemory}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &safety.MemoryRepository{}, repo)

	_, err = BuildSafetyRepository(&appconfig.Config{SafetyStore: StorePostgres}, nil, nil)
	assert.Error(t, err)

	_, err = BuildSafetyRepository(&appconfig.Config{SafetyStore: StoreDynamo}, nil, nil)
	assert.Error(t, err)

	_, err = BuildSafetyRepository(&appconfig.Config{SafetyStore: "mongo"}, nil, nil)
	assert.Error(t, err)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.Discard()

	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "stub"}, nil, logger))
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "ses"}, nil, logger))
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid"}, nil, logger))
	assert.IsType(t, &notify.SendGridSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.key"}, nil, logger))
}

func TestBuildReviewQueue(t *testing.T) {
	q, remote := BuildReviewQueue(&appconfig.Config{}, nil)
	assert.False(t, remote)
	assert.IsType(t, &review.MemoryQueue{}, q)
}

func TestBuildNotificationStore(t *testing.T) {
	assert.IsType(t, &notify.MemoryStore{}, BuildNotificationStore(nil))
}

func TestBuildAppMinimal(t *testing.T) {
	cfg := &appconfig.Config{
		LLMProvider:    ProviderNone,
		SafetyStore:    StoreMemory,
		EmailProvider:  "stub",
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
	app, err := BuildApp(context.Background(), cfg, aws.Config{Region: "us-east-1"}, logging.Discard())
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.StartInlineReview(context.Background()))

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBuildReviewPublisher(t *testing.T) {
	// pgxpool.New does not dial until a connection is acquired.
	pool, err := pgxpool.New(context.Background(), "postgres://safety@127.0.0.1:1/safety?sslmode=disable")
	require.NoError(t, err)
	defer pool.Close()

	tests := []struct {
		name          string
		queueURL      string
		pool          *pgxpool.Pool
		inline        bool
		wantPublisher bool
		wantWorker    bool
	}{
		{name: "inline worker drains memory queue", pool: pool, inline: true, wantPublisher: true, wantWorker: true},
		{name: "host without inline worker disables memory queue", pool: pool, inline: false},
		{name: "no store disables memory queue", inline: true},
		{name: "remote queue needs no inline worker", queueURL: "https://sqs.us-east-1.amazonaws.com/123/review", pool: pool, inline: false, wantPublisher: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &App{}
			cfg := &appconfig.Config{ReviewQueueURL: tt.queueURL}
			publisher := app.buildReview(cfg, aws.Config{Region: "us-east-1"}, tt.pool, tt.inline, logging.Discard())
			assert.Equal(t, tt.wantPublisher, publisher != nil)
			assert.Equal(t, tt.wantWorker, app.inlineReview != nil)
		})
	}
}

func TestBuildAppWithoutInlineReview(t *testing.T) {
	cfg := &appconfig.Config{
		LLMProvider:    ProviderNone,
		SafetyStore:    StoreMemory,
		EmailProvider:  "stub",
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
	app, err := BuildApp(context.Background(), cfg, aws.Config{Region: "us-east-1"}, logging.Discard(), WithoutInlineReview())
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.StartInlineReview(context.Background()))
}

func TestBuildAppRejectsUnknownStore(t *testing.T) {
	_, err := BuildApp(context.Background(), &appconfig.Config{SafetyStore: "mongo"}, aws.Config{}, logging.Discard())
	require.Error(t, err)
}
