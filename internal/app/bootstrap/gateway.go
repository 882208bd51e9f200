package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/loop-safety/internal/config"
	"github.com/wolfman30/loop-safety/internal/llm"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

// Provider names accepted by LLM_PROVIDER and LLM_FALLBACK_PROVIDER.
const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderNone    = "none"
)

// BuildGateway assembles the language-model gateway from config. Each
// provider is instrumented and guarded; a fallback provider is tried when
// the primary fails, and Redis caching wraps the result when configured.
// A nil gateway means rule-based analysis only. The returned closer is
// never nil.
func BuildGateway(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, redisClient *redis.Client, observer llm.CallObserver, logger *logging.Logger) (llm.Gateway, func(), error) {
	if logger == nil {
		logger = logging.Default()
	}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	primary, closePrimary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg, observer, logger)
	if err != nil {
		return nil, func() {}, err
	}
	closers = append(closers, closePrimary)
	if primary == nil {
		logger.Info("language model disabled, using rule-based analysis")
		return nil, closeAll, nil
	}

	gateway := primary
	if fb := cfg.LLMFallbackProvider; fb != "" && fb != cfg.LLMProvider {
		secondary, closeSecondary, err := buildProvider(ctx, fb, cfg, awsCfg, observer, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, closeSecondary)
		if secondary != nil {
			gateway = llm.NewFallbackGateway(primary, secondary, logger)
		}
	}

	if redisClient != nil && cfg.LLMCacheTTL > 0 {
		gateway = llm.NewCachingGateway(gateway, redisClient, cfg.LLMCacheTTL, logger)
	}

	logger.Info("language model gateway configured",
		"provider", cfg.LLMProvider,
		"fallback", cfg.LLMFallbackProvider,
		"cache_ttl", cfg.LLMCacheTTL,
	)
	return gateway, closeAll, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg aws.Config, observer llm.CallObserver, logger *logging.Logger) (llm.Gateway, func(), error) {
	noop := func() {}
	var (
		provider llm.Gateway
		closer   = noop
	)
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderNone:
		return nil, noop, nil
	case ProviderBedrock:
		g, err := llm.NewBedrockGateway(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, cfg.LLMMaxTokens, cfg.LLMTemperature)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: bedrock gateway: %w", err)
		}
		provider = g
	case ProviderGemini:
		g, err := llm.NewGeminiGateway(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMMaxTokens, cfg.LLMTemperature)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini gateway: %w", err)
		}
		provider = g
		closer = func() { _ = g.Close() }
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}

	instrumented := llm.NewInstrumentedGateway(provider, name, observer)
	guarded := llm.NewGuardedGateway(instrumented, llm.GuardOptions{
		Name:          name,
		Timeout:       cfg.LLMTimeout,
		MaxConcurrent: int64(cfg.LLMMaxConcurrent),
	}, logger)
	return guarded, closer, nil
}
