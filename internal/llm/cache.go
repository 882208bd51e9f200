package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

const cacheKeyPrefix = "llm:completion:"

// CachingGateway memoizes completions in Redis by prompt hash.
type CachingGateway struct {
	next   Gateway
	redis  redis.Cmdable
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachingGateway returns next unchanged when client is nil or ttl <= 0.
func NewCachingGateway(next Gateway, client redis.Cmdable, ttl time.Duration, logger *logging.Logger) Gateway {
	if client == nil || ttl <= 0 {
		return next
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachingGateway{next: next, redis: client, ttl: ttl, logger: logger}
}

// Generate implements Gateway. Cache failures are logged and bypassed.
func (g *CachingGateway) Generate(ctx context.Context, prompt string) (string, error) {
	key := CacheKey(prompt)

	cached, err := g.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		g.logger.Warn("llm cache read failed", "error", err)
	}

	out, err := g.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if setErr := g.redis.Set(ctx, key, out, g.ttl).Err(); setErr != nil {
		g.logger.Warn("llm cache write failed", "error", setErr)
	}
	return out, nil
}

// CacheKey is the Redis key for a prompt.
func CacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
