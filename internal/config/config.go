package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Language model gateway
	LLMProvider         string
	LLMFallbackProvider string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModel         string
	LLMTimeout          time.Duration
	LLMMaxConcurrent    int
	LLMMaxTokens        int
	LLMTemperature      float64
	LLMCacheTTL         time.Duration

	// Account safety storage
	SafetyStore        string
	SafetyTable        string
	SuspensionDuration time.Duration

	// Flagged content review
	ReviewQueueURL      string
	ReviewArchiveBucket string
	ReviewWaitTime      time.Duration

	// Trust and safety email alerts
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	SafetyOpsEmail string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		LLMProvider:         lower(getEnv("LLM_PROVIDER", "none")),
		LLMFallbackProvider: lower(getEnv("LLM_FALLBACK_PROVIDER", "")),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
		LLMMaxConcurrent:    getEnvAsInt("LLM_MAX_CONCURRENT", 16),
		LLMMaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 1000),
		LLMTemperature:      getEnvAsFloat("LLM_TEMPERATURE", 0),
		LLMCacheTTL:         getEnvAsDuration("LLM_CACHE_TTL", 0),

		SafetyStore:        lower(getEnv("SAFETY_STORE", "memory")),
		SafetyTable:        getEnv("SAFETY_TABLE", "account_safety"),
		SuspensionDuration: getEnvAsDuration("SUSPENSION_DURATION", 96*time.Hour),

		ReviewQueueURL:      getEnv("REVIEW_QUEUE_URL", ""),
		ReviewArchiveBucket: getEnv("REVIEW_ARCHIVE_BUCKET", ""),
		ReviewWaitTime:      getEnvAsDuration("REVIEW_WAIT_TIME", 20*time.Second),

		EmailProvider:  lower(getEnv("EMAIL_PROVIDER", "stub")),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Loop Trust & Safety"),
		SafetyOpsEmail: getEnv("SAFETY_OPS_EMAIL", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c != nil && (c.Env == "production" || c.Env == "prod")
}

func lower(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
