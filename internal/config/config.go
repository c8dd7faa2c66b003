// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Rate limit policy names shared by the router and the limiter registry.
const (
	PolicyAnalyze    = "analyze"
	PolicyAgent      = "agent_analysis"
	PolicyChat       = "chat"
	PolicyInterview  = "interview"
	PolicyDocuments  = "documents"
	PolicyShare      = "share"
	PolicyAdminLogin = "admin_login"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	Port     int    `env:"PORT" envDefault:"8080"`
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	// KVPrefix namespaces every key written by this deployment.
	KVPrefix string `env:"KV_PREFIX" envDefault:"careerdiag:"`

	AIAPIKey        string        `env:"AI_API_KEY"`
	AIBaseURL       string        `env:"AI_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	AIModel         string        `env:"AI_MODEL" envDefault:"openai/gpt-4o-mini"`
	AIReferer       string        `env:"AI_REFERER"`
	AITitle         string        `env:"AI_TITLE" envDefault:"Career Diagnosis"`
	AITimeout       time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
	AIStreamTimeout time.Duration `env:"AI_STREAM_TIMEOUT" envDefault:"120s"`
	AITemperature   float64       `env:"AI_TEMPERATURE" envDefault:"0.7"`
	// AIMaxRetries bounds transport-level retries of the LLM call. Zero keeps a single attempt.
	AIMaxRetries             uint64        `env:"AI_MAX_RETRIES" envDefault:"0"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"1s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"8s"`
	// AIBreakerFailures consecutive upstream failures open the circuit for AIBreakerCooldown. Zero disables it.
	AIBreakerFailures int           `env:"AI_BREAKER_FAILURES" envDefault:"5"`
	AIBreakerCooldown time.Duration `env:"AI_BREAKER_COOLDOWN" envDefault:"30s"`
	// ChatHistoryTokens caps the prompt tokens spent on previous chat turns.
	ChatHistoryTokens int `env:"CHAT_HISTORY_TOKENS" envDefault:"3000"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"career-diagnosis"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	// AdminPasswordHash takes precedence over AdminPassword when set (argon2id encoded).
	AdminPasswordHash  string        `env:"ADMIN_PASSWORD_HASH"`
	AdminSessionSecret string        `env:"ADMIN_SESSION_SECRET"`
	AdminSessionTTL    time.Duration `env:"ADMIN_SESSION_TTL" envDefault:"12h"`
	AdminPageSize      int           `env:"ADMIN_PAGE_SIZE" envDefault:"20"`

	PublicBaseURL    string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	MaxBodyKB        int64  `env:"MAX_BODY_KB" envDefault:"64"`
	MaxPhotoKB       int64  `env:"MAX_PHOTO_KB" envDefault:"2048"`

	DiagnosisTTL time.Duration `env:"DIAGNOSIS_TTL" envDefault:"720h"`
	ChatTTL      time.Duration `env:"CHAT_TTL" envDefault:"24h"`
	InterviewTTL time.Duration `env:"INTERVIEW_TTL" envDefault:"24h"`
	ShareTTL     time.Duration `env:"SHARE_TTL" envDefault:"168h"`
	PhotoTTL     time.Duration `env:"PHOTO_TTL" envDefault:"168h"`
	// IndexCleanupInterval is how often expired ids are pruned from the admin index. Zero disables the janitor.
	IndexCleanupInterval time.Duration `env:"INDEX_CLEANUP_INTERVAL" envDefault:"1h"`

	// RateLimitPerMin is the coarse per-IP guard applied to the whole API.
	RateLimitPerMin int `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	// RateLimitBackend selects the per-endpoint limiter state: memory or redis.
	RateLimitBackend      string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RateLimitWindow       time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitAnalyze      int           `env:"RATE_LIMIT_ANALYZE" envDefault:"3"`
	RateLimitAgent        int           `env:"RATE_LIMIT_AGENT_ANALYSIS" envDefault:"3"`
	RateLimitChat         int           `env:"RATE_LIMIT_CHAT" envDefault:"10"`
	RateLimitInterview    int           `env:"RATE_LIMIT_INTERVIEW" envDefault:"10"`
	RateLimitDocuments    int           `env:"RATE_LIMIT_DOCUMENTS" envDefault:"5"`
	RateLimitShare        int           `env:"RATE_LIMIT_SHARE" envDefault:"5"`
	RateLimitAdminLogin   int           `env:"RATE_LIMIT_ADMIN_LOGIN" envDefault:"5"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT" envDefault:"90s"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"180s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// AdminEnabled returns true if admin features should be enabled
func (c Config) AdminEnabled() bool {
	hasSecret := c.AdminPassword != "" || c.AdminPasswordHash != ""
	return c.AdminUsername != "" && hasSecret && c.AdminSessionSecret != ""
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.RateLimitBackend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimitBackend)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// RateLimit is the request budget of a single endpoint policy.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// RateLimitPolicies returns the per-endpoint budgets keyed by policy name.
func (c Config) RateLimitPolicies() map[string]RateLimit {
	w := c.RateLimitWindow
	return map[string]RateLimit{
		PolicyAnalyze:    {Max: c.RateLimitAnalyze, Window: w},
		PolicyAgent:      {Max: c.RateLimitAgent, Window: w},
		PolicyChat:       {Max: c.RateLimitChat, Window: w},
		PolicyInterview:  {Max: c.RateLimitInterview, Window: w},
		PolicyDocuments:  {Max: c.RateLimitDocuments, Window: w},
		PolicyShare:      {Max: c.RateLimitShare, Window: w},
		PolicyAdminLogin: {Max: c.RateLimitAdminLogin, Window: w},
	}
}

// GetAIBackoffConfig returns the retry schedule for LLM calls.
// In test environments the intervals shrink so retries do not slow the suite down.
func (c Config) GetAIBackoffConfig() (initialInterval, maxInterval time.Duration, maxRetries uint64) {
	if c.IsTest() {
		return 10 * time.Millisecond, 50 * time.Millisecond, c.AIMaxRetries
	}
	return c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIMaxRetries
}
