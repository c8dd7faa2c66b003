// Package app assembles the career diagnosis services, router and background
// jobs from configuration and external clients.
package app

import (
	"fmt"
	"net/http"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/ai/openai"
	"github.com/fairyhunter13/career-diagnosis/internal/adapter/ai/persona"
	"github.com/fairyhunter13/career-diagnosis/internal/adapter/ai/tokencount"
	httpserver "github.com/fairyhunter13/career-diagnosis/internal/adapter/httpserver"
	kvredis "github.com/fairyhunter13/career-diagnosis/internal/adapter/kv/redis"
	"github.com/fairyhunter13/career-diagnosis/internal/config"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	"github.com/fairyhunter13/career-diagnosis/internal/service/ratelimiter"
	"github.com/fairyhunter13/career-diagnosis/internal/usecase"
)

// Deps are the external clients the application is built on.
type Deps struct {
	Redis goredis.UniversalClient
	AI    domain.AIClient
	// Breaker is reported by /readyz; nil when the AI client has none.
	Breaker *openai.Breaker
	// LimiterOptions are passed to every per-endpoint limiter (tests inject clocks).
	LimiterOptions []ratelimiter.Option
}

// App is the assembled HTTP application.
type App struct {
	Handler http.Handler
	Server  *httpserver.Server
	KV      *kvredis.Store
}

// LimiterPolicies converts the configured budgets into limiter policies.
func LimiterPolicies(cfg config.Config) []ratelimiter.Policy {
	budgets := cfg.RateLimitPolicies()
	out := make([]ratelimiter.Policy, 0, len(budgets))
	for name, b := range budgets {
		out = append(out, ratelimiter.Policy{Name: name, Max: b.Max, Window: b.Window})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// New wires stores, services, limiters and the router.
func New(cfg config.Config, d Deps) (*App, error) {
	if d.Redis == nil || d.AI == nil {
		return nil, fmt.Errorf("op=app.New: redis and ai clients are required")
	}
	kv := kvredis.New(d.Redis, cfg.KVPrefix)

	personas, err := persona.Default()
	if err != nil {
		return nil, fmt.Errorf("op=app.New: %w", err)
	}
	opts := append([]ratelimiter.Option{ratelimiter.WithKeyPrefix(cfg.KVPrefix)}, d.LimiterOptions...)
	limiters, err := ratelimiter.Build(cfg.RateLimitBackend, d.Redis, LimiterPolicies(cfg), opts...)
	if err != nil {
		return nil, fmt.Errorf("op=app.New: %w", err)
	}

	svc := httpserver.Services{
		Diagnoses:  usecase.NewDiagnosisService(kv, d.AI, cfg.DiagnosisTTL),
		Chats:      usecase.NewChatService(kv, d.AI, tokencount.NewCounter(), cfg.ChatTTL, cfg.ChatHistoryTokens, cfg.AIModel),
		Interviews: usecase.NewInterviewService(kv, d.AI, personas, cfg.InterviewTTL),
		Documents:  usecase.NewDocumentService(kv, d.AI, cfg.PhotoTTL, cfg.MaxPhotoKB<<10),
		Shares:     usecase.NewShareService(kv, cfg.ShareTTL, cfg.PublicBaseURL),
		Admin:      usecase.NewAdminService(kv, cfg.AdminPageSize),
	}
	redisCheck, aiCheck := BuildReadinessChecks(cfg, kv, d.Breaker)
	srv := httpserver.NewServer(cfg, svc, limiters, redisCheck, aiCheck)
	return &App{Handler: BuildRouter(cfg, srv), Server: srv, KV: kv}, nil
}
