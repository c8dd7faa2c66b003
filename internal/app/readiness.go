package app

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/ai/openai"
	"github.com/fairyhunter13/career-diagnosis/internal/config"
)

// Pinger is the minimal interface of a store capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// BuildReadinessChecks returns the redis and ai checks used by /readyz.
func BuildReadinessChecks(cfg config.Config, kv Pinger, breaker *openai.Breaker) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	redisCheck := func(ctx context.Context) error {
		if kv == nil {
			return fmt.Errorf("redis not configured")
		}
		return kv.Ping(ctx)
	}
	aiCheck := func(_ context.Context) error {
		if cfg.AIAPIKey == "" {
			return fmt.Errorf("ai api key not configured")
		}
		if st := breaker.State(); st == openai.StateOpen {
			return fmt.Errorf("ai circuit %s", st)
		}
		return nil
	}
	return redisCheck, aiCheck
}
