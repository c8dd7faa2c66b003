package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/ai/openai"
	"github.com/fairyhunter13/career-diagnosis/internal/config"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestBuildReadinessChecks(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{AIAPIKey: "k"}

	red, ai := BuildReadinessChecks(cfg, fakePinger{}, nil)
	assert.NoError(t, red(ctx))
	assert.NoError(t, ai(ctx), "nil breaker is closed")

	red, _ = BuildReadinessChecks(cfg, fakePinger{err: errors.New("refused")}, nil)
	assert.Error(t, red(ctx))
	red, _ = BuildReadinessChecks(cfg, nil, nil)
	assert.Error(t, red(ctx))

	_, ai = BuildReadinessChecks(config.Config{}, fakePinger{}, nil)
	assert.EqualError(t, ai(ctx), "ai api key not configured")

	br := openai.NewBreaker(1, time.Hour)
	br.Failure()
	_, ai = BuildReadinessChecks(cfg, fakePinger{}, br)
	assert.EqualError(t, ai(ctx), "ai circuit open")
}
