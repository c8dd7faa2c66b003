package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	kvredis "github.com/fairyhunter13/career-diagnosis/internal/adapter/kv/redis"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	"github.com/fairyhunter13/career-diagnosis/internal/domain/mocks"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newTestKV(t *testing.T) (*kvredis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return kvredis.New(rdb, "t:"), mr
}

func expectChat(ai *mocks.AIClient, reply string, err error) *mock.Call {
	return ai.On("ChatJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(reply, err).Once()
}

type fixedPersona struct{ p domain.Persona }

func (f fixedPersona) Select(string, string) domain.Persona { return f.p }

const planJSON = `{
  "career_type": "Creative Strategist",
  "summary": "You combine analytical thinking with creativity.",
  "strengths": ["analysis", "communication"],
  "weaknesses": ["delegation"],
  "recommended_careers": [{"title": "Product Manager", "match": 88, "reason": "cross-functional"}],
  "action_plan": [{"period": "3 months", "action": "ship a side project"}],
  "skills_to_develop": ["SQL"]
}`

// seedDiagnosis runs Analyze with a canned model reply.
func seedDiagnosis(t *testing.T, kv domain.KVStore) domain.Diagnosis {
	t.Helper()
	ai := mocks.NewAIClient(t)
	expectChat(ai, "Here you go:\n```json\n"+planJSON+"\n```", nil)
	svc := DiagnosisService{KV: kv, AI: ai, TTL: 30 * 24 * time.Hour, Now: fixedNow}
	d, err := svc.Analyze(context.Background(), map[string]any{"q1": "I like puzzles", "q2": float64(4)})
	if err != nil {
		t.Fatalf("seed analyze: %v", err)
	}
	return d
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
