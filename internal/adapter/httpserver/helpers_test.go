package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/ai/persona"
	kvredis "github.com/fairyhunter13/career-diagnosis/internal/adapter/kv/redis"
	"github.com/fairyhunter13/career-diagnosis/internal/config"
	"github.com/fairyhunter13/career-diagnosis/internal/domain/mocks"
	"github.com/fairyhunter13/career-diagnosis/internal/service/ratelimiter"
	"github.com/fairyhunter13/career-diagnosis/internal/usecase"
)

const planJSON = `{"career_type":"Creative Strategist","summary":"Analytical and creative.","strengths":["analysis"],"weaknesses":["delegation"],"recommended_careers":[{"title":"Product Manager","match":88,"reason":"fit"}],"action_plan":[],"skills_to_develop":["SQL"]}`

func testConfig() config.Config {
	return config.Config{
		AppEnv:             "test",
		MaxBodyKB:          4,
		MaxPhotoKB:         1,
		AdminUsername:      "admin",
		AdminPassword:      "s3cret",
		AdminSessionSecret: "test-session-secret",
		AdminSessionTTL:    time.Hour,
		PublicBaseURL:      "https://career.example",
		RateLimitWindow:    time.Minute,
	}
}

func newTestServer(t *testing.T, ai *mocks.AIClient, limiters map[string]ratelimiter.Limiter) (*Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	kv := kvredis.New(rdb, "t:")
	personas, err := persona.Default()
	require.NoError(t, err)

	cfg := testConfig()
	svc := Services{
		Diagnoses:  usecase.NewDiagnosisService(kv, ai, time.Hour),
		Chats:      usecase.NewChatService(kv, ai, nil, time.Hour, 0, ""),
		Interviews: usecase.NewInterviewService(kv, ai, personas, time.Hour),
		Documents:  usecase.NewDocumentService(kv, ai, time.Hour, cfg.MaxPhotoKB<<10),
		Shares:     usecase.NewShareService(kv, time.Hour, cfg.PublicBaseURL),
		Admin:      usecase.NewAdminService(kv, 20),
	}
	return NewServer(cfg, svc, limiters, nil, nil), mr
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// routes mounts the handlers on bare chi routes so URL params resolve.
func routes(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Post("/analyze", s.AnalyzeHandler())
	r.Get("/diagnosis/{id}", s.DiagnosisHandler())
	r.Post("/diagnosis/{id}/agent-analysis", s.AgentAnalysisHandler())
	r.Post("/diagnosis/{id}/self-analysis", s.SelfAnalysisHandler())
	r.Post("/chat", s.ChatHandler())
	r.Get("/chat/{id}", s.ChatHistoryHandler())
	r.Post("/interview/start", s.InterviewStartHandler())
	r.Post("/interview/next", s.InterviewNextHandler())
	r.Post("/interview/evaluate", s.InterviewEvaluateHandler())
	r.Post("/interview/summary", s.InterviewSummaryHandler())
	r.Post("/documents/photo", s.PhotoUploadHandler())
	r.Get("/documents/photo/{id}", s.PhotoHandler())
	r.Post("/share/result", s.ShareResultHandler())
	r.Get("/share/{kind}/{id}", s.SharedHandler())
	return r
}
