package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/career-diagnosis/internal/adapter/httpserver"
	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/config"
	"github.com/fairyhunter13/career-diagnosis/internal/domain/mocks"
)

const planJSON = `{"career_type":"Builder","summary":"You like shipping.","strengths":["focus"],"weaknesses":[],"recommended_careers":[{"title":"Engineer","match":90,"reason":"fit"}],"action_plan":[],"skills_to_develop":[]}`

func e2eConfig(backend string) config.Config {
	return config.Config{
		AppEnv:              "test",
		KVPrefix:            "e2e:",
		AIModel:             "openai/gpt-4o-mini",
		AIAPIKey:            "test-key",
		AdminUsername:       "admin",
		AdminPassword:       "s3cret",
		AdminSessionSecret:  "e2e-secret",
		AdminSessionTTL:     time.Hour,
		AdminPageSize:       20,
		PublicBaseURL:       "http://localhost:3000",
		CORSAllowOrigins:    "*",
		MaxBodyKB:           64,
		MaxPhotoKB:          64,
		DiagnosisTTL:        time.Hour,
		ChatTTL:             time.Hour,
		InterviewTTL:        time.Hour,
		ShareTTL:            time.Hour,
		PhotoTTL:            time.Hour,
		ChatHistoryTokens:   3000,
		RateLimitPerMin:     1000,
		RateLimitBackend:    backend,
		RateLimitWindow:     time.Minute,
		RateLimitAnalyze:    3,
		RateLimitAgent:      3,
		RateLimitChat:       10,
		RateLimitInterview:  10,
		RateLimitDocuments:  5,
		RateLimitShare:      5,
		RateLimitAdminLogin: 5,
		RequestTimeout:      5 * time.Second,
	}
}

type harness struct {
	h  http.Handler
	mr *miniredis.Miniredis
	ai *mocks.AIClient
}

func newHarness(t *testing.T, backend string) harness {
	t.Helper()
	observability.InitMetrics()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ai := mocks.NewAIClient(t)
	a, err := New(e2eConfig(backend), Deps{Redis: rdb, AI: ai})
	require.NoError(t, err)
	return harness{h: a.Handler, mr: mr, ai: ai}
}

func (hs harness) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Buffer
	if body != "" {
		rdr = bytes.NewBufferString(body)
	} else {
		rdr = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Real-IP", "203.0.113.9")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	return rec
}

func (hs harness) analyze(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	return hs.do(t, http.MethodPost, "/api/analyze", `{"answers":{"q1":"I build things","q2":true}}`)
}

func TestE2E_AnalyzeRetrieveExpire(t *testing.T) {
	for _, backend := range []string{"memory", "redis"} {
		t.Run(backend, func(t *testing.T) {
			hs := newHarness(t, backend)
			hs.ai.On("ChatJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(planJSON, nil).Times(3)

			rec := hs.analyze(t)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			var out struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

			rec = hs.do(t, http.MethodGet, "/api/diagnosis/"+out.ID, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"career_type":"Builder"`)

			require.Equal(t, http.StatusOK, hs.analyze(t).Code)
			require.Equal(t, http.StatusOK, hs.analyze(t).Code)
			rec = hs.analyze(t)
			assert.Equal(t, http.StatusTooManyRequests, rec.Code, "fourth analyze within the window")
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))

			hs.mr.FastForward(time.Hour + time.Second)
			rec = hs.do(t, http.MethodGet, "/api/diagnosis/"+out.ID, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestE2E_ChatStreamsThroughMiddleware(t *testing.T) {
	hs := newHarness(t, "memory")
	hs.ai.On("ChatStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.Stream([]string{"Try ", "Go."}, nil)).Once()

	rec := hs.do(t, http.MethodPost, "/api/chat", `{"message":"What next?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(httpserver.ChatSessionHeader))
	assert.Equal(t, "data: {\"text\":\"Try \"}\n\ndata: {\"text\":\"Go.\"}\n\ndata: [DONE]\n\n", rec.Body.String())
}

func TestE2E_AdminFlow(t *testing.T) {
	hs := newHarness(t, "memory")
	hs.ai.On("ChatJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(planJSON, nil).Once()
	rec := hs.analyze(t)
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	assert.Equal(t, http.StatusUnauthorized, hs.do(t, http.MethodGet, "/api/admin/diagnoses", "").Code)
	forged := &http.Cookie{Name: httpserver.SessionCookieName, Value: "eyJhbGciOiJIUzI1NiJ9.e30.forged"}
	assert.Equal(t, http.StatusUnauthorized, hs.do(t, http.MethodGet, "/api/admin/diagnoses", "", forged).Code)

	assert.Equal(t, http.StatusUnauthorized, hs.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"nope"}`).Code)
	rec = hs.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	session := cookies[0]

	rec = hs.do(t, http.MethodGet, "/api/admin/diagnoses?page=1&search=build", "", session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), created.ID)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/api/admin/diagnoses?page=zero", "", session).Code)

	rec = hs.do(t, http.MethodDelete, "/api/admin/diagnoses/"+created.ID, "", session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, hs.do(t, http.MethodGet, "/api/diagnosis/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, hs.do(t, http.MethodDelete, "/api/admin/diagnoses/"+created.ID, "", session).Code)
}

func TestE2E_SurfaceRoutes(t *testing.T) {
	hs := newHarness(t, "memory")

	rec := hs.do(t, http.MethodGet, "/api/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)

	assert.Equal(t, http.StatusOK, hs.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, hs.do(t, http.MethodGet, "/readyz", "").Code)

	rec = hs.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	big := `{"answers":{"q1":"` + string(bytes.Repeat([]byte("x"), 70<<10)) + `"}}`
	rec = hs.do(t, http.MethodPost, "/api/analyze", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNew_RequiresClients(t *testing.T) {
	_, err := New(e2eConfig("memory"), Deps{})
	assert.Error(t, err)
}
