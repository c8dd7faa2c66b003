package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-diagnosis/internal/config"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

func testConfig(url string) config.Config {
	return config.Config{
		AppEnv:        "test",
		AIAPIKey:      "k",
		AIBaseURL:     url,
		AIModel:       "openai/gpt-4o-mini",
		AITitle:       "Career Diagnosis",
		AIReferer:     "https://example.test",
		AITimeout:     5 * time.Second,
		AITemperature: 0.4,
	}
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
}

func TestChatJSON_SendsRequestAndReturnsContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "Career Diagnosis", r.Header.Get("X-Title"))
		assert.Equal(t, "https://example.test", r.Header.Get("HTTP-Referer"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "openai/gpt-4o-mini", req.Model)
		assert.Equal(t, 256, req.MaxTokens)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		writeChoice(w, "```json\n{\"ok\":true}\n```")
	}))
	defer ts.Close()

	out, err := New(testConfig(ts.URL)).ChatJSON(context.Background(), "sys", "user", 256)
	require.NoError(t, err)
	assert.Equal(t, "```json\n{\"ok\":true}\n```", out, "raw text is returned untouched")
}

func TestChatJSON_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(testConfig(ts.URL)).ChatJSON(context.Background(), "s", "u", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatJSON_RetriesServerErrorsWhenConfigured(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeChoice(w, "{}")
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.AIMaxRetries = 2
	out, err := New(cfg).ChatJSON(context.Background(), "s", "u", 10)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatJSON_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.AIMaxRetries = 3
	_, err := New(cfg).ChatJSON(context.Background(), "s", "u", 10)
	require.Error(t, err)
	var se *statusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatJSON_EmptyChoicesAndMissingKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	_, err := New(testConfig(ts.URL)).ChatJSON(context.Background(), "s", "u", 10)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	cfg := testConfig(ts.URL)
	cfg.AIAPIKey = ""
	_, err = New(cfg).ChatJSON(context.Background(), "s", "u", 10)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestChatJSON_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.AIBreakerFailures = 2
	cfg.AIBreakerCooldown = time.Hour
	c := New(cfg)
	for i := 0; i < 2; i++ {
		_, err := c.ChatJSON(context.Background(), "s", "u", 10)
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, c.Breaker().State())

	_, err := c.ChatJSON(context.Background(), "s", "u", 10)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, int32(2), calls.Load(), "open circuit does not reach upstream")
}

func TestChatJSON_ClientErrorDuringTrialDoesNotWedgeBreaker(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		writeChoice(w, "ok")
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.AIBreakerFailures = 1
	cfg.AIBreakerCooldown = time.Hour
	c := New(cfg)
	now := time.Now()
	c.Breaker().now = func() time.Time { return now }

	_, err := c.ChatJSON(context.Background(), "s", "u", 10)
	require.Error(t, err)
	require.Equal(t, StateOpen, c.Breaker().State())

	now = now.Add(time.Hour)
	status.Store(http.StatusBadRequest)
	_, err = c.ChatJSON(context.Background(), "s", "u", 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen, "trial reached upstream")

	status.Store(http.StatusOK)
	out, err := c.ChatJSON(context.Background(), "s", "u", 10)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, StateClosed, c.Breaker().State())
}

func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		w.Header().Set("Content-Type", "text/event-stream")
		fl, _ := w.(http.Flusher)
		for _, f := range frames {
			_, _ = fmt.Fprintf(w, "%s\n\n", f)
			if fl != nil {
				fl.Flush()
			}
		}
	}))
}

func delta(s string) string {
	b, _ := json.Marshal(map[string]any{"choices": []map[string]any{{"delta": map[string]string{"content": s}}}})
	return "data: " + string(b)
}

func collect(t *testing.T, c *Client, history []domain.ChatMessage) ([]string, error) {
	t.Helper()
	var chunks []string
	for chunk, err := range c.ChatStream(context.Background(), "sys", history, 100) {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func TestChatStream_YieldsDeltasUntilDone(t *testing.T) {
	ts := sseServer(t, ": OPENROUTER PROCESSING", delta("Hel"), delta(""), delta("lo"), "data: [DONE]", delta("ignored"))
	defer ts.Close()

	chunks, err := collect(t, New(testConfig(ts.URL)), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestChatStream_MidStreamErrorIsYielded(t *testing.T) {
	ts := sseServer(t, delta("partial"), `data: {"error":{"message":"overloaded"}}`)
	defer ts.Close()

	chunks, err := collect(t, New(testConfig(ts.URL)), nil)
	assert.Equal(t, []string{"partial"}, chunks)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestChatStream_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := collect(t, New(testConfig(ts.URL)), nil)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestChatStream_ConsumerMayStopEarly(t *testing.T) {
	ts := sseServer(t, delta("a"), delta("b"), delta("c"), "data: [DONE]")
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.AIBreakerFailures = 1
	c := New(cfg)
	var got []string
	for chunk, err := range c.ChatStream(context.Background(), "sys", nil, 10) {
		require.NoError(t, err)
		got = append(got, chunk)
		break
	}
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, StateClosed, c.Breaker().State(), "stopping early is not an upstream failure")
}
