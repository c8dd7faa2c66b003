// Package openai implements domain.AIClient against any OpenAI-compatible
// chat-completions endpoint (OpenRouter by default).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/config"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	obsctx "github.com/fairyhunter13/career-diagnosis/internal/observability"
)

const provider = "openai"

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("ai circuit open")

// Client implements domain.AIClient.
type Client struct {
	cfg      config.Config
	hc       *http.Client
	streamHC *http.Client
	breaker  *Breaker
}

var _ domain.AIClient = (*Client)(nil)

// New constructs a client with traced transports. The blocking client is bound
// by AI_TIMEOUT; streams are bound by AI_STREAM_TIMEOUT through their context.
func New(cfg config.Config) *Client {
	tr := otelhttp.NewTransport(http.DefaultTransport)
	timeout := cfg.AITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:      cfg,
		hc:       &http.Client{Timeout: timeout, Transport: tr},
		streamHC: &http.Client{Transport: tr},
		breaker:  NewBreaker(cfg.AIBreakerFailures, cfg.AIBreakerCooldown),
	}
}

// Breaker exposes the circuit for readiness reporting.
func (c *Client) Breaker() *Breaker { return c.breaker }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// statusError is a non-2xx upstream answer.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string { return fmt.Sprintf("chat status %d", e.Status) }

func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AIBaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Authorization", "Bearer "+c.cfg.AIAPIKey)
	r.Header.Set("Content-Type", "application/json")
	if c.cfg.AIReferer != "" {
		r.Header.Set("HTTP-Referer", c.cfg.AIReferer)
	}
	if c.cfg.AITitle != "" {
		r.Header.Set("X-Title", c.cfg.AITitle)
	}
	return r, nil
}

func (c *Client) getBackoff(ctx context.Context) backoff.BackOff {
	initial, maxInterval, maxRetries := c.cfg.GetAIBackoffConfig()
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = initial
	expo.MaxInterval = maxInterval
	expo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(expo, maxRetries), ctx)
}

func (c *Client) precheck() error {
	if c.cfg.AIAPIKey == "" {
		slog.Error("AI API key missing", slog.String("provider", provider))
		return fmt.Errorf("%w: AI_API_KEY missing", domain.ErrUpstream)
	}
	if !c.breaker.Allow() {
		return fmt.Errorf("%w: %w", domain.ErrUpstream, ErrCircuitOpen)
	}
	return nil
}

// record feeds the breaker. Caller cancellations say nothing about upstream health.
func (c *Client) record(err error) {
	switch {
	case err == nil:
		c.breaker.Success()
	case errors.Is(err, context.Canceled):
		c.breaker.Release()
	default:
		var se *statusError
		if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 && se.Status != http.StatusTooManyRequests {
			c.breaker.Release()
			return
		}
		c.breaker.Failure()
	}
}

// ChatJSON sends one system+user exchange and returns the assistant text. The
// caller extracts JSON from it; no parsing happens here.
func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if err := c.precheck(); err != nil {
		return "", fmt.Errorf("op=openai.chat: %w", err)
	}
	lg := obsctx.LoggerFromContext(ctx)
	b, _ := json.Marshal(chatRequest{
		Model:       c.cfg.AIModel,
		Temperature: c.cfg.AITemperature,
		MaxTokens:   maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})

	var out chatResponse
	attempt := 0
	op := func() error {
		attempt++
		start := time.Now()
		// Recreate request each attempt to avoid reusing consumed bodies
		r, err := c.newRequest(ctx, b)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.hc.Do(r)
		if err != nil {
			observability.ObserveAIRequest(provider, "chat", start, err)
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err == nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
			err = &statusError{Status: resp.StatusCode, Body: snippet(body, 512)}
		}
		observability.ObserveAIRequest(provider, "chat", start, err)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) {
				lg.Warn("ai provider non-2xx",
					slog.String("provider", provider),
					slog.Int("status", se.Status),
					slog.Int("attempt", attempt),
					slog.String("model", c.cfg.AIModel),
					slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
					slog.String("body", se.Body))
				if se.Status >= 400 && se.Status < 500 && se.Status != http.StatusTooManyRequests {
					return backoff.Permanent(err)
				}
			}
			return err
		}
		if err := json.Unmarshal(body, &out); err != nil {
			lg.Error("ai provider decode error", slog.String("provider", provider), slog.Any("error", err))
			return backoff.Permanent(err)
		}
		return nil
	}

	err := backoff.Retry(op, c.getBackoff(ctx))
	c.record(err)
	if err != nil {
		lg.Error("ai chat failed", slog.String("provider", provider), slog.Int("attempts", attempt), slog.Any("error", err))
		return "", fmt.Errorf("op=openai.chat: %w: %w", domain.ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=openai.chat: %w: empty choices", domain.ErrUpstream)
	}
	if out.Model != "" && out.Model != c.cfg.AIModel {
		lg.Debug("model substitution detected", slog.String("requested_model", c.cfg.AIModel), slog.String("actual_model", out.Model))
	}
	return out.Choices[0].Message.Content, nil
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
