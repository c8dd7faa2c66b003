package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	obsctx "github.com/fairyhunter13/career-diagnosis/internal/observability"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ChatStream requests a streamed completion and yields content deltas in
// arrival order. The sequence ends after the upstream [DONE] marker, at EOF,
// or after yielding a single error.
func (c *Client) ChatStream(ctx domain.Context, systemPrompt string, history []domain.ChatMessage, maxTokens int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := c.precheck(); err != nil {
			yield("", fmt.Errorf("op=openai.stream: %w", err))
			return
		}
		if c.cfg.AIStreamTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.AIStreamTimeout)
			defer cancel()
		}
		lg := obsctx.LoggerFromContext(ctx)

		msgs := make([]chatMessage, 0, len(history)+1)
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
		for _, m := range history {
			msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
		}
		b, _ := json.Marshal(chatRequest{
			Model:       c.cfg.AIModel,
			Temperature: c.cfg.AITemperature,
			MaxTokens:   maxTokens,
			Messages:    msgs,
			Stream:      true,
		})

		start := time.Now()
		err := c.stream(ctx, b, yield)
		if errors.Is(err, errConsumerStopped) {
			err = nil
		}
		observability.ObserveAIRequest(provider, "stream", start, err)
		c.record(err)
		if err != nil {
			lg.Error("ai stream failed", slog.String("provider", provider), slog.Any("error", err))
			yield("", fmt.Errorf("op=openai.stream: %w: %w", domain.ErrUpstream, err))
		}
	}
}

var errConsumerStopped = errors.New("consumer stopped")

func (c *Client) stream(ctx context.Context, body []byte, yield func(string, error) bool) error {
	r, err := c.newRequest(ctx, body)
	if err != nil {
		return err
	}
	r.Header.Set("Accept", "text/event-stream")
	resp, err := c.streamHC.Do(r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Status: resp.StatusCode, Body: string(b)}
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		// blank separators and ": keep-alive" comments carry no data
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			slog.Debug("skipping malformed stream chunk", slog.String("data", snippet([]byte(data), 120)))
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("upstream stream error: %s", chunk.Error.Message)
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if !yield(ch.Delta.Content, nil) {
				return errConsumerStopped
			}
		}
	}
	return sc.Err()
}
