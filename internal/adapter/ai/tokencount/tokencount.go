// Package tokencount counts prompt tokens with tiktoken so chat history can be
// trimmed to a budget before it is sent upstream.
//
// Encodings are loaded from the embedded offline BPE files; no network access
// is needed at runtime.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

// Per-message framing overhead of OpenAI-compatible chat formats.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

var loaderOnce sync.Once

// Counter provides thread-safe token counting for LLM models.
type Counter struct {
	mu    sync.RWMutex
	cache map[string]*tiktoken.Tiktoken
}

// NewCounter creates a counter backed by the offline encodings.
func NewCounter() *Counter {
	loaderOnce.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })
	return &Counter{cache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	name := encodingName(model)
	c.mu.RLock()
	enc, ok := c.cache[name]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil && name != tiktoken.MODEL_CL100K_BASE {
		slog.Debug("falling back to cl100k_base encoding", slog.String("model", model), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	}
	if err != nil {
		return nil, err
	}
	c.cache[name] = enc
	return enc, nil
}

// encodingName maps provider-prefixed model ids to a tiktoken encoding. Models
// outside the OpenAI family are approximated with cl100k_base.
func encodingName(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "gpt-4.1"):
		return tiktoken.MODEL_O200K_BASE
	default:
		return tiktoken.MODEL_CL100K_BASE
	}
}

// Count returns the number of tokens in text. When no encoding is available it
// falls back to a four-characters-per-token estimate.
func (c *Counter) Count(text, model string) int {
	enc, err := c.encoding(model)
	if err != nil {
		slog.Warn("token encoding unavailable, estimating", slog.String("model", model), slog.Any("error", err))
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessage returns the prompt cost of one chat message including framing.
func (c *Counter) CountMessage(m domain.ChatMessage, model string) int {
	return tokensPerMessage + c.Count(string(m.Role), model) + c.Count(m.Content, model)
}

// CountMessages returns the prompt cost of a whole conversation.
func (c *Counter) CountMessages(msgs []domain.ChatMessage, model string) int {
	n := tokensPerReply
	for _, m := range msgs {
		n += c.CountMessage(m, model)
	}
	return n
}

// TrimHistory keeps the newest messages whose combined cost fits budget. The
// final message is always kept so the current question is never dropped.
func (c *Counter) TrimHistory(msgs []domain.ChatMessage, budget int, model string) []domain.ChatMessage {
	if len(msgs) == 0 || budget <= 0 {
		return msgs
	}
	used := tokensPerReply
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := c.CountMessage(msgs[i], model)
		if used+cost > budget && i < len(msgs)-1 {
			break
		}
		used += cost
		start = i
	}
	return msgs[start:]
}
