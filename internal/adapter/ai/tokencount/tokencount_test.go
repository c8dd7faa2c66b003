package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

func TestCount(t *testing.T) {
	t.Parallel()
	counter := NewCounter()

	tests := []struct {
		name     string
		text     string
		model    string
		minCount int
		maxCount int
	}{
		{name: "simple text", text: "Hello, world!", model: "gpt-4", minCount: 3, maxCount: 5},
		{name: "o200k family", text: "The quick brown fox jumps over the lazy dog.", model: "openai/gpt-4o-mini", minCount: 8, maxCount: 12},
		{name: "provider prefixed free model", text: "Hello, world!", model: "meta-llama/llama-3.1-8b-instruct:free", minCount: 3, maxCount: 5},
		{name: "empty", text: "", model: "gpt-4", minCount: 0, maxCount: 0},
		{name: "japanese", text: "キャリア診断の結果", model: "gpt-4", minCount: 3, maxCount: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := counter.Count(tt.text, tt.model)
			assert.GreaterOrEqual(t, n, tt.minCount)
			assert.LessOrEqual(t, n, tt.maxCount)
		})
	}
}

func TestEncodingName(t *testing.T) {
	assert.Equal(t, "o200k_base", encodingName("openai/gpt-4o-mini"))
	assert.Equal(t, "cl100k_base", encodingName("anthropic/claude-3.5-sonnet"))
	assert.Equal(t, "cl100k_base", encodingName("GPT-3.5-TURBO"))
}

func TestCountMessages_IncludesFraming(t *testing.T) {
	c := NewCounter()
	msgs := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}
	total := c.CountMessages(msgs, "gpt-4")
	assert.Equal(t, tokensPerReply+c.CountMessage(msgs[0], "gpt-4")+c.CountMessage(msgs[1], "gpt-4"), total)
	assert.Greater(t, c.CountMessage(msgs[0], "gpt-4"), tokensPerMessage)
}

func TestTrimHistory_KeepsNewestWithinBudget(t *testing.T) {
	c := NewCounter()
	long := strings.Repeat("career planning advice ", 50)
	msgs := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: long},
		{Role: domain.RoleAssistant, Content: long},
		{Role: domain.RoleUser, Content: "short one"},
		{Role: domain.RoleAssistant, Content: "short two"},
		{Role: domain.RoleUser, Content: "latest question"},
	}
	budget := c.CountMessages(msgs[2:], "gpt-4")
	got := c.TrimHistory(msgs, budget, "gpt-4")
	require.Len(t, got, 3)
	assert.Equal(t, "short one", got[0].Content)
	assert.Equal(t, "latest question", got[2].Content)

	assert.Len(t, c.TrimHistory(msgs, 0, "gpt-4"), len(msgs), "zero budget disables trimming")

	got = c.TrimHistory(msgs, 1, "gpt-4")
	require.Len(t, got, 1, "the last message always survives")
	assert.Equal(t, "latest question", got[0].Content)
}
