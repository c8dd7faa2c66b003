// Package usecase contains application business logic services.
package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	obsctx "github.com/fairyhunter13/career-diagnosis/internal/observability"
	"github.com/fairyhunter13/career-diagnosis/pkg/llmjson"
)

// KV key layout. The store adds the deployment prefix.
const diagnosisIndexKey = "diagnosis:index"

func diagnosisKey(id string) string { return "diagnosis:" + id }
func chatKey(id string) string      { return "chat:" + id }
func interviewKey(id string) string { return "interview:" + id }
func photoKey(id string) string     { return "photo:" + id }
func shareKey(kind domain.ShareKind, id string) string {
	return "share:" + string(kind) + ":" + id
}

func newID() string { return uuid.NewString() }

// validID rejects anything that is not one of our generated ids before it
// reaches the store; such ids can never exist, so callers report not found.
func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	return nil
}

func nowUTC(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}

func load(ctx domain.Context, kv domain.KVStore, key string, v any) error {
	b, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func save(ctx domain.Context, kv domain.KVStore, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, b, ttl)
}

// saveKeepTTL rewrites key without extending its remaining lifetime. A key
// that expired in the meantime stays gone.
func saveKeepTTL(ctx domain.Context, kv domain.KVStore, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.SetKeepTTL(ctx, key, b)
}

// completeJSON asks the model for a JSON answer and decodes it into v.
// Transport failures map to ErrUpstream, unrecoverable text to ErrUpstreamParse.
func completeJSON(ctx domain.Context, ai domain.AIClient, feature string, p prompt, v any) error {
	text, err := ai.ChatJSON(ctx, p.System, p.User, p.MaxTokens)
	if err != nil {
		if errors.Is(err, domain.ErrUpstream) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	method, err := llmjson.Decode(text, v)
	observability.ObserveExtraction(feature, string(method))
	if err != nil {
		attrs := []any{slog.String("feature", feature), slog.Any("error", err)}
		var pe *llmjson.ParseError
		if errors.As(err, &pe) {
			attrs = append(attrs, slog.String("snippet", pe.Snippet(200)))
		}
		obsctx.LoggerFromContext(ctx).Warn("model response not parseable", attrs...)
		return fmt.Errorf("%w: %w", domain.ErrUpstreamParse, err)
	}
	return nil
}

func clampScore(n int) int {
	return min(max(n, 0), 100)
}
