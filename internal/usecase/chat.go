package usecase

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	obsctx "github.com/fairyhunter13/career-diagnosis/internal/observability"
	"github.com/fairyhunter13/career-diagnosis/pkg/textx"
)

// Chat limits.
const (
	MaxChatMessageRunes = 2000
	maxStoredMessages   = 200
	chatReplyTokens     = 1000
)

// HistoryTrimmer drops the oldest messages that do not fit a token budget.
type HistoryTrimmer interface {
	TrimHistory(msgs []domain.ChatMessage, budget int, model string) []domain.ChatMessage
}

// ChatService runs streamed advisor conversations.
type ChatService struct {
	KV            domain.KVStore
	AI            domain.AIClient
	Trimmer       HistoryTrimmer
	TTL           time.Duration
	HistoryTokens int
	Model         string
	Now           func() time.Time
}

// NewChatService constructs a ChatService with its dependencies.
func NewChatService(kv domain.KVStore, ai domain.AIClient, trimmer HistoryTrimmer, ttl time.Duration, historyTokens int, model string) ChatService {
	return ChatService{KV: kv, AI: ai, Trimmer: trimmer, TTL: ttl, HistoryTokens: historyTokens, Model: model}
}

// ChatRequest is one user turn. SessionID continues an existing conversation;
// DiagnosisID grounds a new one in a stored diagnosis.
type ChatRequest struct {
	SessionID   string
	DiagnosisID string
	Message     string
}

// Stream records the user turn and returns the session plus a sequence of
// reply chunks. The reply is appended to the session once the sequence has
// been fully consumed; an abandoned or failed stream leaves only the user turn.
func (s ChatService) Stream(ctx domain.Context, req ChatRequest) (domain.ChatSession, iter.Seq2[string, error], error) {
	msg := textx.SanitizeText(req.Message)
	if msg == "" {
		return domain.ChatSession{}, nil, fmt.Errorf("op=chat.stream: %w: message required", domain.ErrInvalidArgument)
	}
	if len([]rune(msg)) > MaxChatMessageRunes {
		return domain.ChatSession{}, nil, fmt.Errorf("op=chat.stream: %w: message too long", domain.ErrInvalidArgument)
	}

	now := nowUTC(s.Now)
	var sess domain.ChatSession
	if req.SessionID != "" {
		got, err := s.Get(ctx, req.SessionID)
		if err != nil {
			return domain.ChatSession{}, nil, fmt.Errorf("op=chat.stream: %w", err)
		}
		sess = got
	} else {
		sess = domain.ChatSession{ID: newID(), DiagnosisID: req.DiagnosisID, CreatedAt: now}
	}

	var diag *domain.Diagnosis
	if sess.DiagnosisID != "" {
		d, err := DiagnosisService{KV: s.KV}.Get(ctx, sess.DiagnosisID)
		if err != nil {
			return domain.ChatSession{}, nil, fmt.Errorf("op=chat.stream: %w", err)
		}
		diag = &d
	}

	sess.Messages = append(sess.Messages, domain.ChatMessage{Role: domain.RoleUser, Content: msg, At: now})
	if n := len(sess.Messages); n > maxStoredMessages {
		sess.Messages = sess.Messages[n-maxStoredMessages:]
	}
	sess.UpdatedAt = now
	if err := save(ctx, s.KV, chatKey(sess.ID), sess, s.TTL); err != nil {
		return domain.ChatSession{}, nil, fmt.Errorf("op=chat.stream: %w", err)
	}

	history := sess.Messages
	if s.Trimmer != nil {
		history = s.Trimmer.TrimHistory(history, s.HistoryTokens, s.Model)
	}
	upstream := s.AI.ChatStream(ctx, chatSystemPrompt(diag), history, chatReplyTokens)

	seq := func(yield func(string, error) bool) {
		observability.ChatStreamsActive.Inc()
		defer observability.ChatStreamsActive.Dec()

		var reply strings.Builder
		for chunk, err := range upstream {
			if err != nil {
				yield("", err)
				return
			}
			reply.WriteString(chunk)
			if !yield(chunk, nil) {
				return
			}
		}
		if reply.Len() == 0 {
			return
		}
		s.appendReply(context.WithoutCancel(ctx), sess, reply.String())
	}
	return sess, seq, nil
}

func (s ChatService) appendReply(ctx domain.Context, sess domain.ChatSession, reply string) {
	now := nowUTC(s.Now)
	sess.Messages = append(sess.Messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply, At: now})
	sess.UpdatedAt = now
	if err := save(ctx, s.KV, chatKey(sess.ID), sess, s.TTL); err != nil {
		obsctx.LoggerFromContext(ctx).Warn("chat reply not persisted", "session_id", sess.ID, "error", err)
	}
}

// Get loads a chat session.
func (s ChatService) Get(ctx domain.Context, id string) (domain.ChatSession, error) {
	if err := validID(id); err != nil {
		return domain.ChatSession{}, fmt.Errorf("op=chat.get: %w", err)
	}
	var sess domain.ChatSession
	if err := load(ctx, s.KV, chatKey(id), &sess); err != nil {
		return domain.ChatSession{}, fmt.Errorf("op=chat.get: %w", err)
	}
	return sess, nil
}
