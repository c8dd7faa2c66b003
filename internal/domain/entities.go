// Package domain holds the entities, error taxonomy and ports of the career
// diagnosis backend.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstream        = errors.New("upstream failure")
	ErrUpstreamParse   = errors.New("upstream response unparseable")
	ErrInternal        = errors.New("internal error")
)

// Context is an alias so ports read the same as in adapters.
type Context = context.Context

// KVStore is the key-value capability every record is persisted through.
// Get returns ErrNotFound for absent or expired keys.
type KVStore interface {
	Get(ctx Context, key string) ([]byte, error)
	// GetMany returns one entry per key; absent keys yield nil.
	GetMany(ctx Context, keys ...string) ([][]byte, error)
	Set(ctx Context, key string, value []byte, ttl time.Duration) error
	// SetKeepTTL overwrites an existing key keeping its expiry; ErrNotFound when absent.
	SetKeepTTL(ctx Context, key string, value []byte) error
	Delete(ctx Context, keys ...string) error
	// TTL returns the remaining lifetime, zero for keys without expiry.
	TTL(ctx Context, key string) (time.Duration, error)
	ListAppend(ctx Context, key string, values ...string) error
	ListRange(ctx Context, key string, start, stop int64) ([]string, error)
	ListRemove(ctx Context, key, value string) error
	Ping(ctx Context) error
}

//go:generate mockery --name=AIClient --filename=aiclient_mock.go

// AIClient (port)
type AIClient interface {
	// ChatJSON sends a single system+user exchange and returns the raw assistant text.
	ChatJSON(ctx Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
	// ChatStream yields assistant text chunks as the upstream produces them.
	ChatStream(ctx Context, systemPrompt string, history []ChatMessage, maxTokens int) iter.Seq2[string, error]
}

// ChatRole enumerates chat participants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of an advisor conversation.
type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at,omitempty"`
}

// ChatSession is the persisted advisor conversation.
type ChatSession struct {
	ID          string        `json:"id"`
	DiagnosisID string        `json:"diagnosis_id,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// CareerMatch is one recommended career path.
type CareerMatch struct {
	Title  string `json:"title"`
	Match  int    `json:"match"`
	Reason string `json:"reason"`
}

// ActionStep is one item of the action plan.
type ActionStep struct {
	Period string `json:"period"`
	Action string `json:"action"`
}

// CareerPlan is the AI-generated diagnosis result.
type CareerPlan struct {
	CareerType         string        `json:"career_type"`
	Summary            string        `json:"summary"`
	Strengths          []string      `json:"strengths"`
	Weaknesses         []string      `json:"weaknesses"`
	RecommendedCareers []CareerMatch `json:"recommended_careers"`
	ActionPlan         []ActionStep  `json:"action_plan"`
	SkillsToDevelop    []string      `json:"skills_to_develop"`
}

// AgentAnalysis is the recruiter-style enrichment added after a diagnosis.
type AgentAnalysis struct {
	MarketValue      string    `json:"market_value"`
	SalaryRange      string    `json:"salary_range"`
	Industries       []string  `json:"recommended_industries"`
	JobOpportunities []string  `json:"job_opportunities"`
	Advice           string    `json:"advice"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Diagnosis is the stored record of one completed questionnaire.
// Invariants: Answers non-empty; Result set at creation; enrichment never changes Answers.
type Diagnosis struct {
	ID            string            `json:"id"`
	Answers       map[string]any    `json:"answers"`
	Result        CareerPlan        `json:"result"`
	AgentAnalysis *AgentAnalysis    `json:"agent_analysis,omitempty"`
	SelfAnalysis  map[string]string `json:"self_analysis,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// InterviewStatus is the lifecycle of a mock interview.
type InterviewStatus string

const (
	InterviewInProgress InterviewStatus = "in_progress"
	InterviewCompleted  InterviewStatus = "completed"
)

// InterviewSettings are chosen by the user before the interview starts.
type InterviewSettings struct {
	Industry      string `json:"industry" validate:"required,max=100"`
	Position      string `json:"position" validate:"required,max=100"`
	InterviewType string `json:"interview_type" validate:"required,oneof=general technical behavioral case"`
	Difficulty    string `json:"difficulty" validate:"required,oneof=easy normal hard"`
	QuestionCount int    `json:"question_count" validate:"required,min=1,max=10"`
}

// Persona is the interviewer character the model plays.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Style       string `json:"style"`
	Description string `json:"description"`
}

// InterviewQuestion is one planned question.
type InterviewQuestion struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Intent   string `json:"intent"`
}

// AnswerEvaluation scores a single answer (0-100).
type AnswerEvaluation struct {
	Score          int      `json:"score"`
	Feedback       string   `json:"feedback"`
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	ImprovedAnswer string   `json:"improved_answer"`
}

// InterviewAnswer is an answered question with its evaluation. Answers are append-only.
type InterviewAnswer struct {
	QuestionIndex int              `json:"question_index"`
	Question      string           `json:"question"`
	Answer        string           `json:"answer"`
	Evaluation    AnswerEvaluation `json:"evaluation"`
	AnsweredAt    time.Time        `json:"answered_at"`
}

// InterviewSummary closes a session.
type InterviewSummary struct {
	OverallScore int      `json:"overall_score"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Verdict      string   `json:"verdict"`
}

// InterviewSession is the persisted mock interview.
type InterviewSession struct {
	ID          string              `json:"id"`
	DiagnosisID string              `json:"diagnosis_id,omitempty"`
	Settings    InterviewSettings   `json:"settings"`
	Persona     Persona             `json:"persona"`
	Questions   []InterviewQuestion `json:"questions"`
	Answers     []InterviewAnswer   `json:"answers"`
	Status      InterviewStatus     `json:"status"`
	Summary     *InterviewSummary   `json:"summary,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Answered reports whether the question at index already has an answer.
func (s InterviewSession) Answered(index int) bool {
	for _, a := range s.Answers {
		if a.QuestionIndex == index {
			return true
		}
	}
	return false
}

// NextQuestion returns the lowest-indexed unanswered question.
func (s InterviewSession) NextQuestion() (InterviewQuestion, bool) {
	for _, q := range s.Questions {
		if !s.Answered(q.Index) {
			return q, true
		}
	}
	return InterviewQuestion{}, false
}

// ShareKind enumerates share snapshot variants.
type ShareKind string

const (
	ShareResult    ShareKind = "result"
	ShareInterview ShareKind = "interview"
	ShareProfile   ShareKind = "profile"
)

// Valid reports whether k is a known share kind.
func (k ShareKind) Valid() bool {
	switch k {
	case ShareResult, ShareInterview, ShareProfile:
		return true
	}
	return false
}

// ShareRecord is an immutable snapshot retrievable by opaque id until it expires.
type ShareRecord struct {
	ID        string          `json:"id"`
	Kind      ShareKind       `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Photo is an uploaded profile picture used by generated documents.
type Photo struct {
	ID        string    `json:"id"`
	MIME      string    `json:"mime"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}
