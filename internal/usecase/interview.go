package usecase

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	"github.com/fairyhunter13/career-diagnosis/pkg/textx"
)

// MaxInterviewAnswerRunes bounds one interview answer.
const MaxInterviewAnswerRunes = 4000

// PersonaSelector picks the interviewer for a session.
type PersonaSelector interface {
	Select(interviewType, difficulty string) domain.Persona
}

// InterviewService runs mock interviews.
type InterviewService struct {
	KV       domain.KVStore
	AI       domain.AIClient
	Personas PersonaSelector
	TTL      time.Duration
	Now      func() time.Time
}

// NewInterviewService constructs an InterviewService with its dependencies.
func NewInterviewService(kv domain.KVStore, ai domain.AIClient, personas PersonaSelector, ttl time.Duration) InterviewService {
	return InterviewService{KV: kv, AI: ai, Personas: personas, TTL: ttl}
}

// NextResult is the next unanswered question, or Done when none is left.
type NextResult struct {
	SessionID string                    `json:"session_id"`
	Question  *domain.InterviewQuestion `json:"question,omitempty"`
	Done      bool                      `json:"done"`
	Answered  int                       `json:"answered"`
	Total     int                       `json:"total"`
}

func (s InterviewService) persist(ctx domain.Context, sess *domain.InterviewSession) error {
	sess.UpdatedAt = nowUTC(s.Now)
	return save(ctx, s.KV, interviewKey(sess.ID), sess, s.TTL)
}

// Start selects a persona, asks the model for the question list and stores a
// new in-progress session. Settings are expected to be validated by the caller.
func (s InterviewService) Start(ctx domain.Context, diagnosisID string, settings domain.InterviewSettings) (domain.InterviewSession, error) {
	settings.Industry = textx.TruncateRunes(textx.SanitizeText(settings.Industry), 100, "")
	settings.Position = textx.TruncateRunes(textx.SanitizeText(settings.Position), 100, "")
	if settings.Industry == "" || settings.Position == "" || settings.QuestionCount < 1 {
		return domain.InterviewSession{}, fmt.Errorf("op=interview.start: %w: industry, position and question count required", domain.ErrInvalidArgument)
	}
	var diag *domain.Diagnosis
	if diagnosisID != "" {
		d, err := DiagnosisService{KV: s.KV}.Get(ctx, diagnosisID)
		if err != nil {
			return domain.InterviewSession{}, fmt.Errorf("op=interview.start: %w", err)
		}
		diag = &d
	}
	persona := s.Personas.Select(settings.InterviewType, settings.Difficulty)

	var out struct {
		Questions []struct {
			Question string `json:"question"`
			Intent   string `json:"intent"`
		} `json:"questions"`
	}
	if err := completeJSON(ctx, s.AI, "interview_start", interviewQuestionsPrompt(settings, persona, diag), &out); err != nil {
		return domain.InterviewSession{}, fmt.Errorf("op=interview.start: %w", err)
	}
	questions := make([]domain.InterviewQuestion, 0, settings.QuestionCount)
	for _, q := range out.Questions {
		if len(questions) == settings.QuestionCount {
			break
		}
		text := textx.SanitizeText(q.Question)
		if text == "" {
			continue
		}
		questions = append(questions, domain.InterviewQuestion{Index: len(questions), Question: text, Intent: q.Intent})
	}
	if len(questions) == 0 {
		return domain.InterviewSession{}, fmt.Errorf("op=interview.start: %w: no questions returned", domain.ErrUpstreamParse)
	}

	now := nowUTC(s.Now)
	sess := domain.InterviewSession{
		ID:          newID(),
		DiagnosisID: diagnosisID,
		Settings:    settings,
		Persona:     persona,
		Questions:   questions,
		Answers:     []domain.InterviewAnswer{},
		Status:      domain.InterviewInProgress,
		CreatedAt:   now,
	}
	if err := s.persist(ctx, &sess); err != nil {
		return domain.InterviewSession{}, fmt.Errorf("op=interview.start: %w", err)
	}
	return sess, nil
}

// Get loads a session.
func (s InterviewService) Get(ctx domain.Context, id string) (domain.InterviewSession, error) {
	if err := validID(id); err != nil {
		return domain.InterviewSession{}, fmt.Errorf("op=interview.get: %w", err)
	}
	var sess domain.InterviewSession
	if err := load(ctx, s.KV, interviewKey(id), &sess); err != nil {
		return domain.InterviewSession{}, fmt.Errorf("op=interview.get: %w", err)
	}
	return sess, nil
}

// Next returns the lowest-indexed unanswered question.
func (s InterviewService) Next(ctx domain.Context, id string) (NextResult, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return NextResult{}, fmt.Errorf("op=interview.next: %w", err)
	}
	res := NextResult{SessionID: sess.ID, Answered: len(sess.Answers), Total: len(sess.Questions)}
	q, ok := sess.NextQuestion()
	if !ok || sess.Status == domain.InterviewCompleted {
		res.Done = true
		return res, nil
	}
	res.Question = &q
	return res, nil
}

// Evaluate scores one answer and appends it to the session. Each question
// can be answered once and completed sessions are closed.
func (s InterviewService) Evaluate(ctx domain.Context, id string, questionIndex int, answer string) (domain.InterviewAnswer, error) {
	answer = textx.SanitizeText(answer)
	if answer == "" {
		return domain.InterviewAnswer{}, fmt.Errorf("op=interview.evaluate: %w: answer required", domain.ErrInvalidArgument)
	}
	if len([]rune(answer)) > MaxInterviewAnswerRunes {
		return domain.InterviewAnswer{}, fmt.Errorf("op=interview.evaluate: %w: answer too long", domain.ErrInvalidArgument)
	}
	sess, err := s.Get(ctx, id)
	if err != nil {
		return domain.InterviewAnswer{}, fmt.Errorf("op=interview.evaluate: %w", err)
	}
	if sess.Status == domain.InterviewCompleted {
		return domain.InterviewAnswer{}, fmt.Errorf("op=interview.evaluate: %w: interview already completed", domain.ErrConflict)
	}
	if questionIndex < 0 || questionIndex >= len(sess.Questions) {
		return domain.InterviewAnswer{}, fmt.Errorf("op=interview.evaluate: %w: unknown question index %d", domain.ErrInvalidArgument, questionIndex)
	}
	if sess.Answered(questionIndex) {
		return domain.InterviewAnswer{}, fmt.Errorf("op=interview.evaluate: %w: question already answered", domain.ErrConflict)
	}
	q := sess.Questions[questionIndex]

	var ev domain.AnswerEvaluation
	if err := completeJSON(ctx, s.AI, "interview_evaluate", answerEvaluationPrompt(sess, q, answer), &ev); err != nil {
		return domain.InterviewAnswer{}, fmt.Errorf("op=interview.evaluate: %w", err)
	}
	ev.Score = clampScore(ev.Score)
	a := domain.InterviewAnswer{QuestionIndex: q.Index, Question: q.Question, Answer: answer, Evaluation: ev, AnsweredAt: nowUTC(s.Now)}
	sess.Answers = append(sess.Answers, a)
	if err := s.persist(ctx, &sess); err != nil {
		return domain.InterviewAnswer{}, fmt.Errorf("op=interview.evaluate: %w", err)
	}
	observability.ObserveInterviewScore(ev.Score)
	return a, nil
}

// Summary closes the session with an overall assessment. Calling it again on a
// completed session returns the stored summary without another model call.
func (s InterviewService) Summary(ctx domain.Context, id string) (domain.InterviewSummary, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return domain.InterviewSummary{}, fmt.Errorf("op=interview.summary: %w", err)
	}
	if sess.Status == domain.InterviewCompleted && sess.Summary != nil {
		return *sess.Summary, nil
	}
	if len(sess.Answers) == 0 {
		return domain.InterviewSummary{}, fmt.Errorf("op=interview.summary: %w: answer at least one question first", domain.ErrInvalidArgument)
	}
	var sum domain.InterviewSummary
	if err := completeJSON(ctx, s.AI, "interview_summary", interviewSummaryPrompt(sess), &sum); err != nil {
		return domain.InterviewSummary{}, fmt.Errorf("op=interview.summary: %w", err)
	}
	sum.OverallScore = clampScore(sum.OverallScore)
	sess.Summary = &sum
	sess.Status = domain.InterviewCompleted
	if err := s.persist(ctx, &sess); err != nil {
		return domain.InterviewSummary{}, fmt.Errorf("op=interview.summary: %w", err)
	}
	observability.InterviewsCompletedTotal.Inc()
	return sum, nil
}
