package usecase

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	obsctx "github.com/fairyhunter13/career-diagnosis/internal/observability"
	"github.com/fairyhunter13/career-diagnosis/pkg/textx"
)

// Questionnaire limits.
const (
	MaxAnswers         = 100
	MaxAnswerRunes     = 2000
	MaxAnswerListItems = 20
	MaxSelfAnswers     = 30
)

// DiagnosisService creates and enriches stored career diagnoses.
type DiagnosisService struct {
	KV  domain.KVStore
	AI  domain.AIClient
	TTL time.Duration
	Now func() time.Time
}

// NewDiagnosisService constructs a DiagnosisService with its dependencies.
func NewDiagnosisService(kv domain.KVStore, ai domain.AIClient, ttl time.Duration) DiagnosisService {
	return DiagnosisService{KV: kv, AI: ai, TTL: ttl}
}

// normalizeAnswers sanitizes questionnaire answers. Values may be strings,
// numbers, booleans or lists of strings.
func normalizeAnswers(in map[string]any) (map[string]any, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: answers required", domain.ErrInvalidArgument)
	}
	if len(in) > MaxAnswers {
		return nil, fmt.Errorf("%w: too many answers", domain.ErrInvalidArgument)
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		key := textx.TruncateRunes(textx.SanitizeText(k), 100, "")
		if key == "" {
			return nil, fmt.Errorf("%w: empty answer key", domain.ErrInvalidArgument)
		}
		switch val := v.(type) {
		case string:
			out[key] = textx.TruncateRunes(textx.SanitizeText(val), MaxAnswerRunes, "")
		case float64, bool:
			out[key] = val
		case []any:
			if len(val) > MaxAnswerListItems {
				return nil, fmt.Errorf("%w: answer %q has too many items", domain.ErrInvalidArgument, key)
			}
			items := make([]string, 0, len(val))
			for _, it := range val {
				s, ok := it.(string)
				if !ok {
					return nil, fmt.Errorf("%w: answer %q must be a list of strings", domain.ErrInvalidArgument, key)
				}
				items = append(items, textx.TruncateRunes(textx.SanitizeText(s), MaxAnswerRunes, ""))
			}
			out[key] = items
		default:
			return nil, fmt.Errorf("%w: unsupported value for answer %q", domain.ErrInvalidArgument, key)
		}
	}
	return out, nil
}

// Analyze generates a career plan from questionnaire answers and stores it.
func (s DiagnosisService) Analyze(ctx domain.Context, answers map[string]any) (domain.Diagnosis, error) {
	clean, err := normalizeAnswers(answers)
	if err != nil {
		return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.analyze: %w", err)
	}
	var plan domain.CareerPlan
	if err := completeJSON(ctx, s.AI, "analyze", careerPlanPrompt(clean), &plan); err != nil {
		return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.analyze: %w", err)
	}
	now := nowUTC(s.Now)
	d := domain.Diagnosis{ID: newID(), Answers: clean, Result: plan, CreatedAt: now, UpdatedAt: now}
	if err := save(ctx, s.KV, diagnosisKey(d.ID), d, s.TTL); err != nil {
		return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.analyze: %w", err)
	}
	if err := s.KV.ListAppend(ctx, diagnosisIndexKey, d.ID); err != nil {
		obsctx.LoggerFromContext(ctx).Warn("diagnosis index append failed", "diagnosis_id", d.ID, "error", err)
	}
	observability.DiagnosesCreatedTotal.Inc()
	return d, nil
}

// Get loads a stored diagnosis.
func (s DiagnosisService) Get(ctx domain.Context, id string) (domain.Diagnosis, error) {
	if err := validID(id); err != nil {
		return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.get: %w", err)
	}
	var d domain.Diagnosis
	if err := load(ctx, s.KV, diagnosisKey(id), &d); err != nil {
		return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.get: %w", err)
	}
	return d, nil
}

// AgentAnalysis adds a recruiter-view analysis to a stored diagnosis. The
// record keeps its original expiry.
func (s DiagnosisService) AgentAnalysis(ctx domain.Context, id string) (domain.AgentAnalysis, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return domain.AgentAnalysis{}, fmt.Errorf("op=diagnosis.agent_analysis: %w", err)
	}
	var a domain.AgentAnalysis
	if err := completeJSON(ctx, s.AI, "agent_analysis", agentAnalysisPrompt(d), &a); err != nil {
		return domain.AgentAnalysis{}, fmt.Errorf("op=diagnosis.agent_analysis: %w", err)
	}
	a.GeneratedAt = nowUTC(s.Now)
	d.AgentAnalysis = &a
	d.UpdatedAt = a.GeneratedAt
	if err := saveKeepTTL(ctx, s.KV, diagnosisKey(id), d); err != nil {
		return domain.AgentAnalysis{}, fmt.Errorf("op=diagnosis.agent_analysis: %w", err)
	}
	return a, nil
}

// SelfAnalysis stores the user's own reflection answers on a diagnosis,
// replacing any earlier ones.
func (s DiagnosisService) SelfAnalysis(ctx domain.Context, id string, answers map[string]string) (domain.Diagnosis, error) {
	if len(answers) == 0 || len(answers) > MaxSelfAnswers {
		return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.self_analysis: %w: between 1 and %d answers required", domain.ErrInvalidArgument, MaxSelfAnswers)
	}
	clean := make(map[string]string, len(answers))
	for k, v := range answers {
		key := textx.TruncateRunes(textx.SanitizeText(k), 200, "")
		if key == "" {
			return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.self_analysis: %w: empty question", domain.ErrInvalidArgument)
		}
		clean[key] = textx.TruncateRunes(textx.SanitizeText(v), MaxAnswerRunes, "")
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.self_analysis: %w", err)
	}
	d.SelfAnalysis = clean
	d.UpdatedAt = nowUTC(s.Now)
	if err := saveKeepTTL(ctx, s.KV, diagnosisKey(id), d); err != nil {
		return domain.Diagnosis{}, fmt.Errorf("op=diagnosis.self_analysis: %w", err)
	}
	return d, nil
}
