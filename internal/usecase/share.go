package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	"github.com/fairyhunter13/career-diagnosis/pkg/textx"
)

// ShareService creates and serves immutable snapshots behind opaque links.
// Snapshots never include the raw questionnaire answers.
type ShareService struct {
	KV      domain.KVStore
	TTL     time.Duration
	BaseURL string
	Now     func() time.Time
}

// NewShareService constructs a ShareService with its dependencies.
func NewShareService(kv domain.KVStore, ttl time.Duration, baseURL string) ShareService {
	return ShareService{KV: kv, TTL: ttl, BaseURL: strings.TrimRight(baseURL, "/")}
}

// ResultSnapshot is the public view of a diagnosis.
type ResultSnapshot struct {
	CareerType         string               `json:"career_type"`
	Summary            string               `json:"summary"`
	Strengths          []string             `json:"strengths"`
	RecommendedCareers []domain.CareerMatch `json:"recommended_careers"`
}

// InterviewSnapshot is one evaluated question of a mock interview.
type InterviewSnapshot struct {
	Industry string `json:"industry"`
	Position string `json:"position"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// ProfileCard is a user-composed profile card.
type ProfileCard struct {
	DiagnosisID string   `json:"diagnosis_id,omitempty"`
	Name        string   `json:"name" validate:"required,max=100"`
	Headline    string   `json:"headline,omitempty" validate:"max=200"`
	Skills      []string `json:"skills,omitempty" validate:"max=20,dive,max=100"`
	Message     string   `json:"message,omitempty" validate:"max=500"`
	PhotoID     string   `json:"photo_id,omitempty"`
	CareerType  string   `json:"career_type,omitempty"`
}

// URL returns the public link of a share record.
func (s ShareService) URL(rec domain.ShareRecord) string {
	return fmt.Sprintf("%s/share/%s/%s", s.BaseURL, rec.Kind, rec.ID)
}

func (s ShareService) create(ctx domain.Context, kind domain.ShareKind, payload any) (domain.ShareRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.ShareRecord{}, err
	}
	now := nowUTC(s.Now)
	rec := domain.ShareRecord{ID: newID(), Kind: kind, Payload: raw, CreatedAt: now, ExpiresAt: now.Add(s.TTL)}
	if err := save(ctx, s.KV, shareKey(kind, rec.ID), rec, s.TTL); err != nil {
		return domain.ShareRecord{}, err
	}
	observability.SharesCreatedTotal.WithLabelValues(string(kind)).Inc()
	return rec, nil
}

// ShareResult snapshots a diagnosis result.
func (s ShareService) ShareResult(ctx domain.Context, diagnosisID string) (domain.ShareRecord, error) {
	d, err := DiagnosisService{KV: s.KV}.Get(ctx, diagnosisID)
	if err != nil {
		return domain.ShareRecord{}, fmt.Errorf("op=share.result: %w", err)
	}
	rec, err := s.create(ctx, domain.ShareResult, ResultSnapshot{
		CareerType:         d.Result.CareerType,
		Summary:            d.Result.Summary,
		Strengths:          d.Result.Strengths,
		RecommendedCareers: d.Result.RecommendedCareers,
	})
	if err != nil {
		return domain.ShareRecord{}, fmt.Errorf("op=share.result: %w", err)
	}
	return rec, nil
}

// ShareInterview snapshots one evaluated answer of a mock interview.
func (s ShareService) ShareInterview(ctx domain.Context, sessionID string, questionIndex int) (domain.ShareRecord, error) {
	sess, err := InterviewService{KV: s.KV}.Get(ctx, sessionID)
	if err != nil {
		return domain.ShareRecord{}, fmt.Errorf("op=share.interview: %w", err)
	}
	for _, a := range sess.Answers {
		if a.QuestionIndex != questionIndex {
			continue
		}
		rec, err := s.create(ctx, domain.ShareInterview, InterviewSnapshot{
			Industry: sess.Settings.Industry,
			Position: sess.Settings.Position,
			Question: a.Question,
			Answer:   a.Answer,
			Score:    a.Evaluation.Score,
			Feedback: a.Evaluation.Feedback,
		})
		if err != nil {
			return domain.ShareRecord{}, fmt.Errorf("op=share.interview: %w", err)
		}
		return rec, nil
	}
	return domain.ShareRecord{}, fmt.Errorf("op=share.interview: %w: question %d has no evaluated answer", domain.ErrInvalidArgument, questionIndex)
}

// ShareProfile snapshots a profile card. A referenced diagnosis contributes its career type.
func (s ShareService) ShareProfile(ctx domain.Context, card ProfileCard) (domain.ShareRecord, error) {
	card.Name = textx.SanitizeText(card.Name)
	if card.Name == "" {
		return domain.ShareRecord{}, fmt.Errorf("op=share.profile: %w: name required", domain.ErrInvalidArgument)
	}
	card.Headline = textx.SanitizeText(card.Headline)
	card.Message = textx.SanitizeText(card.Message)
	if card.DiagnosisID != "" {
		d, err := DiagnosisService{KV: s.KV}.Get(ctx, card.DiagnosisID)
		if err != nil {
			return domain.ShareRecord{}, fmt.Errorf("op=share.profile: %w", err)
		}
		card.CareerType = d.Result.CareerType
		card.DiagnosisID = ""
	}
	rec, err := s.create(ctx, domain.ShareProfile, card)
	if err != nil {
		return domain.ShareRecord{}, fmt.Errorf("op=share.profile: %w", err)
	}
	return rec, nil
}

// Get loads a share snapshot by kind and id.
func (s ShareService) Get(ctx domain.Context, kind domain.ShareKind, id string) (domain.ShareRecord, error) {
	if !kind.Valid() {
		return domain.ShareRecord{}, fmt.Errorf("op=share.get: %w", domain.ErrNotFound)
	}
	if err := validID(id); err != nil {
		return domain.ShareRecord{}, fmt.Errorf("op=share.get: %w", err)
	}
	var rec domain.ShareRecord
	if err := load(ctx, s.KV, shareKey(kind, id), &rec); err != nil {
		return domain.ShareRecord{}, fmt.Errorf("op=share.get: %w", err)
	}
	return rec, nil
}
