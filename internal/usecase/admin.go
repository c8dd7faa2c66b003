package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	obsctx "github.com/fairyhunter13/career-diagnosis/internal/observability"
	"github.com/fairyhunter13/career-diagnosis/pkg/textx"
)

const (
	fetchBatch       = 100
	pruneConcurrency = 8
)

// AdminService lists and deletes stored diagnoses.
type AdminService struct {
	KV       domain.KVStore
	PageSize int
}

// NewAdminService constructs an AdminService with its dependencies.
func NewAdminService(kv domain.KVStore, pageSize int) AdminService {
	if pageSize <= 0 {
		pageSize = 20
	}
	return AdminService{KV: kv, PageSize: pageSize}
}

// DiagnosisSummary is one row of the admin listing.
type DiagnosisSummary struct {
	ID               string    `json:"id"`
	CareerType       string    `json:"career_type"`
	Summary          string    `json:"summary"`
	AnswerCount      int       `json:"answer_count"`
	HasAgentAnalysis bool      `json:"has_agent_analysis"`
	HasSelfAnalysis  bool      `json:"has_self_analysis"`
	CreatedAt        time.Time `json:"created_at"`
}

// DiagnosisPage is a page of the admin listing, newest first.
type DiagnosisPage struct {
	Items    []DiagnosisSummary `json:"items"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Total    int                `json:"total"`
	HasNext  bool               `json:"has_next"`
}

func summarize(d domain.Diagnosis) DiagnosisSummary {
	return DiagnosisSummary{
		ID:               d.ID,
		CareerType:       d.Result.CareerType,
		Summary:          textx.TruncateRunes(d.Result.Summary, 140, "…"),
		AnswerCount:      len(d.Answers),
		HasAgentAnalysis: d.AgentAnalysis != nil,
		HasSelfAnalysis:  len(d.SelfAnalysis) > 0,
		CreatedAt:        d.CreatedAt,
	}
}

func matches(d domain.Diagnosis, q string) bool {
	if q == "" {
		return true
	}
	if textx.ContainsFold(d.ID, q) || textx.ContainsFold(d.Result.CareerType, q) || textx.ContainsFold(d.Result.Summary, q) {
		return true
	}
	for _, c := range d.Result.RecommendedCareers {
		if textx.ContainsFold(c.Title, q) {
			return true
		}
	}
	return false
}

// scan walks the index newest first, returning live records and the ids whose
// records have expired.
func (s AdminService) scan(ctx domain.Context) ([]domain.Diagnosis, []string, error) {
	ids, err := s.KV.ListRange(ctx, diagnosisIndexKey, 0, -1)
	if err != nil {
		return nil, nil, err
	}
	slices.Reverse(ids)
	ids = slices.Compact(ids)

	var live []domain.Diagnosis
	var stale []string
	lg := obsctx.LoggerFromContext(ctx)
	for start := 0; start < len(ids); start += fetchBatch {
		batch := ids[start:min(start+fetchBatch, len(ids))]
		keys := make([]string, len(batch))
		for i, id := range batch {
			keys[i] = diagnosisKey(id)
		}
		vals, err := s.KV.GetMany(ctx, keys...)
		if err != nil {
			return nil, nil, err
		}
		for i, raw := range vals {
			if raw == nil {
				stale = append(stale, batch[i])
				continue
			}
			var d domain.Diagnosis
			if err := json.Unmarshal(raw, &d); err != nil {
				lg.Warn("skipping undecodable diagnosis", slog.String("diagnosis_id", batch[i]), slog.Any("error", err))
				continue
			}
			live = append(live, d)
		}
	}
	return live, stale, nil
}

// prune removes stale ids from the index concurrently. Failures are logged;
// the ids will be retried on the next scan.
func (s AdminService) prune(ctx domain.Context, stale []string) int {
	if len(stale) == 0 {
		return 0
	}
	var (
		g       errgroup.Group
		removed atomic.Int64
	)
	g.SetLimit(pruneConcurrency)
	for _, id := range stale {
		g.Go(func() error {
			if err := s.KV.ListRemove(ctx, diagnosisIndexKey, id); err != nil {
				return err
			}
			removed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		obsctx.LoggerFromContext(ctx).Warn("diagnosis index prune incomplete",
			slog.Int("stale", len(stale)), slog.Int64("removed", removed.Load()), slog.Any("error", err))
	}
	return int(removed.Load())
}

// List returns a page of diagnoses matching search. Expired entries are
// dropped from the result and pruned from the index.
func (s AdminService) List(ctx domain.Context, page int, search string) (DiagnosisPage, error) {
	if page < 1 {
		page = 1
	}
	search = textx.TruncateRunes(textx.SanitizeText(search), 100, "")
	live, stale, err := s.scan(ctx)
	if err != nil {
		return DiagnosisPage{}, fmt.Errorf("op=admin.list: %w", err)
	}
	s.prune(ctx, stale)

	var hits []DiagnosisSummary
	for _, d := range live {
		if matches(d, search) {
			hits = append(hits, summarize(d))
		}
	}
	out := DiagnosisPage{Items: []DiagnosisSummary{}, Page: page, PageSize: s.PageSize, Total: len(hits)}
	from := (page - 1) * s.PageSize
	if from < len(hits) {
		to := min(from+s.PageSize, len(hits))
		out.Items = hits[from:to]
		out.HasNext = to < len(hits)
	}
	return out, nil
}

// Get loads one diagnosis for the admin view.
func (s AdminService) Get(ctx domain.Context, id string) (domain.Diagnosis, error) {
	d, err := DiagnosisService{KV: s.KV}.Get(ctx, id)
	if err != nil {
		return domain.Diagnosis{}, fmt.Errorf("op=admin.get: %w", err)
	}
	return d, nil
}

// Delete removes a diagnosis record and its index entry concurrently.
func (s AdminService) Delete(ctx domain.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return fmt.Errorf("op=admin.delete: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.KV.Delete(gctx, diagnosisKey(id)) })
	g.Go(func() error { return s.KV.ListRemove(gctx, diagnosisIndexKey, id) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("op=admin.delete: %w", err)
	}
	return nil
}

// PruneIndex removes every index entry whose record has expired.
func (s AdminService) PruneIndex(ctx domain.Context) (int, error) {
	_, stale, err := s.scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("op=admin.prune_index: %w", err)
	}
	return s.prune(ctx, stale), nil
}

// RunIndexJanitor prunes the index every interval until ctx is done.
func (s AdminService) RunIndexJanitor(ctx domain.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("index janitor stopping")
			return
		case <-ticker.C:
			n, err := s.PruneIndex(ctx)
			if err != nil {
				slog.Error("index prune failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				slog.Info("index pruned", slog.Int("removed", n))
			}
		}
	}
}
