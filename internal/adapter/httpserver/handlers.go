package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/career-diagnosis/internal/config"
	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	"github.com/fairyhunter13/career-diagnosis/internal/service/ratelimiter"
	"github.com/fairyhunter13/career-diagnosis/internal/usecase"
)

// Services groups the usecases the handlers call into.
type Services struct {
	Diagnoses  usecase.DiagnosisService
	Chats      usecase.ChatService
	Interviews usecase.InterviewService
	Documents  usecase.DocumentService
	Shares     usecase.ShareService
	Admin      usecase.AdminService
}

// Server aggregates handler dependencies.
type Server struct {
	Services
	Cfg      config.Config
	Sessions *SessionManager
	// Limiters holds one limiter per policy name; a missing policy is unlimited.
	Limiters   map[string]ratelimiter.Limiter
	RedisCheck func(ctx context.Context) error
	AICheck    func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, svc Services, limiters map[string]ratelimiter.Limiter, redisCheck, aiCheck func(context.Context) error) *Server {
	return &Server{
		Services:   svc,
		Cfg:        cfg,
		Sessions:   NewSessionManager(cfg),
		Limiters:   limiters,
		RedisCheck: redisCheck,
		AICheck:    aiCheck,
	}
}

type analyzeRequest struct {
	Answers map[string]any `json:"answers" validate:"required,min=1,max=100"`
}

type analyzeResponse struct {
	ID     string            `json:"id"`
	Result domain.CareerPlan `json:"result"`
}

// AnalyzeHandler runs the career diagnosis for a questionnaire.
func (s *Server) AnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if !bind(w, r, &req) {
			return
		}
		d, err := s.Diagnoses.Analyze(r.Context(), req.Answers)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, analyzeResponse{ID: d.ID, Result: d.Result})
	}
}

// DiagnosisHandler returns a stored diagnosis.
func (s *Server) DiagnosisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := s.Diagnoses.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// AgentAnalysisHandler enriches a diagnosis with the recruiter view.
func (s *Server) AgentAnalysisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := s.Diagnoses.AgentAnalysis(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

type selfAnalysisRequest struct {
	Answers map[string]string `json:"answers" validate:"required,min=1,max=30"`
}

// SelfAnalysisHandler stores self-analysis answers on a diagnosis.
func (s *Server) SelfAnalysisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selfAnalysisRequest
		if !bind(w, r, &req) {
			return
		}
		d, err := s.Diagnoses.SelfAnalysis(r.Context(), chi.URLParam(r, "id"), req.Answers)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": d.ID, "self_analysis": d.SelfAnalysis})
	}
}

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes Redis and the AI circuit. Redis is required; an open
// AI circuit is reported but keeps the instance ready.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		ready := true
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
				ready = false
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		if s.AICheck != nil {
			if err := s.AICheck(ctx); err != nil {
				checks = append(checks, check{Name: "ai", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "ai", OK: true})
			}
		}
		st := http.StatusOK
		if !ready {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"ready": ready, "checks": checks})
	}
}
