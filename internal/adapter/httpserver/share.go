package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	"github.com/fairyhunter13/career-diagnosis/internal/usecase"
)

type shareResultRequest struct {
	DiagnosisID string `json:"diagnosis_id" validate:"required,max=64"`
}

type shareInterviewRequest struct {
	SessionID     string `json:"session_id" validate:"required,max=64"`
	QuestionIndex *int   `json:"question_index" validate:"required,min=0,max=50"`
}

type shareResponse struct {
	ID        string           `json:"id"`
	Kind      domain.ShareKind `json:"kind"`
	URL       string           `json:"url"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (s *Server) writeShare(w http.ResponseWriter, r *http.Request, rec domain.ShareRecord, err error) {
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{ID: rec.ID, Kind: rec.Kind, URL: s.Shares.URL(rec), ExpiresAt: rec.ExpiresAt})
}

// ShareResultHandler snapshots a diagnosis result.
func (s *Server) ShareResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shareResultRequest
		if !bind(w, r, &req) {
			return
		}
		rec, err := s.Shares.ShareResult(r.Context(), req.DiagnosisID)
		s.writeShare(w, r, rec, err)
	}
}

// ShareInterviewHandler snapshots one evaluated interview answer.
func (s *Server) ShareInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shareInterviewRequest
		if !bind(w, r, &req) {
			return
		}
		rec, err := s.Shares.ShareInterview(r.Context(), req.SessionID, *req.QuestionIndex)
		s.writeShare(w, r, rec, err)
	}
}

// ShareProfileHandler snapshots a profile card.
func (s *Server) ShareProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req usecase.ProfileCard
		if !bind(w, r, &req) {
			return
		}
		rec, err := s.Shares.ShareProfile(r.Context(), req)
		s.writeShare(w, r, rec, err)
	}
}

// SharedHandler serves a snapshot by kind and id.
func (s *Server) SharedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.Shares.Get(r.Context(), domain.ShareKind(chi.URLParam(r, "kind")), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
