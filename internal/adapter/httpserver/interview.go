package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

type interviewStartRequest struct {
	DiagnosisID string `json:"diagnosis_id,omitempty" validate:"max=64"`
	domain.InterviewSettings
}

type interviewSessionRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
}

type interviewEvaluateRequest struct {
	SessionID     string `json:"session_id" validate:"required,max=64"`
	QuestionIndex *int   `json:"question_index" validate:"required,min=0,max=50"`
	Answer        string `json:"answer" validate:"required,max=4000"`
}

// InterviewStartHandler creates a mock interview session.
func (s *Server) InterviewStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interviewStartRequest
		if !bind(w, r, &req) {
			return
		}
		sess, err := s.Interviews.Start(r.Context(), req.DiagnosisID, req.InterviewSettings)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// InterviewNextHandler returns the next unanswered question.
func (s *Server) InterviewNextHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interviewSessionRequest
		if !bind(w, r, &req) {
			return
		}
		next, err := s.Interviews.Next(r.Context(), req.SessionID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, next)
	}
}

// InterviewEvaluateHandler scores one answer.
func (s *Server) InterviewEvaluateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interviewEvaluateRequest
		if !bind(w, r, &req) {
			return
		}
		ans, err := s.Interviews.Evaluate(r.Context(), req.SessionID, *req.QuestionIndex, req.Answer)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

// InterviewSummaryHandler closes a session with an overall summary.
func (s *Server) InterviewSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interviewSessionRequest
		if !bind(w, r, &req) {
			return
		}
		sum, err := s.Interviews.Summary(r.Context(), req.SessionID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// InterviewHandler returns a stored session.
func (s *Server) InterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Interviews.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}
