package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// AdminLoginHandler verifies the admin credentials and sets the session cookie.
func (s *Server) AdminLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !bind(w, r, &req) {
			return
		}
		if !s.Sessions.CheckCredentials(req.Username, req.Password) {
			LoggerFrom(r).Warn("admin login failed", slog.String("username", req.Username))
			writeError(w, r, fmt.Errorf("op=http.admin_login: %w: invalid credentials", domain.ErrUnauthorized), nil)
			return
		}
		token, exp, err := s.Sessions.CreateSession(req.Username)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.Sessions.SetSessionCookie(w, token, exp)
		LoggerFrom(r).Info("admin logged in", slog.String("username", req.Username))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "expires_at": exp})
	}
}

// AdminLogoutHandler clears the session cookie.
func (s *Server) AdminLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.Sessions.ClearSessionCookie(w)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// AdminListHandler lists diagnoses newest first with optional search.
func (s *Server) AdminListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, r, fmt.Errorf("op=http.admin_list: %w: page must be a positive integer", domain.ErrInvalidArgument), map[string]string{"page": raw})
				return
			}
			page = n
		}
		out, err := s.Admin.List(r.Context(), page, r.URL.Query().Get("search"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// AdminDiagnosisHandler returns one diagnosis.
func (s *Server) AdminDiagnosisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := s.Admin.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// AdminDeleteHandler deletes a diagnosis and its index entry.
func (s *Server) AdminDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.Admin.Delete(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		LoggerFrom(r).Info("diagnosis deleted", slog.String("id", id), slog.String("admin", AdminFrom(r.Context())))
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
	}
}
