package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	"github.com/fairyhunter13/career-diagnosis/internal/usecase"
)

// PhotoFormField is the multipart field carrying the photo.
const PhotoFormField = "photo"

// multipartSlack covers boundaries and part headers around the photo bytes.
const multipartSlack = 64 << 10

// ResumeHandler generates a resume or CV document.
func (s *Server) ResumeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req usecase.ResumeRequest
		if !bind(w, r, &req) {
			return
		}
		doc, err := s.Documents.Generate(r.Context(), req)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// PhotoBodyLimit is the request cap for photo uploads.
func (s *Server) PhotoBodyLimit() int64 {
	return s.Cfg.MaxPhotoKB<<10 + multipartSlack
}

// PhotoUploadHandler stores a profile photo sent as multipart/form-data.
func (s *Server) PhotoUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("op=http.photo: %w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxPhotoKB << 10
		if err := r.ParseMultipartForm(maxBytes + multipartSlack); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeError(w, r, fmt.Errorf("op=http.photo: %w", domain.ErrPayloadTooLarge), map[string]int64{"max_kb": s.Cfg.MaxPhotoKB})
				return
			}
			writeError(w, r, fmt.Errorf("op=http.photo: %w: malformed multipart body", domain.ErrInvalidArgument), nil)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		f, _, err := r.FormFile(PhotoFormField)
		if err != nil {
			writeError(w, r, fmt.Errorf("op=http.photo: %w: photo file required", domain.ErrInvalidArgument), map[string]string{"field": PhotoFormField})
			return
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		if err != nil {
			writeError(w, r, fmt.Errorf("op=http.photo: read: %w", err), nil)
			return
		}
		p, err := s.Documents.UploadPhoto(r.Context(), data)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": p.ID, "mime": p.MIME, "size": len(p.Data)})
	}
}

// PhotoHandler serves stored photo bytes.
func (s *Server) PhotoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Documents.GetPhoto(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Content-Type", p.MIME)
		w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(p.Data)
	}
}
