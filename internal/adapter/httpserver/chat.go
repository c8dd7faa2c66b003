package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/career-diagnosis/internal/usecase"
)

// ChatSessionHeader carries the session id of a streamed chat reply.
const ChatSessionHeader = "X-Chat-Session-Id"

const streamFailedMessage = "AI service error, please try again"

type chatRequest struct {
	SessionID   string `json:"session_id,omitempty" validate:"max=64"`
	DiagnosisID string `json:"diagnosis_id,omitempty" validate:"max=64"`
	Message     string `json:"message" validate:"required,max=2000"`
}

type textFrame struct {
	Text string `json:"text"`
}

type errorFrame struct {
	Error string `json:"error"`
}

func writeFrame(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

func writeDone(w io.Writer) error {
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}

// ChatHandler streams the advisor reply as server-sent events:
// data: {"text": "..."} frames, then data: [DONE]. Nothing is committed until
// the upstream produced its first item, so a failure to start answers with the
// JSON error envelope. A failure after that is reported in-band as
// data: {"error": "..."} before [DONE].
func (s *Server) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !bind(w, r, &req) {
			return
		}
		sess, seq, err := s.Chats.Stream(r.Context(), usecase.ChatRequest{
			SessionID:   req.SessionID,
			DiagnosisID: req.DiagnosisID,
			Message:     req.Message,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}

		lg := LoggerFrom(r).With(slog.String("session_id", sess.ID))
		next, stop := iter.Pull2(seq)
		defer stop()
		chunk, err, ok := next()
		if ok && err != nil {
			lg.Error("chat stream did not start", slog.Any("error", err))
			writeError(w, r, err, nil)
			return
		}

		rc := http.NewResponseController(w)
		if s.Cfg.AIStreamTimeout > 0 {
			_ = rc.SetWriteDeadline(time.Now().Add(s.Cfg.AIStreamTimeout + 10*time.Second))
		}
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		h.Set(ChatSessionHeader, sess.ID)
		w.WriteHeader(http.StatusOK)
		_ = rc.Flush()

		chunks := 0
		for ; ok; chunk, err, ok = next() {
			if err != nil {
				lg.Error("chat stream failed", slog.Int("chunks", chunks), slog.Any("error", err))
				_ = writeFrame(w, errorFrame{Error: streamFailedMessage})
				break
			}
			if err := writeFrame(w, textFrame{Text: chunk}); err != nil {
				lg.Info("chat client went away", slog.Int("chunks", chunks), slog.Any("error", err))
				return
			}
			_ = rc.Flush()
			chunks++
		}
		_ = writeDone(w)
		_ = rc.Flush()
	}
}

// ChatHistoryHandler returns a stored chat session.
func (s *Server) ChatHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Chats.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}
