package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/career-diagnosis/internal/adapter/httpserver"
	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
// The chat stream is mounted outside the request timeout so long replies are
// not cut off.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	origins := ParseOrigins(cfg.CORSAllowOrigins)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", httpserver.ChatSessionHeader, "Retry-After"},
		AllowCredentials: origins[0] != "*",
		MaxAge:           300,
	}))
	r.NotFound(httpserver.NotFound)
	r.MethodNotAllowed(httpserver.MethodNotAllowed)

	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	bodyLimit := httpserver.MaxBody(cfg.MaxBodyKB << 10)
	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimitPerMin > 0 {
			api.Use(httprate.Limit(cfg.RateLimitPerMin, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByRealIP),
				httprate.WithLimitHandler(httpserver.TooManyRequests),
			))
		}

		api.With(bodyLimit, srv.Limit(config.PolicyChat)).Post("/chat", srv.ChatHandler())

		api.Group(func(g chi.Router) {
			if cfg.RequestTimeout > 0 {
				g.Use(httpserver.TimeoutMiddleware(cfg.RequestTimeout))
			}

			g.With(bodyLimit, srv.Limit(config.PolicyAnalyze)).Post("/analyze", srv.AnalyzeHandler())
			g.Get("/diagnosis/{id}", srv.DiagnosisHandler())
			g.With(bodyLimit, srv.Limit(config.PolicyAgent)).Post("/diagnosis/{id}/agent-analysis", srv.AgentAnalysisHandler())
			g.With(bodyLimit, srv.Limit(config.PolicyAnalyze)).Post("/diagnosis/{id}/self-analysis", srv.SelfAnalysisHandler())

			g.Get("/chat/{id}", srv.ChatHistoryHandler())

			g.Group(func(iv chi.Router) {
				iv.Use(bodyLimit, srv.Limit(config.PolicyInterview))
				iv.Post("/interview/start", srv.InterviewStartHandler())
				iv.Post("/interview/next", srv.InterviewNextHandler())
				iv.Post("/interview/evaluate", srv.InterviewEvaluateHandler())
				iv.Post("/interview/summary", srv.InterviewSummaryHandler())
			})
			g.Get("/interview/{id}", srv.InterviewHandler())

			g.With(bodyLimit, srv.Limit(config.PolicyDocuments)).Post("/documents/resume", srv.ResumeHandler())
			g.With(httpserver.MaxBody(srv.PhotoBodyLimit()), srv.Limit(config.PolicyDocuments)).Post("/documents/photo", srv.PhotoUploadHandler())
			g.Get("/documents/photo/{id}", srv.PhotoHandler())

			g.Group(func(sh chi.Router) {
				sh.Use(bodyLimit, srv.Limit(config.PolicyShare))
				sh.Post("/share/result", srv.ShareResultHandler())
				sh.Post("/share/interview", srv.ShareInterviewHandler())
				sh.Post("/share/profile", srv.ShareProfileHandler())
			})
			g.Get("/share/{kind}/{id}", srv.SharedHandler())

			if cfg.AdminEnabled() {
				g.With(bodyLimit, srv.Limit(config.PolicyAdminLogin)).Post("/admin/login", srv.AdminLoginHandler())
				g.Post("/admin/logout", srv.AdminLogoutHandler())
				g.Group(func(ad chi.Router) {
					ad.Use(srv.Sessions.AuthRequired)
					ad.Get("/admin/diagnoses", srv.AdminListHandler())
					ad.Get("/admin/diagnoses/{id}", srv.AdminDiagnosisHandler())
					ad.Delete("/admin/diagnoses/{id}", srv.AdminDeleteHandler())
				})
			}
		})
	})

	return httpserver.SecurityHeaders(r)
}
