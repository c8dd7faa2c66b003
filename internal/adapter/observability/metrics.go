package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider", "operation"},
	)
	ChatStreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_active",
			Help: "Number of chat responses currently streaming",
		},
	)

	RateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by a per-endpoint rate limit policy",
		},
		[]string{"policy"},
	)
	// JSONExtractionsTotal counts which strategy recovered JSON from a model
	// response; method is "failed" when none did.
	JSONExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_json_extractions_total",
			Help: "LLM JSON extraction outcomes by winning strategy",
		},
		[]string{"feature", "method"},
	)

	DiagnosesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diagnoses_created_total",
			Help: "Total number of stored career diagnoses",
		},
	)
	InterviewsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interviews_completed_total",
			Help: "Total number of mock interviews summarized",
		},
	)
	InterviewScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_answer_score",
			Help:    "Distribution of per-answer interview scores (0-100)",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
	SharesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shares_created_total",
			Help: "Total number of share snapshots by kind",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

// InitMetrics registers every collector with the default registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			ChatStreamsActive,
			RateLimitRejectionsTotal,
			JSONExtractionsTotal,
			DiagnosesCreatedTotal,
			InterviewsCompletedTotal,
			InterviewScoreHistogram,
			SharesCreatedTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// unmatched routes would otherwise explode label cardinality
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveAIRequest records one upstream model call.
func ObserveAIRequest(provider, operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AIRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	AIRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}

// RateLimited counts a rejection by the named policy.
func RateLimited(policy string) {
	RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
}

// ObserveExtraction counts the strategy that recovered JSON for a feature.
func ObserveExtraction(feature, method string) {
	if method == "" {
		method = "failed"
	}
	JSONExtractionsTotal.WithLabelValues(feature, method).Inc()
}

// ObserveInterviewScore records a per-answer score when it is in range.
func ObserveInterviewScore(score int) {
	if score >= 0 && score <= 100 {
		InterviewScoreHistogram.Observe(float64(score))
	}
}
