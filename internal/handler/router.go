package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/veyralabs/fundmatch-go/internal/index"
	"github.com/veyralabs/fundmatch-go/internal/infra/observability"
	"github.com/veyralabs/fundmatch-go/internal/recommend"
)

var tracer = otel.Tracer("handler")

// Config holds the handler-level settings: per-operation deadlines and the
// admin secret guarding index maintenance.
type Config struct {
	RecommendTimeout time.Duration
	SearchTimeout    time.Duration
	AdminJWTSecret   string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	reco *recommend.Service,
	idx *index.Service,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg Config,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestMetricsMiddleware(metrics))
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Recommendations
		r.Get("/recommendations", getRecommendationsHandler(reco, cfg.RecommendTimeout, logger))
		r.Post("/recommendations/refresh", refreshRecommendationsHandler(reco, cfg.RecommendTimeout, logger))

		// Matches
		r.Post("/matches/super-like", superLikeHandler(reco, cfg.RecommendTimeout, logger))

		// Search
		r.Get("/search", searchHandler(idx, cfg.SearchTimeout, logger))

		// Index maintenance
		r.Post("/index/profiles/{profileId}/reindex", reindexProfileHandler(idx, logger))
		r.With(AdminJWTMiddleware(cfg.AdminJWTSecret, logger)).
			Post("/index/reindex-all", reindexAllHandler(idx, logger))

		// Engine metrics snapshot
		r.Get("/metrics/engine", engineMetricsHandler(metrics))
	})

	return r
}

// requestMetricsMiddleware counts completed requests by outcome for the
// engine snapshot. 5xx answers count as errors; everything else, including
// client mistakes, as success.
func requestMetricsMiddleware(metrics *observability.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := "success"
			if ww.Status() >= 500 {
				status = "error"
			}
			metrics.IncrRequest(status)
		})
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.EngineSnapshot())
	}
}
