package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/exitlab/internal/api/handlers"
	"github.com/wonny/exitlab/internal/observability"
	"github.com/wonny/exitlab/pkg/logger"
)

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Health *handlers.HealthHandler
	Live   *handlers.LiveHandler
	Runs   *handlers.RunsHandler
}

// RateLimit throttles /api requests; Rate 0 disables it
type RateLimit struct {
	Rate  float64
	Burst int
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, metrics *observability.Metrics, limit RateLimit, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check & metrics
	r.HandleFunc("/health", h.Health.Health).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API
	api := r.PathPrefix("/api").Subrouter()
	if limit.Rate > 0 {
		api.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(limit.Rate), max(limit.Burst, 1)), log))
	}

	// Live exit management
	api.HandleFunc("/params", h.Live.GetParams).Methods("GET")
	api.HandleFunc("/positions", h.Live.ListPositions).Methods("GET")
	api.HandleFunc("/positions", h.Live.CreatePosition).Methods("POST")
	api.HandleFunc("/positions/{id}", h.Live.GetPosition).Methods("GET")
	api.HandleFunc("/positions/{id}", h.Live.DeletePosition).Methods("DELETE")
	api.HandleFunc("/positions/{id}/price", h.Live.UpdatePrice).Methods("POST")
	api.HandleFunc("/adjustments", h.Live.ListAdjustments).Methods("GET")
	api.HandleFunc("/prices", h.Live.ListPrices).Methods("GET")
	api.HandleFunc("/prices/{symbol}", h.Live.GetPrice).Methods("GET")

	// Grid runs & jobs
	api.HandleFunc("/runs", h.Runs.ListRuns).Methods("GET")
	api.HandleFunc("/jobs", h.Runs.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{name}/run", h.Runs.TriggerJob).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware rejects requests beyond the limiter with 429
func rateLimitMiddleware(limiter *rate.Limiter, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.WithField("path", r.URL.Path).Debug("Request throttled")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
