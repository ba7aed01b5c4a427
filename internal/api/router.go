package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/signaldesk/internal/api/handlers"
	"github.com/wonny/signaldesk/internal/store"
	"github.com/wonny/signaldesk/pkg/logger"
	"github.com/wonny/signaldesk/pkg/metrics"
	"github.com/wonny/signaldesk/pkg/redis"
)

// Recompute trigger throttle: one call per interval, small burst
const (
	generateInterval = 5 * time.Second
	generateBurst    = 2
)

// Deps are the collaborators behind the gateway routes
type Deps struct {
	Repo    store.Repository
	Engine  handlers.Recomputer
	Status  handlers.StatusStore
	Cache   *redis.Cache // optional highlight list cache
	Metrics *metrics.Recorder
	Logger  *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(d Deps) http.Handler {
	log := d.Logger.Component("api")

	stocks := handlers.NewStockHandler(d.Repo, log)
	conclusions := handlers.NewConclusionHandler(d.Repo, log)
	info := handlers.NewInfoHandler(d.Repo, log)
	highlights := handlers.NewHighlightHandler(d.Repo, d.Engine, d.Cache, log)
	status := handlers.NewStatusHandler(d.Status, log)

	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(d.Repo)).Methods("GET")
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/stocks/list", stocks.List).Methods("GET")
	api.HandleFunc("/stocks/upsert", stocks.Upsert).Methods("POST")

	api.HandleFunc("/conclusions/add", conclusions.Add).Methods("POST")
	api.HandleFunc("/conclusions/{stock}/{date}", conclusions.List).Methods("GET")

	api.HandleFunc("/info/add/", info.Add).Methods("POST")
	api.HandleFunc("/info/add", info.Add).Methods("POST")

	limiter := rate.NewLimiter(rate.Every(generateInterval), generateBurst)
	api.Handle("/highlights/generate", rateLimitMiddleware(limiter)(http.HandlerFunc(highlights.Generate))).Methods("GET")
	api.HandleFunc("/highlights/list/{stock_id}", highlights.List).Methods("GET")

	for _, name := range []string{handlers.StatusSystem, handlers.StatusLastMessage} {
		api.HandleFunc("/highlights/"+name, status.Get(name)).Methods("GET")
		api.HandleFunc("/highlights/"+name, status.Set(name)).Methods("POST")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler reports server and storage health
func healthCheckHandler(repo store.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status, code := "ok", http.StatusOK
		if err := repo.Ping(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  status,
			"service": "signaldesk-gateway",
		})
	}
}

// rateLimitMiddleware rejects requests beyond the limiter's budget with 429
func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "5")
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

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

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
