package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/wonny/eln-backtest/internal/api/handlers"
	"github.com/wonny/eln-backtest/pkg/logger"
)

// RouterDeps collects what the router wires together. Metrics and Limiter
// are optional.
type RouterDeps struct {
	Backtest       *handlers.BacktestHandler
	Health         *handlers.HealthHandler
	Metrics        RequestObserver
	MetricsHandler http.Handler
	Limiter        *RateLimiter
	AllowedOrigins []string
	Logger         *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", deps.Health.Health).Methods("GET")
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/backtest", deps.Backtest.Run).Methods("POST")
	api.HandleFunc("/backtest/{ticker}/rows.csv", deps.Backtest.RowsCSV).Methods("GET")
	api.HandleFunc("/levels/{ticker}", deps.Backtest.GetLevels).Methods("GET")
	api.HandleFunc("/runs/{ticker}", deps.Backtest.ListRuns).Methods("GET")

	if deps.Limiter != nil {
		api.Use(deps.Limiter.Middleware)
	}

	r.Use(loggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(recoveryMiddleware(deps.Logger))

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	})

	return c.Handler(r)
}

// PrometheusHandler exposes the default registry
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
