package router

import (
	"context"
	"net/http"

	"pubsubnode/internal/api/v1/handler"
	"pubsubnode/internal/config"
	"pubsubnode/internal/middleware"
	"pubsubnode/internal/node"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the executor from cfg and returns the HTTP handler together
// with a cleanup function for the resources it opened.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Bool("emulator", cfg.IsLocal()).Msg("Router initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exec, cleanup, err := node.NewFromConfig(ctx, cfg, reg, logger)
	if err != nil {
		return nil, nil, err
	}
	return NewHandler(cfg, exec, reg, logger), cleanup, nil
}

// NewHandler assembles routes and middleware around exec.
func NewHandler(cfg *config.Config, exec handler.Executor, gatherer prometheus.Gatherer, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	executionHandler := handler.NewExecutionHandler(exec, validate, logger)
	authMiddleware := middleware.AuthMiddleware(cfg.ConnectorJWTSecret, logger)
	if cfg.ConnectorJWTSecret == "" {
		logger.Warn().Msg("CONNECTOR_JWT_SECRET is not set, executions are unauthenticated")
	}

	mux := http.NewServeMux()

	// Create a subrouter for API v1 with the /api/v1 prefix
	apiV1Mux := http.NewServeMux()
	executionHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", apiV1Mux))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux))
}
