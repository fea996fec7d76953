package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hookbridge/hookbridge/internal/handlers"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/middleware"
)

// RouterConfig carries the handlers and middleware settings the router
// needs. Issues may be nil when no upstream credentials are configured;
// the proxy routes are simply not registered.
type RouterConfig struct {
	Webhook *handlers.WebhookHandler
	Events  *handlers.EventsHandler
	Issues  *handlers.IssuesHandler
	Health  *handlers.HealthHandler
	Logger  *logging.Logger

	CORSAllowedOrigins []string
}

// NewRouter constructs the ServeMux with all API routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	// Webhook ingestion
	mux.HandleFunc("POST /webhooks/github", cfg.Webhook.Handle)

	// Stored-event read API
	mux.HandleFunc("GET /api/v1/events", cfg.Events.List)
	mux.HandleFunc("GET /api/v1/events/{deliveryID}", cfg.Events.Get)

	// Issue proxy, registered only when an upstream client exists
	if cfg.Issues != nil {
		mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/issues", cfg.Issues.Create)
		mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/issues", cfg.Issues.List)
		mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/issues/{number}", cfg.Issues.Get)
		mux.HandleFunc("PATCH /api/v1/repos/{owner}/{repo}/issues/{number}", cfg.Issues.Update)
		mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/issues/{number}/comments", cfg.Issues.CreateComment)
	}

	// Health endpoints
	mux.HandleFunc("GET /healthz", cfg.Health.Healthz)
	mux.HandleFunc("GET /readyz", cfg.Health.Readyz)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	if cfg.Logger != nil {
		handler = accessLog(cfg.Logger, handler)
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			MaxAge:         300,
		})(handler)
	}
	return middleware.RequestID(handler)
}
