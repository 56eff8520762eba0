package server

import (
	"log/slog"
	"net/http"

	"github.com/maauso/kuiper-api/internal/auth"
	"github.com/maauso/kuiper-api/internal/metrics"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// AdminPassword guards the /api/admin routes. Empty disables them.
	AdminPassword string
	// RateLimitPerMinute is the per-IP request budget. Zero disables limiting.
	RateLimitPerMinute int
	// Verifier authenticates users. Nil makes user routes answer 503.
	Verifier auth.Verifier
	// Metrics, when set, records request metrics and serves GET /metrics.
	Metrics *metrics.Metrics
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	user := RequireUser(cfg.Verifier, logger)
	admin := RequireAdmin(cfg.AdminPassword)

	// Public routes
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/tts/pronounce", h.Pronounce)
	mux.HandleFunc("GET /api/scripts", h.ListScripts)
	mux.HandleFunc("GET /api/scripts/{id}", h.GetScript)

	// Admin routes
	mux.Handle("POST /api/admin/scripts", admin(http.HandlerFunc(h.CreateScript)))
	mux.Handle("POST /api/admin/scripts/from-file", admin(http.HandlerFunc(h.CreateScriptFromFile)))
	mux.Handle("PUT /api/admin/scripts/{id}", admin(http.HandlerFunc(h.UpdateScript)))
	mux.Handle("DELETE /api/admin/scripts/{id}", admin(http.HandlerFunc(h.DeleteScript)))

	// User routes
	mux.Handle("POST /api/recording/save", user(http.HandlerFunc(h.SaveRecording)))
	mux.Handle("POST /api/analyze", user(http.HandlerFunc(h.AnalyzeRecording)))
	mux.Handle("GET /api/recording/list", user(http.HandlerFunc(h.ListRecordings)))
	mux.Handle("GET /api/recording/progress", user(http.HandlerFunc(h.RecordingProgress)))
	mux.Handle("GET /api/recordings/{id}/audio", user(http.HandlerFunc(h.RecordingAudio)))
	mux.Handle("DELETE /api/recordings/{id}", user(http.HandlerFunc(h.DeleteRecording)))
	mux.Handle("GET /api/user/settings", user(http.HandlerFunc(h.GetSettings)))
	mux.Handle("PUT /api/user/settings", user(http.HandlerFunc(h.UpdateSettings)))

	var observer HTTPObserver
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
		observer = cfg.Metrics
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger, observer),
		CORSMiddleware(cfg.AllowedOrigins),
		RateLimitMiddleware(cfg.RateLimitPerMinute, logger),
	)

	return chain(mux)
}
