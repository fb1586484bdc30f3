// Package api implements the Social Weight HTTP API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/socialweight/socialweight/internal/engine"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// Scorer computes or serves a user's score.
type Scorer interface {
	Score(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
	// Production hides internal error detail from responses.
	Production bool
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

// Handler is the top-level API handler. It is not modified after
// construction.
type Handler struct {
	scorer Scorer
	config scoring.Provider
	health Pinger
	opts   Options
	log    zerolog.Logger
}

// NewHandler creates a new API handler. health may be nil.
func NewHandler(scorer Scorer, config scoring.Provider, health Pinger, opts Options, log zerolog.Logger) *Handler {
	return &Handler{
		scorer: scorer,
		config: config,
		health: health,
		opts:   opts,
		log:    log.With().Str("component", "api").Logger(),
	}
}

// Router builds the chi router with middleware and all routes.
func (h *Handler) Router() chi.Router {
	opts := h.opts
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(CORS(opts.CORSOrigins))

	r.Get("/healthz", h.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Get("/sw/tiers", h.handleTiers)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(opts.JWTSecret))
		r.Get("/sw/calculate", h.handleCalculate)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleTiers(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.Config(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": cfg.Tiers})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

type errorBody struct {
	Error string   `json:"error"`
	Code  string   `json:"code"`
	Stack []string `json:"stack,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}
