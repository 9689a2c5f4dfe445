package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/prompt-general/healthscore/internal/config"
	"github.com/prompt-general/healthscore/internal/customersuccess"
	"github.com/prompt-general/healthscore/internal/health"
	"github.com/prompt-general/healthscore/internal/metrics"
	"github.com/prompt-general/healthscore/internal/window"
)

// Gateway represents the API gateway
type Gateway struct {
	server  *http.Server
	router  *mux.Router
	handler http.Handler
	views   Views
	health  *health.HealthChecker
	metrics *metrics.Metrics
	config  config.APIConfig
	logger  *slog.Logger
}

// Views serves the cached views as encoded JSON.
type Views interface {
	HealthScoresJSON(ctx context.Context, w window.Window) ([]byte, error)
	DashboardJSON(ctx context.Context, w window.Window) ([]byte, error)
	ClearCache(ctx context.Context, scope string) (customersuccess.ClearResult, error)
}

// NewGateway creates a new API gateway
func NewGateway(cfg config.APIConfig, views Views, hc *health.HealthChecker, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if hc == nil {
		hc = health.NewHealthChecker(0)
	}

	g := &Gateway{
		router:  mux.NewRouter(),
		views:   views,
		health:  hc,
		metrics: m,
		config:  cfg,
		logger:  logger,
	}

	g.setupRoutes()
	g.setupMiddleware()

	g.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      g.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return g
}

// setupRoutes configures all API routes
func (g *Gateway) setupRoutes() {
	api := g.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health-scores", g.handleHealthScores).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", g.handleDashboard).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/cache/clear", g.handleClearCache).Methods(http.MethodPost)

	// Health and metrics stay reachable without credentials.
	g.router.Handle("/api/v1/health", g.health.HTTPHandler()).Methods(http.MethodGet)
	g.router.Handle("/health", g.health.HTTPHandler()).Methods(http.MethodGet)
	if g.metrics != nil {
		g.router.Handle("/metrics", g.metrics.Handler()).Methods(http.MethodGet)
	}

	if len(g.config.BasicAuthUsers) > 0 {
		api.Use(g.basicAuthMiddleware)
	}
}

// setupMiddleware configures HTTP middleware
func (g *Gateway) setupMiddleware() {
	g.router.Use(g.requestIDMiddleware)
	g.router.Use(g.loggingMiddleware)

	g.handler = g.router
	if g.config.EnableCORS {
		c := cors.New(cors.Options{
			AllowedOrigins:   g.config.AllowedOrigins,
			AllowedMethods:   g.config.AllowedMethods,
			AllowedHeaders:   g.config.AllowedHeaders,
			AllowCredentials: len(g.config.BasicAuthUsers) > 0,
		})
		g.handler = c.Handler(g.router)
	}
}

// Handler returns the root handler including CORS.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Start starts the API gateway
func (g *Gateway) Start() error {
	g.logger.Info("starting API gateway", slog.String("addr", g.server.Addr))
	return g.server.ListenAndServe()
}

// Stop stops the API gateway
func (g *Gateway) Stop(ctx context.Context) error {
	g.logger.Info("stopping API gateway")
	return g.server.Shutdown(ctx)
}

// Response types

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Helper functions

func (g *Gateway) writeJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		g.logger.Error("failed to encode response", slog.String("err", err.Error()))
	}
}

func (g *Gateway) writeErrorResponse(w http.ResponseWriter, status int, code, message, details string) {
	g.writeJSONResponse(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func (g *Gateway) writeSuccessResponse(w http.ResponseWriter, data interface{}) {
	g.writeJSONResponse(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// Middleware implementations

type ctxKey int

const requestIDKey ctxKey = iota

const requestIDHeader = "X-Request-ID"

// RequestID returns the id assigned to the request by the gateway.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (g *Gateway) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (g *Gateway) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		g.metrics.HTTPRequest(route, r.Method, wrapped.statusCode)
		g.logger.Info("http",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.statusCode),
			slog.String("rid", RequestID(r.Context())),
			slog.Duration("latency", time.Since(start)))
	})
}

func (g *Gateway) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !g.validCredentials(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="healthscore"`)
			g.writeErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) validCredentials(user, pass string) bool {
	want, known := g.config.BasicAuthUsers[user]
	if !known {
		// Same work for unknown users.
		want = pass + "x"
	}
	match := subtle.ConstantTimeCompare([]byte(pass), []byte(want)) == 1
	return known && match
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
