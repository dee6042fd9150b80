// Package http implements the REST API of the gradebook service: student
// management, score upserts and the aggregate reads, plus health and metrics
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gradebook-hub/gradebook/internal/application/command"
	"github.com/gradebook-hub/gradebook/internal/application/query"
	"github.com/gradebook-hub/gradebook/internal/interface/http/handlers"
	"github.com/gradebook-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8000).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the context of every request. Zero disables it.
	RequestTimeout time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int64

	// AllowedOrigins - allowed origins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// RateLimitRPS - requests per second per client IP (0 = disabled).
	RateLimitRPS   float64
	RateLimitBurst int
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 10 * time.Second,
		MaxHeaderBytes: 1 << 20,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	CreateStudent *command.CreateStudentHandler
	DeleteStudent *command.DeleteStudentHandler
	UpsertScore   *command.UpsertScoreHandler

	// Query Handlers (CQRS Read Side)
	GetStudent        *query.GetStudentHandler
	ListStudents      *query.ListStudentsHandler
	SearchStudents    *query.SearchStudentsHandler
	StudentAverage    *query.GetStudentAverageHandler
	TopScorer         *query.GetTopScorerHandler
	DepartmentAverage *query.GetDepartmentAverageHandler

	Logger        *slog.Logger
	HealthChecker handlers.HealthChecker

	// Registry receives the HTTP collectors and is exposed on /metrics.
	// Nil disables both.
	Registry *prometheus.Registry

	ServiceName string
	Version     string
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	logger     *slog.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.ServiceName == "" {
		deps.ServiceName = "Student Performance Tracker API"
	}
	if deps.Version == "" {
		deps.Version = "v1"
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	s.setupRoutes()
	s.handler = s.buildMiddlewareChain(s.router)

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes. Collection routes answer with and
// without the trailing slash.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// Students
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /students/{$}", s.handleCreateStudent)
	s.router.HandleFunc("POST /students", s.handleCreateStudent)
	s.router.HandleFunc("GET /students/{$}", s.handleListStudents)
	s.router.HandleFunc("GET /students", s.handleListStudents)
	s.router.HandleFunc("GET /students/search/{$}", s.handleSearchStudents)
	s.router.HandleFunc("GET /students/search", s.handleSearchStudents)
	s.router.HandleFunc("GET /students/{id}", s.handleGetStudent)
	s.router.HandleFunc("DELETE /students/{id}", s.handleDeleteStudent)

	// ─────────────────────────────────────────────────────────────────────────
	// Scores & Aggregates
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /students/{id}/scores/{$}", s.handleUpsertScore)
	s.router.HandleFunc("POST /students/{id}/scores", s.handleUpsertScore)
	s.router.HandleFunc("GET /students/{id}/average-score/{$}", s.handleStudentAverage)
	s.router.HandleFunc("GET /students/top-scorer/{subject}", s.handleTopScorer)
	s.router.HandleFunc("GET /students/departments/{department}/average-score/{$}", s.handleDepartmentAverage)
	s.router.HandleFunc("GET /students/departments/{department}/average-score", s.handleDepartmentAverage)

	// ─────────────────────────────────────────────────────────────────────────
	// Metrics (if enabled)
	// ─────────────────────────────────────────────────────────────────────────
	if s.deps.Registry != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{
			Registry: s.deps.Registry,
		}))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router with all middleware, outermost first.
func (s *Server) buildMiddlewareChain(router http.Handler) http.Handler {
	chain := []handlers.MiddlewareFunc{
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
	}

	if len(s.config.AllowedOrigins) > 0 {
		chain = append(chain, s.corsMiddleware)
	}
	if s.config.RateLimitRPS > 0 {
		limiter := handlers.NewIPRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
		chain = append(chain, limiter.Middleware)
	}

	chain = append(chain, handlers.SecurityHeadersMiddleware)
	if s.config.MaxBodyBytes > 0 {
		chain = append(chain, handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes))
	}
	chain = append(chain, handlers.TimeoutMiddleware(s.config.RequestTimeout))

	// Route labels come from the mux, so metrics sit directly on top of it.
	if s.deps.Registry != nil {
		chain = append(chain, handlers.NewHTTPMetrics(s.deps.Registry).Middleware)
	}

	return handlers.ChainHandler(router, chain...)
}

// requestIDMiddleware adds a unique request ID to each request and attaches a
// request-scoped logger to the context.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		ctx = logger.WithContext(ctx, s.logger.With(logger.RequestID(requestID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		if rw.statusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		logger.FromContext(r.Context()).LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Status(rw.statusCode),
			logger.Latency(time.Since(start)),
			slog.String("ip", handlers.ClientIP(r)),
			slog.String("user_agent", r.UserAgent()),
		)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context()).Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("path", r.URL.Path),
				)
				writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := ""
		for _, o := range s.config.AllowedOrigins {
			if o == "*" {
				allowOrigin = "*"
				break
			}
			if origin != "" && o == origin {
				allowOrigin = origin
				break
			}
		}

		if allowOrigin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			h.Set("Access-Control-Max-Age", "86400")
			if allowOrigin != "*" {
				h.Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address(), err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", slog.String("address", ln.Addr().String()))

	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Count     int       `json:"count,omitempty"`
	Skip      int       `json:"skip,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// writeJSON writes a successful JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSONWithMeta(w, r, status, data, nil)
}

// writeJSONWithMeta writes a JSON response with custom metadata.
func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	encode(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

// writeJSONError writes an error JSON response.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSONErrorWithDetails(w, r, status, code, message, "")
}

// writeJSONErrorWithDetails writes an error JSON response with details.
func writeJSONErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	encode(w, status, JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: getRequestID(r.Context()),
	})
}

func encode(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
