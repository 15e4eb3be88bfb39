// Package api exposes the credits engine over HTTP.
//
// Routes are mounted on a chi router returned by Server.Handler. Billing
// outcomes map onto status codes: a denied check or an underfunded debit is
// 402, a missing account or operation is 404, settling an operation that is
// not completed is 409.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/credits"
)

// Server is the credits HTTP API.
type Server struct {
	engine  *credits.Engine
	logger  *slog.Logger
	timeout time.Duration
	metrics http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a Server for engine.
func NewServer(engine *credits.Engine, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		logger:  engine.Logger(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", s.handleHealth)

	r.Route("/pricing", func(r chi.Router) {
		r.Get("/", s.handleListPricing)
		r.Get("/{kind}", s.handleGetCost)
		r.Put("/{kind}", s.handleSetPricing)
	})

	r.Route("/accounts/{userID}", func(r chi.Router) {
		r.Post("/", s.handleOpenAccount)
		r.Get("/balance", s.handleBalance)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/verify", s.handleVerify)
		r.Put("/test-account", s.handleSetTestAccount)
	})

	r.Post("/check", s.handleCheck)
	r.Post("/deduct", s.handleDeduct)
	r.Post("/grant", s.handleGrant)

	r.Route("/operations", func(r chi.Router) {
		r.Post("/", s.handleRegisterOperation)
		r.Get("/{operationID}", s.handleGetOperation)
		r.Post("/{operationID}/status", s.handleOperationStatus)
		r.Post("/{operationID}/settle", s.handleSettle)
	})

	r.Post("/reconcile", s.handleReconcile)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

// writeEngineError maps an engine error onto a status code.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "credits api request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, credits.ErrInvalidInput):
		return http.StatusBadRequest
	case credits.IsPaymentRequired(err):
		return http.StatusPaymentRequired
	case errors.Is(err, credits.ErrOperationNotOwned):
		return http.StatusForbidden
	case credits.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, credits.ErrInvalidState),
		errors.Is(err, credits.ErrAlreadyExists),
		errors.Is(err, credits.ErrAlreadyDebited):
		return http.StatusConflict
	case errors.Is(err, credits.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusPaymentRequired:
		return "insufficient_credits"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return credits.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}
