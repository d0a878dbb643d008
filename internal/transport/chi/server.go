package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/metasearch/internal/domain"
	"github.com/kailas-cloud/metasearch/internal/domain/address"
	logpkg "github.com/kailas-cloud/metasearch/internal/logger"
	healthuc "github.com/kailas-cloud/metasearch/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/metasearch/internal/usecase/session"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the tab session API.
type Server struct {
	sessions      *sessionuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(sessions *sessionuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		sessions: sessions,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		upstreamStatusHandler,
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorCodeSessionNotFound),
		sentinelHandler(domain.ErrTooManySessions, http.StatusTooManyRequests, ErrorCodeTooManySessions),
		sentinelHandler(domain.ErrNetwork, http.StatusBadGateway, ErrorCodeUpstreamError),
		sentinelHandler(domain.ErrDecode, http.StatusBadGateway, ErrorCodeUpstreamError),
	}
	return s
}

// Mount registers all routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get(address.SearchPath, s.DeepLink)

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.OpenSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.CloseSession)
			r.Post("/query", s.SubmitQuery)
			r.Post("/navigate", s.Navigate)
			r.Post("/back", s.Back)
			r.Post("/forward", s.Forward)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// OpenSession handles POST /api/v1/sessions.
func (s *Server) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	tab, err := s.sessions.Open(r.Context(), req.URL)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+tab.ID())
	writeJSON(w, http.StatusCreated, tab.View())
}

// GetSession handles GET /api/v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	tab, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tab.View())
}

// CloseSession handles DELETE /api/v1/sessions/{id}.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitQuery handles POST /api/v1/sessions/{id}/query.
func (s *Server) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	tab, err := s.sessions.Submit(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tab.View())
}

// Navigate handles POST /api/v1/sessions/{id}/navigate.
func (s *Server) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "url is required")
		return
	}

	tab, err := s.sessions.Navigate(r.Context(), chi.URLParam(r, "id"), req.URL)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tab.View())
}

// Back handles POST /api/v1/sessions/{id}/back.
func (s *Server) Back(w http.ResponseWriter, r *http.Request) {
	tab, err := s.sessions.Back(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tab.View())
}

// Forward handles POST /api/v1/sessions/{id}/forward.
func (s *Server) Forward(w http.ResponseWriter, r *http.Request) {
	tab, err := s.sessions.Forward(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tab.View())
}

// DeepLink handles GET /search?q=... by loading the address in a short-lived
// tab that does not count against the session limit.
func (s *Server) DeepLink(w http.ResponseWriter, r *http.Request) {
	tab := s.sessions.Load(r.Context(), r.URL.RequestURI())
	defer tab.Close()

	if err := tab.Wait(r.Context()); err != nil {
		logpkg.FromContextOr(r.Context(), s.logger).Warn("deep link search unfinished", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, ErrorCodeUpstreamError, "search did not finish")
		return
	}
	if err := tab.LastError(); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tab.View())
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrSessionNotFound,
		domain.ErrTooManySessions,
		domain.ErrNetwork,
		domain.ErrHTTP,
		domain.ErrDecode,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// upstreamStatusHandler handles ErrHTTP and reports the proxy status.
func upstreamStatusHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrHTTP) {
		return false
	}
	var he *domain.HTTPError
	if errors.As(err, &he) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"code":            ErrorCodeUpstreamError,
			"message":         msg,
			"upstream_status": he.Status,
		})
		return true
	}
	writeError(w, http.StatusBadGateway, ErrorCodeUpstreamError, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger).With(zap.String("path", r.URL.Path))
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
