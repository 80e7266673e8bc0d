package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/evco-audit/internal/audit"
	"github.com/xela07ax/evco-audit/internal/console/handler"
	"github.com/xela07ax/evco-audit/internal/domain"
	"github.com/xela07ax/evco-audit/internal/infra/auth"
	"github.com/xela07ax/evco-audit/internal/infra/trace"
	"go.uber.org/zap"
)

// SinkHealth is what /health reads from a breaker-guarded sink.
type SinkHealth interface {
	Name() string
	State() gobreaker.State
}

type ConsoleServer struct {
	router  *chi.Mux
	logger  *zap.Logger
	metrics *audit.Metrics

	// Verifies RS256 bearer tokens issued by the platform's auth service.
	authValidator auth.TokenValidator

	auditHandler *handler.AuditHandler // /api/audit/logs

	// Optional; nil when metrics are disabled or served on their own listener.
	metricsHandler http.Handler

	// Optional; nil for the log sink, which has no breaker.
	sinkHealth SinkHealth
}

func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	metrics *audit.Metrics,
	auditH *handler.AuditHandler,
	metricsHandler http.Handler,
	sinkHealth SinkHealth,
) *ConsoleServer {
	if metrics == nil {
		metrics = audit.NewMetrics(nil)
	}
	s := &ConsoleServer{
		router:         chi.NewRouter(),
		logger:         logger.Named("console-api"),
		metrics:        metrics,
		authValidator:  validator,
		auditHandler:   auditH,
		metricsHandler: metricsHandler,
		sinkHealth:     sinkHealth,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// Infrastructure middleware for every route.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(trace.Middleware)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// Public.
	r.Get("/health", s.health)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	// Audit ingestion: token first, then the role gate, then the handler.
	r.Route("/api/audit", func(r chi.Router) {
		r.Use(s.countResults)
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		r.With(auth.RequireRoles(s.logger, domain.AuditWriterRoles...)).
			Post("/logs", s.auditHandler.CreateLog)
	})
}

// health answers 200 while the process serves. An open sink breaker reports
// "degraded".
func (s *ConsoleServer) health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.sinkHealth != nil {
		state := s.sinkHealth.State()
		resp["sink"] = s.sinkHealth.Name()
		resp["breaker"] = state.String()
		if state == gobreaker.StateOpen {
			resp["status"] = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// ServeHTTP lets ConsoleServer be used as a plain http.Handler.
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *ConsoleServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			s.logger.Info("request",
				zap.String("trace_id", trace.FromContext(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", statusOf(ww)),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr))
		}()

		next.ServeHTTP(ww, r)
	})
}

// countResults records the caller-visible outcome of every audit request,
// including rejections produced by the auth middleware.
func (s *ConsoleServer) countResults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.metrics.RequestsTotal.WithLabelValues(resultLabel(statusOf(ww))).Inc()
	})
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

func resultLabel(status int) string {
	switch status {
	case http.StatusNoContent:
		return "accepted"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	default:
		return "other"
	}
}
