package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"leadscout/internal/infra/logging"
	"leadscout/internal/runner"
	"leadscout/internal/stream"
	"leadscout/internal/usecase"
)

// SubmitLimiter is the arrival-rate gate applied before admission. A nil
// limiter (dev mode, redis disabled) admits everything.
type SubmitLimiter interface {
	Allow(ctx context.Context, orgID string) (bool, error)
}

// Server exposes the job pipeline to the dashboard: submit, stream, status,
// cancel. Lead/person CRUD lives elsewhere; this surface is only the
// asynchronous part.
type Server struct {
	uc      usecase.ResearchUseCase
	reg     *runner.Registry
	streams *stream.Server
	limiter SubmitLimiter
	auth    *AuthManager
	apiKey  string
	log     *zerolog.Logger
}

func NewServer(
	uc usecase.ResearchUseCase,
	reg *runner.Registry,
	streams *stream.Server,
	limiter SubmitLimiter,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		uc:      uc,
		reg:     reg,
		streams: streams,
		limiter: limiter,
		auth:    auth,
		apiKey:  apiKey,
		log:     logger,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(traceContext)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.apiKeyMiddleware).Post("/session", s.handleMintSession)

		r.Route("/jobs", func(r chi.Router) {
			r.With(s.apiKeyMiddleware).Post("/", s.handleSubmit)
			r.With(s.apiKeyMiddleware).Get("/{id}", s.handleJobStatus)
			r.With(s.apiKeyMiddleware).Delete("/{id}", s.handleKill)
			// Session token or API key: EventSource cannot set headers.
			r.With(s.streamAuthMiddleware).Get("/{id}/stream", s.handleStream)
		})
	})
	return r
}

// traceContext copies chi's request id into the logging context so every
// layer below tags its lines with the same trace_id.
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logging.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware provides simple Bearer token authentication, as used by
// the dashboard's server-side calls.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// streamAuthMiddleware accepts either the API key or a minted session token.
func (s *Server) streamAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hdr := r.Header.Get("Authorization"); hdr != "" && s.apiKey != "" {
			parts := strings.Split(hdr, " ")
			if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" && parts[1] == s.apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}
		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
