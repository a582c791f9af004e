package server

import (
	"context"
	"net/http"
	"strings"

	"medpassport/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

type userKey struct{}

// withUser stores the authenticated email on the request context.
func withUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey{}, email)
}

// userFrom returns the email the session middleware stored.
func userFrom(ctx context.Context) string {
	email, _ := ctx.Value(userKey{}).(string)
	return email
}

// Handler returns the full API handler wrapped in otelhttp.
func (s *Server) Handler() http.Handler {
	om := s.deps.Observability
	return om.HTTPMiddleware()(s.setupRoutes(om))
}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	rateLimit := s.createRateLimitMiddleware(om)
	requestLimit := s.requestSizeLimitMiddleware(s.MaxRequestSize)
	uploadLimit := s.requestSizeLimitMiddleware(s.MaxUploadSize)

	public := func(h http.HandlerFunc) http.HandlerFunc {
		return rateLimit(requestLimit(h))
	}
	session := func(h http.HandlerFunc) http.HandlerFunc {
		return rateLimit(s.authMiddleware(requestLimit(h)))
	}
	upload := func(h http.HandlerFunc) http.HandlerFunc {
		return rateLimit(s.authMiddleware(uploadLimit(h)))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	mux.HandleFunc("POST /v1/auth/register", public(s.registerHandler(om)))
	mux.HandleFunc("POST /v1/auth/login", public(s.loginHandler(om)))
	mux.HandleFunc("POST /v1/auth/logout", session(s.logoutHandler))

	mux.HandleFunc("GET /v1/equivalency", public(s.equivalencyHandler))
	mux.HandleFunc("GET /v1/equivalency/compare", public(s.compareHandler))

	mux.HandleFunc("GET /v1/profile", session(s.getProfileHandler))
	mux.HandleFunc("PUT /v1/profile", session(s.putProfileHandler(om)))

	mux.HandleFunc("GET /v1/rotations", session(s.listRotationsHandler))
	mux.HandleFunc("POST /v1/rotations", session(s.addRotationHandler(om)))
	mux.HandleFunc("GET /v1/procedures", session(s.listProceduresHandler))
	mux.HandleFunc("POST /v1/procedures", session(s.addProcedureHandler(om)))
	mux.HandleFunc("GET /v1/projects", session(s.listProjectsHandler))
	mux.HandleFunc("POST /v1/projects", session(s.addProjectHandler(om)))

	mux.HandleFunc("POST /v1/cv/parse", upload(s.parseCVHandler(om)))
	mux.HandleFunc("POST /v1/cv/import", session(s.importHandler(om)))

	mux.HandleFunc("GET /v1/vault", session(s.listVaultHandler))
	mux.HandleFunc("POST /v1/vault", upload(s.uploadVaultHandler(om)))
	mux.HandleFunc("GET /v1/vault/{name}/url", session(s.signURLHandler))
	mux.HandleFunc("GET /v1/vault/object", public(s.objectHandler))

	mux.HandleFunc("GET /v1/export", session(s.exportHandler(om)))

	return mux
}

// authMiddleware resolves the bearer session token to a user email.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.Logger.Info("Authentication failed: missing session token",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr)
			writeErrorResponse(w, "Missing session", "Authorization: Bearer <token> header required", http.StatusUnauthorized)
			return
		}

		email, err := s.deps.Auth.Authenticate(r.Context(), token)
		if err != nil {
			s.Logger.Info("Authentication failed: invalid session",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr,
				"error", err.Error())
			writeErrorResponse(w, "Invalid session", "Sign in again", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(withUser(r.Context(), email)))
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware(limit int64) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next(w, r)
		}
	}
}

// createRateLimitMiddleware records rejected requests as rate_limit_hit
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	limit := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		limited := limit(next)
		return func(w http.ResponseWriter, r *http.Request) {
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			limited(wrapper, r)

			if wrapper.statusCode == http.StatusTooManyRequests {
				om.GetMetrics().RecordBusinessMetric(r.Context(), observability.MetricRateLimitHit, true, om,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		}
	}
}

// bearerToken returns the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
