package server

import (
	"net/http"

	"medpassport/internal/auth"
	"medpassport/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

func (s *Server) registerHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(observability.TracerAPI).Start(r.Context(), "api.auth.register")
		defer span.End()

		var req CredentialsRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		user, err := s.deps.Auth.Register(ctx, req.Email, req.Password)
		if err != nil {
			span.RecordError(err)
			s.writeAppError(w, err, "register")
			return
		}

		s.Logger.Info("User registered", "email", user.Email)
		writeJSON(w, http.StatusCreated, user)
	}
}

// loginHandler answers every failure with the same generic message.
func (s *Server) loginHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(observability.TracerAPI).Start(r.Context(), "api.auth.login")
		defer span.End()
		metrics := om.GetMetrics()

		var req CredentialsRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		session, err := s.deps.Auth.Login(ctx, req.Email, req.Password)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "auth"))
			metrics.RecordBusinessMetric(ctx, observability.MetricLogin, false, om)
			writeErrorResponse(w, auth.LoginFailedMessage, "", http.StatusUnauthorized)
			return
		}

		metrics.RecordBusinessMetric(ctx, observability.MetricLogin, true, om)
		span.SetAttributes(attribute.Bool("success", true))
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.Logout(r.Context(), bearerToken(r)); err != nil {
		s.writeAppError(w, err, "logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
