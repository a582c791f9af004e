package server

import (
	"context"
	"net/http"
	"strings"

	"medpassport/internal/observability"
	"medpassport/internal/store"
	"medpassport/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

func (s *Server) equivalencyHandler(w http.ResponseWriter, r *http.Request) {
	table := s.deps.Table
	writeJSON(w, http.StatusOK, map[string]any{
		"tiers":     table.Tiers(),
		"countries": table.Countries(),
		"table":     table.Entries(),
	})
}

// compareHandler accepts countries as a comma-separated list, repeated, or both.
func (s *Server) compareHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var countries []string
	for _, value := range query["countries"] {
		for c := range strings.SplitSeq(value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				countries = append(countries, c)
			}
		}
	}

	writeJSON(w, http.StatusOK, s.deps.Table.Compare(query.Get("tier"), countries))
}

func (s *Server) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Store.GetProfile(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeAppError(w, err, "get profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) putProfileHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(observability.TracerAPI).Start(r.Context(), "api.profile.upsert")
		defer span.End()

		var req ProfileRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		profile := types.Profile{
			UserEmail:         userFrom(ctx),
			GlobalTier:        req.GlobalTier,
			SelectedCountries: req.SelectedCountries,
			Summary:           req.Summary,
		}
		if err := store.ValidateProfile(&profile, s.deps.Table); err != nil {
			span.RecordError(err)
			s.writeAppError(w, err, "save profile")
			return
		}

		saved, err := s.deps.Store.UpsertProfile(ctx, profile)
		if err != nil {
			span.RecordError(err)
			s.writeAppError(w, err, "save profile")
			return
		}

		om.GetMetrics().RecordBusinessMetric(ctx, observability.MetricRowCreated, true, om,
			attribute.String("table", "profiles"))
		writeJSON(w, http.StatusOK, saved)
	}
}

func (s *Server) listRotationsHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Store.ListRotations(r.Context(), userFrom(r.Context()))
	s.writeList(w, "rotations", rows, err)
}

func (s *Server) listProceduresHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Store.ListProcedures(r.Context(), userFrom(r.Context()))
	s.writeList(w, "procedures", rows, err)
}

func (s *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Store.ListProjects(r.Context(), userFrom(r.Context()))
	s.writeList(w, "projects", rows, err)
}

func (s *Server) writeList(w http.ResponseWriter, table string, rows any, err error) {
	if err != nil {
		s.writeAppError(w, err, "list "+table)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{table: rows})
}

func (s *Server) addRotationHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return addRow(s, om, "rotations", store.ValidateRotation,
		func(row *types.Rotation, email string) { row.UserEmail = email },
		s.deps.Store.AddRotation)
}

func (s *Server) addProcedureHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return addRow(s, om, "procedures", store.ValidateProcedure,
		func(row *types.Procedure, email string) { row.UserEmail = email },
		s.deps.Store.AddProcedure)
}

func (s *Server) addProjectHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return addRow(s, om, "projects", store.ValidateProject,
		func(row *types.Project, email string) { row.UserEmail = email },
		s.deps.Store.AddProject)
}

// addRow decodes one logbook row, scopes it to the session user, validates
// and appends it.
func addRow[T any](s *Server, om *observability.ObservabilityManager, table string,
	validate func(*T) error, setOwner func(*T, string),
	insert func(context.Context, T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(observability.TracerAPI).Start(r.Context(), "api."+table+".add")
		defer span.End()
		metrics := om.GetMetrics()

		var row T
		if err := parseJSONRequest(r, &row); err != nil {
			span.RecordError(err)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
		setOwner(&row, userFrom(ctx))

		if err := validate(&row); err != nil {
			span.RecordError(err)
			s.writeAppError(w, err, "add "+table)
			return
		}

		created, err := insert(ctx, row)
		if err != nil {
			span.RecordError(err)
			metrics.RecordBusinessMetric(ctx, observability.MetricRowCreated, false, om, attribute.String("table", table))
			s.writeAppError(w, err, "add "+table)
			return
		}

		metrics.RecordBusinessMetric(ctx, observability.MetricRowCreated, true, om, attribute.String("table", table))
		writeJSON(w, http.StatusCreated, created)
	}
}
