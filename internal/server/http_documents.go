package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"medpassport/internal/errors"
	"medpassport/internal/extract"
	"medpassport/internal/observability"
	"medpassport/internal/report"
	"medpassport/internal/segment"
	"medpassport/internal/storage"
	"medpassport/internal/store"
	"medpassport/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 8 << 20

// formFile returns the "file" part of a multipart request.
func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return nil, nil, err
		}
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Expected a multipart form with a file field", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "The file field is required", err)
	}
	return file, header, nil
}

// parseCVHandler extracts an uploaded CV and returns candidates for the form.
// Nothing is saved until the user imports.
func (s *Server) parseCVHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(observability.TracerAPI).Start(r.Context(), "api.cv.parse")
		defer span.End()
		metrics := om.GetMetrics()

		file, header, err := formFile(r)
		if err != nil {
			span.RecordError(err)
			s.writeAppError(w, err, "parse cv")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			span.RecordError(err)
			s.writeAppError(w, errors.NewIOError(errors.ErrCodeFileNotReadable, "Could not read upload", err), "parse cv")
			return
		}

		doc, err := s.deps.Extractor.Extract(ctx, header.Filename, data)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "extraction"))
			metrics.RecordBusinessMetric(ctx, observability.MetricCVParsed, false, om)
			s.writeAppError(w, err, "parse cv")
			return
		}
		if err := extract.RequireText(doc); err != nil {
			span.SetAttributes(attribute.String("error.type", "empty_document"))
			metrics.RecordBusinessMetric(ctx, observability.MetricCVParsed, false, om)
			s.writeAppError(w, err, "parse cv")
			return
		}

		result, err := s.deps.Parser.Parse(ctx, doc.Text)
		if err != nil {
			span.RecordError(err)
			metrics.RecordBusinessMetric(ctx, observability.MetricCVParsed, false, om,
				attribute.String("mode", s.deps.Parser.Mode()))
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				writeErrorResponse(w, "Parsing interrupted", err.Error(), http.StatusServiceUnavailable)
				return
			}
			s.writeAppError(w, err, "parse cv")
			return
		}

		result.Filename = doc.Filename
		result = segment.WithRawText(segment.Preview(result, s.PreviewLimit), doc.Text)

		metrics.RecordBusinessMetric(ctx, observability.MetricCVParsed, true, om,
			attribute.String("mode", result.Mode))
		span.SetAttributes(
			attribute.String("parser.mode", result.Mode),
			attribute.Int("document.characters", doc.Characters),
			attribute.Int("result.rotations", result.TotalRotations),
			attribute.Int("result.dropped_chunks", result.Dropped),
		)
		writeJSON(w, http.StatusOK, result)
	}
}

// importHandler saves confirmed candidates as rotations. Candidates without
// a hospital are skipped.
func (s *Server) importHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(observability.TracerAPI).Start(r.Context(), "api.cv.import")
		defer span.End()

		var req ImportRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Candidates) == 0 {
			writeErrorResponse(w, "No candidates", "candidates must contain at least one rotation", http.StatusBadRequest)
			return
		}

		email := userFrom(ctx)
		imported := make([]types.Rotation, 0, len(req.Candidates))
		skipped := 0
		for _, c := range req.Candidates {
			rotation := segment.ImportedRotation(email, c)
			if err := store.ValidateRotation(&rotation); err != nil {
				skipped++
				continue
			}
			created, err := s.deps.Store.AddRotation(ctx, rotation)
			if err != nil {
				span.RecordError(err)
				s.writeAppError(w, err, "import rotations")
				return
			}
			imported = append(imported, created)
		}

		om.GetMetrics().RecordBusinessMetric(ctx, observability.MetricRowCreated, true, om,
			attribute.String("table", "rotations"),
			attribute.String("source", "cv_import"))
		span.SetAttributes(attribute.Int("imported", len(imported)), attribute.Int("skipped", skipped))

		writeJSON(w, http.StatusCreated, map[string]any{
			"imported": imported,
			"skipped":  skipped,
		})
	}
}

func (s *Server) listVaultHandler(w http.ResponseWriter, r *http.Request) {
	objects, err := s.deps.Bucket.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeAppError(w, err, "list vault")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": objects})
}

func (s *Server) uploadVaultHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(observability.TracerAPI).Start(r.Context(), "api.vault.upload")
		defer span.End()
		metrics := om.GetMetrics()

		file, header, err := formFile(r)
		if err != nil {
			span.RecordError(err)
			s.writeAppError(w, err, "vault upload")
			return
		}
		defer file.Close()

		obj, err := s.deps.Bucket.Put(ctx, userFrom(ctx), header.Filename, file)
		if err != nil {
			span.RecordError(err)
			metrics.RecordBusinessMetric(ctx, observability.MetricVaultUpload, false, om)
			s.writeAppError(w, err, "vault upload")
			return
		}

		metrics.RecordBusinessMetric(ctx, observability.MetricVaultUpload, true, om,
			attribute.String("content_type", obj.ContentType))
		writeJSON(w, http.StatusCreated, obj)
	}
}

// signURLHandler issues a short-lived link to one of the caller's files.
func (s *Server) signURLHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := storage.Key(userFrom(ctx), r.PathValue("name"))
	if err != nil {
		s.writeAppError(w, err, "sign url")
		return
	}

	rc, _, err := s.deps.Bucket.Open(ctx, key)
	if err != nil {
		s.writeAppError(w, err, "sign url")
		return
	}
	rc.Close()

	signed, err := s.deps.Signer.SignURL(key)
	if err != nil {
		s.writeAppError(w, err, "sign url")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":        signed.URL,
		"key":        signed.Key,
		"expires_at": signed.ExpiresAt,
		"expires_in": int(s.deps.Signer.TTL().Seconds()),
	})
}

// objectHandler streams the object a signed token names.
func (s *Server) objectHandler(w http.ResponseWriter, r *http.Request) {
	key, err := s.deps.Signer.Resolve(r.URL.Query().Get("token"))
	if err != nil {
		s.writeAppError(w, err, "open object")
		return
	}

	rc, obj, err := s.deps.Bucket.Open(r.Context(), key)
	if err != nil {
		s.writeAppError(w, err, "open object")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", obj.Name))
	w.Header().Set("Cache-Control", "private, no-store")

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, obj.Name, obj.UpdatedAt, rs)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		s.Logger.LogError(err, "Failed to stream object", "key", key)
	}
}

func (s *Server) exportHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(observability.TracerAPI).Start(r.Context(), "api.export")
		defer span.End()
		metrics := om.GetMetrics()

		format, err := report.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			s.writeAppError(w, err, "export")
			return
		}
		span.SetAttributes(attribute.String("export.format", string(format)))

		rep, err := s.deps.Reports.Build(ctx, userFrom(ctx), format)
		if err != nil {
			span.RecordError(err)
			metrics.RecordBusinessMetric(ctx, observability.MetricReportExported, false, om,
				attribute.String("format", string(format)))
			s.writeAppError(w, err, "export")
			return
		}

		metrics.RecordBusinessMetric(ctx, observability.MetricReportExported, true, om,
			attribute.String("format", string(format)))

		w.Header().Set("Content-Type", rep.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(rep.Data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(rep.Data); err != nil {
			s.Logger.LogError(err, "Failed to write export")
		}
	}
}
