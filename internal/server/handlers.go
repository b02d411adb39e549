package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"applyforge/internal/errors"
	"applyforge/internal/pipeline"
	"applyforge/internal/store"
	"applyforge/internal/types"
)

const (
	runIDHeader     = "X-Run-ID"
	multipartMemory = 8 << 20
	tracerName      = "applyforge.api"

	storeHealthTimeout = 2 * time.Second
)

// generateHandler runs the generation pipeline for one job posting
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	runID := pipeline.NewRunID()
	w.Header().Set(runIDHeader, runID)

	ctx, span := s.om.Tracer(tracerName).Start(r.Context(), "api.generate",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	var req types.GenerateInput
	if err := parseJSONRequest(r, &req); err != nil {
		s.fail(w, span, err)
		return
	}

	span.SetAttributes(
		attribute.Int("request.job_length", len(req.JobDescription)),
		attribute.Int("request.company_length", len(req.CompanyDescription)),
		attribute.Bool("request.resume_supplied", req.Resume != nil),
	)

	result, err := s.service.GenerateMaterials(pipeline.WithRunID(ctx, runID), req.JobDescription, req.CompanyDescription, req.Resume)
	if err != nil {
		s.fail(w, span, err)
		return
	}

	span.SetAttributes(attribute.Float64("quality_score", result.QualityScore))
	writeJSON(w, http.StatusOK, result)
}

// parseResumeHandler extracts a résumé from a multipart "file" field or
// from the raw body
func (s *Server) parseResumeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.om.Tracer(tracerName).Start(r.Context(), "api.parse_resume")
	defer span.End()

	raw, mimeType, err := readDocument(r)
	if err != nil {
		s.fail(w, span, err)
		return
	}

	span.SetAttributes(
		attribute.Int("request.document_bytes", len(raw)),
		attribute.String("request.mime_type", mimeType),
	)

	resume, err := s.service.ParseResumeDocument(ctx, raw, mimeType)
	if err != nil {
		s.fail(w, span, err)
		return
	}

	writeJSON(w, http.StatusOK, resume)
}

// resumeHandler returns the saved résumé
func (s *Server) resumeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.om.Tracer(tracerName).Start(r.Context(), "api.resume")
	defer span.End()

	resume, err := s.service.SavedResume(ctx)
	if err != nil {
		s.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

// healthHandler reports model availability and breaker state
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	modelInfo := s.service.ModelInfo(r.Context())
	stats := s.service.Stats()

	healthy := modelInfo != nil && modelInfo.Available
	if breakerHealthy, ok := stats["healthy"].(bool); ok && !breakerHealthy {
		healthy = false
	}

	response := map[string]any{
		"status":  "healthy",
		"service": "applyforge",
		"version": s.Version,
		"model":   modelInfo,
	}
	if breaker, ok := stats["generate"]; ok {
		response["circuit_breaker"] = breaker
	}

	storeCtx, cancel := context.WithTimeout(r.Context(), storeHealthTimeout)
	defer cancel()
	if err := s.service.StoreHealth(storeCtx); err != nil {
		healthy = false
		response["store"] = map[string]any{"status": "unavailable", "error": err.Error()}
	} else {
		response["store"] = map[string]any{"status": "ok"}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "applyforge",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           s.authEnabled(),
			"api_keys":               s.apiKeyCount(),
		},
		"ai":       s.service.Stats(),
		"pipeline": map[string]any{
			"stages":          s.service.Stages(),
			"directive_chars": directiveSizes(s.service.Directives()),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.Stats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}
	response["rate_limit_config"] = map[string]any{
		"enabled":          s.RateLimit.Enabled,
		"requests_per_min": s.RateLimit.RequestsPerMin,
		"burst_capacity":   s.RateLimit.BurstCapacity,
		"by_ip":            s.RateLimit.ByIP,
		"by_api_key":       s.RateLimit.ByAPIKey,
	}

	if s.vaultWatcher != nil {
		response["vault_watcher"] = s.vaultWatcher.Status()
	}
	if s.directiveWatcher != nil {
		response["directive_watcher"] = s.directiveWatcher.Status()
	}

	writeJSON(w, http.StatusOK, response)
}

// directiveSizes reports how long each directive is without exposing it
func directiveSizes(directives map[string]string) map[string]int {
	sizes := make(map[string]int, len(directives))
	for stage, directive := range directives {
		sizes[stage] = len(directive)
	}
	return sizes
}

// fail logs err, marks the span and writes the mapped error response
func (s *Server) fail(w http.ResponseWriter, span trace.Span, err error) {
	status, body := errorResponse(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, body.Error)
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status >= http.StatusInternalServerError {
		s.logger.LogError(err, "Request failed", "status", status)
	} else {
		s.logger.Debug("Request rejected", "status", status, "error", err.Error())
	}
	writeErrorResponse(w, body, status)
}

// errorResponse maps a service error onto a status code and body
func errorResponse(err error) (int, ErrorResponse) {
	var (
		pipelineErr   *errors.PipelineFailure
		extractionErr *errors.ExtractionFailure
		tooLarge      *http.MaxBytesError
		appErr        *errors.AppError
	)

	switch {
	case stderrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "Request too large",
			Message: fmt.Sprintf("request body exceeds the limit of %d bytes", tooLarge.Limit),
		}
	case stderrors.Is(err, store.ErrResumeNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Resume not found", Message: err.Error()}
	case stderrors.As(err, &pipelineErr):
		return timeoutOr(err, http.StatusBadGateway), ErrorResponse{
			Error:   "Generation failed",
			Message: err.Error(),
			Stage:   pipelineErr.Stage,
		}
	case stderrors.As(err, &extractionErr):
		status := http.StatusUnprocessableEntity
		if extractionErr.Phase == errors.PhaseParse {
			status = timeoutOr(err, http.StatusBadGateway)
		}
		return status, ErrorResponse{
			Error:   "Resume extraction failed",
			Message: err.Error(),
			Phase:   string(extractionErr.Phase),
		}
	case errors.IsValidation(err):
		message := err.Error()
		if stderrors.As(err, &appErr) {
			message = appErr.Message
		}
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: message}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Message: err.Error()}
	}
}

func timeoutOr(err error, status int) int {
	if errors.IsTimeout(err) {
		return http.StatusGatewayTimeout
	}
	return status
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "content-type must be application/json", err)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return err
		}
		return errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read request body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to parse JSON: "+err.Error(), err)
	}

	return nil
}

// readDocument returns the uploaded document and its declared MIME type.
// Generic binary types are cleared so extraction sniffs the content.
func readDocument(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		raw      []byte
		declared string
		err      error
	)

	if mediaType == "multipart/form-data" {
		raw, declared, err = readMultipartFile(r)
	} else {
		declared = r.Header.Get("Content-Type")
		raw, err = io.ReadAll(r.Body)
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return nil, "", err
		}
		if errors.IsValidation(err) {
			return nil, "", err
		}
		return nil, "", errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read document", err)
	}

	if len(raw) == 0 {
		return nil, "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "document is empty", nil)
	}

	return raw, documentMIMEType(declared), nil
}

func readMultipartFile(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return nil, "", err
		}
		return nil, "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "invalid multipart body", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.NewValidationError(errors.ErrCodeInvalidRequest, `multipart field "file" is required`, err)
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return raw, header.Header.Get("Content-Type"), nil
}

func documentMIMEType(declared string) string {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return ""
	}
	switch strings.ToLower(mediaType) {
	case "application/octet-stream", "multipart/form-data":
		return ""
	default:
		return declared
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, body ErrorResponse, statusCode int) {
	writeJSON(w, statusCode, body)
}
