/*
handlers.go - HTTP API handlers for the agreement engine

PURPOSE:
  Exposes the SLA document engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Templates:
    GET    /api/templates                List all templates
    POST   /api/templates                Create template from JSON
    GET    /api/templates/{id}           Get template details
    GET    /api/templates/{id}/stats     Per-template usage statistics
    POST   /api/templates/{id}/preview   Render without persisting

  Documents:
    POST   /api/documents                Generate a numbered document
    GET    /api/documents                List documents by kind
    GET    /api/documents/{id}           Get document details

  Classification:
    POST   /api/classify                 Classify quote content

  Events:
    POST   /api/events                   Record a usage event

  Analytics:
    GET    /api/analytics                Cross-template analytics

  Seed:
    POST   /api/seed                     Load the demo dataset

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (engine.Store, sqlite or in-memory)
  - Factory: JSON to Template conversion
  - Allocator/Analytics: domain services with injectable clocks
  - Validate: request DTO validation
  - Log: structured request-scope logging

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator on request DTOs)
  3. Call domain logic (substitute, classify, allocate, aggregate)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Domain errors carry a taxonomy kind; kindStatus maps kinds to HTTP
  status codes and writeError emits only the kind's fixed user-facing
  message. Technical detail goes to the log, never the client.
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Number conflict after retry, duplicate event
  - 422: Template configuration defects
  - 429: Rate limited
  - 500: Generation/configuration failures
  - 503: Retryable storage or network failures

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo dataset loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/covara/agreement-engine/engine"
	"github.com/covara/agreement-engine/factory"
)

// defaultWindowDays is used when a stats/analytics request omits
// window_days.
const defaultWindowDays = 30

// NumberFormats holds the document number format per document kind.
// Each format must contain a {seq} token; see engine.ValidateFormat.
type NumberFormats struct {
	Quote     string
	Agreement string
}

// DefaultNumberFormats is the out-of-the-box numbering scheme.
func DefaultNumberFormats() NumberFormats {
	return NumberFormats{
		Quote:     "Q-{YYYY}-{seq:04d}",
		Agreement: "SLA-{YYYY}-{seq:04d}",
	}
}

func (f NumberFormats) forKind(kind engine.DocumentKind) string {
	if kind == engine.DocumentQuote {
		return f.Quote
	}
	return f.Agreement
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     engine.Store
	Factory   *factory.TemplateFactory
	Allocator *engine.Allocator
	Analytics *engine.Aggregator
	Formats   NumberFormats

	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new handler with the given store. The number
// formats are checked once here so a bad format fails at startup, not
// on the first generation.
func NewHandler(store engine.Store, formats NumberFormats, log zerolog.Logger) (*Handler, error) {
	if err := engine.ValidateFormat(formats.Quote); err != nil {
		return nil, err
	}
	if err := engine.ValidateFormat(formats.Agreement); err != nil {
		return nil, err
	}
	return &Handler{
		Store:     store,
		Factory:   factory.NewTemplateFactory(),
		Allocator: &engine.Allocator{},
		Analytics: &engine.Aggregator{},
		Formats:   formats,
		validate:  validator.New(),
		log:       log,
	}, nil
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ListTemplates returns all templates in factory JSON form.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]TemplateDTO, len(templates))
	for i, t := range templates {
		dtos[i] = TemplateDTO{TemplateJSON: h.Factory.ToJSON(t)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTemplate parses, validates, and stores a template definition.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}

	tpl, err := h.Factory.FromJSON(req.Template)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.PutTemplate(r.Context(), tpl); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Info().Str("template_id", string(tpl.ID)).Msg("template created")
	writeJSON(w, http.StatusCreated, TemplateDTO{TemplateJSON: h.Factory.ToJSON(tpl)})
}

// GetTemplate returns a single template.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := engine.TemplateID(chi.URLParam(r, "id"))

	tpl, err := h.Store.GetTemplate(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TemplateDTO{TemplateJSON: h.Factory.ToJSON(tpl)})
}

// TemplateStats returns usage statistics for one template over the
// requested window (default 30 days).
func (h *Handler) TemplateStats(w http.ResponseWriter, r *http.Request) {
	id := engine.TemplateID(chi.URLParam(r, "id"))
	windowDays := queryWindowDays(r)

	// 404 for unknown templates rather than empty stats.
	if _, err := h.Store.GetTemplate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	events, err := h.Store.EventsByTemplate(r.Context(), id, since)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stats := h.Analytics.TemplateStats(id, events, windowDays)
	writeJSON(w, http.StatusOK, statsToDTO(stats, windowDays))
}

// PreviewTemplate renders a template with the provided values without
// creating a document. The only side effect is a preview usage event.
func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	id := engine.TemplateID(chi.URLParam(r, "id"))

	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	tpl, err := h.Store.GetTemplate(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result := engine.Substitute(tpl, req.Values, nil)

	event := engine.UsageEvent{
		ID:         engine.EventID(uuid.NewString()),
		TemplateID: id,
		EventType:  engine.EventPreview,
		UserID:     engine.UserID(req.UserID),
		Metadata:   engine.Metadata{Source: "api", DocumentFormat: previewFormat(req.Format)},
		OccurredAt: time.Now().UTC(),
	}
	if err := h.Store.AppendEvent(r.Context(), event); err != nil && !errors.Is(err, engine.ErrDuplicateEvent) {
		// Preview still succeeded; log and move on.
		h.log.Warn().Err(err).Str("template_id", string(id)).Msg("preview event not recorded")
	}

	writeJSON(w, http.StatusOK, PreviewResponse{
		Content:       result.FinalContent,
		Substitutions: substitutionsToDTO(result.Substitutions),
		Missing:       result.MissingVariables,
		Warnings:      result.ValidationErrors,
	})
}

// previewFormat maps the preview request format to the metadata
// document format. "text" renders without a stored format.
func previewFormat(format string) string {
	switch format {
	case "html", "pdf":
		return format
	}
	return ""
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// GenerateDocument runs the full generation pipeline: substitute,
// classify, allocate a number, persist, and record the usage event.
func (h *Handler) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	kind := engine.DocumentKind(req.Kind)

	tpl, err := h.Store.GetTemplate(ctx, engine.TemplateID(req.TemplateID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result := engine.Substitute(tpl, req.Values, req.ContentOverride)
	if len(result.MissingVariables) > 0 {
		h.writeError(w, r, engine.NewError(engine.KindValidation,
			"missing required variables: %v", result.MissingVariables))
		return
	}

	// Classification is advisory. It never blocks generation.
	var classification *ClassificationDTO
	var check *ClassificationCheckDTO
	packageType := tpl.PackageType
	if req.Description != "" || len(req.Items) > 0 {
		cls := engine.Classify([]string{req.Description}, req.Items,
			floatValue(req.TotalValue), intValue(req.ItemCount, len(req.Items)))
		chk := engine.ValidateClassification(cls.PackageType, []string{req.Description}, req.Items,
			floatValue(req.TotalValue), intValue(req.ItemCount, len(req.Items)))
		dto := classificationToDTO(cls)
		chkDTO := checkToDTO(chk)
		classification = &dto
		check = &chkDTO
		packageType = cls.PackageType
	}

	doc := &engine.Document{
		ID:          engine.DocumentID(uuid.NewString()),
		Kind:        kind,
		TemplateID:  tpl.ID,
		ClientID:    engine.ClientID(req.ClientID),
		PackageType: packageType,
		Content:     result.FinalContent,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.commitWithNumber(r, doc); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.Store.IncrementUsage(ctx, tpl.ID); err != nil {
		h.log.Warn().Err(err).Str("template_id", string(tpl.ID)).Msg("usage counter not bumped")
	}
	if kind == engine.DocumentAgreement {
		event := engine.UsageEvent{
			ID:          engine.EventID(uuid.NewString()),
			TemplateID:  tpl.ID,
			EventType:   engine.EventAgreementCreated,
			UserID:      engine.UserID(req.CreatedBy),
			ClientID:    doc.ClientID,
			AgreementID: engine.AgreementID(doc.ID),
			Metadata:    engine.Metadata{Source: "api"},
			OccurredAt:  doc.CreatedAt,
		}
		if err := h.Store.AppendEvent(ctx, event); err != nil && !errors.Is(err, engine.ErrDuplicateEvent) {
			h.log.Warn().Err(err).Str("document_id", string(doc.ID)).Msg("creation event not recorded")
		}
	}

	h.log.Info().
		Str("document_id", string(doc.ID)).
		Str("number", doc.Number).
		Str("kind", string(kind)).
		Msg("document generated")

	writeJSON(w, http.StatusCreated, GenerateResponse{
		Document:       documentToDTO(doc),
		Substitutions:  substitutionsToDTO(result.Substitutions),
		Warnings:       result.ValidationErrors,
		Classification: classification,
		Check:          check,
	})
}

// commitWithNumber runs the propose/commit protocol: propose a number
// from the current counter, try the insert, and on a uniqueness
// conflict advance the counter and retry exactly once. A second
// conflict surfaces to the caller.
func (h *Handler) commitWithNumber(r *http.Request, doc *engine.Document) error {
	ctx := r.Context()
	name := string(doc.Kind)
	format := h.Formats.forKind(doc.Kind)

	for attempt := 0; attempt < 2; attempt++ {
		counter, err := h.Store.Counter(ctx, name)
		if err != nil {
			return err
		}
		alloc := h.Allocator.Propose(format, counter, nil)
		doc.Number = alloc.ProposedNumber

		err = h.Store.InsertDocument(ctx, doc)
		if err == nil {
			return h.Store.SetCounter(ctx, name, alloc.CounterValueConsumed+1)
		}
		if !errors.Is(err, engine.ErrNumberConflict) {
			return err
		}
		// Someone else committed this number. Skip past it and retry.
		h.log.Warn().Str("number", doc.Number).Msg("document number conflict, retrying")
		if err := h.Store.SetCounter(ctx, name, alloc.CounterValueConsumed+1); err != nil {
			return err
		}
	}
	return engine.WrapError(engine.KindGeneration, engine.ErrNumberConflict,
		"number conflict persisted after retry")
}

// ListDocuments returns documents, optionally filtered by ?kind=.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	kind := engine.DocumentKind(r.URL.Query().Get("kind"))

	docs, err := h.Store.ListDocuments(r.Context(), kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]DocumentDTO, len(docs))
	for i, d := range docs {
		dtos[i] = documentToDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDocument returns a single document.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := engine.DocumentID(chi.URLParam(r, "id"))

	doc, err := h.Store.GetDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToDTO(doc))
}

// =============================================================================
// CLASSIFICATION HANDLER
// =============================================================================

// ClassifyQuote classifies quote content and reports how solid the
// classification is.
func (h *Handler) ClassifyQuote(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	result := engine.Classify([]string{req.Description}, req.Items, req.TotalValue, req.ItemCount)
	check := engine.ValidateClassification(result.PackageType, []string{req.Description}, req.Items, req.TotalValue, req.ItemCount)

	dto := classificationToDTO(result)
	chk := checkToDTO(check)
	writeJSON(w, http.StatusOK, struct {
		Classification ClassificationDTO      `json:"classification"`
		Check          ClassificationCheckDTO `json:"check"`
	}{dto, chk})
}

// =============================================================================
// EVENT HANDLER
// =============================================================================

// RecordEvent appends one usage event. Duplicate event IDs return 409.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req RecordEventRequest
	if !h.decode(w, r, &req) {
		return
	}

	eventType := engine.EventType(req.EventType)
	var meta engine.Metadata
	if req.Metadata != nil {
		meta = *req.Metadata
	}
	if err := engine.ValidateMetadata(eventType, meta); err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.Store.GetTemplate(r.Context(), engine.TemplateID(req.TemplateID)); err != nil {
		h.writeError(w, r, err)
		return
	}

	event := engine.UsageEvent{
		ID:         engine.EventID(req.EventID),
		TemplateID: engine.TemplateID(req.TemplateID),
		EventType:  eventType,
		UserID:     engine.UserID(req.UserID),
		Metadata:   meta,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.Store.AppendEvent(r.Context(), event); err != nil {
		if errors.Is(err, engine.ErrDuplicateEvent) {
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Error: "This event was already recorded.",
				Kind:  string(engine.KindValidation),
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"event_id": req.EventID})
}

// =============================================================================
// ANALYTICS HANDLER
// =============================================================================

// GetAnalytics returns cross-template usage analytics for the
// requested window (default 30 days).
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	windowDays := queryWindowDays(r)

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	events, err := h.Store.EventsSince(ctx, since)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	templates, err := h.Store.ListTemplates(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	packageTypes := make(map[engine.TemplateID]engine.PackageType, len(templates))
	for _, t := range templates {
		packageTypes[t.ID] = t.PackageType
	}

	analytics := h.Analytics.Overview(events, packageTypes, windowDays)
	writeJSON(w, http.StatusOK, analyticsToDTO(analytics, windowDays))
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// decode parses and validates a JSON request body. Writes the error
// response itself and returns false when the request is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, engine.NewError(engine.KindValidation, "malformed JSON body"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			h.writeError(w, r, engine.NewError(engine.KindValidation,
				"field %s failed %s validation", first.Field(), first.Tag()))
			return false
		}
		h.writeError(w, r, engine.NewError(engine.KindValidation, "invalid request body"))
		return false
	}
	return true
}

func queryWindowDays(r *http.Request) int {
	raw := r.URL.Query().Get("window_days")
	if raw == "" {
		return defaultWindowDays
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultWindowDays
	}
	return n
}

func floatValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func intValue(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// kindStatus maps error taxonomy kinds to HTTP status codes.
var kindStatus = map[engine.ErrorKind]int{
	engine.KindNotFound:      http.StatusNotFound,
	engine.KindValidation:    http.StatusBadRequest,
	engine.KindTemplate:      http.StatusUnprocessableEntity,
	engine.KindGeneration:    http.StatusInternalServerError,
	engine.KindDatabase:      http.StatusServiceUnavailable,
	engine.KindNetwork:       http.StatusServiceUnavailable,
	engine.KindRateLimit:     http.StatusTooManyRequests,
	engine.KindConfiguration: http.StatusInternalServerError,
}

// writeError logs the technical error and sends the kind's fixed user
// message. Retryable errors advertise their delay via Retry-After.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := engine.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if errors.Is(err, engine.ErrNumberConflict) {
		status = http.StatusConflict
	}

	h.log.Error().
		Err(err).
		Str("kind", string(kind)).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	if delay := engine.RetryDelay(err); delay > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())))
	}
	writeJSON(w, status, ErrorResponse{
		Error: engine.UserMessage(err),
		Kind:  string(kind),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
