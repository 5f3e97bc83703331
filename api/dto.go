/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Template:
    TemplateDTO (wraps factory.TemplateJSON), CreateTemplateRequest

  Generation:
    GenerateRequest, GenerateResponse, PreviewRequest, PreviewResponse,
    SubstitutionDTO

  Classification:
    ClassifyRequest, ClassificationDTO, ClassificationCheckDTO

  Documents:
    DocumentDTO

  Analytics:
    TemplateStatsDTO, AnalyticsDTO, TrendsDTO, FunnelDTO, DailyPointDTO

  Events:
    RecordEventRequest

VALIDATION:
  Request types carry go-playground/validator struct tags and are checked
  at the handler boundary before any domain call. DTOs stay pure data
  carriers on the response side.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/template.go: TemplateJSON type
*/
package api

import (
	"time"

	"github.com/covara/agreement-engine/engine"
	"github.com/covara/agreement-engine/factory"
)

// =============================================================================
// TEMPLATE TYPES
// =============================================================================

// TemplateDTO represents a template in API responses. The factory JSON
// form is the canonical external shape, usage count included.
type TemplateDTO struct {
	factory.TemplateJSON
}

// CreateTemplateRequest is the body for POST /api/templates.
// The payload is the full template definition in factory JSON form;
// structural validation happens in the factory, so only the presence
// of a definition is checked here.
type CreateTemplateRequest struct {
	Template factory.TemplateJSON `json:"template" validate:"required"`
}

// =============================================================================
// GENERATION TYPES
// =============================================================================

// GenerateRequest is the body for POST /api/documents.
type GenerateRequest struct {
	TemplateID string         `json:"template_id" validate:"required"`
	Kind       string         `json:"kind" validate:"required,oneof=quote agreement"`
	ClientID   string         `json:"client_id" validate:"required"`
	CreatedBy  string         `json:"created_by" validate:"required"`
	Values     map[string]any `json:"values"`
	// ContentOverride replaces the rendered content wholesale when set.
	ContentOverride *string `json:"content_override,omitempty"`
	// Classification inputs. Optional; when present the detected package
	// type is stored alongside the document.
	Description string   `json:"description"`
	Items       []string `json:"items"`
	TotalValue  *float64 `json:"total_value,omitempty" validate:"omitempty,gte=0"`
	ItemCount   *int     `json:"item_count,omitempty" validate:"omitempty,gte=0"`
}

// SubstitutionDTO is one entry of the substitution audit trail.
type SubstitutionDTO struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
	Source   string `json:"source"`
}

// GenerateResponse is returned by POST /api/documents. Generation
// rejects missing variables outright, so unlike PreviewResponse there
// is no missing_variables field here.
type GenerateResponse struct {
	Document       DocumentDTO             `json:"document"`
	Substitutions  []SubstitutionDTO       `json:"substitutions"`
	Warnings       []string                `json:"warnings,omitempty"`
	Classification *ClassificationDTO      `json:"classification,omitempty"`
	Check          *ClassificationCheckDTO `json:"classification_check,omitempty"`
}

// PreviewRequest is the body for POST /api/templates/{id}/preview.
type PreviewRequest struct {
	UserID string         `json:"user_id" validate:"required"`
	Values map[string]any `json:"values"`
	Format string         `json:"format" validate:"omitempty,oneof=html pdf text"`
}

// PreviewResponse is returned by the preview endpoint. Nothing is
// persisted except the preview usage event.
type PreviewResponse struct {
	Content       string            `json:"content"`
	Substitutions []SubstitutionDTO `json:"substitutions"`
	Missing       []string          `json:"missing_variables,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// =============================================================================
// CLASSIFICATION TYPES
// =============================================================================

// ClassifyRequest is the body for POST /api/classify.
type ClassifyRequest struct {
	Description string   `json:"description"`
	Items       []string `json:"items"`
	TotalValue  float64  `json:"total_value" validate:"gte=0"`
	ItemCount   int      `json:"item_count" validate:"gte=0"`
}

// ClassificationDTO mirrors engine.ClassificationResult with scores
// rendered as strings to preserve decimal precision.
type ClassificationDTO struct {
	PackageType       string              `json:"package_type"`
	ConfidencePercent int                 `json:"confidence_percent"`
	Scores            map[string]string   `json:"scores"`
	Reasoning         map[string][]string `json:"reasoning"`
}

// ClassificationCheckDTO mirrors engine.ClassificationCheck.
type ClassificationCheckDTO struct {
	Valid      bool     `json:"valid"`
	Confidence int      `json:"confidence"`
	Warnings   []string `json:"warnings,omitempty"`
	Alternates []string `json:"alternates,omitempty"`
}

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// DocumentDTO represents a generated document in API responses.
type DocumentDTO struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Number      string    `json:"number"`
	TemplateID  string    `json:"template_id"`
	QuoteID     string    `json:"quote_id,omitempty"`
	ClientID    string    `json:"client_id"`
	PackageType string    `json:"package_type,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// =============================================================================
// ANALYTICS TYPES
// =============================================================================

// TrendsDTO mirrors engine.Trends.
type TrendsDTO struct {
	Daily   []int `json:"daily"`
	Weekly  []int `json:"weekly"`
	Monthly []int `json:"monthly"`
}

// TemplateStatsDTO is returned by GET /api/templates/{id}/stats.
type TemplateStatsDTO struct {
	TemplateID            string         `json:"template_id"`
	WindowDays            int            `json:"window_days"`
	TotalEvents           int            `json:"total_events"`
	EventsByType          map[string]int `json:"events_by_type"`
	UniqueUsers           int            `json:"unique_users"`
	ConversionRate        string         `json:"conversion_rate"`
	AverageSignatureHours string         `json:"average_signature_hours"`
	Trends                TrendsDTO      `json:"trends"`
}

// FunnelDTO mirrors engine.FunnelMetrics with decimal rates as strings.
type FunnelDTO struct {
	PreviewToAgreementRate   string `json:"preview_to_agreement_rate"`
	AgreementToSignatureRate string `json:"agreement_to_signature_rate"`
	AbandonmentRate          string `json:"abandonment_rate"`
}

// TemplateCountDTO is one ranked template entry.
type TemplateCountDTO struct {
	TemplateID string `json:"template_id"`
	Events     int    `json:"events"`
}

// UserActivityDTO is one ranked user entry.
type UserActivityDTO struct {
	UserID    string   `json:"user_id"`
	Events    int      `json:"events"`
	Templates []string `json:"templates,omitempty"`
}

// DailyPointDTO is one point of the daily event series.
type DailyPointDTO struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AnalyticsDTO is returned by GET /api/analytics.
type AnalyticsDTO struct {
	WindowDays    int                `json:"window_days"`
	TotalEvents   int                `json:"total_events"`
	TopTemplates  []TemplateCountDTO `json:"top_templates"`
	TopUsers      []UserActivityDTO  `json:"top_users"`
	ByPackageType map[string]int     `json:"by_package_type"`
	Funnel        FunnelDTO          `json:"funnel"`
	DailySeries   []DailyPointDTO    `json:"daily_series"`
}

// =============================================================================
// EVENT TYPES
// =============================================================================

// RecordEventRequest is the body for POST /api/events.
type RecordEventRequest struct {
	EventID    string           `json:"event_id" validate:"required,uuid4"`
	EventType  string           `json:"event_type" validate:"required,oneof=preview agreement_created agreement_signed template_viewed template_modified"`
	TemplateID string           `json:"template_id" validate:"required"`
	UserID     string           `json:"user_id" validate:"required"`
	Metadata   *engine.Metadata `json:"metadata,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func substitutionsToDTO(subs []engine.Substitution) []SubstitutionDTO {
	out := make([]SubstitutionDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, SubstitutionDTO{
			Variable: s.VariableName,
			Value:    engine.Stringify(s.Value),
			Source:   string(s.Source),
		})
	}
	return out
}

func classificationToDTO(r engine.ClassificationResult) ClassificationDTO {
	scores := make(map[string]string, len(r.ScoresByType))
	for pt, score := range r.ScoresByType {
		scores[string(pt)] = score.String()
	}
	reasoning := make(map[string][]string, len(r.Reasoning))
	for pt, reasons := range r.Reasoning {
		reasoning[string(pt)] = reasons
	}
	return ClassificationDTO{
		PackageType:       string(r.PackageType),
		ConfidencePercent: r.ConfidencePercent,
		Scores:            scores,
		Reasoning:         reasoning,
	}
}

func checkToDTO(c engine.ClassificationCheck) ClassificationCheckDTO {
	alternates := make([]string, 0, len(c.Alternates))
	for _, a := range c.Alternates {
		alternates = append(alternates, string(a))
	}
	return ClassificationCheckDTO{
		Valid:      c.Valid,
		Confidence: c.Confidence,
		Warnings:   c.Warnings,
		Alternates: alternates,
	}
}

func documentToDTO(d *engine.Document) DocumentDTO {
	return DocumentDTO{
		ID:          string(d.ID),
		Kind:        string(d.Kind),
		Number:      d.Number,
		TemplateID:  string(d.TemplateID),
		QuoteID:     string(d.QuoteID),
		ClientID:    string(d.ClientID),
		PackageType: string(d.PackageType),
		Content:     d.Content,
		CreatedAt:   d.CreatedAt,
	}
}

func statsToDTO(s engine.TemplateUsageStats, windowDays int) TemplateStatsDTO {
	byType := make(map[string]int, len(s.EventsByType))
	for et, n := range s.EventsByType {
		byType[string(et)] = n
	}
	return TemplateStatsDTO{
		TemplateID:            string(s.TemplateID),
		WindowDays:            windowDays,
		TotalEvents:           s.TotalEvents,
		EventsByType:          byType,
		UniqueUsers:           s.UniqueUsers,
		ConversionRate:        s.ConversionRate.String(),
		AverageSignatureHours: s.AverageTimeToSignatureHours.String(),
		Trends: TrendsDTO{
			Daily:   s.Trends.Daily,
			Weekly:  s.Trends.Weekly,
			Monthly: s.Trends.Monthly,
		},
	}
}

func analyticsToDTO(a engine.UsageAnalytics, windowDays int) AnalyticsDTO {
	top := make([]TemplateCountDTO, 0, len(a.TopTemplates))
	for _, t := range a.TopTemplates {
		top = append(top, TemplateCountDTO{TemplateID: string(t.TemplateID), Events: t.Events})
	}
	users := make([]UserActivityDTO, 0, len(a.TopUsers))
	for _, u := range a.TopUsers {
		tpls := make([]string, 0, len(u.Templates))
		for _, id := range u.Templates {
			tpls = append(tpls, string(id))
		}
		users = append(users, UserActivityDTO{UserID: string(u.UserID), Events: u.Events, Templates: tpls})
	}
	byPkg := make(map[string]int, len(a.ByPackageType))
	for pt, n := range a.ByPackageType {
		byPkg[string(pt)] = n
	}
	series := make([]DailyPointDTO, 0, len(a.DailySeries))
	for _, p := range a.DailySeries {
		series = append(series, DailyPointDTO{Date: p.Date, Count: p.Count})
	}
	return AnalyticsDTO{
		WindowDays:    windowDays,
		TotalEvents:   a.TotalEvents,
		TopTemplates:  top,
		TopUsers:      users,
		ByPackageType: byPkg,
		Funnel: FunnelDTO{
			PreviewToAgreementRate:   a.Funnel.PreviewToAgreementRate.String(),
			AgreementToSignatureRate: a.Funnel.AgreementToSignatureRate.String(),
			AbandonmentRate:          a.Funnel.AbandonmentRate.String(),
		},
		DailySeries: series,
	}
}
