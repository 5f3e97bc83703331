/*
Package engine provides the SLA document generation and classification engine.

PURPOSE:
  This package contains the computational core behind quote and agreement
  handling: placeholder substitution against a typed variable schema,
  heuristic package-type classification, human-readable document number
  proposals, and usage analytics aggregation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Template: A reusable document body with named placeholders and a
    declared variable schema
  - VariableSpec: One declared placeholder with type, default, and
    optional validation rules
  - SubstitutionResult: Audit trail of one generation pass
  - ClassificationResult: Scored package-type decision with reasoning
  - UsageEvent: Immutable record of a user action against a template

DESIGN PRINCIPLES:
  1. Purity: Substitute, Classify, Propose, and the aggregators only read
     their arguments and allocate fresh outputs. No I/O, no shared state.
  2. Precision: Uses decimal.Decimal for scores, rates, and numeric
     validation to keep results byte-identical across runs.
  3. Advisory results: Expected bad input (missing variable, weak
     classification) is reported structurally, never raised.
  4. Caller-owned persistence: The engine never touches a database.
     Store interfaces in store.go are implemented and driven by callers.

USAGE:
  result := engine.Substitute(tpl, map[string]any{"client_name": "Acme"}, nil)
  cls := engine.Classify(freeText, items, totalValue, itemCount)

SEE ALSO:
  - substitute.go: Placeholder resolution and validation
  - classify.go: Package-type scoring
  - sequence.go: Document number proposals
  - analytics.go: Usage event aggregation
  - errors.go: Error taxonomy shared by all components
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TemplateID string
type DocumentID string
type QuoteID string
type ClientID string
type AgreementID string
type UserID string
type EventID string

// =============================================================================
// PACKAGE TYPE - The four fixed business-project categories
// =============================================================================

type PackageType string

const (
	PackageGeneralWebsite PackageType = "general_website"
	PackageEcommerce      PackageType = "ecommerce"
	PackageBookingSystem  PackageType = "booking_system"
	PackageWebApplication PackageType = "web_application"
)

// AllPackageTypes lists every category in canonical evaluation order.
// Classification iterates this slice so results are deterministic.
var AllPackageTypes = []PackageType{
	PackageGeneralWebsite,
	PackageEcommerce,
	PackageBookingSystem,
	PackageWebApplication,
}

func (p PackageType) IsValid() bool {
	for _, t := range AllPackageTypes {
		if p == t {
			return true
		}
	}
	return false
}

// =============================================================================
// TEMPLATE - Reusable document body plus variable schema
// =============================================================================

type VariableType string

const (
	VariableText    VariableType = "text"
	VariableNumber  VariableType = "number"
	VariableDate    VariableType = "date"
	VariableBoolean VariableType = "boolean"
)

// Validation holds optional advisory rules for a variable's value.
// A failed rule never blocks substitution; it only produces an entry
// in SubstitutionResult.ValidationErrors.
type Validation struct {
	Min           *decimal.Decimal
	Max           *decimal.Decimal
	Pattern       string
	AllowedValues []string
}

// VariableSpec declares one placeholder: its identifier (unique within
// the template), display name, type, optional default, and validation.
type VariableSpec struct {
	Name         string
	DisplayName  string
	Type         VariableType
	DefaultValue any // nil = no default
	IsRequired   bool
	Validation   *Validation
}

// Metrics are the SLA service levels a template carries as defaults.
type Metrics struct {
	UptimePercent       decimal.Decimal
	ResponseTimeHours   int
	ResolutionTimeHours int
	SupportChannels     []string
}

// Penalties are the default penalty terms attached to a template.
type Penalties struct {
	PerIncidentPercent decimal.Decimal
	MonthlyCapPercent  decimal.Decimal
}

// Template is treated as immutable input for a single generation call.
// Authoring and persistence happen outside the engine.
type Template struct {
	ID               TemplateID
	Name             string
	PackageType      PackageType
	ContentBody      string
	Variables        []VariableSpec
	DefaultMetrics   Metrics
	DefaultPenalties Penalties
	IsActive         bool
	Version          int
	UsageCount       int
}

// Variable returns the spec declared under name, or nil.
// Lookup is exact-match; names are never trimmed or case-folded.
func (t *Template) Variable(name string) *VariableSpec {
	for i := range t.Variables {
		if t.Variables[i].Name == name {
			return &t.Variables[i]
		}
	}
	return nil
}

// =============================================================================
// SUBSTITUTION RESULT - Audit trail of one generation pass
// =============================================================================

type SubstitutionSource string

const (
	SourceExplicit SubstitutionSource = "explicit"
	SourceDefault  SubstitutionSource = "default"
	SourceMissing  SubstitutionSource = "missing"
)

// Substitution records how one referenced variable was resolved.
type Substitution struct {
	VariableName string
	Value        any
	Source       SubstitutionSource
}

// SubstitutionResult is produced fresh per call and never persisted
// by the engine itself.
type SubstitutionResult struct {
	FinalContent     string
	Substitutions    []Substitution
	MissingVariables []string
	ValidationErrors []string
}

// =============================================================================
// CLASSIFICATION RESULT
// =============================================================================

// ClassificationResult is deterministic given identical input.
// Reasoning lists the matched evidence per category, in evaluation order,
// for display next to the decision.
type ClassificationResult struct {
	PackageType       PackageType
	ConfidencePercent int
	ScoresByType      map[PackageType]decimal.Decimal
	Reasoning         map[PackageType][]string
}

// ClassificationCheck is the output of ValidateClassification: warnings
// about a weak call plus up to two alternate categories worth showing.
type ClassificationCheck struct {
	Valid      bool
	Confidence int
	Warnings   []string
	Alternates []PackageType
}

// =============================================================================
// SEQUENCE ALLOCATION - Proposed document number
// =============================================================================

// SequenceAllocation is a proposal only. The caller's transaction either
// commits it (advancing the stored counter past CounterValueConsumed) or
// hits a uniqueness conflict and re-invokes Propose with a fresh counter.
type SequenceAllocation struct {
	ProposedNumber       string
	CounterValueConsumed int64
}

// =============================================================================
// USAGE EVENTS - Append-only activity records
// =============================================================================

type EventType string

const (
	EventPreview          EventType = "preview"
	EventAgreementCreated EventType = "agreement_created"
	EventAgreementSigned  EventType = "agreement_signed"
	EventTemplateViewed   EventType = "template_viewed"
	EventTemplateModified EventType = "template_modified"
)

func (e EventType) IsValid() bool {
	switch e {
	case EventPreview, EventAgreementCreated, EventAgreementSigned,
		EventTemplateViewed, EventTemplateModified:
		return true
	}
	return false
}

// UsageEvent is created once, at the moment a caller-observed action
// occurs, and is immutable thereafter. The aggregators only fold events,
// never mutate them.
type UsageEvent struct {
	ID          EventID
	TemplateID  TemplateID
	EventType   EventType
	UserID      UserID
	ClientID    ClientID
	QuoteID     QuoteID
	AgreementID AgreementID
	Metadata    Metadata
	OccurredAt  time.Time
}

// =============================================================================
// ANALYTICS OUTPUTS - Derived, recomputed on demand, never source of truth
// =============================================================================

// Trends bucket event counts by elapsed time from "now", oldest bucket
// first. Daily buckets are 1 day wide, weekly 7, monthly 30.
type Trends struct {
	Daily   []int
	Weekly  []int
	Monthly []int
}

type TemplateUsageStats struct {
	TemplateID                  TemplateID
	TotalEvents                 int
	EventsByType                map[EventType]int
	UniqueUsers                 int
	ConversionRate              decimal.Decimal // agreements_created / previews × 100
	AverageTimeToSignatureHours decimal.Decimal
	Trends                      Trends
}

type TemplateCount struct {
	TemplateID TemplateID
	Events     int
}

type UserActivity struct {
	UserID    UserID
	Events    int
	Templates []TemplateID // distinct, sorted
}

type FunnelMetrics struct {
	PreviewToAgreementRate   decimal.Decimal
	AgreementToSignatureRate decimal.Decimal
	AbandonmentRate          decimal.Decimal
}

type DailyPoint struct {
	Date  string // YYYY-MM-DD
	Count int
}

type UsageAnalytics struct {
	TotalEvents   int
	TopTemplates  []TemplateCount
	ByPackageType map[PackageType]int
	TopUsers      []UserActivity
	Funnel        FunnelMetrics
	DailySeries   []DailyPoint
}
