/*
Package factory provides JSON to Go template conversion.

PURPOSE:
  Converts JSON template definitions into engine.Template values. This
  enables template authoring without code changes - account managers can
  define SLA templates in JSON, and the factory creates the proper Go
  structs after checking the structural invariants the engine relies on.

JSON SCHEMA:
  {
    "id": "sla-standard",
    "name": "Standard SLA",
    "package_type": "general_website",
    "content_body": "Hello {{client_name}}, uptime {{uptime}}%",
    "variables": [
      {
        "name": "client_name",
        "display_name": "Client name",
        "type": "text",
        "is_required": true
      },
      {
        "name": "uptime",
        "type": "number",
        "default_value": 99.5,
        "validation": {"min": 95, "max": 99.99}
      }
    ],
    "default_metrics": {"uptime_percent": "99.5", "response_time_hours": 4},
    "default_penalties": {"per_incident_percent": "5"},
    "is_active": true,
    "version": 1
  }

STRUCTURAL VALIDATION:
  ParseTemplate enforces what the substitution engine assumes:
  - every {{placeholder}} in content_body names a declared variable
    (the inverse is not required - unused variables are allowed)
  - variable names are unique and match the identifier grammar
  - variable types are one of text/number/date/boolean
  - validation patterns compile
  Violations surface as KindTemplate errors: authoring bugs, not data bugs.

SEE ALSO:
  - engine/substitute.go: Consumes the parsed template
  - store/sqlite: Persists templates via this JSON form
*/
package factory

import (
	"encoding/json"
	"regexp"

	"github.com/covara/agreement-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TemplateJSON is the JSON representation of a template.
type TemplateJSON struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	PackageType      string          `json:"package_type"`
	ContentBody      string          `json:"content_body"`
	Variables        []VariableJSON  `json:"variables,omitempty"`
	DefaultMetrics   *MetricsJSON    `json:"default_metrics,omitempty"`
	DefaultPenalties *PenaltiesJSON  `json:"default_penalties,omitempty"`
	IsActive         bool            `json:"is_active"`
	Version          int             `json:"version,omitempty"`
	UsageCount       int             `json:"usage_count,omitempty"`
}

// VariableJSON represents one variable declaration.
type VariableJSON struct {
	Name         string          `json:"name"`
	DisplayName  string          `json:"display_name,omitempty"`
	Type         string          `json:"type"`
	DefaultValue any             `json:"default_value,omitempty"`
	IsRequired   bool            `json:"is_required,omitempty"`
	Validation   *ValidationJSON `json:"validation,omitempty"`
}

// ValidationJSON represents advisory validation rules.
type ValidationJSON struct {
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Pattern       string   `json:"pattern,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

// MetricsJSON represents default SLA metrics. Percentages travel as
// strings to keep decimal precision through JSON.
type MetricsJSON struct {
	UptimePercent       string   `json:"uptime_percent,omitempty"`
	ResponseTimeHours   int      `json:"response_time_hours,omitempty"`
	ResolutionTimeHours int      `json:"resolution_time_hours,omitempty"`
	SupportChannels     []string `json:"support_channels,omitempty"`
}

// PenaltiesJSON represents default penalty terms.
type PenaltiesJSON struct {
	PerIncidentPercent string `json:"per_incident_percent,omitempty"`
	MonthlyCapPercent  string `json:"monthly_cap_percent,omitempty"`
}

// =============================================================================
// TEMPLATE FACTORY
// =============================================================================

// identifierPattern is the placeholder identifier grammar.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// placeholderPattern finds the {{identifier}} tokens in a content body.
var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// TemplateFactory converts JSON templates to Go structs.
type TemplateFactory struct{}

func NewTemplateFactory() *TemplateFactory {
	return &TemplateFactory{}
}

// ParseTemplate parses a JSON string into an engine.Template.
func (f *TemplateFactory) ParseTemplate(jsonStr string) (*engine.Template, error) {
	var tj TemplateJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return nil, engine.WrapError(engine.KindTemplate, err, "template JSON does not parse")
	}
	return f.FromJSON(tj)
}

// FromJSON converts TemplateJSON to engine.Template, enforcing the
// structural invariants of the substitution engine.
func (f *TemplateFactory) FromJSON(tj TemplateJSON) (*engine.Template, error) {
	if tj.ID == "" {
		return nil, engine.NewError(engine.KindTemplate, "template id is empty")
	}
	pkg := engine.PackageType(tj.PackageType)
	if tj.PackageType == "" {
		pkg = engine.PackageGeneralWebsite
	} else if !pkg.IsValid() {
		return nil, engine.NewError(engine.KindTemplate, "unknown package type %q", tj.PackageType)
	}

	tpl := &engine.Template{
		ID:          engine.TemplateID(tj.ID),
		Name:        tj.Name,
		PackageType: pkg,
		ContentBody: tj.ContentBody,
		IsActive:    tj.IsActive,
		Version:     tj.Version,
		UsageCount:  tj.UsageCount,
	}
	if tpl.Version == 0 {
		tpl.Version = 1
	}

	seen := map[string]bool{}
	for _, vj := range tj.Variables {
		spec, err := parseVariable(vj)
		if err != nil {
			return nil, err
		}
		if seen[spec.Name] {
			return nil, engine.NewError(engine.KindTemplate,
				"variable %q declared more than once", spec.Name)
		}
		seen[spec.Name] = true
		tpl.Variables = append(tpl.Variables, *spec)
	}

	// Every placeholder must name a declared variable. Unused variables
	// are fine; undeclared placeholders are an authoring defect.
	for _, m := range placeholderPattern.FindAllStringSubmatch(tj.ContentBody, -1) {
		if !seen[m[1]] {
			return nil, engine.NewError(engine.KindTemplate,
				"content references undeclared variable %q", m[1])
		}
	}

	if tj.DefaultMetrics != nil {
		m, err := parseMetrics(*tj.DefaultMetrics)
		if err != nil {
			return nil, err
		}
		tpl.DefaultMetrics = *m
	}
	if tj.DefaultPenalties != nil {
		p, err := parsePenalties(*tj.DefaultPenalties)
		if err != nil {
			return nil, err
		}
		tpl.DefaultPenalties = *p
	}

	return tpl, nil
}

func parseVariable(vj VariableJSON) (*engine.VariableSpec, error) {
	if !identifierPattern.MatchString(vj.Name) {
		return nil, engine.NewError(engine.KindTemplate,
			"variable name %q is not a valid identifier", vj.Name)
	}
	typ := engine.VariableType(vj.Type)
	switch typ {
	case engine.VariableText, engine.VariableNumber, engine.VariableDate, engine.VariableBoolean:
	default:
		return nil, engine.NewError(engine.KindTemplate,
			"variable %q has unknown type %q", vj.Name, vj.Type)
	}

	spec := &engine.VariableSpec{
		Name:         vj.Name,
		DisplayName:  vj.DisplayName,
		Type:         typ,
		DefaultValue: vj.DefaultValue,
		IsRequired:   vj.IsRequired,
	}
	if spec.DisplayName == "" {
		spec.DisplayName = vj.Name
	}

	if vj.Validation != nil {
		v := &engine.Validation{
			Pattern:       vj.Validation.Pattern,
			AllowedValues: vj.Validation.AllowedValues,
		}
		if vj.Validation.Min != nil {
			d := decimal.NewFromFloat(*vj.Validation.Min)
			v.Min = &d
		}
		if vj.Validation.Max != nil {
			d := decimal.NewFromFloat(*vj.Validation.Max)
			v.Max = &d
		}
		if v.Min != nil && v.Max != nil && v.Min.GreaterThan(*v.Max) {
			return nil, engine.NewError(engine.KindTemplate,
				"variable %q: min %s exceeds max %s", vj.Name, v.Min, v.Max)
		}
		if v.Pattern != "" {
			if _, err := regexp.Compile(v.Pattern); err != nil {
				return nil, engine.NewError(engine.KindTemplate,
					"variable %q: pattern does not compile: %v", vj.Name, err)
			}
		}
		spec.Validation = v
	}

	return spec, nil
}

func parseMetrics(mj MetricsJSON) (*engine.Metrics, error) {
	m := &engine.Metrics{
		ResponseTimeHours:   mj.ResponseTimeHours,
		ResolutionTimeHours: mj.ResolutionTimeHours,
		SupportChannels:     mj.SupportChannels,
	}
	if mj.UptimePercent != "" {
		d, err := decimal.NewFromString(mj.UptimePercent)
		if err != nil {
			return nil, engine.NewError(engine.KindTemplate,
				"uptime_percent %q is not a number", mj.UptimePercent)
		}
		m.UptimePercent = d
	}
	return m, nil
}

func parsePenalties(pj PenaltiesJSON) (*engine.Penalties, error) {
	p := &engine.Penalties{}
	for _, field := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{pj.PerIncidentPercent, &p.PerIncidentPercent},
		{pj.MonthlyCapPercent, &p.MonthlyCapPercent},
	} {
		if field.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, engine.NewError(engine.KindTemplate,
				"penalty percentage %q is not a number", field.raw)
		}
		*field.dst = d
	}
	return p, nil
}

// ToJSON converts an engine.Template back to its JSON form for storage.
func (f *TemplateFactory) ToJSON(tpl *engine.Template) TemplateJSON {
	tj := TemplateJSON{
		ID:          string(tpl.ID),
		Name:        tpl.Name,
		PackageType: string(tpl.PackageType),
		ContentBody: tpl.ContentBody,
		IsActive:    tpl.IsActive,
		Version:     tpl.Version,
		UsageCount:  tpl.UsageCount,
	}

	for _, spec := range tpl.Variables {
		vj := VariableJSON{
			Name:         spec.Name,
			DisplayName:  spec.DisplayName,
			Type:         string(spec.Type),
			DefaultValue: spec.DefaultValue,
			IsRequired:   spec.IsRequired,
		}
		if spec.Validation != nil {
			v := &ValidationJSON{
				Pattern:       spec.Validation.Pattern,
				AllowedValues: spec.Validation.AllowedValues,
			}
			if spec.Validation.Min != nil {
				min, _ := spec.Validation.Min.Float64()
				v.Min = &min
			}
			if spec.Validation.Max != nil {
				max, _ := spec.Validation.Max.Float64()
				v.Max = &max
			}
			vj.Validation = v
		}
		tj.Variables = append(tj.Variables, vj)
	}

	if !tpl.DefaultMetrics.UptimePercent.IsZero() || tpl.DefaultMetrics.ResponseTimeHours != 0 ||
		tpl.DefaultMetrics.ResolutionTimeHours != 0 || len(tpl.DefaultMetrics.SupportChannels) > 0 {
		tj.DefaultMetrics = &MetricsJSON{
			ResponseTimeHours:   tpl.DefaultMetrics.ResponseTimeHours,
			ResolutionTimeHours: tpl.DefaultMetrics.ResolutionTimeHours,
			SupportChannels:     tpl.DefaultMetrics.SupportChannels,
		}
		if !tpl.DefaultMetrics.UptimePercent.IsZero() {
			tj.DefaultMetrics.UptimePercent = tpl.DefaultMetrics.UptimePercent.String()
		}
	}
	if !tpl.DefaultPenalties.PerIncidentPercent.IsZero() || !tpl.DefaultPenalties.MonthlyCapPercent.IsZero() {
		tj.DefaultPenalties = &PenaltiesJSON{}
		if !tpl.DefaultPenalties.PerIncidentPercent.IsZero() {
			tj.DefaultPenalties.PerIncidentPercent = tpl.DefaultPenalties.PerIncidentPercent.String()
		}
		if !tpl.DefaultPenalties.MonthlyCapPercent.IsZero() {
			tj.DefaultPenalties.MonthlyCapPercent = tpl.DefaultPenalties.MonthlyCapPercent.String()
		}
	}

	return tj
}
