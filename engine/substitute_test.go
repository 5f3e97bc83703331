package engine_test

import (
	"strings"
	"testing"

	"github.com/covara/agreement-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func slaTemplate() *engine.Template {
	return &engine.Template{
		ID:          "tpl-sla-1",
		Name:        "Standard SLA",
		PackageType: engine.PackageGeneralWebsite,
		ContentBody: "Hello {{client_name}}, uptime {{uptime}}%",
		Variables: []engine.VariableSpec{
			{Name: "client_name", DisplayName: "Client name", Type: engine.VariableText, IsRequired: true},
			{Name: "uptime", DisplayName: "Uptime target", Type: engine.VariableNumber,
				DefaultValue: 99.5,
				Validation:   &engine.Validation{Min: dec("95"), Max: dec("99.99")}},
		},
		IsActive: true,
		Version:  1,
	}
}

// =============================================================================
// SUBSTITUTION TESTS
// =============================================================================

func TestSubstitute_EndToEnd_ExplicitAndDefault(t *testing.T) {
	// GIVEN: A template with a required text variable and an optional
	//        number variable carrying a default
	// WHEN: Substituting with only the required value supplied
	// THEN: The default fills in, nothing is missing, sources are recorded

	result := engine.Substitute(slaTemplate(), map[string]any{"client_name": "Acme"}, nil)

	if result.FinalContent != "Hello Acme, uptime 99.5%" {
		t.Errorf("unexpected content: %q", result.FinalContent)
	}
	if len(result.MissingVariables) != 0 {
		t.Errorf("expected no missing variables, got %v", result.MissingVariables)
	}
	if len(result.Substitutions) != 2 {
		t.Fatalf("expected 2 substitutions, got %d", len(result.Substitutions))
	}
	if result.Substitutions[0].VariableName != "client_name" || result.Substitutions[0].Source != engine.SourceExplicit {
		t.Errorf("first substitution wrong: %+v", result.Substitutions[0])
	}
	if result.Substitutions[1].VariableName != "uptime" || result.Substitutions[1].Source != engine.SourceDefault {
		t.Errorf("second substitution wrong: %+v", result.Substitutions[1])
	}
}

func TestSubstitute_FullBag_NoTokensRemain(t *testing.T) {
	// GIVEN: A value bag supplying every declared variable
	// WHEN: Substituting
	// THEN: No missing variables and zero {{...}} tokens in the output

	result := engine.Substitute(slaTemplate(), map[string]any{
		"client_name": "Acme",
		"uptime":      99.9,
	}, nil)

	if len(result.MissingVariables) != 0 {
		t.Errorf("expected no missing variables, got %v", result.MissingVariables)
	}
	if strings.Contains(result.FinalContent, "{{") {
		t.Errorf("tokens remain in output: %q", result.FinalContent)
	}
}

func TestSubstitute_ValidationIsAdvisory(t *testing.T) {
	// GIVEN: An uptime value below the declared minimum
	// WHEN: Substituting
	// THEN: The value is substituted anyway, and exactly one validation
	//       error describes the failure

	result := engine.Substitute(slaTemplate(), map[string]any{
		"client_name": "Acme",
		"uptime":      80,
	}, nil)

	if result.FinalContent != "Hello Acme, uptime 80%" {
		t.Errorf("failing value should still substitute, got %q", result.FinalContent)
	}
	if len(result.ValidationErrors) != 1 {
		t.Fatalf("expected exactly 1 validation error, got %v", result.ValidationErrors)
	}
	if !strings.Contains(result.ValidationErrors[0], "uptime") {
		t.Errorf("error should name the variable: %q", result.ValidationErrors[0])
	}
}

func TestSubstitute_NonNumericValue_ForNumericRule(t *testing.T) {
	result := engine.Substitute(slaTemplate(), map[string]any{
		"client_name": "Acme",
		"uptime":      "lots",
	}, nil)

	if len(result.ValidationErrors) != 1 {
		t.Fatalf("expected 1 validation error, got %v", result.ValidationErrors)
	}
	if !strings.Contains(result.ValidationErrors[0], "not numeric") {
		t.Errorf("unexpected error text: %q", result.ValidationErrors[0])
	}
	if result.FinalContent != "Hello Acme, uptime lots%" {
		t.Errorf("value should substitute despite the failed rule: %q", result.FinalContent)
	}
}

func TestSubstitute_RequiredMissing_TokenStays(t *testing.T) {
	// GIVEN: The required client_name has no explicit value
	// WHEN: Substituting
	// THEN: The token stays literal and the name is reported missing

	result := engine.Substitute(slaTemplate(), map[string]any{}, nil)

	if !strings.Contains(result.FinalContent, "{{client_name}}") {
		t.Errorf("unresolved token should remain, got %q", result.FinalContent)
	}
	if len(result.MissingVariables) != 1 || result.MissingVariables[0] != "client_name" {
		t.Errorf("expected [client_name] missing, got %v", result.MissingVariables)
	}
}

func TestSubstitute_UndeclaredPlaceholder_ReportedNotReplaced(t *testing.T) {
	// GIVEN: A body referencing a variable no spec declares
	// WHEN: Substituting
	// THEN: The token is left literal and reported as missing - this is
	//       an authoring defect, not a data defect

	tpl := &engine.Template{
		ID:          "tpl-bad",
		ContentBody: "Signed by {{signer}}",
	}
	result := engine.Substitute(tpl, map[string]any{"signer": "someone"}, nil)

	if result.FinalContent != "Signed by {{signer}}" {
		t.Errorf("undeclared token must not substitute, got %q", result.FinalContent)
	}
	if len(result.MissingVariables) != 1 || result.MissingVariables[0] != "signer" {
		t.Errorf("expected [signer] missing, got %v", result.MissingVariables)
	}
}

func TestSubstitute_DuplicateOccurrences_CountedOnce(t *testing.T) {
	tpl := &engine.Template{
		ID:          "tpl-dup",
		ContentBody: "{{name}} and {{name}} and {{name}}",
		Variables: []engine.VariableSpec{
			{Name: "name", Type: engine.VariableText},
		},
	}
	result := engine.Substitute(tpl, map[string]any{"name": "Acme"}, nil)

	if result.FinalContent != "Acme and Acme and Acme" {
		t.Errorf("all occurrences should substitute identically, got %q", result.FinalContent)
	}
	if len(result.Substitutions) != 1 {
		t.Errorf("duplicate references counted once, got %d entries", len(result.Substitutions))
	}
}

func TestSubstitute_PlaceholderShapedValue_StaysLiteral(t *testing.T) {
	// GIVEN: A caller value that looks like a placeholder token
	// WHEN: Substituting
	// THEN: The value is inserted as-is, never re-interpreted as template

	result := engine.Substitute(slaTemplate(), map[string]any{
		"client_name": "{{uptime}}",
	}, nil)

	if result.FinalContent != "Hello {{uptime}}, uptime 99.5%" {
		t.Errorf("injected token must stay literal, got %q", result.FinalContent)
	}
}

func TestSubstitute_EmptyBody(t *testing.T) {
	tpl := &engine.Template{ID: "tpl-empty"}
	result := engine.Substitute(tpl, nil, nil)

	if result.FinalContent != "" || len(result.Substitutions) != 0 || len(result.MissingVariables) != 0 {
		t.Errorf("empty body should produce an empty result: %+v", result)
	}
}

func TestSubstitute_OverrideWinsButAuditStays(t *testing.T) {
	// GIVEN: A manual override of the generated content
	// WHEN: Substituting
	// THEN: The override replaces the output wholesale while the audit
	//       trail still reflects the substitution pass

	override := "Manually edited agreement"
	result := engine.Substitute(slaTemplate(), map[string]any{"client_name": "Acme"}, &override)

	if result.FinalContent != "Manually edited agreement" {
		t.Errorf("override should win, got %q", result.FinalContent)
	}
	if len(result.Substitutions) != 2 {
		t.Errorf("audit trail should survive the override, got %d entries", len(result.Substitutions))
	}
}

func TestSubstitute_AllowedValuesAndPattern(t *testing.T) {
	tpl := &engine.Template{
		ID:          "tpl-rules",
		ContentBody: "Tier: {{tier}}, Ref: {{ref}}",
		Variables: []engine.VariableSpec{
			{Name: "tier", Type: engine.VariableText,
				Validation: &engine.Validation{AllowedValues: []string{"bronze", "silver", "gold"}}},
			{Name: "ref", Type: engine.VariableText,
				Validation: &engine.Validation{Pattern: `^REF-\d{4}$`}},
		},
	}

	result := engine.Substitute(tpl, map[string]any{"tier": "platinum", "ref": "REF-12"}, nil)

	if len(result.ValidationErrors) != 2 {
		t.Fatalf("expected 2 validation errors, got %v", result.ValidationErrors)
	}
	if result.FinalContent != "Tier: platinum, Ref: REF-12" {
		t.Errorf("values substitute despite failed rules: %q", result.FinalContent)
	}
}

func TestSubstitute_CaseSensitiveNames(t *testing.T) {
	// GIVEN: A bag keyed with different casing than the declaration
	// WHEN: Substituting
	// THEN: No match - names are exact, never case-folded

	tpl := &engine.Template{
		ID:          "tpl-case",
		ContentBody: "{{Name}}",
		Variables:   []engine.VariableSpec{{Name: "Name", Type: engine.VariableText, IsRequired: true}},
	}
	result := engine.Substitute(tpl, map[string]any{"name": "acme"}, nil)

	if len(result.MissingVariables) != 1 {
		t.Errorf("lower-cased key must not satisfy Name, got %v", result.MissingVariables)
	}
}
