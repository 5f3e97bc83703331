/*
substitute.go - Placeholder resolution against a typed variable schema

PURPOSE:
  Turns a template body plus a caller-supplied value bag into finished
  document content. Every resolution is recorded so callers can audit
  what was substituted, from where, and what went wrong.

PLACEHOLDER GRAMMAR:
  {{identifier}} where identifier matches [A-Za-z_][A-Za-z0-9_]*.
  No nested or escaped braces. Names are exact-match, never trimmed.

RESOLUTION PRECEDENCE:
  1. Explicit value in the provided bag         (source=explicit)
  2. Declared default, if the spec is optional  (source=default)
  3. Otherwise recorded as missing; the token stays in the output

VALIDATION IS ADVISORY:
  A value failing its min/max/pattern/allowedValues rule is substituted
  anyway, with one human-readable entry appended to ValidationErrors.
  Callers decide whether a flagged document may ship.

SEE ALSO:
  - types.go: Template, VariableSpec, SubstitutionResult
  - factory: structural template validation before a template is stored
*/
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// placeholderPattern matches {{identifier}} tokens. Capture group 1 is
// the bare identifier.
var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Substitute resolves every {{name}} token in tpl.ContentBody against
// provided values and the template's declared defaults.
//
// If override is non-nil it replaces the computed content wholesale
// (manual edits win over generation), but Substitutions, MissingVariables,
// and ValidationErrors still reflect the substitution pass so callers can
// audit what would have been generated.
func Substitute(tpl *Template, provided map[string]any, override *string) SubstitutionResult {
	result := SubstitutionResult{
		Substitutions:    []Substitution{},
		MissingVariables: []string{},
		ValidationErrors: []string{},
	}

	resolved := map[string]string{}
	for _, name := range referencedNames(tpl.ContentBody) {
		spec := tpl.Variable(name)
		if spec == nil {
			// Undeclared placeholder: a template-authoring defect, not a
			// data defect. Leave the literal token in place.
			result.MissingVariables = append(result.MissingVariables, name)
			result.Substitutions = append(result.Substitutions, Substitution{
				VariableName: name,
				Source:       SourceMissing,
			})
			continue
		}

		value, source := resolveValue(spec, provided)
		result.Substitutions = append(result.Substitutions, Substitution{
			VariableName: name,
			Value:        value,
			Source:       source,
		})
		if source == SourceMissing {
			result.MissingVariables = append(result.MissingVariables, name)
			continue
		}

		if spec.Validation != nil {
			result.ValidationErrors = append(result.ValidationErrors,
				checkValidation(spec, value)...)
		}

		resolved[name] = Stringify(value)
	}

	// Single pass over the original body. Substituted values are never
	// rescanned, so placeholder-shaped text inside a value stays literal.
	content := placeholderPattern.ReplaceAllStringFunc(tpl.ContentBody, func(tok string) string {
		name := tok[2 : len(tok)-2]
		if v, ok := resolved[name]; ok {
			return v
		}
		return tok
	})

	if override != nil {
		content = *override
	}
	result.FinalContent = content
	return result
}

// referencedNames returns the distinct placeholder names in body,
// preserving first-occurrence order for deterministic output.
func referencedNames(body string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// resolveValue applies the precedence chain: explicit → default → missing.
// A required variable never falls back to its default.
func resolveValue(spec *VariableSpec, provided map[string]any) (any, SubstitutionSource) {
	if v, ok := provided[spec.Name]; ok {
		return v, SourceExplicit
	}
	if !spec.IsRequired && spec.DefaultValue != nil {
		return spec.DefaultValue, SourceDefault
	}
	return nil, SourceMissing
}

// checkValidation runs the declared advisory rules against a resolved
// value. Each failed rule yields exactly one message.
func checkValidation(spec *VariableSpec, value any) []string {
	var errs []string
	v := spec.Validation

	if v.Min != nil || v.Max != nil {
		num, ok := coerceNumber(value)
		if !ok {
			errs = append(errs, fmt.Sprintf(
				"%s: value %q is not numeric", spec.Name, Stringify(value)))
		} else {
			if v.Min != nil && num.LessThan(*v.Min) {
				errs = append(errs, fmt.Sprintf(
					"%s: value %s is below minimum %s", spec.Name, num, v.Min))
			}
			if v.Max != nil && num.GreaterThan(*v.Max) {
				errs = append(errs, fmt.Sprintf(
					"%s: value %s is above maximum %s", spec.Name, num, v.Max))
			}
		}
	}

	if v.Pattern != "" {
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf(
				"%s: invalid validation pattern %q", spec.Name, v.Pattern))
		} else if !re.MatchString(Stringify(value)) {
			errs = append(errs, fmt.Sprintf(
				"%s: value %q does not match pattern %s", spec.Name, Stringify(value), v.Pattern))
		}
	}

	if len(v.AllowedValues) > 0 {
		s := Stringify(value)
		allowed := false
		for _, a := range v.AllowedValues {
			if s == a {
				allowed = true
				break
			}
		}
		if !allowed {
			errs = append(errs, fmt.Sprintf(
				"%s: value %q is not one of the allowed values (%s)",
				spec.Name, s, strings.Join(v.AllowedValues, ", ")))
		}
	}

	return errs
}

// coerceNumber converts a substitution value to a decimal for bounds
// checks. Strings are parsed; booleans and nil are not numeric.
func coerceNumber(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	}
	return decimal.Zero, false
}

// Stringify renders a substitution value the way it appears in the final
// document. Floats drop trailing zeros via decimal formatting so a
// default of 99.5 renders as "99.5", not "99.500000".
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case decimal.Decimal:
		return v.String()
	case float64:
		return decimal.NewFromFloat(v).String()
	case float32:
		return decimal.NewFromFloat32(v).String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
