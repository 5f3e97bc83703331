package factory_test

import (
	"testing"

	"github.com/covara/agreement-engine/engine"
	"github.com/covara/agreement-engine/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standardSLAJSON = `{
	"id": "sla-standard",
	"name": "Standard SLA",
	"package_type": "general_website",
	"content_body": "Hello {{client_name}}, uptime {{uptime}}%",
	"variables": [
		{"name": "client_name", "display_name": "Client name", "type": "text", "is_required": true},
		{"name": "uptime", "type": "number", "default_value": 99.5, "validation": {"min": 95, "max": 99.99}}
	],
	"default_metrics": {"uptime_percent": "99.5", "response_time_hours": 4, "support_channels": ["email"]},
	"default_penalties": {"per_incident_percent": "5"},
	"is_active": true
}`

func TestParseTemplate_Standard(t *testing.T) {
	f := factory.NewTemplateFactory()

	tpl, err := f.ParseTemplate(standardSLAJSON)
	require.NoError(t, err)

	assert.Equal(t, engine.TemplateID("sla-standard"), tpl.ID)
	assert.Equal(t, engine.PackageGeneralWebsite, tpl.PackageType)
	assert.Len(t, tpl.Variables, 2)
	assert.Equal(t, 1, tpl.Version, "version defaults to 1")

	uptime := tpl.Variable("uptime")
	require.NotNil(t, uptime)
	require.NotNil(t, uptime.Validation)
	assert.Equal(t, "95", uptime.Validation.Min.String())
	assert.Equal(t, "uptime", uptime.DisplayName, "display name falls back to the identifier")
}

func TestParseTemplate_UndeclaredPlaceholder_Rejected(t *testing.T) {
	f := factory.NewTemplateFactory()

	_, err := f.ParseTemplate(`{
		"id": "sla-bad",
		"content_body": "Signed by {{signer}}",
		"variables": []
	}`)

	require.Error(t, err)
	assert.Equal(t, engine.KindTemplate, engine.KindOf(err))
	assert.Contains(t, err.Error(), "signer")
}

func TestParseTemplate_UnusedVariable_Allowed(t *testing.T) {
	f := factory.NewTemplateFactory()

	tpl, err := f.ParseTemplate(`{
		"id": "sla-unused",
		"content_body": "No placeholders here",
		"variables": [{"name": "spare", "type": "text"}]
	}`)

	require.NoError(t, err)
	assert.Len(t, tpl.Variables, 1)
}

func TestParseTemplate_StructuralDefects(t *testing.T) {
	f := factory.NewTemplateFactory()

	cases := map[string]string{
		"empty id":        `{"content_body": ""}`,
		"bad identifier":  `{"id": "x", "variables": [{"name": "9lives", "type": "text"}]}`,
		"unknown type":    `{"id": "x", "variables": [{"name": "a", "type": "decimal"}]}`,
		"duplicate name":  `{"id": "x", "variables": [{"name": "a", "type": "text"}, {"name": "a", "type": "text"}]}`,
		"bad pattern":     `{"id": "x", "variables": [{"name": "a", "type": "text", "validation": {"pattern": "("}}]}`,
		"min above max":   `{"id": "x", "variables": [{"name": "a", "type": "number", "validation": {"min": 10, "max": 5}}]}`,
		"unknown package": `{"id": "x", "package_type": "mobile_app"}`,
	}
	for name, js := range cases {
		_, err := f.ParseTemplate(js)
		require.Error(t, err, name)
		assert.Equal(t, engine.KindTemplate, engine.KindOf(err), name)
	}
}

func TestTemplateJSON_RoundTrip(t *testing.T) {
	f := factory.NewTemplateFactory()

	tpl, err := f.ParseTemplate(standardSLAJSON)
	require.NoError(t, err)

	back, err := f.FromJSON(f.ToJSON(tpl))
	require.NoError(t, err)

	assert.Equal(t, tpl.ID, back.ID)
	assert.Equal(t, tpl.ContentBody, back.ContentBody)
	assert.Len(t, back.Variables, len(tpl.Variables))
	assert.Equal(t, tpl.DefaultMetrics.UptimePercent.String(), back.DefaultMetrics.UptimePercent.String())
}
