/*
seed.go - Demo dataset loader for testing and demonstrations

PURPOSE:

	Populates the store with realistic templates, documents, and usage
	events so the analytics and classification endpoints have something
	to show in a fresh environment.

WHAT GETS SEEDED:
 1. Three templates via the factory (basic website SLA, ecommerce SLA,
    web application SLA)
 2. A handful of generated documents with allocated numbers
 3. Two weeks of usage events forming a preview/create/sign funnel

USAGE VIA API:

	POST /api/seed

NOTE:

	Seeding appends to the store; it does not reset it. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: GenerateDocument uses the same commit protocol
  - factory/template.go: Template JSON definitions
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/covara/agreement-engine/engine"
)

// =============================================================================
// TEMPLATE DEFINITIONS
// =============================================================================

const seedBasicTemplate = `{
  "id": "sla-basic-website",
  "name": "Basic Website SLA",
  "package_type": "general_website",
  "content_body": "Service Level Agreement for {{client_name}}.\n\nWe guarantee {{uptime}}% uptime, with support responses within {{response_hours}} hours.",
  "variables": [
    {"name": "client_name", "display_name": "Client Name", "type": "text", "is_required": true},
    {"name": "uptime", "display_name": "Uptime Guarantee", "type": "number", "default_value": 99.5,
     "validation": {"min": 95, "max": 99.99}},
    {"name": "response_hours", "display_name": "Response Time (hours)", "type": "number", "default_value": 24}
  ],
  "default_metrics": {
    "uptime_percent": "99.5",
    "response_time_hours": 24,
    "resolution_time_hours": 72,
    "support_channels": ["email"]
  },
  "is_active": true
}`

const seedEcommerceTemplate = `{
  "id": "sla-ecommerce",
  "name": "Ecommerce SLA",
  "package_type": "ecommerce",
  "content_body": "Service Level Agreement for the {{client_name}} webshop.\n\nUptime guarantee: {{uptime}}%. Checkout and payment flows are monitored around the clock; incidents are answered within {{response_hours}} hours.",
  "variables": [
    {"name": "client_name", "display_name": "Client Name", "type": "text", "is_required": true},
    {"name": "uptime", "display_name": "Uptime Guarantee", "type": "number", "default_value": 99.9,
     "validation": {"min": 99, "max": 99.99}},
    {"name": "response_hours", "display_name": "Response Time (hours)", "type": "number", "default_value": 4}
  ],
  "default_metrics": {
    "uptime_percent": "99.9",
    "response_time_hours": 4,
    "resolution_time_hours": 24,
    "support_channels": ["email", "phone"]
  },
  "default_penalties": {
    "per_incident_percent": "5",
    "monthly_cap_percent": "20"
  },
  "is_active": true
}`

const seedWebAppTemplate = `{
  "id": "sla-web-application",
  "name": "Web Application SLA",
  "package_type": "web_application",
  "content_body": "Service Level Agreement for the {{client_name}} platform.\n\nUptime guarantee: {{uptime}}%. Dedicated support with {{response_hours}}-hour response across {{environment}} environments.",
  "variables": [
    {"name": "client_name", "display_name": "Client Name", "type": "text", "is_required": true},
    {"name": "uptime", "display_name": "Uptime Guarantee", "type": "number", "default_value": 99.95,
     "validation": {"min": 99.5, "max": 99.999}},
    {"name": "response_hours", "display_name": "Response Time (hours)", "type": "number", "default_value": 2},
    {"name": "environment", "display_name": "Environments", "type": "text", "default_value": "production and staging"}
  ],
  "default_metrics": {
    "uptime_percent": "99.95",
    "response_time_hours": 2,
    "resolution_time_hours": 12,
    "support_channels": ["email", "phone", "chat"]
  },
  "default_penalties": {
    "per_incident_percent": "10",
    "monthly_cap_percent": "30"
  },
  "is_active": true
}`

// =============================================================================
// SEED HANDLER
// =============================================================================

// LoadSeed loads the demo dataset.
func (h *Handler) LoadSeed(w http.ResponseWriter, r *http.Request) {
	if err := h.loadSeedData(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Info().Msg("demo dataset loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) loadSeedData(ctx context.Context) error {
	for _, def := range []string{seedBasicTemplate, seedEcommerceTemplate, seedWebAppTemplate} {
		tpl, err := h.Factory.ParseTemplate(def)
		if err != nil {
			return err
		}
		if err := h.Store.PutTemplate(ctx, tpl); err != nil {
			return err
		}
	}

	if err := h.seedDocuments(ctx); err != nil {
		return err
	}
	return h.seedEvents(ctx)
}

// seedDocuments generates a few numbered documents through the same
// commit protocol the API uses.
func (h *Handler) seedDocuments(ctx context.Context) error {
	type docSpec struct {
		templateID engine.TemplateID
		kind       engine.DocumentKind
		clientID   engine.ClientID
		values     map[string]any
	}
	specs := []docSpec{
		{"sla-basic-website", engine.DocumentQuote, "client-aurora",
			map[string]any{"client_name": "Aurora Bakery"}},
		{"sla-ecommerce", engine.DocumentAgreement, "client-nordic",
			map[string]any{"client_name": "Nordic Outfitters", "uptime": 99.95}},
		{"sla-web-application", engine.DocumentAgreement, "client-helix",
			map[string]any{"client_name": "Helix Analytics"}},
	}

	for i, s := range specs {
		tpl, err := h.Store.GetTemplate(ctx, s.templateID)
		if err != nil {
			return err
		}
		result := engine.Substitute(tpl, s.values, nil)
		if len(result.MissingVariables) > 0 {
			return engine.NewError(engine.KindGeneration,
				"seed document %d missing variables %v", i, result.MissingVariables)
		}
		doc := &engine.Document{
			ID:          engine.DocumentID(uuid.NewString()),
			Kind:        s.kind,
			TemplateID:  tpl.ID,
			ClientID:    s.clientID,
			PackageType: tpl.PackageType,
			Content:     result.FinalContent,
			CreatedAt:   time.Now().UTC(),
		}
		if err := h.commitSeedDocument(ctx, doc); err != nil {
			return err
		}
		if err := h.Store.IncrementUsage(ctx, tpl.ID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) commitSeedDocument(ctx context.Context, doc *engine.Document) error {
	name := string(doc.Kind)
	counter, err := h.Store.Counter(ctx, name)
	if err != nil {
		return err
	}
	alloc := h.Allocator.Propose(h.Formats.forKind(doc.Kind), counter, nil)
	doc.Number = alloc.ProposedNumber
	if err := h.Store.InsertDocument(ctx, doc); err != nil {
		return err
	}
	return h.Store.SetCounter(ctx, name, alloc.CounterValueConsumed+1)
}

// seedEvents writes two weeks of funnel activity: plenty of previews,
// a smaller number of created agreements, and a few signatures.
func (h *Handler) seedEvents(ctx context.Context) error {
	now := time.Now().UTC()
	users := []engine.UserID{"demo-anna", "demo-bjorn", "demo-clara"}
	templates := []engine.TemplateID{"sla-basic-website", "sla-ecommerce", "sla-web-application"}

	appendEvent := func(e engine.UsageEvent) error {
		err := h.Store.AppendEvent(ctx, e)
		if err != nil && !errors.Is(err, engine.ErrDuplicateEvent) {
			return err
		}
		return nil
	}

	for day := 0; day < 14; day++ {
		at := now.AddDate(0, 0, -day)
		tpl := templates[day%len(templates)]
		user := users[day%len(users)]

		if err := appendEvent(engine.UsageEvent{
			ID:         engine.EventID(uuid.NewString()),
			TemplateID: tpl,
			EventType:  engine.EventPreview,
			UserID:     user,
			Metadata:   engine.Metadata{Source: "seed", DocumentFormat: "html"},
			OccurredAt: at,
		}); err != nil {
			return err
		}

		// Every third day a preview turns into an agreement.
		if day%3 == 0 {
			agreementID := engine.AgreementID(fmt.Sprintf("seed-agreement-%d", day))
			if err := appendEvent(engine.UsageEvent{
				ID:          engine.EventID(uuid.NewString()),
				TemplateID:  tpl,
				EventType:   engine.EventAgreementCreated,
				UserID:      user,
				AgreementID: agreementID,
				Metadata:    engine.Metadata{Source: "seed"},
				OccurredAt:  at.Add(2 * time.Hour),
			}); err != nil {
				return err
			}

			// Half of those get signed a day later.
			if day%6 == 0 {
				if err := appendEvent(engine.UsageEvent{
					ID:          engine.EventID(uuid.NewString()),
					TemplateID:  tpl,
					EventType:   engine.EventAgreementSigned,
					UserID:      user,
					AgreementID: agreementID,
					Metadata:    engine.Metadata{Source: "seed", SignatureMethod: "digital"},
					OccurredAt:  at.Add(26 * time.Hour),
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
