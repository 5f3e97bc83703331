// Package engine: metadata.go defines the closed event metadata schema.
//
// Events carry a fixed set of optional fields instead of a free-form
// map, validated at ingestion rather than trusted at read time. Fields
// that make no sense for an event type are rejected when the event is
// appended.
package engine

// Metadata is the closed per-event payload. The zero value is valid for
// every event type.
type Metadata struct {
	Source          string   `json:"source,omitempty"`           // "web", "api", "seed"
	DocumentFormat  string   `json:"document_format,omitempty"`  // preview: "html", "pdf"
	SignatureMethod string   `json:"signature_method,omitempty"` // agreement_signed: "manual", "digital"
	ChangedFields   []string `json:"changed_fields,omitempty"`   // template_modified
	DurationMS      int64    `json:"duration_ms,omitempty"`
}

var (
	validSources          = map[string]bool{"": true, "web": true, "api": true, "seed": true}
	validDocumentFormats  = map[string]bool{"": true, "html": true, "pdf": true}
	validSignatureMethods = map[string]bool{"": true, "manual": true, "digital": true}
)

// ValidateMetadata checks that a metadata payload fits its event type.
// Returns a KindValidation error describing the first violation.
func ValidateMetadata(t EventType, m Metadata) error {
	if !t.IsValid() {
		return NewError(KindValidation, "unknown event type %q", t)
	}
	if !validSources[m.Source] {
		return NewError(KindValidation, "unknown metadata source %q", m.Source)
	}
	if m.DurationMS < 0 {
		return NewError(KindValidation, "negative duration_ms %d", m.DurationMS)
	}

	if m.DocumentFormat != "" && t != EventPreview {
		return NewError(KindValidation, "document_format is only valid for %s events", EventPreview)
	}
	if !validDocumentFormats[m.DocumentFormat] {
		return NewError(KindValidation, "unknown document format %q", m.DocumentFormat)
	}

	if m.SignatureMethod != "" && t != EventAgreementSigned {
		return NewError(KindValidation, "signature_method is only valid for %s events", EventAgreementSigned)
	}
	if !validSignatureMethods[m.SignatureMethod] {
		return NewError(KindValidation, "unknown signature method %q", m.SignatureMethod)
	}

	if len(m.ChangedFields) > 0 && t != EventTemplateModified {
		return NewError(KindValidation, "changed_fields is only valid for %s events", EventTemplateModified)
	}
	for _, f := range m.ChangedFields {
		if f == "" {
			return NewError(KindValidation, "changed_fields contains an empty field name")
		}
	}
	return nil
}
