package engine_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/covara/agreement-engine/engine"
)

func TestErrorKinds_Retryability(t *testing.T) {
	cases := []struct {
		kind      engine.ErrorKind
		retryable bool
		delay     time.Duration
	}{
		{engine.KindNotFound, false, 0},
		{engine.KindValidation, false, 0},
		{engine.KindTemplate, false, 0},
		{engine.KindGeneration, false, 0},
		{engine.KindDatabase, true, 1 * time.Second},
		{engine.KindNetwork, true, 2 * time.Second},
		{engine.KindRateLimit, true, 5 * time.Second},
		{engine.KindConfiguration, false, 0},
	}
	for _, c := range cases {
		err := engine.NewError(c.kind, "boom")
		if engine.IsRetryable(err) != c.retryable {
			t.Errorf("%s: retryable should be %v", c.kind, c.retryable)
		}
		if engine.RetryDelay(err) != c.delay {
			t.Errorf("%s: expected delay %v, got %v", c.kind, c.delay, engine.RetryDelay(err))
		}
	}
}

func TestUserMessage_NeverLeaksInternals(t *testing.T) {
	// GIVEN: An error wrapping an internal failure message
	// WHEN: Producing the user-visible message
	// THEN: The internal detail stays out of it (except validation,
	//       whose detail is caller-authored and meant to be shown)

	err := engine.WrapError(engine.KindDatabase,
		errors.New("sqlite: disk I/O error at offset 4096"), "append failed")

	msg := engine.UserMessage(err)
	if strings.Contains(msg, "sqlite") || strings.Contains(msg, "4096") {
		t.Errorf("internal detail leaked into user message: %q", msg)
	}
}

func TestUserMessage_ValidationCarriesDetail(t *testing.T) {
	err := engine.NewError(engine.KindValidation, "uptime must be at least 95")
	msg := engine.UserMessage(err)
	if !strings.Contains(msg, "Please check your input") || !strings.Contains(msg, "uptime must be at least 95") {
		t.Errorf("unexpected validation message: %q", msg)
	}
}

func TestKindOf_Sentinels(t *testing.T) {
	if engine.KindOf(engine.ErrTemplateNotFound) != engine.KindNotFound {
		t.Error("template-not-found should map to the not_found kind")
	}
	if !engine.IsNotFound(fmt.Errorf("loading: %w", engine.ErrDocumentNotFound)) {
		t.Error("wrapped sentinel should still classify as not found")
	}
}

func TestValidateMetadata(t *testing.T) {
	ok := engine.ValidateMetadata(engine.EventPreview, engine.Metadata{Source: "web", DocumentFormat: "pdf"})
	if ok != nil {
		t.Errorf("valid preview metadata rejected: %v", ok)
	}

	err := engine.ValidateMetadata(engine.EventPreview, engine.Metadata{SignatureMethod: "digital"})
	if err == nil {
		t.Fatal("signature_method on a preview must be rejected")
	}
	if engine.KindOf(err) != engine.KindValidation {
		t.Errorf("expected a validation kind, got %v", engine.KindOf(err))
	}

	if engine.ValidateMetadata(engine.EventTemplateModified, engine.Metadata{ChangedFields: []string{"content_body"}}) != nil {
		t.Error("changed_fields on template_modified should be accepted")
	}
	if engine.ValidateMetadata("bogus", engine.Metadata{}) == nil {
		t.Error("unknown event type must be rejected")
	}
}
