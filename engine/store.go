/*
store.go - Persistence interfaces owned by the engine's callers

PURPOSE:
  Defines the interface between the engine and whatever persistence the
  caller brings. The engine itself never calls these - it is a library
  of pure functions - but the HTTP layer and tests need a common shape
  for templates, documents, counters, and usage events.

KEY INTERFACES:
  TemplateStore: Template load/save, usage counting
  DocumentStore: Finished documents under a unique-number constraint
  CounterStore:  Named sequence counters backing the allocator protocol
  EventStore:    Append-only usage events (no update, no delete)

APPEND-ONLY CONTRACT:
  EventStore has no Update or Delete. Events are written once at the
  moment an action occurs and only ever folded by the aggregators.

UNIQUENESS:
  DocumentStore.Insert must fail with ErrNumberConflict when the
  document number is already committed. That constraint is the actual
  mutual-exclusion mechanism behind the sequence allocator's
  propose/commit/retry-once protocol.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - engine/store: In-memory for testing/dev

SEE ALSO:
  - sequence.go: The conflict protocol this supports
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// DOCUMENT - A committed quote/agreement with its allocated number
// =============================================================================

type DocumentKind string

const (
	DocumentQuote     DocumentKind = "quote"
	DocumentAgreement DocumentKind = "agreement"
)

// Document is a finished, numbered record. Content is the rendered body
// from the substitution engine.
type Document struct {
	ID          DocumentID
	Kind        DocumentKind
	Number      string
	TemplateID  TemplateID
	QuoteID     QuoteID
	ClientID    ClientID
	PackageType PackageType
	Content     string
	CreatedAt   time.Time
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type TemplateStore interface {
	// PutTemplate inserts or replaces a template whole. The engine never
	// partially updates a template.
	PutTemplate(ctx context.Context, tpl *Template) error

	// GetTemplate returns ErrTemplateNotFound for unknown ids.
	GetTemplate(ctx context.Context, id TemplateID) (*Template, error)

	ListTemplates(ctx context.Context) ([]*Template, error)

	// IncrementUsage bumps the template's usage counter after a
	// successful generation.
	IncrementUsage(ctx context.Context, id TemplateID) error
}

type DocumentStore interface {
	// InsertDocument persists a document. Returns ErrNumberConflict when
	// doc.Number collides with an already-committed number.
	InsertDocument(ctx context.Context, doc *Document) error

	// GetDocument returns ErrDocumentNotFound for unknown ids.
	GetDocument(ctx context.Context, id DocumentID) (*Document, error)

	ListDocuments(ctx context.Context, kind DocumentKind) ([]*Document, error)
}

type CounterStore interface {
	// Counter returns the current value of a named counter, creating it
	// at 1 on first use.
	Counter(ctx context.Context, name string) (int64, error)

	// SetCounter stores the next value to hand out. After committing a
	// number that consumed value v, callers set the counter to v+1.
	SetCounter(ctx context.Context, name string, value int64) error
}

type EventStore interface {
	// AppendEvent persists one usage event. Returns ErrDuplicateEvent if
	// the event ID was already written; safe to ignore on retries.
	AppendEvent(ctx context.Context, event UsageEvent) error

	// EventsByTemplate returns a template's events since the given time,
	// ordered by OccurredAt ascending.
	EventsByTemplate(ctx context.Context, id TemplateID, since time.Time) ([]UsageEvent, error)

	// EventsSince returns all events since the given time, ordered by
	// OccurredAt ascending.
	EventsSince(ctx context.Context, since time.Time) ([]UsageEvent, error)
}

// Store is the full backend contract the HTTP layer runs against.
type Store interface {
	TemplateStore
	DocumentStore
	CounterStore
	EventStore
}
