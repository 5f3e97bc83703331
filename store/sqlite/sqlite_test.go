package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covara/agreement-engine/engine"
	"github.com/covara/agreement-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testTemplate(id string) *engine.Template {
	return &engine.Template{
		ID:          engine.TemplateID(id),
		Name:        "Standard SLA",
		PackageType: engine.PackageBookingSystem,
		ContentBody: "Uptime {{uptime}}%",
		Variables: []engine.VariableSpec{
			{Name: "uptime", DisplayName: "Uptime", Type: engine.VariableNumber, DefaultValue: 99.5},
		},
		IsActive: true,
		Version:  2,
	}
}

// =============================================================================
// TEMPLATE PERSISTENCE
// =============================================================================

func TestTemplates_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutTemplate(ctx, testTemplate("tpl-1")))

	got, err := store.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Standard SLA", got.Name)
	assert.Equal(t, engine.PackageBookingSystem, got.PackageType)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Variables, 1)
	assert.Equal(t, "uptime", got.Variables[0].Name)
}

func TestTemplates_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTemplate(context.Background(), "nope")
	assert.ErrorIs(t, err, engine.ErrTemplateNotFound)
	assert.True(t, engine.IsNotFound(err))
}

func TestTemplates_IncrementUsage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutTemplate(ctx, testTemplate("tpl-1")))
	require.NoError(t, store.IncrementUsage(ctx, "tpl-1"))
	require.NoError(t, store.IncrementUsage(ctx, "tpl-1"))

	got, err := store.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)

	assert.ErrorIs(t, store.IncrementUsage(ctx, "missing"), engine.ErrTemplateNotFound)
}

// =============================================================================
// DOCUMENT NUMBER UNIQUENESS
// =============================================================================

func TestDocuments_NumberConflict(t *testing.T) {
	// GIVEN: A committed document with number Q-2025-0007
	// WHEN: A second document tries to commit the same number
	// THEN: ErrNumberConflict - the unique index is the mutual exclusion

	store := newTestStore(t)
	ctx := context.Background()

	doc := &engine.Document{
		ID:        "doc-1",
		Kind:      engine.DocumentQuote,
		Number:    "Q-2025-0007",
		Content:   "quote body",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.InsertDocument(ctx, doc))

	dup := &engine.Document{
		ID:        "doc-2",
		Kind:      engine.DocumentQuote,
		Number:    "Q-2025-0007",
		Content:   "other body",
		CreatedAt: time.Now(),
	}
	err := store.InsertDocument(ctx, dup)
	assert.ErrorIs(t, err, engine.ErrNumberConflict)
}

func TestDocuments_ListByKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, d := range []*engine.Document{
		{ID: "d1", Kind: engine.DocumentQuote, Number: "Q-0001", Content: "a", CreatedAt: time.Now()},
		{ID: "d2", Kind: engine.DocumentAgreement, Number: "SLA-0001", Content: "b", CreatedAt: time.Now()},
		{ID: "d3", Kind: engine.DocumentQuote, Number: "Q-0002", Content: "c", CreatedAt: time.Now()},
	} {
		require.NoError(t, store.InsertDocument(ctx, d))
	}

	quotes, err := store.ListDocuments(ctx, engine.DocumentQuote)
	require.NoError(t, err)
	assert.Len(t, quotes, 2)

	all, err := store.ListDocuments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// COUNTERS
// =============================================================================

func TestCounters_FirstUseStartsAtOne(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v, err := store.Counter(ctx, "quote")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, store.SetCounter(ctx, "quote", 8))
	v, err = store.Counter(ctx, "quote")
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
}

func TestCounters_Independent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetCounter(ctx, "quote", 10))
	require.NoError(t, store.SetCounter(ctx, "agreement", 3))

	q, _ := store.Counter(ctx, "quote")
	a, _ := store.Counter(ctx, "agreement")
	assert.Equal(t, int64(10), q)
	assert.Equal(t, int64(3), a)
}

// =============================================================================
// USAGE EVENTS
// =============================================================================

func TestEvents_AppendOnly_DuplicateRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := engine.UsageEvent{
		ID:         "ev-1",
		TemplateID: "tpl-1",
		EventType:  engine.EventPreview,
		UserID:     "u-1",
		Metadata:   engine.Metadata{Source: "web", DocumentFormat: "pdf"},
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, store.AppendEvent(ctx, e))

	err := store.AppendEvent(ctx, e)
	assert.ErrorIs(t, err, engine.ErrDuplicateEvent, "retried write is rejected, safe to ignore")
}

func TestEvents_QueryBoundsAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, daysAgo := range []int{10, 1, 40} {
		require.NoError(t, store.AppendEvent(ctx, engine.UsageEvent{
			ID:         engine.EventID(string(rune('a' + i))),
			TemplateID: "tpl-1",
			EventType:  engine.EventPreview,
			OccurredAt: now.AddDate(0, 0, -daysAgo),
		}))
	}

	events, err := store.EventsByTemplate(ctx, "tpl-1", now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].OccurredAt.Before(events[1].OccurredAt), "ascending by occurred_at")

	all, err := store.EventsSince(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEvents_MetadataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendEvent(ctx, engine.UsageEvent{
		ID:         "ev-meta",
		TemplateID: "tpl-1",
		EventType:  engine.EventTemplateModified,
		Metadata:   engine.Metadata{Source: "api", ChangedFields: []string{"content_body"}},
		OccurredAt: time.Now().UTC(),
	}))

	events, err := store.EventsByTemplate(ctx, "tpl-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"content_body"}, events[0].Metadata.ChangedFields)
}
