// Package store provides engine.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/covara/agreement-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	templates map[engine.TemplateID]*engine.Template
	documents map[engine.DocumentID]*engine.Document
	numbers   map[string]engine.DocumentID
	counters  map[string]int64
	events    []engine.UsageEvent
	eventIDs  map[engine.EventID]bool
}

func NewMemory() *Memory {
	return &Memory{
		templates: make(map[engine.TemplateID]*engine.Template),
		documents: make(map[engine.DocumentID]*engine.Document),
		numbers:   make(map[string]engine.DocumentID),
		counters:  make(map[string]int64),
		eventIDs:  make(map[engine.EventID]bool),
	}
}

var _ engine.Store = (*Memory)(nil)

// -----------------------------------------------------------------------------
// Templates
// -----------------------------------------------------------------------------

func (m *Memory) PutTemplate(_ context.Context, tpl *engine.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tpl
	m.templates[tpl.ID] = &cp
	return nil
}

func (m *Memory) GetTemplate(_ context.Context, id engine.TemplateID) (*engine.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, engine.ErrTemplateNotFound
	}
	cp := *tpl
	return &cp, nil
}

func (m *Memory) ListTemplates(_ context.Context) ([]*engine.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*engine.Template, 0, len(m.templates))
	for _, tpl := range m.templates {
		cp := *tpl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) IncrementUsage(_ context.Context, id engine.TemplateID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return engine.ErrTemplateNotFound
	}
	tpl.UsageCount++
	return nil
}

// -----------------------------------------------------------------------------
// Documents
// -----------------------------------------------------------------------------

func (m *Memory) InsertDocument(_ context.Context, doc *engine.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.numbers[doc.Number]; taken {
		return engine.ErrNumberConflict
	}
	cp := *doc
	m.documents[doc.ID] = &cp
	m.numbers[doc.Number] = doc.ID
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id engine.DocumentID) (*engine.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, engine.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *Memory) ListDocuments(_ context.Context, kind engine.DocumentKind) ([]*engine.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*engine.Document
	for _, doc := range m.documents {
		if kind != "" && doc.Kind != kind {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// -----------------------------------------------------------------------------
// Counters
// -----------------------------------------------------------------------------

func (m *Memory) Counter(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[name]; !ok {
		m.counters[name] = 1
	}
	return m.counters[name], nil
}

func (m *Memory) SetCounter(_ context.Context, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] = value
	return nil
}

// -----------------------------------------------------------------------------
// Events (append-only)
// -----------------------------------------------------------------------------

func (m *Memory) AppendEvent(_ context.Context, event engine.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventIDs[event.ID] {
		return engine.ErrDuplicateEvent
	}

	// Binary search for insertion point keeps the slice ordered by
	// OccurredAt without a full sort per append.
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].OccurredAt.After(event.OccurredAt)
	})
	m.events = append(m.events, engine.UsageEvent{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = event

	m.eventIDs[event.ID] = true
	return nil
}

func (m *Memory) EventsByTemplate(_ context.Context, id engine.TemplateID, since time.Time) ([]engine.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.UsageEvent
	for _, e := range m.events {
		if e.TemplateID == id && !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) EventsSince(_ context.Context, since time.Time) ([]engine.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.UsageEvent
	for _, e := range m.events {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}
