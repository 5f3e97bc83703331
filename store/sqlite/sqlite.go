/*
Package sqlite provides a SQLite-backed implementation of the engine
storage interfaces.

PURPOSE:
  Implements engine.Store (templates, documents, counters, usage events)
  using SQLite. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  templates:    Whole-template rows; the variable schema travels as JSON
  documents:    Committed quotes/agreements; number is UNIQUE
  counters:     Named sequence counters backing number allocation
  usage_events: Append-only activity log; no UPDATE, no DELETE

UNIQUENESS AS MUTUAL EXCLUSION:
  The unique index on documents.number is the concurrency mechanism
  behind the sequence allocator's propose/commit protocol. Concurrent
  writers race to commit; the loser gets engine.ErrNumberConflict and
  retries once with a refreshed counter.

APPEND-ONLY ENFORCEMENT:
  usage_events has insert and select paths only. Events are immutable
  once written; duplicate IDs are rejected.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/agreements.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/covara/agreement-engine/engine"
	"github.com/covara/agreement-engine/factory"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.TemplateFactory
}

var _ engine.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, engine.WrapError(engine.KindDatabase, err, "failed to open database")
	}

	store := &Store{db: db, factory: factory.NewTemplateFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, engine.WrapError(engine.KindDatabase, err, "failed to migrate database")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Templates (stored whole; variable schema as JSON)
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		package_type TEXT NOT NULL,
		config_json TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 1,
		usage_count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Documents (quotes/agreements with allocated numbers)
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		number TEXT NOT NULL,
		template_id TEXT,
		quote_id TEXT,
		client_id TEXT,
		package_type TEXT,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_number
		ON documents(number);
	CREATE INDEX IF NOT EXISTS idx_documents_kind
		ON documents(kind, created_at);

	-- Sequence counters
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	-- Usage events (append-only)
	CREATE TABLE IF NOT EXISTS usage_events (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		user_id TEXT,
		client_id TEXT,
		quote_id TEXT,
		agreement_id TEXT,
		metadata_json TEXT,
		occurred_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_template_time
		ON usage_events(template_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_events_time
		ON usage_events(occurred_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TEMPLATES
// =============================================================================

func (s *Store) PutTemplate(ctx context.Context, tpl *engine.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := json.Marshal(s.factory.ToJSON(tpl))
	if err != nil {
		return engine.WrapError(engine.KindDatabase, err, "failed to encode template")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, package_type, config_json, is_active, version, usage_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			package_type = excluded.package_type,
			config_json = excluded.config_json,
			is_active = excluded.is_active,
			version = excluded.version,
			usage_count = excluded.usage_count,
			updated_at = excluded.updated_at`,
		string(tpl.ID), tpl.Name, string(tpl.PackageType), string(config),
		boolToInt(tpl.IsActive), tpl.Version, tpl.UsageCount,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return engine.WrapError(engine.KindDatabase, err, "failed to store template")
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, id engine.TemplateID) (*engine.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var config string
	var usageCount int
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json, usage_count FROM templates WHERE id = ?`,
		string(id)).Scan(&config, &usageCount)
	if err == sql.ErrNoRows {
		return nil, engine.ErrTemplateNotFound
	}
	if err != nil {
		return nil, engine.WrapError(engine.KindDatabase, err, "failed to load template")
	}

	tpl, err := s.factory.ParseTemplate(config)
	if err != nil {
		return nil, err
	}
	tpl.UsageCount = usageCount
	return tpl, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]*engine.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT config_json, usage_count FROM templates ORDER BY id`)
	if err != nil {
		return nil, engine.WrapError(engine.KindDatabase, err, "failed to list templates")
	}
	defer rows.Close()

	var out []*engine.Template
	for rows.Next() {
		var config string
		var usageCount int
		if err := rows.Scan(&config, &usageCount); err != nil {
			return nil, engine.WrapError(engine.KindDatabase, err, "failed to scan template")
		}
		tpl, err := s.factory.ParseTemplate(config)
		if err != nil {
			// A stored template that no longer parses is an authoring
			// defect; skip it rather than failing the whole listing.
			continue
		}
		tpl.UsageCount = usageCount
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (s *Store) IncrementUsage(ctx context.Context, id engine.TemplateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?`, string(id))
	if err != nil {
		return engine.WrapError(engine.KindDatabase, err, "failed to bump usage count")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engine.ErrTemplateNotFound
	}
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (s *Store) InsertDocument(ctx context.Context, doc *engine.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, kind, number, template_id, quote_id, client_id, package_type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(doc.ID), string(doc.Kind), doc.Number, string(doc.TemplateID),
		string(doc.QuoteID), string(doc.ClientID), string(doc.PackageType),
		doc.Content, doc.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrNumberConflict
		}
		return engine.WrapError(engine.KindDatabase, err, "failed to insert document")
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id engine.DocumentID) (*engine.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, number, template_id, quote_id, client_id, package_type, content, created_at
		FROM documents WHERE id = ?`, string(id))
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrDocumentNotFound
	}
	if err != nil {
		return nil, engine.WrapError(engine.KindDatabase, err, "failed to load document")
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, kind engine.DocumentKind) ([]*engine.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, kind, number, template_id, quote_id, client_id, package_type, content, created_at
		FROM documents`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engine.WrapError(engine.KindDatabase, err, "failed to list documents")
	}
	defer rows.Close()

	var out []*engine.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, engine.WrapError(engine.KindDatabase, err, "failed to scan document")
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*engine.Document, error) {
	var doc engine.Document
	var id, kind, templateID, quoteID, clientID, packageType, createdAt string
	if err := row.Scan(&id, &kind, &doc.Number, &templateID, &quoteID,
		&clientID, &packageType, &doc.Content, &createdAt); err != nil {
		return nil, err
	}
	doc.ID = engine.DocumentID(id)
	doc.Kind = engine.DocumentKind(kind)
	doc.TemplateID = engine.TemplateID(templateID)
	doc.QuoteID = engine.QuoteID(quoteID)
	doc.ClientID = engine.ClientID(clientID)
	doc.PackageType = engine.PackageType(packageType)
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = t
	return &doc, nil
}

// =============================================================================
// COUNTERS
// =============================================================================

func (s *Store) Counter(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First use creates the counter at 1.
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO counters (name, value) VALUES (?, 1)`, name)
	if err != nil {
		return 0, engine.WrapError(engine.KindDatabase, err, "failed to init counter")
	}

	var value int64
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if err != nil {
		return 0, engine.WrapError(engine.KindDatabase, err, "failed to read counter")
	}
	return value, nil
}

func (s *Store) SetCounter(ctx context.Context, name string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	if err != nil {
		return engine.WrapError(engine.KindDatabase, err, "failed to set counter")
	}
	return nil
}

// =============================================================================
// USAGE EVENTS (append-only)
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, event engine.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return engine.WrapError(engine.KindDatabase, err, "failed to encode event metadata")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_events (id, template_id, event_type, user_id, client_id, quote_id, agreement_id, metadata_json, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(event.ID), string(event.TemplateID), string(event.EventType),
		string(event.UserID), string(event.ClientID), string(event.QuoteID),
		string(event.AgreementID), string(metadata),
		event.OccurredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateEvent
		}
		return engine.WrapError(engine.KindDatabase, err, "failed to append event")
	}
	return nil
}

func (s *Store) EventsByTemplate(ctx context.Context, id engine.TemplateID, since time.Time) ([]engine.UsageEvent, error) {
	return s.queryEvents(ctx, `
		SELECT id, template_id, event_type, user_id, client_id, quote_id, agreement_id, metadata_json, occurred_at
		FROM usage_events WHERE template_id = ? AND occurred_at >= ?
		ORDER BY occurred_at`,
		string(id), since.UTC().Format(time.RFC3339Nano))
}

func (s *Store) EventsSince(ctx context.Context, since time.Time) ([]engine.UsageEvent, error) {
	return s.queryEvents(ctx, `
		SELECT id, template_id, event_type, user_id, client_id, quote_id, agreement_id, metadata_json, occurred_at
		FROM usage_events WHERE occurred_at >= ?
		ORDER BY occurred_at`,
		since.UTC().Format(time.RFC3339Nano))
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]engine.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engine.WrapError(engine.KindDatabase, err, "failed to query events")
	}
	defer rows.Close()

	var out []engine.UsageEvent
	for rows.Next() {
		var e engine.UsageEvent
		var id, templateID, eventType, userID, clientID, quoteID, agreementID, metadata, occurredAt string
		if err := rows.Scan(&id, &templateID, &eventType, &userID, &clientID,
			&quoteID, &agreementID, &metadata, &occurredAt); err != nil {
			return nil, engine.WrapError(engine.KindDatabase, err, "failed to scan event")
		}
		e.ID = engine.EventID(id)
		e.TemplateID = engine.TemplateID(templateID)
		e.EventType = engine.EventType(eventType)
		e.UserID = engine.UserID(userID)
		e.ClientID = engine.ClientID(clientID)
		e.QuoteID = engine.QuoteID(quoteID)
		e.AgreementID = engine.AgreementID(agreementID)
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, engine.WrapError(engine.KindDatabase, err, "failed to decode event metadata")
			}
		}
		t, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, engine.WrapError(engine.KindDatabase, err, "failed to parse event time")
		}
		e.OccurredAt = t
		out = append(out, e)
	}
	return out, rows.Err()
}

// EnsureCounter seeds a counter only when absent, for first boot.
func (s *Store) EnsureCounter(ctx context.Context, name string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO counters (name, value) VALUES (?, ?)`, name, value)
	if err != nil {
		return engine.WrapError(engine.KindDatabase, err, "failed to seed counter")
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
