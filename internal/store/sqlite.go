package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/casegraph/internal/models"
)

// DefaultSQLitePath is the default database location.
const DefaultSQLitePath = "~/.casegraph/casegraph.db"

const sqliteOpTimeout = 10 * time.Second

// SQLiteStore implements GraphStore on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Pass ":memory:" for a throwaway database.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultSQLitePath
	}
	path = ExpandPath(path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w: %w", ErrUnavailable, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: path, logger: logger}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("opened sqlite store", "path", path)
	return s, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		dedup_key TEXT NOT NULL UNIQUE,
		case_id TEXT NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		confidence INTEGER NOT NULL DEFAULT 0,
		first_seen_at TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		source_document_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_case ON entities(case_id, type)`,
	`CREATE TABLE IF NOT EXISTS timeline_events (
		id TEXT PRIMARY KEY,
		dedup_key TEXT NOT NULL UNIQUE,
		case_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		event_time TEXT,
		time_precision TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		participant_ids TEXT NOT NULL DEFAULT '[]',
		verification_status TEXT NOT NULL,
		confidence INTEGER NOT NULL DEFAULT 0,
		source_document_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_case ON timeline_events(case_id, event_time)`,
	`CREATE TABLE IF NOT EXISTS connections (
		id TEXT PRIMARY KEY,
		dedup_key TEXT NOT NULL UNIQUE,
		case_id TEXT NOT NULL,
		from_entity_id TEXT NOT NULL,
		to_entity_id TEXT NOT NULL,
		connection_type TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		confidence TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_connections_case ON connections(case_id)`,
	`CREATE TABLE IF NOT EXISTS alibi_statements (
		id TEXT PRIMARY KEY,
		dedup_key TEXT NOT NULL UNIQUE,
		case_id TEXT NOT NULL,
		subject_entity_id TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		statement_date TEXT,
		alibi_start TEXT,
		alibi_end TEXT,
		location_claimed TEXT NOT NULL DEFAULT '',
		activity_claimed TEXT NOT NULL DEFAULT '',
		full_statement TEXT NOT NULL DEFAULT '',
		corroborating_ids TEXT NOT NULL DEFAULT '[]',
		verification_status TEXT NOT NULL,
		confidence INTEGER NOT NULL DEFAULT 0,
		source_document_id TEXT NOT NULL DEFAULT '',
		UNIQUE(case_id, subject_entity_id, version_number)
	)`,
}

// EnsureSchema creates the tables and indexes if missing.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// UpsertEntity stores e unless key exists.
func (s *SQLiteStore) UpsertEntity(ctx context.Context, key string, e models.Entity) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `INSERT INTO entities
		(id, dedup_key, case_id, type, name, role, description, confidence, first_seen_at, color, icon, source_document_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`,
		e.ID, key, e.CaseID, string(e.Type), e.Name, e.Role, e.Description, e.Confidence,
		formatTime(e.FirstSeenAt), e.Color, e.Icon, e.SourceDocumentID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert entity: %w", err)
	}
	return s.resolveUpsert(ctx, res, "entities", key)
}

// UpsertTimelineEvent stores ev unless key exists.
func (s *SQLiteStore) UpsertTimelineEvent(ctx context.Context, key string, ev models.TimelineEvent) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	participants, err := encodeIDs(ev.ParticipantIDs)
	if err != nil {
		return UpsertResult{}, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO timeline_events
		(id, dedup_key, case_id, type, title, description, event_time, time_precision, location,
		 participant_ids, verification_status, confidence, source_document_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`,
		ev.ID, key, ev.CaseID, string(ev.Type), ev.Title, ev.Description, nullTime(ev.EventTime),
		string(ev.TimePrecision), ev.Location, participants, string(ev.VerificationStatus),
		ev.Confidence, ev.SourceDocumentID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert event: %w", err)
	}
	return s.resolveUpsert(ctx, res, "timeline_events", key)
}

// UpsertConnection stores c unless key exists.
func (s *SQLiteStore) UpsertConnection(ctx context.Context, key string, c models.Connection) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `INSERT INTO connections
		(id, dedup_key, case_id, from_entity_id, to_entity_id, connection_type, label, description, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`,
		c.ID, key, c.CaseID, c.FromEntityID, c.ToEntityID, c.ConnectionType, c.Label, c.Description,
		string(c.Confidence))
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert connection: %w", err)
	}
	return s.resolveUpsert(ctx, res, "connections", key)
}

// UpsertAlibiVersion stores a unless key exists. The version number is
// computed inside the INSERT so concurrent writers cannot reuse one.
func (s *SQLiteStore) UpsertAlibiVersion(ctx context.Context, key string, a models.AlibiStatement) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	corroborators, err := encodeIDs(a.CorroboratingEntityIDs)
	if err != nil {
		return UpsertResult{}, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO alibi_statements
		(id, dedup_key, case_id, subject_entity_id, version_number, statement_date, alibi_start, alibi_end,
		 location_claimed, activity_claimed, full_statement, corroborating_ids, verification_status,
		 confidence, source_document_id)
		SELECT ?, ?, ?, ?, COALESCE(MAX(version_number), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM alibi_statements WHERE case_id = ? AND subject_entity_id = ?
		ON CONFLICT(dedup_key) DO NOTHING`,
		a.ID, key, a.CaseID, a.SubjectEntityID,
		nullTime(a.StatementDate), nullTime(a.AlibiStart), nullTime(a.AlibiEnd),
		a.LocationClaimed, a.ActivityClaimed, a.FullStatement, corroborators,
		string(a.VerificationStatus), a.Confidence, a.SourceDocumentID,
		a.CaseID, a.SubjectEntityID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert alibi: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert alibi: %w", err)
	}
	out := UpsertResult{Created: n == 1}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, version_number FROM alibi_statements WHERE dedup_key = ?`, key).
		Scan(&out.ID, &out.Version)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("reading alibi %s: %w", key, err)
	}
	return out, nil
}

// resolveUpsert turns an INSERT .. DO NOTHING result into an UpsertResult.
func (s *SQLiteStore) resolveUpsert(ctx context.Context, res sql.Result, table, key string) (UpsertResult, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert %s: %w", table, err)
	}
	out := UpsertResult{Created: n == 1}
	// table is one of the fixed names above, never user input.
	err = s.db.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE dedup_key = ?", key).Scan(&out.ID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("reading %s %s: %w", table, key, err)
	}
	return out, nil
}

const entityColumns = `id, case_id, type, name, role, description, confidence, first_seen_at, color, icon, source_document_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (models.Entity, error) {
	var (
		e         models.Entity
		entType   string
		firstSeen string
	)
	if err := row.Scan(&e.ID, &e.CaseID, &entType, &e.Name, &e.Role, &e.Description,
		&e.Confidence, &firstSeen, &e.Color, &e.Icon, &e.SourceDocumentID); err != nil {
		return e, err
	}
	e.Type = models.EntityType(entType)
	e.FirstSeenAt = parseTime(firstSeen)
	return e, nil
}

func (s *SQLiteStore) queryEntities(ctx context.Context, query string, args ...any) ([]models.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	out := make([]models.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	SortEntities(out)
	return out, nil
}

// ListEntities returns the case's entities, optionally filtered by type.
func (s *SQLiteStore) ListEntities(ctx context.Context, caseID string, entityType models.EntityType) ([]models.Entity, error) {
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()
	if entityType == "" {
		return s.queryEntities(ctx, `SELECT `+entityColumns+` FROM entities WHERE case_id = ?`, caseID)
	}
	return s.queryEntities(ctx, `SELECT `+entityColumns+` FROM entities WHERE case_id = ? AND type = ?`,
		caseID, string(entityType))
}

// GetEntity returns one entity.
func (s *SQLiteStore) GetEntity(ctx context.Context, caseID, id string) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE case_id = ? AND id = ?`, caseID, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %s: %w", id, err)
	}
	return &e, nil
}

// SearchEntities matches entity names by substring, ignoring case.
func (s *SQLiteStore) SearchEntities(ctx context.Context, caseID, query string, limit int) ([]models.Entity, error) {
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()
	out, err := s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE case_id = ? AND instr(lower(name), ?) > 0`,
		caseID, strings.ToLower(strings.TrimSpace(query)))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListTimelineEvents returns the case's events in timeline order.
func (s *SQLiteStore) ListTimelineEvents(ctx context.Context, caseID string) ([]models.TimelineEvent, error) {
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, case_id, type, title, description, event_time,
		time_precision, location, participant_ids, verification_status, confidence, source_document_id
		FROM timeline_events WHERE case_id = ?`, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	out := make([]models.TimelineEvent, 0)
	for rows.Next() {
		var (
			ev                             models.TimelineEvent
			evType, precision, status, ids string
			eventTime                      sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.CaseID, &evType, &ev.Title, &ev.Description, &eventTime,
			&precision, &ev.Location, &ids, &status, &ev.Confidence, &ev.SourceDocumentID); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Type = models.EventType(evType)
		ev.TimePrecision = models.TimePrecision(precision)
		ev.VerificationStatus = models.VerificationStatus(status)
		ev.EventTime = scanTime(eventTime)
		if ev.ParticipantIDs, err = decodeIDs(ids); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	SortEvents(out)
	return out, nil
}

// ListConnections returns the case's connections.
func (s *SQLiteStore) ListConnections(ctx context.Context, caseID string) ([]models.Connection, error) {
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, case_id, from_entity_id, to_entity_id,
		connection_type, label, description, confidence FROM connections WHERE case_id = ?`, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	out := make([]models.Connection, 0)
	for rows.Next() {
		var (
			c    models.Connection
			conf string
		)
		if err := rows.Scan(&c.ID, &c.CaseID, &c.FromEntityID, &c.ToEntityID, &c.ConnectionType,
			&c.Label, &c.Description, &conf); err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		c.Confidence = models.ConnectionConfidence(conf)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	SortConnections(out)
	return out, nil
}

// ListAlibis returns the case's alibi versions.
func (s *SQLiteStore) ListAlibis(ctx context.Context, caseID string) ([]models.AlibiStatement, error) {
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, case_id, subject_entity_id, version_number,
		statement_date, alibi_start, alibi_end, location_claimed, activity_claimed, full_statement,
		corroborating_ids, verification_status, confidence, source_document_id
		FROM alibi_statements WHERE case_id = ?`, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing alibis: %w", err)
	}
	defer rows.Close()

	out := make([]models.AlibiStatement, 0)
	for rows.Next() {
		var (
			a                    models.AlibiStatement
			stmtDate, start, end sql.NullString
			ids, status          string
		)
		if err := rows.Scan(&a.ID, &a.CaseID, &a.SubjectEntityID, &a.VersionNumber, &stmtDate, &start,
			&end, &a.LocationClaimed, &a.ActivityClaimed, &a.FullStatement, &ids, &status,
			&a.Confidence, &a.SourceDocumentID); err != nil {
			return nil, fmt.Errorf("scanning alibi: %w", err)
		}
		a.StatementDate = scanTime(stmtDate)
		a.AlibiStart = scanTime(start)
		a.AlibiEnd = scanTime(end)
		a.VerificationStatus = models.VerificationStatus(status)
		if a.CorroboratingEntityIDs, err = decodeIDs(ids); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing alibis: %w", err)
	}
	SortAlibis(out)
	return out, nil
}

// Stats counts the case's artifacts.
func (s *SQLiteStore) Stats(ctx context.Context, caseID string) (*models.CaseStats, error) {
	ctx, cancel := withTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	stats := newStats(caseID)
	grouped := []struct {
		query string
		total *int64
		by    map[string]int64
	}{
		{`SELECT type, COUNT(*) FROM entities WHERE case_id = ? GROUP BY type`, &stats.Entities, stats.EntitiesByType},
		{`SELECT type, COUNT(*) FROM timeline_events WHERE case_id = ? GROUP BY type`, &stats.Events, stats.EventsByType},
	}
	for _, g := range grouped {
		if err := s.countGrouped(ctx, g.query, caseID, g.total, g.by); err != nil {
			return nil, err
		}
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections WHERE case_id = ?`, caseID).
		Scan(&stats.Connections); err != nil {
		return nil, fmt.Errorf("counting connections: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alibi_statements WHERE case_id = ?`, caseID).
		Scan(&stats.Alibis); err != nil {
		return nil, fmt.Errorf("counting alibis: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) countGrouped(ctx context.Context, query, caseID string, total *int64, by map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return fmt.Errorf("counting: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return fmt.Errorf("counting: %w", err)
		}
		by[kind] = n
		*total += n
	}
	return rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encoding ids: %w", err)
	}
	return string(b), nil
}

func decodeIDs(s string) ([]string, error) {
	ids := []string{}
	if s == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("decoding ids: %w", err)
	}
	return ids, nil
}
