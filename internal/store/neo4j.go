package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/casegraph/internal/models"
)

const (
	neo4jWriteTimeout = 15 * time.Second
	neo4jReadTimeout  = 10 * time.Second
)

// Neo4jConfig holds connection settings for a Neo4j graph.
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
	Timeout     time.Duration
}

// Neo4jStore implements GraphStore on a Neo4j database. Entities, events and
// alibi versions are nodes; connections are CONNECTED relationships between
// entity nodes.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("neo4j: uri required")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w: %w", ErrUnavailable, err)
	}

	logger.Info("connected to neo4j", "uri", cfg.URI, "database", cfg.Database)
	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		logger:   logger.With("store", "neo4j"),
	}, nil
}

var neo4jSchema = []string{
	`CREATE CONSTRAINT casegraph_entity_key IF NOT EXISTS FOR (n:Entity) REQUIRE n.dedup_key IS UNIQUE`,
	`CREATE CONSTRAINT casegraph_event_key IF NOT EXISTS FOR (n:Event) REQUIRE n.dedup_key IS UNIQUE`,
	`CREATE CONSTRAINT casegraph_alibi_key IF NOT EXISTS FOR (n:Alibi) REQUIRE n.dedup_key IS UNIQUE`,
	`CREATE CONSTRAINT casegraph_alibi_version IF NOT EXISTS FOR (n:Alibi) REQUIRE (n.case_id, n.subject_entity_id, n.version_number) IS UNIQUE`,
	`CREATE INDEX casegraph_entity_case IF NOT EXISTS FOR (n:Entity) ON (n.case_id)`,
	`CREATE INDEX casegraph_entity_id IF NOT EXISTS FOR (n:Entity) ON (n.id)`,
	`CREATE INDEX casegraph_event_case IF NOT EXISTS FOR (n:Event) ON (n.case_id)`,
	`CREATE INDEX casegraph_connection_key IF NOT EXISTS FOR ()-[r:CONNECTED]-() ON (r.dedup_key)`,
}

// EnsureSchema creates constraints and indexes. Individual failures are
// logged and skipped so older servers still work.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range neo4jSchema {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			s.logger.Warn("neo4j schema statement failed (continuing)", "stmt", stmt, "error", err)
		}
	}
	return nil
}

// Ping verifies connectivity.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, neo4jReadTimeout)
	defer cancel()
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Neo4jStore) write(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	ctx, cancel := withTimeout(ctx, neo4jWriteTimeout)
	defer cancel()
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, work)
}

func (s *Neo4jStore) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	ctx, cancel := withTimeout(ctx, neo4jReadTimeout)
	defer cancel()
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

// mergeNode runs a MERGE on label by dedup key, setting props only on create.
func mergeNode(ctx context.Context, tx neo4j.ManagedTransaction, label, key string, props map[string]any) (UpsertResult, error) {
	nonce := uuid.NewString()
	res, err := tx.Run(ctx, `MERGE (n:`+label+` {dedup_key: $key})
		ON CREATE SET n += $props, n.nonce = $nonce
		RETURN n.id AS id, n.nonce = $nonce AS created`,
		map[string]any{"key": key, "props": props, "nonce": nonce})
	if err != nil {
		return UpsertResult{}, err
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return UpsertResult{}, err
	}
	m := rec.AsMap()
	return UpsertResult{ID: propString(m, "id"), Created: propBool(m, "created")}, nil
}

// UpsertEntity stores e unless key exists.
func (s *Neo4jStore) UpsertEntity(ctx context.Context, key string, e models.Entity) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	out, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return mergeNode(ctx, tx, "Entity", key, entityProps(e))
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("neo4j: upsert entity: %w", err)
	}
	return out.(UpsertResult), nil
}

// UpsertTimelineEvent stores ev and its INVOLVES edges unless key exists.
func (s *Neo4jStore) UpsertTimelineEvent(ctx context.Context, key string, ev models.TimelineEvent) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	out, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := mergeNode(ctx, tx, "Event", key, eventProps(ev))
		if err != nil || !r.Created || len(ev.ParticipantIDs) == 0 {
			return r, err
		}
		res, err := tx.Run(ctx, `MATCH (n:Event {dedup_key: $key})
			UNWIND $participants AS pid
			MATCH (p:Entity {id: pid})
			MERGE (n)-[:INVOLVES]->(p)`,
			map[string]any{"key": key, "participants": ev.ParticipantIDs})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("neo4j: upsert event: %w", err)
	}
	return out.(UpsertResult), nil
}

// UpsertConnection stores c as a relationship unless key exists. Both
// endpoint entities must already be stored.
func (s *Neo4jStore) UpsertConnection(ctx context.Context, key string, c models.Connection) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	out, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nonce := uuid.NewString()
		res, err := tx.Run(ctx, `MATCH (a:Entity {id: $from}), (b:Entity {id: $to})
			MERGE (a)-[r:CONNECTED {dedup_key: $key}]->(b)
			ON CREATE SET r += $props, r.nonce = $nonce
			RETURN r.id AS id, r.nonce = $nonce AS created`,
			map[string]any{
				"from":  c.FromEntityID,
				"to":    c.ToEntityID,
				"key":   key,
				"props": connectionProps(c),
				"nonce": nonce,
			})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, fmt.Errorf("connection endpoints %s -> %s: %w", c.FromEntityID, c.ToEntityID, ErrNotFound)
		}
		m := recs[0].AsMap()
		return UpsertResult{ID: propString(m, "id"), Created: propBool(m, "created")}, nil
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("neo4j: upsert connection: %w", err)
	}
	return out.(UpsertResult), nil
}

// UpsertAlibiVersion stores a unless key exists, numbering it after the
// subject's latest version inside the same transaction.
func (s *Neo4jStore) UpsertAlibiVersion(ctx context.Context, key string, a models.AlibiStatement) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	out, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Alibi {dedup_key: $key})
			RETURN n.id AS id, n.version_number AS version`, map[string]any{"key": key})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			m := recs[0].AsMap()
			return UpsertResult{ID: propString(m, "id"), Version: propInt(m, "version")}, nil
		}

		res, err = tx.Run(ctx, `OPTIONAL MATCH (p:Alibi {case_id: $case, subject_entity_id: $subject})
			WITH coalesce(max(p.version_number), 0) + 1 AS version
			CREATE (n:Alibi)
			SET n += $props, n.dedup_key = $key, n.version_number = version
			WITH n
			OPTIONAL MATCH (s:Entity {id: $subject})
			FOREACH (_ IN CASE WHEN s IS NULL THEN [] ELSE [1] END | MERGE (n)-[:CLAIMED_BY]->(s))
			RETURN n.id AS id, n.version_number AS version`,
			map[string]any{
				"case":    a.CaseID,
				"subject": a.SubjectEntityID,
				"key":     key,
				"props":   alibiProps(a),
			})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		m := rec.AsMap()
		return UpsertResult{ID: propString(m, "id"), Created: true, Version: propInt(m, "version")}, nil
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("neo4j: upsert alibi: %w", err)
	}
	return out.(UpsertResult), nil
}

func (s *Neo4jStore) entities(ctx context.Context, cypher string, params map[string]any) ([]models.Entity, error) {
	recs, err := s.read(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j: listing entities: %w", err)
	}
	out := make([]models.Entity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, entityFromProps(nodeProps(rec)))
	}
	SortEntities(out)
	return out, nil
}

// ListEntities returns the case's entities, optionally filtered by type.
func (s *Neo4jStore) ListEntities(ctx context.Context, caseID string, entityType models.EntityType) ([]models.Entity, error) {
	return s.entities(ctx, `MATCH (n:Entity {case_id: $case})
		WHERE $type = '' OR n.type = $type
		RETURN n {.*} AS n`,
		map[string]any{"case": caseID, "type": string(entityType)})
}

// GetEntity returns one entity.
func (s *Neo4jStore) GetEntity(ctx context.Context, caseID, id string) (*models.Entity, error) {
	out, err := s.entities(ctx, `MATCH (n:Entity {case_id: $case, id: $id}) RETURN n {.*} AS n`,
		map[string]any{"case": caseID, "id": id})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return &out[0], nil
}

// SearchEntities matches entity names by substring, ignoring case.
func (s *Neo4jStore) SearchEntities(ctx context.Context, caseID, query string, limit int) ([]models.Entity, error) {
	out, err := s.entities(ctx, `MATCH (n:Entity {case_id: $case})
		WHERE toLower(n.name) CONTAINS $q
		RETURN n {.*} AS n`,
		map[string]any{"case": caseID, "q": strings.ToLower(strings.TrimSpace(query))})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListTimelineEvents returns the case's events in timeline order.
func (s *Neo4jStore) ListTimelineEvents(ctx context.Context, caseID string) ([]models.TimelineEvent, error) {
	recs, err := s.read(ctx, `MATCH (n:Event {case_id: $case}) RETURN n {.*} AS n`, map[string]any{"case": caseID})
	if err != nil {
		return nil, fmt.Errorf("neo4j: listing events: %w", err)
	}
	out := make([]models.TimelineEvent, 0, len(recs))
	for _, rec := range recs {
		out = append(out, eventFromProps(nodeProps(rec)))
	}
	SortEvents(out)
	return out, nil
}

// ListConnections returns the case's connections.
func (s *Neo4jStore) ListConnections(ctx context.Context, caseID string) ([]models.Connection, error) {
	recs, err := s.read(ctx, `MATCH (:Entity)-[r:CONNECTED {case_id: $case}]->(:Entity) RETURN r {.*} AS n`,
		map[string]any{"case": caseID})
	if err != nil {
		return nil, fmt.Errorf("neo4j: listing connections: %w", err)
	}
	out := make([]models.Connection, 0, len(recs))
	for _, rec := range recs {
		out = append(out, connectionFromProps(nodeProps(rec)))
	}
	SortConnections(out)
	return out, nil
}

// ListAlibis returns the case's alibi versions.
func (s *Neo4jStore) ListAlibis(ctx context.Context, caseID string) ([]models.AlibiStatement, error) {
	recs, err := s.read(ctx, `MATCH (n:Alibi {case_id: $case}) RETURN n {.*} AS n`, map[string]any{"case": caseID})
	if err != nil {
		return nil, fmt.Errorf("neo4j: listing alibis: %w", err)
	}
	out := make([]models.AlibiStatement, 0, len(recs))
	for _, rec := range recs {
		out = append(out, alibiFromProps(nodeProps(rec)))
	}
	SortAlibis(out)
	return out, nil
}

// Stats counts the case's artifacts.
func (s *Neo4jStore) Stats(ctx context.Context, caseID string) (*models.CaseStats, error) {
	stats := newStats(caseID)
	params := map[string]any{"case": caseID}

	grouped := []struct {
		cypher string
		total  *int64
		by     map[string]int64
	}{
		{`MATCH (n:Entity {case_id: $case}) RETURN n.type AS kind, count(*) AS n`, &stats.Entities, stats.EntitiesByType},
		{`MATCH (n:Event {case_id: $case}) RETURN n.type AS kind, count(*) AS n`, &stats.Events, stats.EventsByType},
		{`MATCH ()-[r:CONNECTED {case_id: $case}]->() RETURN '' AS kind, count(*) AS n`, &stats.Connections, nil},
		{`MATCH (n:Alibi {case_id: $case}) RETURN '' AS kind, count(*) AS n`, &stats.Alibis, nil},
	}
	for _, g := range grouped {
		recs, err := s.read(ctx, g.cypher, params)
		if err != nil {
			return nil, fmt.Errorf("neo4j: stats: %w", err)
		}
		for _, rec := range recs {
			m := rec.AsMap()
			n := int64(propInt(m, "n"))
			*g.total += n
			if g.by != nil {
				g.by[propString(m, "kind")] = n
			}
		}
	}
	return stats, nil
}

// Close shuts the driver down.
func (s *Neo4jStore) Close() error {
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(context.Background())
	s.driver = nil
	return err
}

func nodeProps(rec *neo4j.Record) map[string]any {
	v, _ := rec.Get("n")
	m, _ := v.(map[string]any)
	return m
}

func entityProps(e models.Entity) map[string]any {
	return map[string]any{
		"id":                 e.ID,
		"case_id":            e.CaseID,
		"type":               string(e.Type),
		"name":               e.Name,
		"role":               e.Role,
		"description":        e.Description,
		"confidence":         e.Confidence,
		"first_seen_at":      formatTime(e.FirstSeenAt),
		"color":              e.Color,
		"icon":               e.Icon,
		"source_document_id": e.SourceDocumentID,
	}
}

func entityFromProps(m map[string]any) models.Entity {
	return models.Entity{
		ID:               propString(m, "id"),
		CaseID:           propString(m, "case_id"),
		Type:             models.EntityType(propString(m, "type")),
		Name:             propString(m, "name"),
		Role:             propString(m, "role"),
		Description:      propString(m, "description"),
		Confidence:       propInt(m, "confidence"),
		FirstSeenAt:      parseTime(propString(m, "first_seen_at")),
		Color:            propString(m, "color"),
		Icon:             propString(m, "icon"),
		SourceDocumentID: propString(m, "source_document_id"),
	}
}

func eventProps(ev models.TimelineEvent) map[string]any {
	participants := ev.ParticipantIDs
	if participants == nil {
		participants = []string{}
	}
	return map[string]any{
		"id":                  ev.ID,
		"case_id":             ev.CaseID,
		"type":                string(ev.Type),
		"title":               ev.Title,
		"description":         ev.Description,
		"event_time":          nullTime(ev.EventTime),
		"time_precision":      string(ev.TimePrecision),
		"location":            ev.Location,
		"participant_ids":     participants,
		"verification_status": string(ev.VerificationStatus),
		"confidence":          ev.Confidence,
		"source_document_id":  ev.SourceDocumentID,
	}
}

func eventFromProps(m map[string]any) models.TimelineEvent {
	return models.TimelineEvent{
		ID:                 propString(m, "id"),
		CaseID:             propString(m, "case_id"),
		Type:               models.EventType(propString(m, "type")),
		Title:              propString(m, "title"),
		Description:        propString(m, "description"),
		EventTime:          propTime(m, "event_time"),
		TimePrecision:      models.TimePrecision(propString(m, "time_precision")),
		Location:           propString(m, "location"),
		ParticipantIDs:     propStrings(m, "participant_ids"),
		VerificationStatus: models.VerificationStatus(propString(m, "verification_status")),
		Confidence:         propInt(m, "confidence"),
		SourceDocumentID:   propString(m, "source_document_id"),
	}
}

func connectionProps(c models.Connection) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"case_id":         c.CaseID,
		"from_entity_id":  c.FromEntityID,
		"to_entity_id":    c.ToEntityID,
		"connection_type": c.ConnectionType,
		"label":           c.Label,
		"description":     c.Description,
		"confidence":      string(c.Confidence),
	}
}

func connectionFromProps(m map[string]any) models.Connection {
	return models.Connection{
		ID:             propString(m, "id"),
		CaseID:         propString(m, "case_id"),
		FromEntityID:   propString(m, "from_entity_id"),
		ToEntityID:     propString(m, "to_entity_id"),
		ConnectionType: propString(m, "connection_type"),
		Label:          propString(m, "label"),
		Description:    propString(m, "description"),
		Confidence:     models.ConnectionConfidence(propString(m, "confidence")),
	}
}

func alibiProps(a models.AlibiStatement) map[string]any {
	corroborators := a.CorroboratingEntityIDs
	if corroborators == nil {
		corroborators = []string{}
	}
	return map[string]any{
		"id":                  a.ID,
		"case_id":             a.CaseID,
		"subject_entity_id":   a.SubjectEntityID,
		"statement_date":      nullTime(a.StatementDate),
		"alibi_start":         nullTime(a.AlibiStart),
		"alibi_end":           nullTime(a.AlibiEnd),
		"location_claimed":    a.LocationClaimed,
		"activity_claimed":    a.ActivityClaimed,
		"full_statement":      a.FullStatement,
		"corroborating_ids":   corroborators,
		"verification_status": string(a.VerificationStatus),
		"confidence":          a.Confidence,
		"source_document_id":  a.SourceDocumentID,
	}
}

func alibiFromProps(m map[string]any) models.AlibiStatement {
	return models.AlibiStatement{
		ID:                     propString(m, "id"),
		CaseID:                 propString(m, "case_id"),
		SubjectEntityID:        propString(m, "subject_entity_id"),
		VersionNumber:          propInt(m, "version_number"),
		StatementDate:          propTime(m, "statement_date"),
		AlibiStart:             propTime(m, "alibi_start"),
		AlibiEnd:               propTime(m, "alibi_end"),
		LocationClaimed:        propString(m, "location_claimed"),
		ActivityClaimed:        propString(m, "activity_claimed"),
		FullStatement:          propString(m, "full_statement"),
		CorroboratingEntityIDs: propStrings(m, "corroborating_ids"),
		VerificationStatus:     models.VerificationStatus(propString(m, "verification_status")),
		Confidence:             propInt(m, "confidence"),
		SourceDocumentID:       propString(m, "source_document_id"),
	}
}

func propString(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func propBool(m map[string]any, k string) bool {
	b, _ := m[k].(bool)
	return b
}

func propInt(m map[string]any, k string) int {
	switch v := m[k].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func propTime(m map[string]any, k string) *time.Time {
	s := propString(m, k)
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func propStrings(m map[string]any, k string) []string {
	out := []string{}
	switch v := m[k].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	}
	return out
}
