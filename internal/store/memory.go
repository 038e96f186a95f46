package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajitpratap0/casegraph/internal/models"
)

// MemoryStore is an in-process GraphStore used by tests and dry runs.
type MemoryStore struct {
	mu          sync.RWMutex
	entities    map[string]*models.Entity
	entityByID  map[string]*models.Entity
	events      map[string]*models.TimelineEvent
	connections map[string]*models.Connection
	alibis      map[string]*models.AlibiStatement

	// Deterministic insertion order per artifact kind.
	entityKeys     []string
	eventKeys      []string
	connectionKeys []string
	alibiKeys      []string

	// writes counts successful upsert calls, including no-ops.
	writes int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:    make(map[string]*models.Entity),
		entityByID:  make(map[string]*models.Entity),
		events:      make(map[string]*models.TimelineEvent),
		connections: make(map[string]*models.Connection),
		alibis:      make(map[string]*models.AlibiStatement),
	}
}

// EnsureSchema is a no-op.
func (m *MemoryStore) EnsureSchema(_ context.Context) error { return nil }

// Ping always succeeds.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Writes returns the number of upsert calls served.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// UpsertEntity stores e unless key exists.
func (m *MemoryStore) UpsertEntity(_ context.Context, key string, e models.Entity) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if existing, ok := m.entities[key]; ok {
		return UpsertResult{ID: existing.ID}, nil
	}
	stored := e
	m.entities[key] = &stored
	m.entityByID[stored.ID] = &stored
	m.entityKeys = append(m.entityKeys, key)
	return UpsertResult{ID: stored.ID, Created: true}, nil
}

// UpsertTimelineEvent stores ev unless key exists.
func (m *MemoryStore) UpsertTimelineEvent(_ context.Context, key string, ev models.TimelineEvent) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if existing, ok := m.events[key]; ok {
		return UpsertResult{ID: existing.ID}, nil
	}
	stored := copyEvent(ev)
	m.events[key] = &stored
	m.eventKeys = append(m.eventKeys, key)
	return UpsertResult{ID: stored.ID, Created: true}, nil
}

// UpsertConnection stores c unless key exists.
func (m *MemoryStore) UpsertConnection(_ context.Context, key string, c models.Connection) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if existing, ok := m.connections[key]; ok {
		return UpsertResult{ID: existing.ID}, nil
	}
	stored := c
	m.connections[key] = &stored
	m.connectionKeys = append(m.connectionKeys, key)
	return UpsertResult{ID: stored.ID, Created: true}, nil
}

// UpsertAlibiVersion stores a unless key exists, numbering it after the
// subject's latest version.
func (m *MemoryStore) UpsertAlibiVersion(_ context.Context, key string, a models.AlibiStatement) (UpsertResult, error) {
	if key == "" {
		return UpsertResult{}, ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if existing, ok := m.alibis[key]; ok {
		return UpsertResult{ID: existing.ID, Version: existing.VersionNumber}, nil
	}
	latest := 0
	for _, stored := range m.alibis {
		if stored.CaseID == a.CaseID && stored.SubjectEntityID == a.SubjectEntityID && stored.VersionNumber > latest {
			latest = stored.VersionNumber
		}
	}
	stored := copyAlibi(a)
	stored.VersionNumber = latest + 1
	m.alibis[key] = &stored
	m.alibiKeys = append(m.alibiKeys, key)
	return UpsertResult{ID: stored.ID, Created: true, Version: stored.VersionNumber}, nil
}

// ListEntities returns the case's entities, optionally filtered by type.
func (m *MemoryStore) ListEntities(_ context.Context, caseID string, entityType models.EntityType) ([]models.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Entity, 0)
	for _, key := range m.entityKeys {
		e := m.entities[key]
		if e.CaseID != caseID || (entityType != "" && e.Type != entityType) {
			continue
		}
		out = append(out, *e)
	}
	SortEntities(out)
	return out, nil
}

// GetEntity returns the entity with id.
func (m *MemoryStore) GetEntity(_ context.Context, caseID, id string) (*models.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entityByID[id]
	if !ok || e.CaseID != caseID {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

// SearchEntities matches entity names by substring.
func (m *MemoryStore) SearchEntities(ctx context.Context, caseID, query string, limit int) ([]models.Entity, error) {
	all, err := m.ListEntities(ctx, caseID, "")
	if err != nil {
		return nil, err
	}
	out := make([]models.Entity, 0)
	for i := range all {
		if !nameMatches(all[i].Name, query) {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListTimelineEvents returns the case's events in timeline order.
func (m *MemoryStore) ListTimelineEvents(_ context.Context, caseID string) ([]models.TimelineEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.TimelineEvent, 0)
	for _, key := range m.eventKeys {
		if ev := m.events[key]; ev.CaseID == caseID {
			out = append(out, copyEvent(*ev))
		}
	}
	SortEvents(out)
	return out, nil
}

// ListConnections returns the case's connections.
func (m *MemoryStore) ListConnections(_ context.Context, caseID string) ([]models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Connection, 0)
	for _, key := range m.connectionKeys {
		if c := m.connections[key]; c.CaseID == caseID {
			out = append(out, *c)
		}
	}
	SortConnections(out)
	return out, nil
}

// ListAlibis returns the case's alibi versions.
func (m *MemoryStore) ListAlibis(_ context.Context, caseID string) ([]models.AlibiStatement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AlibiStatement, 0)
	for _, key := range m.alibiKeys {
		if a := m.alibis[key]; a.CaseID == caseID {
			out = append(out, copyAlibi(*a))
		}
	}
	SortAlibis(out)
	return out, nil
}

// Stats counts the case's artifacts.
func (m *MemoryStore) Stats(_ context.Context, caseID string) (*models.CaseStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := newStats(caseID)
	for _, e := range m.entities {
		if e.CaseID == caseID {
			stats.Entities++
			stats.EntitiesByType[string(e.Type)]++
		}
	}
	for _, ev := range m.events {
		if ev.CaseID == caseID {
			stats.Events++
			stats.EventsByType[string(ev.Type)]++
		}
	}
	for _, c := range m.connections {
		if c.CaseID == caseID {
			stats.Connections++
		}
	}
	for _, a := range m.alibis {
		if a.CaseID == caseID {
			stats.Alibis++
		}
	}
	return stats, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Deep-copy mutable fields to prevent external mutation of stored data.
func copyEvent(ev models.TimelineEvent) models.TimelineEvent {
	if ev.ParticipantIDs != nil {
		ids := make([]string, len(ev.ParticipantIDs))
		copy(ids, ev.ParticipantIDs)
		ev.ParticipantIDs = ids
	}
	if ev.EventTime != nil {
		t := *ev.EventTime
		ev.EventTime = &t
	}
	return ev
}

func copyAlibi(a models.AlibiStatement) models.AlibiStatement {
	if a.CorroboratingEntityIDs != nil {
		ids := make([]string, len(a.CorroboratingEntityIDs))
		copy(ids, a.CorroboratingEntityIDs)
		a.CorroboratingEntityIDs = ids
	}
	for _, p := range []**time.Time{&a.StatementDate, &a.AlibiStart, &a.AlibiEnd} {
		if *p != nil {
			t := **p
			*p = &t
		}
	}
	return a
}
