// Package store persists the case knowledge graph. Every write is an
// idempotent upsert keyed by a caller-supplied dedup key; a key that already
// exists is a no-op that returns the stored identifier.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ajitpratap0/casegraph/internal/models"
)

// ErrNotFound is returned by GetEntity when the entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when the backend cannot be reached.
var ErrUnavailable = errors.New("store unavailable")

// ErrEmptyKey is returned by the upsert methods for an empty dedup key.
var ErrEmptyKey = errors.New("empty dedup key")

// UpsertResult describes the outcome of an idempotent write.
type UpsertResult struct {
	// ID is the identifier of the stored artifact, which differs from the
	// submitted ID when the key already existed.
	ID string `json:"id"`

	// Created is false when the key already existed.
	Created bool `json:"created"`

	// Version is the alibi version number; zero for other artifacts.
	Version int `json:"version,omitempty"`
}

// GraphStore is the output contract of the pipeline.
type GraphStore interface {
	// EnsureSchema creates tables, constraints and indexes if missing.
	EnsureSchema(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// UpsertEntity stores e unless key exists.
	UpsertEntity(ctx context.Context, key string, e models.Entity) (UpsertResult, error)

	// UpsertTimelineEvent stores ev unless key exists.
	UpsertTimelineEvent(ctx context.Context, key string, ev models.TimelineEvent) (UpsertResult, error)

	// UpsertConnection stores c unless key exists.
	UpsertConnection(ctx context.Context, key string, c models.Connection) (UpsertResult, error)

	// UpsertAlibiVersion stores a unless key exists. On creation it assigns
	// the next version number for the subject, ignoring a.VersionNumber.
	UpsertAlibiVersion(ctx context.Context, key string, a models.AlibiStatement) (UpsertResult, error)

	// ListEntities returns the case's entities, optionally of one type.
	ListEntities(ctx context.Context, caseID string, entityType models.EntityType) ([]models.Entity, error)

	// GetEntity returns one entity or ErrNotFound.
	GetEntity(ctx context.Context, caseID, id string) (*models.Entity, error)

	// SearchEntities returns entities whose name contains query, ignoring case.
	SearchEntities(ctx context.Context, caseID, query string, limit int) ([]models.Entity, error)

	// ListTimelineEvents returns the case's events in timeline order.
	ListTimelineEvents(ctx context.Context, caseID string) ([]models.TimelineEvent, error)

	// ListConnections returns the case's connections.
	ListConnections(ctx context.Context, caseID string) ([]models.Connection, error)

	// ListAlibis returns the case's alibi versions ordered by subject and version.
	ListAlibis(ctx context.Context, caseID string) ([]models.AlibiStatement, error)

	// Stats returns artifact counts for the case.
	Stats(ctx context.Context, caseID string) (*models.CaseStats, error)

	// Close releases backend resources.
	Close() error
}

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

// SortEntities orders entities by first sighting, then name.
func SortEntities(items []models.Entity) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.FirstSeenAt.Equal(b.FirstSeenAt) {
			return a.FirstSeenAt.Before(b.FirstSeenAt)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// SortEvents orders events chronologically with undated events last.
func SortEvents(items []models.TimelineEvent) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.EventTime == nil && b.EventTime != nil:
			return false
		case a.EventTime != nil && b.EventTime == nil:
			return true
		case a.EventTime != nil && !a.EventTime.Equal(*b.EventTime):
			return a.EventTime.Before(*b.EventTime)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}

// SortConnections orders connections by endpoints, type and label.
func SortConnections(items []models.Connection) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.FromEntityID != b.FromEntityID {
			return a.FromEntityID < b.FromEntityID
		}
		if a.ToEntityID != b.ToEntityID {
			return a.ToEntityID < b.ToEntityID
		}
		if a.ConnectionType != b.ConnectionType {
			return a.ConnectionType < b.ConnectionType
		}
		return a.Label < b.Label
	})
}

// SortAlibis orders alibi versions by subject then version.
func SortAlibis(items []models.AlibiStatement) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.SubjectEntityID != b.SubjectEntityID {
			return a.SubjectEntityID < b.SubjectEntityID
		}
		return a.VersionNumber < b.VersionNumber
	})
}

func nameMatches(name, query string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(strings.TrimSpace(query)))
}

func newStats(caseID string) *models.CaseStats {
	return &models.CaseStats{
		CaseID:         caseID,
		EntitiesByType: make(map[string]int64),
		EventsByType:   make(map[string]int64),
	}
}
