package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/store"
)

const caseID = "case-1"

func backends(t *testing.T) map[string]func(t *testing.T) store.GraphStore {
	t.Helper()
	out := map[string]func(t *testing.T) store.GraphStore{
		"memory": func(t *testing.T) store.GraphStore { return store.NewMemoryStore() },
		"sqlite": func(t *testing.T) store.GraphStore {
			s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"), nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
	// Neo4j runs only against a live server and a disposable database.
	if uri := os.Getenv("CASEGRAPH_TEST_NEO4J_URI"); uri != "" {
		out["neo4j"] = func(t *testing.T) store.GraphStore {
			s, err := store.NewNeo4jStore(context.Background(), store.Neo4jConfig{
				URI:      uri,
				User:     os.Getenv("CASEGRAPH_TEST_NEO4J_USER"),
				Password: os.Getenv("CASEGRAPH_TEST_NEO4J_PASSWORD"),
			}, nil)
			require.NoError(t, err)
			require.NoError(t, s.EnsureSchema(context.Background()))
			t.Cleanup(func() { _ = s.Close() })
			return s
		}
	}
	return out
}

func entity(id, name string, typ models.EntityType, seen time.Time) models.Entity {
	return models.Entity{
		ID:          id,
		CaseID:      caseID,
		Type:        typ,
		Name:        name,
		Confidence:  80,
		FirstSeenAt: seen,
	}
}

func ts(hour int) *time.Time {
	t := time.Date(2024, 3, 15, hour, 0, 0, 0, time.UTC)
	return &t
}

// uniqueCase keeps live-backend runs isolated from earlier ones.
func uniqueCase(t *testing.T, name string) string {
	return caseID + "-" + name + "-" + time.Now().UTC().Format("150405.000000000")
}

func TestGraphStore_EntityUpsertIsIdempotent(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			cid := uniqueCase(t, name)
			seen := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

			e := entity(cid+"-e1", "John Smith", models.EntityTypePerson, seen)
			e.CaseID = cid
			r1, err := s.UpsertEntity(ctx, cid+"|john smith|person", e)
			require.NoError(t, err)
			assert.True(t, r1.Created)
			assert.Equal(t, e.ID, r1.ID)

			dup := e
			dup.ID = cid + "-e2"
			r2, err := s.UpsertEntity(ctx, cid+"|john smith|person", dup)
			require.NoError(t, err)
			assert.False(t, r2.Created)
			assert.Equal(t, e.ID, r2.ID, "existing key returns the stored id")

			all, err := s.ListEntities(ctx, cid, "")
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "John Smith", all[0].Name)
			assert.True(t, seen.Equal(all[0].FirstSeenAt))
		})
	}
}

func TestGraphStore_EmptyKeyRejected(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := open(t).UpsertEntity(context.Background(), "", entity("x", "X", models.EntityTypeOther, time.Now()))
			assert.ErrorIs(t, err, store.ErrEmptyKey)
		})
	}
}

func TestGraphStore_ListFilterSearchGet(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			cid := uniqueCase(t, name)
			base := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

			for i, e := range []models.Entity{
				entity(cid+"-p1", "Jane Doe", models.EntityTypePerson, base),
				entity(cid+"-l1", "Joe's Bar", models.EntityTypeLocation, base.Add(time.Minute)),
				entity(cid+"-p2", "Tom Baker", models.EntityTypePerson, base.Add(2*time.Minute)),
			} {
				e.CaseID = cid
				_, err := s.UpsertEntity(ctx, e.ID+"-key", e)
				require.NoError(t, err, "entity %d", i)
			}

			people, err := s.ListEntities(ctx, cid, models.EntityTypePerson)
			require.NoError(t, err)
			require.Len(t, people, 2)
			assert.Equal(t, "Jane Doe", people[0].Name)
			assert.Equal(t, "Tom Baker", people[1].Name)

			found, err := s.SearchEntities(ctx, cid, "BAR", 10)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "Joe's Bar", found[0].Name)

			limited, err := s.SearchEntities(ctx, cid, "o", 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			got, err := s.GetEntity(ctx, cid, cid+"-p2")
			require.NoError(t, err)
			assert.Equal(t, "Tom Baker", got.Name)

			_, err = s.GetEntity(ctx, cid, "missing")
			assert.True(t, errors.Is(err, store.ErrNotFound), "expected ErrNotFound, got: %v", err)

			other, err := s.ListEntities(ctx, cid+"-other", "")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestGraphStore_EventsConnectionsStats(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			cid := uniqueCase(t, name)
			base := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

			a := entity(cid+"-a", "Jane Doe", models.EntityTypePerson, base)
			b := entity(cid+"-b", "Joe's Bar", models.EntityTypeLocation, base)
			a.CaseID, b.CaseID = cid, cid
			_, err := s.UpsertEntity(ctx, cid+"-ka", a)
			require.NoError(t, err)
			_, err = s.UpsertEntity(ctx, cid+"-kb", b)
			require.NoError(t, err)

			events := []models.TimelineEvent{
				{ID: cid + "-ev2", CaseID: cid, Type: models.EventSighting, Title: "Sighting: Jane Doe",
					EventTime: ts(21), TimePrecision: models.PrecisionExact, Location: "Joe's Bar",
					ParticipantIDs: []string{a.ID}, VerificationStatus: models.StatusUnverified, Confidence: 90},
				{ID: cid + "-ev1", CaseID: cid, Type: models.EventPhoneCall, Title: "Phone call: Jane Doe",
					EventTime: ts(20), TimePrecision: models.PrecisionExact,
					ParticipantIDs: []string{a.ID}, VerificationStatus: models.StatusUnverified, Confidence: 85},
				{ID: cid + "-ev3", CaseID: cid, Type: models.EventOther, Title: "Other: undated",
					TimePrecision: models.PrecisionUnknown, ParticipantIDs: []string{},
					VerificationStatus: models.StatusUnverified, Confidence: 20},
			}
			for _, ev := range events {
				r, err := s.UpsertTimelineEvent(ctx, ev.ID+"-key", ev)
				require.NoError(t, err)
				assert.True(t, r.Created)
			}
			r, err := s.UpsertTimelineEvent(ctx, events[0].ID+"-key", events[0])
			require.NoError(t, err)
			assert.False(t, r.Created)

			timeline, err := s.ListTimelineEvents(ctx, cid)
			require.NoError(t, err)
			require.Len(t, timeline, 3)
			assert.Equal(t, cid+"-ev1", timeline[0].ID)
			assert.Equal(t, cid+"-ev2", timeline[1].ID)
			assert.Nil(t, timeline[2].EventTime, "undated events sort last")
			assert.Equal(t, []string{a.ID}, timeline[1].ParticipantIDs)
			assert.True(t, ts(21).Equal(*timeline[1].EventTime))

			conn := models.Connection{ID: cid + "-c1", CaseID: cid, FromEntityID: a.ID, ToEntityID: b.ID,
				ConnectionType: models.ConnLocatedAt, Confidence: models.ConfidenceProbable}
			rc, err := s.UpsertConnection(ctx, cid+"-kc", conn)
			require.NoError(t, err)
			assert.True(t, rc.Created)
			rc, err = s.UpsertConnection(ctx, cid+"-kc", conn)
			require.NoError(t, err)
			assert.False(t, rc.Created)

			conns, err := s.ListConnections(ctx, cid)
			require.NoError(t, err)
			require.Len(t, conns, 1)
			assert.Equal(t, models.ConfidenceProbable, conns[0].Confidence)

			stats, err := s.Stats(ctx, cid)
			require.NoError(t, err)
			assert.Equal(t, int64(2), stats.Entities)
			assert.Equal(t, int64(3), stats.Events)
			assert.Equal(t, int64(1), stats.Connections)
			assert.Equal(t, int64(0), stats.Alibis)
			assert.Equal(t, int64(1), stats.EntitiesByType["person"])
			assert.Equal(t, int64(1), stats.EventsByType["sighting"])
		})
	}
}

func TestGraphStore_AlibiVersionsIncrement(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			cid := uniqueCase(t, name)

			claim := func(id, location string) models.AlibiStatement {
				return models.AlibiStatement{
					ID: id, CaseID: cid, SubjectEntityID: cid + "-jane",
					AlibiStart: ts(21), AlibiEnd: ts(23), LocationClaimed: location,
					CorroboratingEntityIDs: []string{}, VerificationStatus: models.StatusUnverified,
					Confidence: 70, VersionNumber: 99,
				}
			}

			r1, err := s.UpsertAlibiVersion(ctx, cid+"-k1", claim(cid+"-a1", "Home"))
			require.NoError(t, err)
			assert.True(t, r1.Created)
			assert.Equal(t, 1, r1.Version, "submitted version number is ignored")

			r2, err := s.UpsertAlibiVersion(ctx, cid+"-k2", claim(cid+"-a2", "Joe's Bar"))
			require.NoError(t, err)
			assert.Equal(t, 2, r2.Version)

			again, err := s.UpsertAlibiVersion(ctx, cid+"-k1", claim(cid+"-a3", "Home"))
			require.NoError(t, err)
			assert.False(t, again.Created)
			assert.Equal(t, cid+"-a1", again.ID)
			assert.Equal(t, 1, again.Version)

			alibis, err := s.ListAlibis(ctx, cid)
			require.NoError(t, err)
			require.Len(t, alibis, 2)
			assert.Equal(t, "Home", alibis[0].LocationClaimed)
			assert.Equal(t, 1, alibis[0].VersionNumber)
			assert.Equal(t, "Joe's Bar", alibis[1].LocationClaimed)
			assert.True(t, ts(23).Equal(*alibis[1].AlibiEnd))
			assert.Nil(t, alibis[1].StatementDate)
		})
	}
}

func TestMemoryStore_ConcurrentAlibiVersionsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpsertAlibiVersion(ctx, "k"+string(rune('a'+i)), models.AlibiStatement{
				ID: "a" + string(rune('a'+i)), CaseID: caseID, SubjectEntityID: "jane",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	alibis, err := s.ListAlibis(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, alibis, 20)
	for i, a := range alibis {
		assert.Equal(t, i+1, a.VersionNumber)
	}
	assert.Equal(t, 20, s.Writes())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	ev := models.TimelineEvent{ID: "ev", CaseID: caseID, ParticipantIDs: []string{"p1"}}
	_, err := s.UpsertTimelineEvent(ctx, "k", ev)
	require.NoError(t, err)
	ev.ParticipantIDs[0] = "mutated"

	got, err := s.ListTimelineEvents(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ParticipantIDs[0])

	got[0].ParticipantIDs[0] = "mutated again"
	again, err := s.ListTimelineEvents(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, "p1", again[0].ParticipantIDs[0])
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "graph.db")

	s, err := store.NewSQLiteStore(path, nil)
	require.NoError(t, err)
	_, err = s.UpsertEntity(ctx, "k1", entity("e1", "Jane Doe", models.EntityTypePerson, time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))

	r, err := s.UpsertEntity(ctx, "k1", entity("e2", "Jane Doe", models.EntityTypePerson, time.Now().UTC()))
	require.NoError(t, err)
	assert.False(t, r.Created)
	assert.Equal(t, "e1", r.ID)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	r, err := s.UpsertEntity(context.Background(), "k", entity("e", "X", models.EntityTypeOther, time.Now()))
	require.NoError(t, err)
	assert.True(t, r.Created)
}
