package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/store"
)

// flakyStore fails the first n entity writes.
type flakyStore struct {
	*store.MemoryStore
	failures int
	calls    int
}

func (f *flakyStore) UpsertEntity(ctx context.Context, key string, e models.Entity) (store.UpsertResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return store.UpsertResult{}, store.ErrUnavailable
	}
	return f.MemoryStore.UpsertEntity(ctx, key, e)
}

// slowStore blocks alibi writes until the call context expires.
type slowStore struct {
	*store.MemoryStore
}

func (s *slowStore) UpsertAlibiVersion(ctx context.Context, _ string, _ models.AlibiStatement) (store.UpsertResult, error) {
	<-ctx.Done()
	return store.UpsertResult{}, ctx.Err()
}

func noSleep(adapter *Adapter) *Adapter {
	adapter.sleep = func(context.Context, time.Duration) error { return nil }
	return adapter
}

func TestEntityKey_CaseAndSpaceInsensitive(t *testing.T) {
	a := EntityKey("c1", "John  Smith", models.EntityTypePerson)
	b := EntityKey("c1", "john smith", models.EntityTypePerson)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, EntityKey("c1", "John Smith", models.EntityTypeOrganization))
	assert.NotEqual(t, a, EntityKey("c2", "John Smith", models.EntityTypePerson))
}

func TestEventKey(t *testing.T) {
	at := time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC)
	long := "Witness saw the suspect leave the bar through the side entrance carrying a bag."

	base := EventKey("c1", "Sighting: John Smith", &at, long)
	assert.Equal(t, base, EventKey("c1", "sighting:  john smith", &at, long))
	assert.Equal(t, base, EventKey("c1", "Sighting: John Smith", &at, long[:64]+" something else entirely"),
		"only the leading description feeds the key")
	assert.NotEqual(t, base, EventKey("c1", "Sighting: John Smith", nil, long))

	later := at.Add(time.Hour)
	assert.NotEqual(t, base, EventKey("c1", "Sighting: John Smith", &later, long))
}

func TestConnectionAndAlibiKeys(t *testing.T) {
	assert.Equal(t,
		ConnectionKey("c1", "Jane Doe", "Joe's Bar", models.ConnLocatedAt, ""),
		ConnectionKey("c1", "jane doe", "JOE'S BAR", models.ConnLocatedAt, ""))
	assert.NotEqual(t,
		ConnectionKey("c1", "Jane Doe", "Joe's Bar", models.ConnLocatedAt, ""),
		ConnectionKey("c1", "Joe's Bar", "Jane Doe", models.ConnLocatedAt, ""),
		"direction matters")
	assert.NotEqual(t,
		ConnectionKey("c1", "a", "bc", models.ConnAssociatedWith, ""),
		ConnectionKey("c1", "ab", "c", models.ConnAssociatedWith, ""))

	start := time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC)
	assert.Equal(t,
		AlibiKey("c1", "jane", &start, nil, "Home"),
		AlibiKey("c1", "jane", &start, nil, " home "))
	assert.NotEqual(t,
		AlibiKey("c1", "jane", &start, nil, "Home"),
		AlibiKey("c1", "jane", nil, nil, "Home"))
}

func TestAdapter_EntityIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	a := New(mem, Options{}, nil)

	e := models.Entity{ID: "e1", CaseID: "c1", Name: "John Smith", Type: models.EntityTypePerson}
	r1, err := a.Entity(ctx, e)
	require.NoError(t, err)
	assert.True(t, r1.Created)

	e.ID = "e2"
	e.Name = "JOHN SMITH"
	r2, err := a.Entity(ctx, e)
	require.NoError(t, err)
	assert.False(t, r2.Created)
	assert.Equal(t, "e1", r2.ID)
}

func TestAdapter_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 2}
	a := noSleep(New(fs, Options{Retries: 3}, nil))

	r, err := a.Entity(ctx, models.Entity{ID: "e1", CaseID: "c1", Name: "Jane Doe", Type: models.EntityTypePerson})
	require.NoError(t, err)
	assert.True(t, r.Created)
	assert.Equal(t, 3, fs.calls)
}

func TestAdapter_WriteErrorAfterRetries(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 10}
	a := noSleep(New(fs, Options{Retries: 2}, nil))

	_, err := a.Entity(ctx, models.Entity{ID: "e1", CaseID: "c1", Name: "Jane Doe", Type: models.EntityTypePerson})
	require.Error(t, err)

	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "entity", we.Artifact)
	assert.Equal(t, EntityKey("c1", "Jane Doe", models.EntityTypePerson), we.Key)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, 3, fs.calls)
}

func TestAdapter_PerCallTimeout(t *testing.T) {
	ss := &slowStore{MemoryStore: store.NewMemoryStore()}
	a := noSleep(New(ss, Options{Timeout: 10 * time.Millisecond, Retries: 1}, nil))

	_, err := a.Alibi(context.Background(), models.AlibiStatement{ID: "a1", CaseID: "c1", SubjectEntityID: "jane"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdapter_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 10}
	a := New(fs, Options{Retries: 5, Backoff: time.Hour}, nil)

	_, err := a.Entity(ctx, models.Entity{ID: "e1", CaseID: "c1", Name: "X", Type: models.EntityTypeOther})
	require.Error(t, err)
	assert.Equal(t, 1, fs.calls)
}

func TestAdapter_AlibiVersionsAndEvents(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	a := New(mem, Options{}, nil)

	home := models.AlibiStatement{ID: "a1", CaseID: "c1", SubjectEntityID: "jane", LocationClaimed: "Home"}
	friend := models.AlibiStatement{ID: "a2", CaseID: "c1", SubjectEntityID: "jane", LocationClaimed: "Friend's house"}

	r1, err := a.Alibi(ctx, home)
	require.NoError(t, err)
	r2, err := a.Alibi(ctx, friend)
	require.NoError(t, err)
	r3, err := a.Alibi(ctx, home)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1}, []int{r1.Version, r2.Version, r3.Version})
	assert.False(t, r3.Created)

	ev := models.TimelineEvent{ID: "ev1", CaseID: "c1", Title: "Sighting: Jane Doe", Description: "seen"}
	_, err = a.Event(ctx, ev)
	require.NoError(t, err)
	ev.ID = "ev2"
	r, err := a.Event(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, "ev1", r.ID)

	conn := models.Connection{ID: "c", CaseID: "c1", ConnectionType: models.ConnAssociatedWith}
	_, err = a.Connection(ctx, conn, "Jane Doe", "Tom Baker")
	require.NoError(t, err)
	stats, err := mem.Stats(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Events)
	assert.Equal(t, int64(1), stats.Connections)
	assert.Equal(t, int64(2), stats.Alibis)
}
