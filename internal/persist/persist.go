// Package persist writes graph artifacts through a GraphStore under dedup
// keys, bounding every call with a timeout and retrying transient failures.
// Because keys are deterministic a retried write never duplicates data.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajitpratap0/casegraph/internal/metrics"
	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/store"
)

// Options controls per-call timeouts and retries.
type Options struct {
	// Timeout bounds a single store call.
	Timeout time.Duration

	// Retries is the number of extra attempts after the first failure.
	Retries int

	// Backoff is the delay before the first retry; it doubles each attempt.
	Backoff time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{Timeout: 10 * time.Second, Retries: 3, Backoff: 200 * time.Millisecond}
}

// WriteError reports a write that still failed after all retries.
type WriteError struct {
	Artifact string
	Key      string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s %s: %v", e.Artifact, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Adapter wraps a GraphStore with dedup keys, timeouts and retries.
type Adapter struct {
	store  store.GraphStore
	opts   Options
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates an Adapter. Zero option fields fall back to DefaultOptions.
func New(s store.GraphStore, opts Options, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	return &Adapter{store: s, opts: opts, logger: logger, sleep: sleepCtx}
}

// Store returns the underlying store.
func (a *Adapter) Store() store.GraphStore { return a.store }

// Entity upserts e keyed by name and type.
func (a *Adapter) Entity(ctx context.Context, e models.Entity) (store.UpsertResult, error) {
	key := EntityKey(e.CaseID, e.Name, e.Type)
	r, err := a.do(ctx, "entity", key, func(ctx context.Context) (store.UpsertResult, error) {
		return a.store.UpsertEntity(ctx, key, e)
	})
	if err != nil {
		return r, err
	}
	if r.Created {
		metrics.Inc(metrics.EntitiesCreated)
	} else {
		metrics.Inc(metrics.EntitiesReused)
	}
	return r, nil
}

// Event upserts ev keyed by title, time and description.
func (a *Adapter) Event(ctx context.Context, ev models.TimelineEvent) (store.UpsertResult, error) {
	key := EventKey(ev.CaseID, ev.Title, ev.EventTime, ev.Description)
	r, err := a.do(ctx, "event", key, func(ctx context.Context) (store.UpsertResult, error) {
		return a.store.UpsertTimelineEvent(ctx, key, ev)
	})
	if err == nil && r.Created {
		metrics.Inc(metrics.EventsCreated)
	}
	return r, err
}

// Connection upserts c keyed by its endpoint names, type and label.
func (a *Adapter) Connection(ctx context.Context, c models.Connection, fromName, toName string) (store.UpsertResult, error) {
	key := ConnectionKey(c.CaseID, fromName, toName, c.ConnectionType, c.Label)
	r, err := a.do(ctx, "connection", key, func(ctx context.Context) (store.UpsertResult, error) {
		return a.store.UpsertConnection(ctx, key, c)
	})
	if err == nil && r.Created {
		metrics.Inc(metrics.ConnectionsCreated)
	}
	return r, err
}

// Alibi upserts al as a new version of its subject's alibi unless an
// identical claim is already stored.
func (a *Adapter) Alibi(ctx context.Context, al models.AlibiStatement) (store.UpsertResult, error) {
	key := AlibiKey(al.CaseID, al.SubjectEntityID, al.AlibiStart, al.AlibiEnd, al.LocationClaimed)
	r, err := a.do(ctx, "alibi", key, func(ctx context.Context) (store.UpsertResult, error) {
		return a.store.UpsertAlibiVersion(ctx, key, al)
	})
	if err == nil && r.Created {
		metrics.Inc(metrics.AlibisCreated)
	}
	return r, err
}

func (a *Adapter) do(ctx context.Context, artifact, key string, call func(context.Context) (store.UpsertResult, error)) (store.UpsertResult, error) {
	var lastErr error
	delay := a.opts.Backoff
	for attempt := 0; attempt <= a.opts.Retries; attempt++ {
		if attempt > 0 {
			metrics.Inc(metrics.WriteRetries)
			a.logger.Warn("retrying store write", "artifact", artifact, "key", key, "attempt", attempt, "error", lastErr)
			if err := a.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
			delay *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		r, err := call(callCtx)
		cancel()
		if err == nil {
			if !r.Created {
				metrics.Inc(metrics.DedupSkipped)
				a.logger.Debug("dedup key exists, skipping", "artifact", artifact, "key", key, "id", r.ID)
			}
			return r, nil
		}
		lastErr = err
		if errors.Is(err, store.ErrEmptyKey) || ctx.Err() != nil {
			break
		}
	}
	a.logger.Error("store write failed", "artifact", artifact, "key", key, "error", lastErr)
	return store.UpsertResult{}, &WriteError{Artifact: artifact, Key: key, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
