package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/casegraph/internal/metrics"
	"github.com/ajitpratap0/casegraph/internal/models"
)

// CachedSource memoizes extractions by chunk content so re-ingesting the
// same text does not call the service again.
type CachedSource struct {
	next  Source
	cache *gocache.Cache
}

// NewCachedSource wraps next with a TTL cache.
func NewCachedSource(next Source, ttl time.Duration) *CachedSource {
	return &CachedSource{next: next, cache: gocache.New(ttl, 2*ttl)}
}

// Name returns the wrapped source's name.
func (c *CachedSource) Name() string { return c.next.Name() }

// Extract returns a cached extraction or asks the wrapped source.
func (c *CachedSource) Extract(ctx context.Context, req Request) (*models.Extraction, error) {
	key := cacheKey(c.next.Name(), req)
	if v, ok := c.cache.Get(key); ok {
		metrics.Inc(metrics.EnrichCacheHits)
		return withDocument(v.(*models.Extraction), req.DocumentID), nil
	}
	ex, err := c.next.Extract(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, withDocument(ex, ex.DocumentID))
	return ex, nil
}

func cacheKey(provider string, req Request) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(req.DocumentType))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))
	return hex.EncodeToString(h.Sum(nil))
}

// withDocument returns a copy of ex stamped with documentID. Slices are
// copied so callers cannot mutate the cached value.
func withDocument(ex *models.Extraction, documentID string) *models.Extraction {
	cp := *ex
	cp.DocumentID = documentID
	cp.Entities = append([]models.ExtractedEntity(nil), ex.Entities...)
	cp.Events = append([]models.ExtractedEvent(nil), ex.Events...)
	cp.Connections = append([]models.ExtractedConnection(nil), ex.Connections...)
	cp.Alibis = append([]models.ExtractedAlibi(nil), ex.Alibis...)
	return &cp
}

// LimitedSource throttles calls to the wrapped source with a token bucket.
type LimitedSource struct {
	next    Source
	limiter *rate.Limiter
}

// NewLimitedSource allows requestsPerSecond calls with the given burst.
func NewLimitedSource(next Source, requestsPerSecond float64, burst int) *LimitedSource {
	if burst <= 0 {
		burst = 1
	}
	return &LimitedSource{next: next, limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Name returns the wrapped source's name.
func (l *LimitedSource) Name() string { return l.next.Name() }

// Extract waits for a token, then calls the wrapped source.
func (l *LimitedSource) Extract(ctx context.Context, req Request) (*models.Extraction, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Extract(ctx, req)
}
