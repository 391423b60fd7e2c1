package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-rankings-service/internal/domain"
)

// CatalogLoader fetches the catalogs of an event from a backing store.
type CatalogLoader interface {
	LoadCatalogs(ctx context.Context, eventID string) ([]domain.Catalog, error)
}

// CatalogRepository caches catalog lists with TTL to avoid repeated DB hits.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedCatalogs
}

type cachedCatalogs struct {
	catalogs  []domain.Catalog
	expiresAt time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCatalogs),
	}
}

func (r *CatalogRepository) GetCatalogs(ctx context.Context, eventID string) ([]domain.Catalog, error) {
	if catalogs, ok := r.cached(eventID); ok {
		return catalogs, nil
	}

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		if catalogs, ok := r.cached(eventID); ok {
			return catalogs, nil
		}

		catalogs, err := r.loader.LoadCatalogs(ctx, eventID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[eventID] = cachedCatalogs{
			catalogs:  catalogs,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return catalogs, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneCatalogs(result.([]domain.Catalog)), nil
}

// Invalidate drops the cached catalogs of an event.
func (r *CatalogRepository) Invalidate(eventID string) {
	r.mu.Lock()
	delete(r.cache, eventID)
	r.mu.Unlock()
}

func (r *CatalogRepository) cached(eventID string) ([]domain.Catalog, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[eventID]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return cloneCatalogs(entry.catalogs), true
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func cloneCatalogs(in []domain.Catalog) []domain.Catalog {
	if in == nil {
		return nil
	}
	out := make([]domain.Catalog, len(in))
	copy(out, in)
	return out
}

// StaticCatalogLoader is a loader backed by an in-memory map (useful for tests/demos).
// Unknown events have no catalogs.
type StaticCatalogLoader struct {
	catalogs map[string][]domain.Catalog
}

func NewStaticCatalogLoader(catalogs map[string][]domain.Catalog) *StaticCatalogLoader {
	return &StaticCatalogLoader{catalogs: catalogs}
}

func (l *StaticCatalogLoader) LoadCatalogs(_ context.Context, eventID string) ([]domain.Catalog, error) {
	return cloneCatalogs(l.catalogs[eventID]), nil
}
