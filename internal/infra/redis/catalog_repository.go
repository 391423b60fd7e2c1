package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/ingest"
)

// CatalogLoader fetches the catalogs of an event from a backing store.
type CatalogLoader interface {
	LoadCatalogs(ctx context.Context, eventID string) ([]domain.Catalog, error)
}

// loadedField marks a filled hash so events without catalogs are cached too.
const loadedField = "_loaded"

// CatalogRepository caches catalogs in Redis (hash per event) and falls back to a loader on cache miss.
// Catalogs are stored as: HSET results:{eventID}:catalogs {uid} {catalog JSON}
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCatalogs(ctx context.Context, eventID string) ([]domain.Catalog, error) {
	key := r.catalogsKey(eventID)

	if catalogs, ok := r.readCache(ctx, key); ok {
		return catalogs, nil
	}

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if catalogs, ok := r.readCache(ctx, key); ok {
			return catalogs, nil
		}

		catalogs, err := r.loader.LoadCatalogs(ctx, eventID)
		if err != nil {
			return nil, err
		}

		pipe := r.client.Pipeline()
		pipe.Del(ctx, key)
		for i, c := range catalogs {
			raw, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, key, catalogField(c, i), raw)
		}
		pipe.HSet(ctx, key, loadedField, "1")
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// A failed cache fill only costs a reload next time.
		_, _ = pipe.Exec(ctx)

		return catalogs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Catalog), nil
}

// Invalidate removes the cached catalogs of an event.
func (r *CatalogRepository) Invalidate(ctx context.Context, eventID string) error {
	return r.client.Del(ctx, r.catalogsKey(eventID)).Err()
}

func (r *CatalogRepository) readCache(ctx context.Context, key string) ([]domain.Catalog, bool) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil || fields[loadedField] == "" {
		return nil, false
	}
	catalogs := make([]domain.Catalog, 0, len(fields)-1)
	for field, raw := range fields {
		if field == loadedField {
			continue
		}
		var c domain.Catalog
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, false
		}
		catalogs = append(catalogs, c)
	}
	ingest.SortCatalogs(catalogs)
	return catalogs, true
}

func (r *CatalogRepository) catalogsKey(eventID string) string {
	return "results:" + eventID + ":catalogs"
}

func catalogField(c domain.Catalog, index int) string {
	if c.UID != "" {
		return c.UID
	}
	return "#" + strconv.Itoa(index)
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
