package repository

import (
	"encoding/json"
	"strings"
	"time"

	"pagechat/internal/entities"
	"pagechat/internal/kvstore"
)

// DataCacheRepo persists one tenant's catalog snapshot: the raw source→items
// map, the flattened AI context blob, the source list and the fetch
// timestamp. Everything is invalidated en masse, never partially.
type DataCacheRepo struct {
	kv kvstore.Store
}

func NewDataCacheRepo(kv kvstore.Store) *DataCacheRepo {
	return &DataCacheRepo{kv: kv}
}

func (r *DataCacheRepo) LoadItems(pageID string) map[string][]entities.CatalogItem {
	raw, ok := r.kv.Get(dataCacheKey(pageID))
	if !ok {
		return nil
	}
	var items map[string][]entities.CatalogItem
	if json.Unmarshal([]byte(raw), &items) != nil {
		return nil
	}
	return items
}

func (r *DataCacheRepo) SaveItems(pageID string, items map[string][]entities.CatalogItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return r.kv.Set(dataCacheKey(pageID), string(raw))
}

// Timestamp returns the cache fetch time, or the zero time when the cache has
// never been filled.
func (r *DataCacheRepo) Timestamp(pageID string) time.Time {
	raw, ok := r.kv.Get(dataCacheAtKey(pageID))
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r *DataCacheRepo) SaveTimestamp(pageID string, t time.Time) error {
	return r.kv.Set(dataCacheAtKey(pageID), t.Format(time.RFC3339))
}

func (r *DataCacheRepo) Context(pageID string) string {
	raw, _ := r.kv.Get(contextKey(pageID))
	return raw
}

func (r *DataCacheRepo) SaveContext(pageID, blob string) error {
	return r.kv.Set(contextKey(pageID), blob)
}

func (r *DataCacheRepo) Sources(pageID string) []string {
	raw, ok := r.kv.Get(sourcesKey(pageID))
	if !ok || raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func (r *DataCacheRepo) SaveSources(pageID string, sources []string) error {
	return r.kv.Set(sourcesKey(pageID), strings.Join(sources, ","))
}

// ActiveSource is the datasource hint forwarded to the AI proxy, set when the
// host page knows which collection the visitor is browsing.
func (r *DataCacheRepo) ActiveSource(pageID string) string {
	raw, _ := r.kv.Get(activeSourceKey(pageID))
	return raw
}

func (r *DataCacheRepo) SaveActiveSource(pageID, source string) error {
	return r.kv.Set(activeSourceKey(pageID), source)
}

// Clear drops the whole snapshot, forcing the next open to refetch.
func (r *DataCacheRepo) Clear(pageID string) error {
	for _, key := range []string{
		dataCacheKey(pageID), dataCacheAtKey(pageID),
		contextKey(pageID), sourcesKey(pageID),
	} {
		if err := r.kv.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
