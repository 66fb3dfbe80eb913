package usecases

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pagechat/internal/entities"
	"pagechat/internal/interfaces"
	"pagechat/internal/repository"
)

const (
	// CacheTTL bounds catalog staleness. Catalog data changes rarely relative
	// to chat cadence, so refetching whole collections per message would be
	// waste; 30 minutes keeps prices reasonably fresh.
	CacheTTL = 30 * time.Minute

	maxSearchResults  = 10
	minSearchScore    = 30
	contextItemsLimit = 20
	contextDescrLimit = 160
)

// coreSources is always fetched regardless of what blocks the tenant's page
// config declares.
var coreSources = []string{"brand", "product", "service", "article", "book"}

// sourcePattern extracts the canonical collection name out of block type
// strings like "ProductListStyleTwo" or "featured-book-slider".
var sourcePattern = regexp.MustCompile(`(?i)(product|book|article|service|brand|news|course|gallery|video|member|faq|portfolio)`)

// DataCacheService fetches and locally persists a tenant's catalog plus the
// flattened context blob the AI is grounded on, and answers fuzzy searches
// over the cached items.
type DataCacheService struct {
	pageID  string
	catalog interfaces.CatalogAPI
	repo    *repository.DataCacheRepo
	now     func() time.Time

	mu    sync.RWMutex
	items map[string][]entities.CatalogItem // in-memory mirror of the persisted cache
}

func NewDataCacheService(pageID string, catalog interfaces.CatalogAPI, repo *repository.DataCacheRepo) *DataCacheService {
	return &DataCacheService{
		pageID:  pageID,
		catalog: catalog,
		repo:    repo,
		now:     time.Now,
	}
}

// IsCacheValid reports whether a fetch timestamp exists and is younger than
// the TTL.
func (s *DataCacheService) IsCacheValid() bool {
	at := s.repo.Timestamp(s.pageID)
	if at.IsZero() {
		return false
	}
	return s.now().Sub(at) < CacheTTL
}

// GetOrRefreshCache returns the cached items when still valid and non-empty,
// otherwise refetches everything. This is the sole gate keeping chat opens
// from hammering the catalog endpoints.
func (s *DataCacheService) GetOrRefreshCache(ctx context.Context) map[string][]entities.CatalogItem {
	if s.IsCacheValid() {
		if cached := s.loadItems(); len(cached) > 0 {
			return cached
		}
	}
	return s.FetchAndCacheData(ctx)
}

// FetchAndCacheData pulls every relevant collection plus the contact profile,
// normalizes the items, builds the AI context blob, and persists the lot with
// a timestamp. Individual source failures degrade to partial results; a
// failed page-config fetch yields an empty cache, never an error.
func (s *DataCacheService) FetchAndCacheData(ctx context.Context) map[string][]entities.CatalogItem {
	sources := s.resolveSources(ctx)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		items   = make(map[string][]entities.CatalogItem)
		contact *entities.ContactInfo
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		info, err := s.catalog.ContactInfo(ctx, s.pageID)
		if err != nil {
			log.Warn().Err(err).Str("page_id", s.pageID).Msg("contact info fetch failed")
			return
		}
		mu.Lock()
		contact = info
		mu.Unlock()
	}()

	for _, source := range sources {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			raw, err := s.catalog.Collection(ctx, source, s.pageID)
			if err != nil {
				log.Warn().Err(err).Str("source", source).Msg("catalog fetch failed")
				return
			}
			normalized := make([]entities.CatalogItem, 0, len(raw))
			for _, record := range raw {
				item := entities.NormalizeCatalogItem(source, record)
				if item.ID != "" || item.Title != "" {
					normalized = append(normalized, item)
				}
			}
			mu.Lock()
			items[source] = normalized
			mu.Unlock()
		}(source)
	}
	wg.Wait()

	present := make([]string, 0, len(items))
	for source, list := range items {
		if len(list) > 0 {
			present = append(present, source)
		}
	}
	sort.Strings(present)

	blob := buildContextBlob(contact, present, items)

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	if err := s.repo.SaveItems(s.pageID, items); err != nil {
		log.Warn().Err(err).Msg("data cache persist failed")
	}
	s.repo.SaveContext(s.pageID, blob)
	s.repo.SaveSources(s.pageID, present)
	s.repo.SaveTimestamp(s.pageID, s.now())

	return items
}

// resolveSources unions the block-derived collection names with the fixed
// core set. A failed page-config fetch leaves just the core set.
func (s *DataCacheService) resolveSources(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var sources []string
	add := func(name string) {
		name = strings.ToLower(name)
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		sources = append(sources, name)
	}

	for _, core := range coreSources {
		add(core)
	}

	blocks, err := s.catalog.PageBlocks(ctx, s.pageID)
	if err != nil {
		log.Warn().Err(err).Str("page_id", s.pageID).Msg("page config fetch failed, using core sources")
		return sources
	}
	for _, block := range blocks {
		if match := sourcePattern.FindString(block); match != "" {
			add(match)
		}
	}
	return sources
}

// Context returns the persisted AI grounding blob (may be empty).
func (s *DataCacheService) Context() string {
	return s.repo.Context(s.pageID)
}

// ActiveSource returns the datasource hint last set by the host page.
func (s *DataCacheService) ActiveSource() string {
	return s.repo.ActiveSource(s.pageID)
}

// SetActiveSource records which collection the visitor is currently browsing.
func (s *DataCacheService) SetActiveSource(source string) {
	if err := s.repo.SaveActiveSource(s.pageID, source); err != nil {
		log.Warn().Err(err).Msg("active source persist failed")
	}
}

// ClearCache drops the snapshot so the next open refetches.
func (s *DataCacheService) ClearCache() error {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	return s.repo.Clear(s.pageID)
}

func (s *DataCacheService) loadItems() map[string][]entities.CatalogItem {
	s.mu.RLock()
	cached := s.items
	s.mu.RUnlock()
	if cached != nil {
		return cached
	}
	loaded := s.repo.LoadItems(s.pageID)
	if loaded != nil {
		s.mu.Lock()
		s.items = loaded
		s.mu.Unlock()
	}
	return loaded
}

// SearchCachedData ranks cached items against a query, best field score per
// item, descending, minimum score 30, capped at 10 results. An empty sources
// filter searches every cached collection.
func (s *DataCacheService) SearchCachedData(query string, sources ...string) []entities.SearchResult {
	items := s.loadItems()
	if len(items) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	wanted := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		wanted[strings.ToLower(src)] = struct{}{}
	}

	var results []entities.SearchResult
	for source, list := range items {
		if len(wanted) > 0 {
			if _, ok := wanted[source]; !ok {
				continue
			}
		}
		for _, item := range list {
			if score := bestFieldScore(query, item); score >= minSearchScore {
				results = append(results, entities.SearchResult{Item: item, Score: score})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	return results
}

// FindItemsByTitle is the stricter variant used for auto-linking: only exact
// or substring title matches count, all scored 100.
func (s *DataCacheService) FindItemsByTitle(title string) []entities.SearchResult {
	items := s.loadItems()
	title = strings.ToLower(strings.TrimSpace(title))
	if len(items) == 0 || title == "" {
		return nil
	}

	var results []entities.SearchResult
	for _, list := range items {
		for _, item := range list {
			candidate := strings.ToLower(item.Title)
			if candidate == "" {
				continue
			}
			if candidate == title || strings.Contains(candidate, title) || strings.Contains(title, candidate) {
				results = append(results, entities.SearchResult{Item: item, Score: 100})
			}
		}
	}
	return results
}

func bestFieldScore(query string, item entities.CatalogItem) int {
	best := similarityScore(query, item.Title)
	if score := similarityScore(query, item.Description); score > best {
		best = score
	}
	for _, field := range item.Fields {
		if score := similarityScore(query, field); score > best {
			best = score
		}
	}
	return best
}

// buildContextBlob flattens the business profile and up to 20 truncated items
// per source into the single text block sent to the AI as grounding.
func buildContextBlob(contact *entities.ContactInfo, sources []string, items map[string][]entities.CatalogItem) string {
	var sb strings.Builder

	if contact != nil {
		sb.WriteString("Business profile:\n")
		if contact.Name != "" {
			sb.WriteString("Name: " + contact.Name + "\n")
		}
		if contact.Phone != "" {
			sb.WriteString("Phone: " + contact.Phone + "\n")
		}
		if contact.Email != "" {
			sb.WriteString("Email: " + contact.Email + "\n")
		}
		if contact.Address != "" {
			sb.WriteString("Address: " + contact.Address + "\n")
		}
		if contact.About != "" {
			sb.WriteString("About: " + truncate(contact.About, 400) + "\n")
		}
		sb.WriteString("\n")
	}

	for _, source := range sources {
		list := items[source]
		if len(list) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("Available %s items:\n", source))
		limit := len(list)
		if limit > contextItemsLimit {
			limit = contextItemsLimit
		}
		for i := 0; i < limit; i++ {
			item := list[i]
			sb.WriteString(fmt.Sprintf("- [%s] %s", item.ID, item.Title))
			if item.Price != "" {
				sb.WriteString(" | " + item.Price)
			}
			if item.Description != "" {
				sb.WriteString(" | " + truncate(item.Description, contextDescrLimit))
			}
			sb.WriteString("\n")
		}
		if len(list) > limit {
			sb.WriteString(fmt.Sprintf("...and %d more.\n", len(list)-limit))
		}
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String())
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
