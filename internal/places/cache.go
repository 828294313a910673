package places

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/reop/addressfinder/internal/logger"
)

// Store is the optional durable layer behind the in-memory caches.
// A miss is reported as (nil, nil).
type Store interface {
	LoadDetails(ctx context.Context, placeID string) (*Details, error)
	SaveDetails(ctx context.Context, d Details, expiresAt time.Time) error
	LoadSuggestions(ctx context.Context, key string) ([]Candidate, error)
	SaveSuggestions(ctx context.Context, key string, candidates []Candidate, expiresAt time.Time) error
}

// DetailsCache memoizes place details by place id. Entries are written
// once per id; concurrent misses for the same id may both hit the
// fetcher, which is harmless because the value is the same.
type DetailsCache struct {
	fetcher DetailsFetcher
	store   Store
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]Details
}

func NewDetailsCache(fetcher DetailsFetcher, store Store, ttl time.Duration) *DetailsCache {
	return &DetailsCache{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		entries: make(map[string]Details),
	}
}

// Get returns the details for placeID, fetching them at most once.
func (c *DetailsCache) Get(ctx context.Context, placeID string) (Details, error) {
	c.mu.RLock()
	d, ok := c.entries[placeID]
	c.mu.RUnlock()
	if ok {
		cacheLookups.WithLabelValues("details", "hit").Inc()
		return cloneDetails(d), nil
	}

	log := logger.GetLogger("places.cache")

	if c.store != nil {
		stored, err := c.store.LoadDetails(ctx, placeID)
		if err != nil {
			log.Warnf("details cache store 조회 실패 (place_id=%s): %v", placeID, err)
		} else if stored != nil {
			cacheLookups.WithLabelValues("details", "store").Inc()
			return c.put(placeID, *stored), nil
		}
	}

	cacheLookups.WithLabelValues("details", "miss").Inc()
	fetched, err := c.fetcher.GetPlaceDetails(ctx, placeID)
	if err != nil {
		return Details{}, fmt.Errorf("place details %s: %w", placeID, err)
	}
	if fetched == nil {
		return Details{}, fmt.Errorf("place details %s: empty response", placeID)
	}

	d = c.put(placeID, *fetched)
	if c.store != nil {
		if err := c.store.SaveDetails(ctx, d, time.Now().Add(c.ttl)); err != nil {
			log.Warnf("details cache 저장 실패 (place_id=%s): %v", placeID, err)
		}
	}
	return d, nil
}

// Enrich fills in coordinates, suburb and postcode from the details cache.
// On failure the original candidate is returned together with the error so
// the caller can decide to log and carry on.
func (c *DetailsCache) Enrich(ctx context.Context, cand Candidate) (Candidate, error) {
	if !cand.NeedsEnrichment() {
		return cand, nil
	}
	d, err := c.Get(ctx, cand.PlaceID)
	if err != nil {
		return cand, err
	}
	return Merge(cand, d), nil
}

// Len returns the number of memoized entries.
func (c *DetailsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *DetailsCache) put(placeID string, d Details) Details {
	d = cloneDetails(d)
	if d.PlaceID == "" {
		d.PlaceID = placeID
	}
	c.mu.Lock()
	// 먼저 들어온 값을 유지한다
	if existing, ok := c.entries[placeID]; ok {
		d = existing
	} else {
		c.entries[placeID] = d
	}
	c.mu.Unlock()
	return cloneDetails(d)
}

func cloneDetails(d Details) Details {
	d.Types = slices.Clone(d.Types)
	return d
}

type searchEntry struct {
	candidates []Candidate
	expiresAt  time.Time
}

// SearchCache wraps a Searcher with a TTL cache keyed by the normalised
// query, intent and search mode. Errors are never cached.
type SearchCache struct {
	searcher Searcher
	store    Store
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]searchEntry
}

func NewSearchCache(searcher Searcher, store Store, ttl time.Duration) *SearchCache {
	return &SearchCache{
		searcher: searcher,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]searchEntry),
	}
}

// SearchKey builds the cache key. The autocomplete session token is left
// out because it only groups billing on the provider side.
func SearchKey(req SuggestionRequest) string {
	q := strings.Join(strings.Fields(strings.ToLower(req.Query)), " ")
	return fmt.Sprintf("%s|%s|%t|%d", q, req.Intent, req.Autocomplete, req.MaxResults)
}

func (c *SearchCache) GetPlaceSuggestions(ctx context.Context, req SuggestionRequest) ([]Candidate, error) {
	if c.ttl <= 0 {
		return c.searcher.GetPlaceSuggestions(ctx, req)
	}

	key := SearchKey(req)
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && now.After(e.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if ok {
		cacheLookups.WithLabelValues("search", "hit").Inc()
		return cloneCandidates(e.candidates), nil
	}

	log := logger.GetLogger("places.cache")

	if c.store != nil {
		stored, err := c.store.LoadSuggestions(ctx, key)
		if err != nil {
			log.Warnf("search cache store 조회 실패 (key=%s): %v", key, err)
		} else if stored != nil {
			cacheLookups.WithLabelValues("search", "store").Inc()
			c.set(key, stored, now.Add(c.ttl))
			return cloneCandidates(stored), nil
		}
	}

	cacheLookups.WithLabelValues("search", "miss").Inc()
	candidates, err := c.searcher.GetPlaceSuggestions(ctx, req)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(c.ttl)
	c.set(key, candidates, expiresAt)
	if c.store != nil {
		if err := c.store.SaveSuggestions(ctx, key, candidates, expiresAt); err != nil {
			log.Warnf("search cache 저장 실패 (key=%s): %v", key, err)
		}
	}
	return cloneCandidates(candidates), nil
}

// Purge drops expired entries and returns how many were removed.
func (c *SearchCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *SearchCache) set(key string, candidates []Candidate, expiresAt time.Time) {
	c.mu.Lock()
	c.entries[key] = searchEntry{candidates: cloneCandidates(candidates), expiresAt: expiresAt}
	c.mu.Unlock()
}

func cloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
