package places

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/reop/addressfinder/internal/intent"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (f *countingFetcher) GetPlaceDetails(_ context.Context, placeID string) (*Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[placeID]++
	if f.err != nil {
		return nil, f.err
	}
	return &Details{
		PlaceID:          placeID,
		FormattedAddress: "Footscray VIC 3011, Australia",
		Lat:              -37.8,
		Lng:              144.9,
		Types:            []string{"locality", "political"},
		Suburb:           "Footscray",
		Postcode:         "3011",
	}, nil
}

func TestEnrichIsIdempotent(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := NewDetailsCache(fetcher, nil, time.Hour)
	cand := Candidate{PlaceID: "p1", Description: "Footscray VIC, Australia", Types: []string{"locality"}}

	first, err := cache.Enrich(context.Background(), cand)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := cache.Enrich(context.Background(), cand)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if fetcher.calls["p1"] != 1 {
		t.Errorf("Expected one fetch, got %d", fetcher.calls["p1"])
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("Expected identical enrichment, got\n%s\n%s", a, b)
	}
	if first.Postcode != "3011" || first.Lat == nil {
		t.Errorf("Expected enriched fields, got %+v", first)
	}
	if cand.Postcode != "" || cand.Lat != nil {
		t.Error("Expected the input candidate to be left unchanged")
	}
}

func TestEnrichFailureReturnsOriginal(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("boom")}
	cache := NewDetailsCache(fetcher, nil, time.Hour)
	cand := Candidate{PlaceID: "p1", Description: "Footscray"}

	got, err := cache.Enrich(context.Background(), cand)
	if err == nil {
		t.Fatal("Expected an error")
	}
	if got.Description != "Footscray" || got.Lat != nil {
		t.Errorf("Expected original candidate, got %+v", got)
	}
	if cache.Len() != 0 {
		t.Error("Expected failures not to be cached")
	}
}

func TestEnrichSkipsCompleteCandidates(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := NewDetailsCache(fetcher, nil, time.Hour)
	cand := Candidate{PlaceID: "p1", Suburb: "Kew", Postcode: "3101", Lat: Float(-37.8), Lng: Float(145.0)}

	if _, err := cache.Enrich(context.Background(), cand); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("Expected no fetch, got %v", fetcher.calls)
	}
}

type memoryStore struct {
	details     map[string]Details
	suggestions map[string][]Candidate
}

func newMemoryStore() *memoryStore {
	return &memoryStore{details: map[string]Details{}, suggestions: map[string][]Candidate{}}
}

func (m *memoryStore) LoadDetails(_ context.Context, placeID string) (*Details, error) {
	d, ok := m.details[placeID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memoryStore) SaveDetails(_ context.Context, d Details, _ time.Time) error {
	m.details[d.PlaceID] = d
	return nil
}

func (m *memoryStore) LoadSuggestions(_ context.Context, key string) ([]Candidate, error) {
	return m.suggestions[key], nil
}

func (m *memoryStore) SaveSuggestions(_ context.Context, key string, c []Candidate, _ time.Time) error {
	m.suggestions[key] = c
	return nil
}

func TestDetailsCacheUsesStore(t *testing.T) {
	store := newMemoryStore()
	fetcher := &countingFetcher{}

	warm := NewDetailsCache(fetcher, store, time.Hour)
	if _, err := warm.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cold := NewDetailsCache(fetcher, store, time.Hour)
	d, err := cold.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.Suburb != "Footscray" {
		t.Errorf("Unexpected details from store: %+v", d)
	}
	if fetcher.calls["p1"] != 1 {
		t.Errorf("Expected the second cache to load from the store, got %d fetches", fetcher.calls["p1"])
	}
}

type countingSearcher struct {
	calls int
	err   error
}

func (s *countingSearcher) GetPlaceSuggestions(_ context.Context, req SuggestionRequest) ([]Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []Candidate{{PlaceID: "p1", Description: req.Query}}, nil
}

func TestSearchCacheTTL(t *testing.T) {
	searcher := &countingSearcher{}
	cache := NewSearchCache(searcher, nil, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	req := SuggestionRequest{Query: "Footscray", Intent: intent.Suburb, Autocomplete: true, SessionToken: "a"}
	if _, err := cache.GetPlaceSuggestions(context.Background(), req); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 대소문자, 공백, session token 차이는 같은 키
	again := SuggestionRequest{Query: "  footscray ", Intent: intent.Suburb, Autocomplete: true, SessionToken: "b"}
	if _, err := cache.GetPlaceSuggestions(context.Background(), again); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if searcher.calls != 1 {
		t.Errorf("Expected cached result, got %d calls", searcher.calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := cache.GetPlaceSuggestions(context.Background(), req); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if searcher.calls != 2 {
		t.Errorf("Expected expired entry to be refetched, got %d calls", searcher.calls)
	}
}

func TestSearchCacheDoesNotCacheErrors(t *testing.T) {
	searcher := &countingSearcher{err: errors.New("upstream down")}
	cache := NewSearchCache(searcher, nil, time.Minute)
	req := SuggestionRequest{Query: "Kew", Intent: intent.Suburb}

	for i := 0; i < 2; i++ {
		if _, err := cache.GetPlaceSuggestions(context.Background(), req); err == nil {
			t.Fatal("Expected error")
		}
	}
	if searcher.calls != 2 {
		t.Errorf("Expected both calls to reach the searcher, got %d", searcher.calls)
	}
}

func TestSearchCachePurge(t *testing.T) {
	cache := NewSearchCache(&countingSearcher{}, nil, time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	_, _ = cache.GetPlaceSuggestions(context.Background(), SuggestionRequest{Query: "Kew"})
	_, _ = cache.GetPlaceSuggestions(context.Background(), SuggestionRequest{Query: "Hawthorn"})

	now = now.Add(time.Hour)
	if removed := cache.Purge(); removed != 2 {
		t.Errorf("Expected 2 purged entries, got %d", removed)
	}
}

func TestCandidateHelpers(t *testing.T) {
	c := Candidate{PlaceID: "p1", Types: []string{"route"}}
	if c.Score() != DefaultConfidence {
		t.Errorf("Expected default confidence, got %v", c.Score())
	}

	tagged := c.WithType(TypeUserConfirmedRural).WithType(TypeUserConfirmedRural)
	if len(tagged.Types) != 2 || !tagged.HasType(TypeUserConfirmedRural) {
		t.Errorf("Expected a single rural tag, got %v", tagged.Types)
	}
	if c.HasType(TypeUserConfirmedRural) {
		t.Error("Expected WithType not to mutate the receiver")
	}
}
