package places

import (
	"context"
	"slices"

	"github.com/reop/addressfinder/internal/intent"
)

// DefaultConfidence 는 provider가 confidence를 주지 않았을 때 쓰는 값
const DefaultConfidence = 0.5

// TypeUserConfirmedRural 은 사용자가 rural 예외를 직접 승인한 후보에 붙는 태그
const TypeUserConfirmedRural = "user_confirmed_rural"

// Candidate is an unconfirmed search result. Values are treated as
// immutable: enrichment and tagging return a new Candidate.
type Candidate struct {
	PlaceID     string   `json:"placeId"`
	Description string   `json:"description"`
	Types       []string `json:"types"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Suburb      string   `json:"suburb,omitempty"`
	Postcode    string   `json:"postcode,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	ResultType  string   `json:"resultType,omitempty"`
}

// Score returns the confidence, defaulting to DefaultConfidence.
func (c Candidate) Score() float64 {
	if c.Confidence == nil {
		return DefaultConfidence
	}
	return *c.Confidence
}

// NeedsEnrichment reports whether a details lookup could add coordinates,
// suburb or postcode.
func (c Candidate) NeedsEnrichment() bool {
	if c.PlaceID == "" {
		return false
	}
	return c.Lat == nil || c.Lng == nil || c.Suburb == "" || c.Postcode == ""
}

// HasType reports whether t is one of the candidate's provider types.
func (c Candidate) HasType(t string) bool {
	return slices.Contains(c.Types, t)
}

// Clone returns a deep copy.
func (c Candidate) Clone() Candidate {
	out := c
	out.Types = slices.Clone(c.Types)
	out.Confidence = clonePtr(c.Confidence)
	out.Lat = clonePtr(c.Lat)
	out.Lng = clonePtr(c.Lng)
	return out
}

// WithType returns a copy tagged with t (no duplicate tags).
func (c Candidate) WithType(t string) Candidate {
	out := c.Clone()
	if !out.HasType(t) {
		out.Types = append(out.Types, t)
	}
	return out
}

// Details is the enrichment payload for a single place id.
type Details struct {
	PlaceID          string   `json:"placeId"`
	FormattedAddress string   `json:"formattedAddress"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Types            []string `json:"types"`
	Suburb           string   `json:"suburb,omitempty"`
	Postcode         string   `json:"postcode,omitempty"`
	State            string   `json:"state,omitempty"`
}

// Merge returns a new candidate with the details folded in. Fields the
// details leave empty keep the candidate's values.
func Merge(c Candidate, d Details) Candidate {
	out := c.Clone()
	if d.FormattedAddress != "" {
		out.Description = d.FormattedAddress
	}
	if d.Suburb != "" {
		out.Suburb = d.Suburb
	}
	if d.Postcode != "" {
		out.Postcode = d.Postcode
	}
	if d.Lat != 0 || d.Lng != 0 {
		out.Lat = Float(d.Lat)
		out.Lng = Float(d.Lng)
	}
	if len(d.Types) > 0 {
		out.Types = slices.Clone(d.Types)
	}
	return out
}

// Validation is the outcome of an address validation call. A rejected
// address has IsValid and IsRuralException both false and Error set.
type Validation struct {
	IsValid          bool     `json:"isValid"`
	IsRuralException bool     `json:"isRuralException"`
	FormattedAddress string   `json:"formattedAddress,omitempty"`
	PlaceID          string   `json:"placeId,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
	Types            []string `json:"types,omitempty"`
	Granularity      string   `json:"granularity,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// SuggestionRequest 검색 요청 파라미터
type SuggestionRequest struct {
	Query        string
	Intent       intent.Intent
	Autocomplete bool
	SessionToken string
	MaxResults   int
}

type Searcher interface {
	GetPlaceSuggestions(ctx context.Context, req SuggestionRequest) ([]Candidate, error)
}

type DetailsFetcher interface {
	GetPlaceDetails(ctx context.Context, placeID string) (*Details, error)
}

type Validator interface {
	ValidateAddress(ctx context.Context, address string) (*Validation, error)
}

// Provider bundles the three collaborators the finder talks to.
type Provider interface {
	Searcher
	DetailsFetcher
	Validator
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
