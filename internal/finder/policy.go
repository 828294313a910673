package finder

import (
	"github.com/reop/addressfinder/internal/config"
	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/places"
)

// Confidence bands shown next to each suggestion.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Policy holds the product-tuned thresholds.
type Policy struct {
	AutoSelectConfidence float64
	HighConfidence       float64
	MediumConfidence     float64
	MaxSuggestions       int
}

func DefaultPolicy() Policy {
	return Policy{
		AutoSelectConfidence: config.DefaultAutoSelectConfidence,
		HighConfidence:       config.DefaultHighConfidence,
		MediumConfidence:     config.DefaultMediumConfidence,
		MaxSuggestions:       5,
	}
}

func PolicyFromConfig(cfg config.FinderConfig) Policy {
	p := DefaultPolicy()
	if cfg.AutoSelectConfidence > 0 {
		p.AutoSelectConfidence = cfg.AutoSelectConfidence
	}
	if cfg.HighConfidence > 0 {
		p.HighConfidence = cfg.HighConfidence
	}
	if cfg.MediumConfidence > 0 {
		p.MediumConfidence = cfg.MediumConfidence
	}
	if cfg.MaxSuggestions > 0 {
		p.MaxSuggestions = cfg.MaxSuggestions
	}
	return p
}

// ShouldAutoSelect decides whether the single candidate of a voice search
// can be confirmed without asking: confidence at or above the threshold,
// and no disagreement between the states named in query and candidate.
func (p Policy) ShouldAutoSelect(query string, c places.Candidate) bool {
	if c.Score() < p.AutoSelectConfidence {
		return false
	}
	return intent.StatesCompatible(intent.ParseState(query), intent.ParseState(c.Description))
}

// Band returns the display band for a confidence score.
func (p Policy) Band(score float64) string {
	switch {
	case score >= p.HighConfidence:
		return BandHigh
	case score >= p.MediumConfidence:
		return BandMedium
	default:
		return BandLow
	}
}

// Acknowledgement is the one-line confirmation spoken to a voice user.
func Acknowledgement(i intent.Intent) string {
	switch i {
	case intent.Address:
		return "Got it, address confirmed."
	case intent.Suburb, intent.Street:
		return "Got it, that's a " + string(i) + ", not a full address."
	default:
		return "Got it, that's a location, not a full address."
	}
}
