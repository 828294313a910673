package session

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/places"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrStaleAttempt   = errors.New("a newer attempt has started for this session")
	ErrNoSelection    = errors.New("no confirmed selection")
	ErrNoPendingRural = errors.New("no pending rural confirmation")
	ErrHistoryIndex   = errors.New("history index out of range")
)

// Mode 입력 방식
type Mode string

const (
	ModeManual Mode = "manual"
	ModeVoice  Mode = "voice"
)

// ParseMode maps free text to a Mode, defaulting to manual.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeVoice)) {
		return ModeVoice
	}
	return ModeManual
}

// Context is recorded alongside every history entry.
type Context struct {
	Mode   Mode          `json:"mode"`
	Intent intent.Intent `json:"intent"`
}

// Selection is a confirmed candidate.
type Selection struct {
	places.Candidate
	OriginalQuery string        `json:"originalQuery"`
	Intent        intent.Intent `json:"intent"`
	Mode          Mode          `json:"mode"`
}

func (s Selection) Clone() Selection {
	s.Candidate = s.Candidate.Clone()
	return s
}

// SearchHistoryEntry is logged for searches that returned two or more results.
type SearchHistoryEntry struct {
	Query       string    `json:"query"`
	ResultCount int       `json:"resultCount"`
	Context     Context   `json:"context"`
	Timestamp   time.Time `json:"timestamp"`
}

// SelectionHistoryEntry is logged once per confirmed selection.
type SelectionHistoryEntry struct {
	OriginalQuery   string    `json:"originalQuery"`
	SelectedAddress Selection `json:"selectedAddress"`
	Context         Context   `json:"context"`
	Timestamp       time.Time `json:"timestamp"`
}

// RuralValidation is the validator's best effort for an address that could
// not be confirmed to premise level.
type RuralValidation struct {
	FormattedAddress string   `json:"formattedAddress,omitempty"`
	PlaceID          string   `json:"placeId,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// RuralConfirmation waits for the user to accept or discard a rural address.
type RuralConfirmation struct {
	Result        places.Candidate `json:"result"`
	Validation    RuralValidation  `json:"validation"`
	OriginalQuery string           `json:"originalQuery"`
	Mode          Mode             `json:"mode"`
}

func (r RuralConfirmation) Clone() RuralConfirmation {
	r.Result = r.Result.Clone()
	return r
}

// ResultSet is the current suggestion list. Ordinals and place ids used by
// the agent resolve against it.
type ResultSet struct {
	Query         string             `json:"query"`
	Intent        intent.Intent      `json:"intent"`
	Mode          Mode               `json:"mode"`
	Candidates    []places.Candidate `json:"candidates"`
	SessionToken  string             `json:"sessionToken,omitempty"`
	LowConfidence bool               `json:"lowConfidence,omitempty"`
	Recalled      bool               `json:"recalled,omitempty"`
	Error         string             `json:"error,omitempty"`
}

func (r ResultSet) Clone() ResultSet {
	if r.Candidates != nil {
		cands := make([]places.Candidate, len(r.Candidates))
		for i, c := range r.Candidates {
			cands[i] = c.Clone()
		}
		r.Candidates = cands
	}
	return r
}

// Find returns the candidate with the given place id.
func (r ResultSet) Find(placeID string) (places.Candidate, bool) {
	i := slices.IndexFunc(r.Candidates, func(c places.Candidate) bool { return c.PlaceID == placeID })
	if i < 0 {
		return places.Candidate{}, false
	}
	return r.Candidates[i].Clone(), true
}

// State is a point-in-time copy of a session, safe to serialise.
type State struct {
	ID                    string             `json:"id"`
	ActiveQuery           string             `json:"activeQuery"`
	Mode                  Mode               `json:"mode"`
	ActiveIntent          intent.Intent      `json:"activeIntent"`
	AddressSelected       bool               `json:"addressSelected"`
	Selection             *Selection         `json:"selection"`
	PreservedIntent       intent.Intent      `json:"preservedIntent,omitempty"`
	RecallMode            bool               `json:"recallMode"`
	PendingRural          *RuralConfirmation `json:"pendingRural,omitempty"`
	Results               *ResultSet         `json:"results,omitempty"`
	LastAgentQuery        string             `json:"lastAgentQuery,omitempty"`
	SelectionAcknowledged bool               `json:"selectionAcknowledged"`
	ManualInputRequested  bool               `json:"manualInputRequested"`
	ManualInputReason     string             `json:"manualInputReason,omitempty"`
	VoiceActive           bool               `json:"voiceActive"`
	SearchHistory         int                `json:"searchHistoryCount"`
	SelectionHistory      int                `json:"selectionHistoryCount"`
}
