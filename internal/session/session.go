package session

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/reop/addressfinder/internal/intent"
)

// DefaultHistoryLimit caps each history log when no limit is configured.
const DefaultHistoryLimit = 100

// Session holds one user's address finder state. Every exported method is
// atomic; none of them performs I/O, so callers never hold the lock across
// network calls.
type Session struct {
	ID string

	mu           sync.Mutex
	historyLimit int
	lastSeen     atomic.Int64

	activeQuery     string
	mode            Mode
	activeIntent    intent.Intent
	addressSelected bool
	selection       *Selection
	preservedIntent intent.Intent
	recallMode      bool
	pendingRural    *RuralConfirmation
	results         *ResultSet
	sessionToken    string

	searchHistory    []SearchHistoryEntry
	selectionHistory []SelectionHistoryEntry

	lastAgentQuery        string
	selectionAcknowledged bool
	manualInputRequested  bool
	manualInputReason     string
	voiceActive           bool

	attempt uint64
}

// New creates an empty session. historyLimit <= 0 uses DefaultHistoryLimit.
func New(id string, mode Mode, historyLimit int) *Session {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:           id,
		historyLimit: historyLimit,
		mode:         mode,
		activeIntent: intent.General,
		sessionToken: uuid.NewString(),
		voiceActive:  mode == ModeVoice,
	}
	s.Touch()
	return s
}

// Touch records activity for idle expiry.
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// SetActiveSearch replaces the active query. When the trimmed text changes
// the "address selected" flag is cleared; while no address is selected the
// active intent follows the classifier.
func (s *Session) SetActiveSearch(query string, mode Mode) intent.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(query) != strings.TrimSpace(s.activeQuery) {
		s.addressSelected = false
	}
	s.activeQuery = query
	if mode != "" {
		s.mode = mode
	}
	if !s.addressSelected {
		s.activeIntent = intent.Classify(query)
	}
	return s.activeIntent
}

// ClearSelectionAndSearch resets query, selection and intent. History is kept.
func (s *Session) ClearSelectionAndSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeQuery = ""
	s.activeIntent = intent.General
	s.results = nil
	s.clearSelectionLocked()
}

// ClearSelection drops the confirmed selection but keeps the query and
// the current result set.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearSelectionLocked()
}

func (s *Session) clearSelectionLocked() {
	s.selection = nil
	s.addressSelected = false
	s.preservedIntent = ""
	s.pendingRural = nil
	s.selectionAcknowledged = false
}

// BeginAttempt starts a new search or reconciliation and returns its id.
// Results carrying an older id are rejected with ErrStaleAttempt.
func (s *Session) BeginAttempt() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt++
	return s.attempt
}

func (s *Session) IsCurrentAttempt(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id == s.attempt
}

// SetResults installs a result set. Searches with two or more results are
// logged unless the search was re-issued by a recall.
func (s *Session) SetResults(attemptID uint64, rs ResultSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attemptID != s.attempt {
		return ErrStaleAttempt
	}

	rs = rs.Clone()
	if rs.SessionToken == "" {
		rs.SessionToken = s.sessionToken
	}
	s.results = &rs
	s.activeQuery = rs.Query
	if rs.Mode != "" {
		s.mode = rs.Mode
	}
	if !s.addressSelected && rs.Intent != "" {
		s.activeIntent = rs.Intent
	}
	s.lastAgentQuery = rs.Query

	if rs.Error == "" && len(rs.Candidates) >= 2 && !rs.Recalled {
		s.searchHistory = appendCapped(s.searchHistory, SearchHistoryEntry{
			Query:       rs.Query,
			ResultCount: len(rs.Candidates),
			Context:     Context{Mode: s.mode, Intent: rs.Intent},
			Timestamp:   time.Now(),
		}, s.historyLimit)
	}
	return nil
}

// Results returns a copy of the current result set.
func (s *Session) Results() (ResultSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return ResultSet{}, false
	}
	return s.results.Clone(), true
}

// CommitSelection confirms sel for the given attempt. A fresh selection
// (not a recall) clears recall mode and the preserved intent.
func (s *Session) CommitSelection(attemptID uint64, sel Selection, fresh bool) (SelectionHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attemptID != s.attempt {
		return SelectionHistoryEntry{}, ErrStaleAttempt
	}

	sel = sel.Clone()
	s.selection = &sel
	s.addressSelected = true
	s.activeIntent = sel.Intent
	if sel.OriginalQuery != "" {
		s.activeQuery = sel.OriginalQuery
	}
	s.pendingRural = nil
	s.selectionAcknowledged = false
	s.lastAgentQuery = sel.OriginalQuery
	if fresh {
		s.recallMode = false
		s.preservedIntent = ""
	}
	// 선택이 끝나면 autocomplete 세션도 끝난다
	s.sessionToken = uuid.NewString()

	entry := SelectionHistoryEntry{
		OriginalQuery:   sel.OriginalQuery,
		SelectedAddress: sel.Clone(),
		Context:         Context{Mode: sel.Mode, Intent: sel.Intent},
		Timestamp:       time.Now(),
	}
	s.selectionHistory = appendCapped(s.selectionHistory, entry, s.historyLimit)
	return entry, nil
}

// Selection returns a copy of the confirmed selection.
func (s *Session) Selection() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return Selection{}, false
	}
	return s.selection.Clone(), true
}

// SetPendingRural stores the rural confirmation for the given attempt,
// replacing any earlier one.
func (s *Session) SetPendingRural(attemptID uint64, rc RuralConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attemptID != s.attempt {
		return ErrStaleAttempt
	}
	rc = rc.Clone()
	s.pendingRural = &rc
	return nil
}

func (s *Session) PendingRural() (RuralConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingRural == nil {
		return RuralConfirmation{}, false
	}
	return s.pendingRural.Clone(), true
}

// CancelPendingRural discards the pending rural confirmation.
func (s *Session) CancelPendingRural() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingRural == nil {
		return ErrNoPendingRural
	}
	s.pendingRural = nil
	return nil
}

// BeginRecallSearch returns the search history entry at index and turns on
// recall mode. The caller re-issues the query and installs the results
// with Recalled set so the search is not logged again.
func (s *Session) BeginRecallSearch(index int) (SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.searchHistory) {
		return SearchHistoryEntry{}, ErrHistoryIndex
	}
	s.recallMode = true
	return s.searchHistory[index], nil
}

// RecallSelection restores a logged selection without any network call
// and preserves its original intent for the next confirmation.
func (s *Session) RecallSelection(index int) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.selectionHistory) {
		return Selection{}, ErrHistoryIndex
	}

	entry := s.selectionHistory[index]
	sel := entry.SelectedAddress.Clone()
	sel.Intent = entry.Context.Intent

	s.selection = &sel
	s.addressSelected = true
	s.activeQuery = entry.OriginalQuery
	s.activeIntent = entry.Context.Intent
	s.preservedIntent = entry.Context.Intent
	s.recallMode = true
	s.pendingRural = nil
	s.selectionAcknowledged = false
	return sel.Clone(), nil
}

// PreservedIntent returns the intent carried over by RecallSelection.
func (s *Session) PreservedIntent() intent.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preservedIntent
}

func (s *Session) RecallMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recallMode
}

func (s *Session) SearchHistory() []SearchHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SearchHistoryEntry, len(s.searchHistory))
	copy(out, s.searchHistory)
	return out
}

func (s *Session) SelectionHistory() []SelectionHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SelectionHistoryEntry, len(s.selectionHistory))
	for i, e := range s.selectionHistory {
		e.SelectedAddress = e.SelectedAddress.Clone()
		out[i] = e
	}
	return out
}

func (s *Session) SessionToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionToken
}

func (s *Session) LastAgentQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAgentQuery
}

func (s *Session) SetSelectionAcknowledged(ack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectionAcknowledged = ack
}

// RequestManualInput switches the session to hybrid mode: voice stays
// active and manual typing is enabled.
func (s *Session) RequestManualInput(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualInputRequested = true
	s.manualInputReason = reason
}

func (s *Session) SetVoiceActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceActive = active
	if active {
		s.mode = ModeVoice
	}
}

func (s *Session) VoiceActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceActive
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:                    s.ID,
		ActiveQuery:           s.activeQuery,
		Mode:                  s.mode,
		ActiveIntent:          s.activeIntent,
		AddressSelected:       s.addressSelected,
		PreservedIntent:       s.preservedIntent,
		RecallMode:            s.recallMode,
		LastAgentQuery:        s.lastAgentQuery,
		SelectionAcknowledged: s.selectionAcknowledged,
		ManualInputRequested:  s.manualInputRequested,
		ManualInputReason:     s.manualInputReason,
		VoiceActive:           s.voiceActive,
		SearchHistory:         len(s.searchHistory),
		SelectionHistory:      len(s.selectionHistory),
	}
	if s.selection != nil {
		sel := s.selection.Clone()
		st.Selection = &sel
	}
	if s.pendingRural != nil {
		rc := s.pendingRural.Clone()
		st.PendingRural = &rc
	}
	if s.results != nil {
		rs := s.results.Clone()
		st.Results = &rs
	}
	return st
}

// appendCapped appends e and evicts the oldest entries beyond limit.
func appendCapped[T any](log []T, e T, limit int) []T {
	log = append(log, e)
	if limit > 0 && len(log) > limit {
		log = append(log[:0:0], log[len(log)-limit:]...)
	}
	return log
}
