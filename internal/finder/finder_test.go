package finder

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/reop/addressfinder/internal/config"
	"github.com/reop/addressfinder/internal/events"
	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
)

type fakeProvider struct {
	mu sync.Mutex

	suggestions []places.Candidate
	searchErr   error
	lastSearch  places.SuggestionRequest

	details    map[string]places.Details
	detailsErr error

	validation    *places.Validation
	validationErr error
	validateHook  func()

	searchCalls   int
	detailsCalls  int
	validateCalls int
}

func (f *fakeProvider) GetPlaceSuggestions(_ context.Context, req places.SuggestionRequest) ([]places.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.lastSearch = req
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]places.Candidate, len(f.suggestions))
	for i, c := range f.suggestions {
		out[i] = c.Clone()
	}
	return out, nil
}

func (f *fakeProvider) GetPlaceDetails(_ context.Context, placeID string) (*places.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailsCalls++
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	if d, ok := f.details[placeID]; ok {
		return &d, nil
	}
	return &places.Details{PlaceID: placeID}, nil
}

func (f *fakeProvider) ValidateAddress(_ context.Context, _ string) (*places.Validation, error) {
	f.mu.Lock()
	f.validateCalls++
	hook := f.validateHook
	v, err := f.validation, f.validationErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		return &places.Validation{Error: "not configured"}, nil
	}
	out := *v
	return &out, nil
}

func newService(p *fakeProvider, pub events.Publisher) *Service {
	return New(p, places.NewDetailsCache(p, nil, time.Hour), p, pub, DefaultPolicy())
}

var (
	collins = places.Candidate{
		PlaceID:     "collins-123",
		Description: "123 Collins Street, Melbourne VIC 3000",
		Types:       []string{"street_address"},
	}
	footscray = places.Candidate{
		PlaceID:     "footscray",
		Description: "Footscray VIC, Australia",
		Types:       []string{"locality", "political"},
	}
	rural = places.Candidate{
		PlaceID:     "rural-4410",
		Description: "4410 Old Coach Road, Tallarook VIC",
		Types:       []string{"street_address"},
	}
)

func TestBasicAddressScenario(t *testing.T) {
	query := "123 Collins Street, Melbourne VIC 3000"
	if got := intent.Classify(query); got != intent.Address {
		t.Fatalf("Expected the query to classify as address, got %s", got)
	}

	p := &fakeProvider{
		details: map[string]places.Details{
			"collins-123": {PlaceID: "collins-123", FormattedAddress: "123 Collins St, Melbourne VIC 3000, Australia",
				Lat: -37.81, Lng: 144.96, Types: []string{"street_address"}, Suburb: "Melbourne", Postcode: "3000"},
		},
		validation: &places.Validation{
			IsValid:          true,
			FormattedAddress: "123 Collins St, Melbourne VIC 3000, Australia",
			PlaceID:          "validated-123",
			Lat:              places.Float(-37.815),
			Lng:              places.Float(144.966),
			Types:            []string{"street_address"},
		},
	}
	svc := newService(p, nil)
	sess := session.New("s1", session.ModeManual, 0)

	out, err := svc.Reconcile(context.Background(), sess, collins, ReconcileOptions{Query: query})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Kind != OutcomeSelected || out.Selection.Intent != intent.Address {
		t.Fatalf("Expected an address selection, got %+v", out)
	}
	if out.Selection.PlaceID != "validated-123" || *out.Selection.Lat != -37.815 {
		t.Errorf("Expected validated place id and coordinates, got %+v", out.Selection)
	}
	if out.Selection.Postcode != "3000" {
		t.Errorf("Expected enrichment to carry the postcode, got %q", out.Selection.Postcode)
	}
	if p.validateCalls != 1 {
		t.Errorf("Expected one validation call, got %d", p.validateCalls)
	}
	if out.Acknowledgement != "Got it, address confirmed." {
		t.Errorf("Unexpected acknowledgement %q", out.Acknowledgement)
	}

	history := sess.SelectionHistory()
	if len(history) != 1 || history[0].OriginalQuery != query || history[0].Context.Intent != intent.Address {
		t.Errorf("Expected one selection history entry, got %+v", history)
	}
	if sess.LastAgentQuery() != query {
		t.Errorf("Expected last agent query to be updated, got %q", sess.LastAgentQuery())
	}
}

func TestSuburbOnlyScenario(t *testing.T) {
	if got := intent.Classify("Footscray"); got != intent.Suburb {
		t.Fatalf("Expected suburb, got %s", got)
	}

	p := &fakeProvider{
		details: map[string]places.Details{
			"footscray": {PlaceID: "footscray", FormattedAddress: "Footscray VIC 3011, Australia",
				Lat: -37.8, Lng: 144.9, Types: []string{"locality", "political"}, Suburb: "Footscray", Postcode: "3011"},
		},
	}
	rec := events.NewRecorder()
	svc := newService(p, rec)
	sess := session.New("s1", session.ModeVoice, 0)

	out, err := svc.Reconcile(context.Background(), sess, footscray, ReconcileOptions{Query: "Footscray"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Selection.Intent != intent.Suburb {
		t.Errorf("Expected suburb, got %s", out.Selection.Intent)
	}
	if p.validateCalls != 0 {
		t.Errorf("Expected no validation call, got %d", p.validateCalls)
	}
	if p.detailsCalls != 1 || out.Selection.Postcode != "3011" {
		t.Errorf("Expected the enriched candidate to be selected, got %+v", out.Selection)
	}
	if out.Acknowledgement != "Got it, that's a suburb, not a full address." {
		t.Errorf("Unexpected acknowledgement %q", out.Acknowledgement)
	}

	want := []events.Type{events.TypeSelection, events.TypeAcknowledgement}
	if got := rec.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected updates %v, got %v", want, got)
	}
}

func TestManualSessionGetsNoSpokenAcknowledgement(t *testing.T) {
	rec := events.NewRecorder()
	svc := newService(&fakeProvider{}, rec)
	sess := session.New("s1", session.ModeManual, 0)

	if _, err := svc.Reconcile(context.Background(), sess, footscray, ReconcileOptions{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if slices.Contains(rec.Types(), events.TypeAcknowledgement) {
		t.Error("Expected no acknowledgement update without an active voice session")
	}
}

func TestRuralExceptionRoundTrip(t *testing.T) {
	p := &fakeProvider{
		validation: &places.Validation{
			IsRuralException: true,
			FormattedAddress: "4410 Old Coach Rd, Tallarook VIC 3659, Australia",
			PlaceID:          "validated-rural",
		},
	}
	svc := newService(p, nil)
	sess := session.New("s1", session.ModeManual, 0)
	sess.SetActiveSearch("4410 Old Coach Road", session.ModeManual)
	before := sess.Snapshot()

	out, err := svc.Reconcile(context.Background(), sess, rural, ReconcileOptions{Query: "4410 Old Coach Road"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Kind != OutcomeRural || out.Selection != nil || out.Rural == nil {
		t.Fatalf("Expected a rural confirmation, got %+v", out)
	}
	if _, ok := sess.Selection(); ok {
		t.Fatal("Expected no selection while the rural confirmation is pending")
	}

	// cancel: 세션 상태는 후보 제시 전과 동일
	if err := svc.CancelRural(context.Background(), sess); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if after := sess.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("Expected cancel to restore the session\nbefore: %+v\nafter:  %+v", before, after)
	}
	if err := svc.CancelRural(context.Background(), sess); !errors.Is(err, ErrNoPendingRural) {
		t.Errorf("Expected ErrNoPendingRural, got %v", err)
	}

	// accept
	if _, err := svc.Reconcile(context.Background(), sess, rural, ReconcileOptions{Query: "4410 Old Coach Road"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	accepted, err := svc.AcceptRural(context.Background(), sess)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	sel := accepted.Selection
	if !sel.HasType(places.TypeUserConfirmedRural) {
		t.Errorf("Expected the rural tag, got %v", sel.Types)
	}
	if sel.Description != "4410 Old Coach Rd, Tallarook VIC 3659, Australia" || sel.PlaceID != "validated-rural" {
		t.Errorf("Expected validator values, got %+v", sel)
	}
	if _, ok := sess.PendingRural(); ok {
		t.Error("Expected the pending confirmation to be consumed")
	}
}

func TestAcceptRuralFallsBackToCandidate(t *testing.T) {
	p := &fakeProvider{validation: &places.Validation{IsRuralException: true}}
	svc := newService(p, nil)
	sess := session.New("s1", session.ModeManual, 0)

	if _, err := svc.Reconcile(context.Background(), sess, rural, ReconcileOptions{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	out, err := svc.AcceptRural(context.Background(), sess)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Selection.Description != rural.Description || out.Selection.PlaceID != rural.PlaceID {
		t.Errorf("Expected the candidate's own values, got %+v", out.Selection)
	}
}

func TestAcceptRuralWithoutPending(t *testing.T) {
	svc := newService(&fakeProvider{}, nil)
	if _, err := svc.AcceptRural(context.Background(), session.New("s1", session.ModeManual, 0)); !errors.Is(err, ErrNoPendingRural) {
		t.Errorf("Expected ErrNoPendingRural, got %v", err)
	}
}

func TestValidationFailureLeavesSelection(t *testing.T) {
	testCases := []struct {
		name string
		p    *fakeProvider
	}{
		{"rejected", &fakeProvider{validation: &places.Validation{Error: "The provided address could not be validated."}}},
		{"unreachable", &fakeProvider{validationErr: errors.New("connection refused")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(tc.p, nil)
			sess := session.New("s1", session.ModeManual, 0)
			if _, err := svc.Reconcile(context.Background(), sess, footscray, ReconcileOptions{}); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			_, err := svc.Reconcile(context.Background(), sess, collins, ReconcileOptions{})
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("Expected ErrValidationFailed, got %v", err)
			}
			sel, ok := sess.Selection()
			if !ok || sel.PlaceID != "footscray" {
				t.Errorf("Expected the prior selection to be untouched, got %+v", sel)
			}
		})
	}
}

func TestEnrichmentFailureIsTolerated(t *testing.T) {
	p := &fakeProvider{detailsErr: errors.New("details down")}
	svc := newService(p, nil)
	sess := session.New("s1", session.ModeManual, 0)

	out, err := svc.Reconcile(context.Background(), sess, footscray, ReconcileOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Warning == "" {
		t.Error("Expected a warning")
	}
	if out.Selection.Description != footscray.Description || out.Selection.Lat != nil {
		t.Errorf("Expected the unenriched candidate, got %+v", out.Selection)
	}
}

func TestStaleValidationIsDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := &fakeProvider{
		validation:   &places.Validation{IsValid: true, FormattedAddress: "stale"},
		validateHook: func() { close(entered); <-release },
	}
	svc := newService(p, nil)
	sess := session.New("s1", session.ModeManual, 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Reconcile(context.Background(), sess, collins, ReconcileOptions{})
		errCh <- err
	}()

	<-entered
	sess.BeginAttempt() // 사용자가 다른 후보를 고름
	close(release)

	if err := <-errCh; !errors.Is(err, ErrStaleAttempt) {
		t.Fatalf("Expected ErrStaleAttempt, got %v", err)
	}
	if _, ok := sess.Selection(); ok {
		t.Error("Expected the stale response not to produce a selection")
	}
	if len(sess.SelectionHistory()) != 0 {
		t.Error("Expected no history entry for a stale response")
	}
}

func TestRecallPreservesIntent(t *testing.T) {
	p := &fakeProvider{}
	svc := newService(p, nil)
	sess := session.New("s1", session.ModeManual, 0)

	// 결과 타입은 route(=street)지만 기록된 intent는 suburb
	stKilda := places.Candidate{PlaceID: "stk", Description: "St Kilda Rd, Melbourne VIC", Types: []string{"route"}}
	if _, err := sess.CommitSelection(sess.BeginAttempt(), session.Selection{
		Candidate: stKilda, OriginalQuery: "St Kilda", Intent: intent.Suburb, Mode: session.ModeManual,
	}, true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := intent.ClassifyResult(stKilda.Types, stKilda.Description); got == intent.Suburb {
		t.Fatal("Test setup expects fresh classification to disagree")
	}

	sess.ClearSelectionAndSearch()
	recalled, err := svc.RecallSelection(context.Background(), sess, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out, err := svc.Select(context.Background(), sess, recalled.PlaceID, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Selection.Intent != intent.Suburb {
		t.Errorf("Expected preserved suburb intent, got %s", out.Selection.Intent)
	}
	if p.searchCalls != 0 {
		t.Errorf("Expected recall not to search, got %d calls", p.searchCalls)
	}
	if !sess.RecallMode() {
		t.Error("Expected recall mode to persist through re-confirmation")
	}
}

func TestAutoSelectBoundary(t *testing.T) {
	testCases := []struct {
		name        string
		query       string
		description string
		confidence  float64
		auto        bool
	}{
		{"at threshold", "Footscray", "Footscray VIC, Australia", 0.7, true},
		{"just below", "Footscray", "Footscray VIC, Australia", 0.69, false},
		{"state mismatch", "Richmond NSW", "Richmond VIC, Australia", 0.95, false},
		{"matching state", "Richmond VIC", "Richmond VIC, Australia", 0.95, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProvider{suggestions: []places.Candidate{{
				PlaceID:     "only",
				Description: tc.description,
				Types:       []string{"locality", "political"},
				Confidence:  places.Float(tc.confidence),
			}}}
			svc := newService(p, nil)
			sess := session.New("s1", session.ModeVoice, 0)

			res, err := svc.Search(context.Background(), sess, SearchRequest{Query: tc.query, Autocomplete: true})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if res.AutoSelected != tc.auto || res.LowConfidence == tc.auto {
				t.Errorf("Expected auto=%v, got auto=%v low=%v", tc.auto, res.AutoSelected, res.LowConfidence)
			}
			_, selected := sess.Selection()
			if selected != tc.auto {
				t.Errorf("Expected selection present=%v", tc.auto)
			}
		})
	}
}

func TestManualSingleResultIsNotAutoSelected(t *testing.T) {
	p := &fakeProvider{suggestions: []places.Candidate{footscray.WithType("locality")}}
	p.suggestions[0].Confidence = places.Float(0.99)
	svc := newService(p, nil)
	sess := session.New("s1", session.ModeManual, 0)

	res, err := svc.Search(context.Background(), sess, SearchRequest{Query: "Footscray", Autocomplete: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.AutoSelected || res.LowConfidence {
		t.Errorf("Expected a plain result for manual search, got %+v", res)
	}
}

func TestSearchHistoryAndRecallSearch(t *testing.T) {
	p := &fakeProvider{suggestions: []places.Candidate{footscray, {PlaceID: "wf", Description: "West Footscray VIC"}}}
	rec := events.NewRecorder()
	svc := newService(p, rec)
	sess := session.New("s1", session.ModeManual, 0)

	res, err := svc.Search(context.Background(), sess, SearchRequest{Query: "Footscray", Autocomplete: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(res.Results.Candidates) != 2 || len(res.Bands) != 2 {
		t.Fatalf("Unexpected result: %+v", res)
	}
	if p.lastSearch.Intent != intent.Suburb || p.lastSearch.SessionToken == "" {
		t.Errorf("Expected suburb intent and a session token, got %+v", p.lastSearch)
	}
	if n := len(sess.SearchHistory()); n != 1 {
		t.Fatalf("Expected one history entry, got %d", n)
	}

	if _, err := svc.RecallSearch(context.Background(), sess, 0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.searchCalls != 2 {
		t.Errorf("Expected recall to re-issue the query, got %d calls", p.searchCalls)
	}
	if n := len(sess.SearchHistory()); n != 1 {
		t.Errorf("Expected the recall search not to be logged, got %d entries", n)
	}
	if !sess.RecallMode() {
		t.Error("Expected recall mode")
	}

	p.searchErr = errors.New("quota exceeded")
	recalled, err := svc.RecallSearch(context.Background(), sess, 0)
	if err != nil {
		t.Fatalf("Expected recall errors to be reported in the result set, got %v", err)
	}
	if recalled.Results.Error == "" {
		t.Error("Expected an error message on the result set")
	}

	if _, err := svc.Search(context.Background(), sess, SearchRequest{Query: "Kew"}); !errors.Is(err, ErrSearchFailed) {
		t.Errorf("Expected ErrSearchFailed for a normal search, got %v", err)
	}
	if !slices.Contains(rec.Types(), events.TypeSuggestions) {
		t.Error("Expected a suggestions update")
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := newService(&fakeProvider{}, nil)
	if _, err := svc.Search(context.Background(), session.New("s1", session.ModeManual, 0), SearchRequest{Query: "  "}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Expected ErrEmptyQuery, got %v", err)
	}
}

func TestSelectNotFoundAndAlreadySelected(t *testing.T) {
	p := &fakeProvider{suggestions: []places.Candidate{footscray, {PlaceID: "kew", Description: "Kew VIC", Types: []string{"locality"}}}}
	svc := newService(p, nil)
	sess := session.New("s1", session.ModeManual, 0)

	if _, err := svc.Search(context.Background(), sess, SearchRequest{Query: "Footscray"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err := svc.Select(context.Background(), sess, "missing", "")
	var nf *NotFoundError
	if !errors.As(err, &nf) || !errors.Is(err, ErrCandidateNotFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if nf.RequestedID != "missing" || len(nf.Available) != 2 {
		t.Errorf("Unexpected diagnostics: %+v", nf)
	}

	if _, err := svc.Select(context.Background(), sess, "kew", ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 새 검색으로 결과가 바뀌어도 이미 확정된 선택은 찾을 수 있다
	p.suggestions = []places.Candidate{{PlaceID: "other1"}, {PlaceID: "other2"}}
	if _, err := svc.Search(context.Background(), sess, SearchRequest{Query: "Hawthorn"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	out, err := svc.Select(context.Background(), sess, "kew", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Kind != OutcomeAlreadySelected {
		t.Errorf("Expected already_selected, got %s", out.Kind)
	}
}

type recordingHistory struct {
	searches   []string
	selections []string
}

func (r *recordingHistory) RecordSearch(_ context.Context, id string, e session.SearchHistoryEntry) error {
	r.searches = append(r.searches, fmt.Sprintf("%s:%s", id, e.Query))
	return nil
}

func (r *recordingHistory) RecordSelection(_ context.Context, id string, e session.SelectionHistoryEntry) error {
	r.selections = append(r.selections, fmt.Sprintf("%s:%s", id, e.SelectedAddress.PlaceID))
	return nil
}

func TestHistoryRecorderReceivesEntries(t *testing.T) {
	p := &fakeProvider{suggestions: []places.Candidate{footscray, {PlaceID: "kew", Description: "Kew VIC", Types: []string{"locality"}}}}
	h := &recordingHistory{}
	svc := newService(p, nil).WithHistory(h)
	sess := session.New("s1", session.ModeManual, 0)

	if _, err := svc.Search(context.Background(), sess, SearchRequest{Query: "Footscray"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := svc.Select(context.Background(), sess, "kew", ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(h.searches, []string{"s1:Footscray"}) || !reflect.DeepEqual(h.selections, []string{"s1:kew"}) {
		t.Errorf("Unexpected recorded history: %v / %v", h.searches, h.selections)
	}
}

func TestPolicy(t *testing.T) {
	p := PolicyFromConfig(config.FinderConfig{})
	if p != DefaultPolicy() {
		t.Errorf("Expected defaults for an empty config, got %+v", p)
	}

	bands := []struct {
		score float64
		band  string
	}{
		{0.95, BandHigh}, {0.8, BandHigh}, {0.79, BandMedium}, {0.6, BandMedium}, {0.59, BandLow},
	}
	for _, b := range bands {
		if got := p.Band(b.score); got != b.band {
			t.Errorf("Band(%v): expected %s, got %s", b.score, b.band, got)
		}
	}

	if got := Acknowledgement(intent.Street); got != "Got it, that's a street, not a full address." {
		t.Errorf("Unexpected street acknowledgement %q", got)
	}
}

func TestResultTypeOverridesLocalClassification(t *testing.T) {
	testCases := []struct {
		name          string
		resultType    string
		detailsTypes  []string
		expected      intent.Intent
		validateCalls int
	}{
		{name: "label beats address-looking types", resultType: "suburb", expected: intent.Suburb},
		{name: "label survives details types", resultType: "street", detailsTypes: []string{"street_address"}, expected: intent.Street},
		{name: "no label falls back to types", expected: intent.Address, validateCalls: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProvider{
				details: map[string]places.Details{
					"collins-123": {PlaceID: "collins-123", Lat: -37.81, Lng: 144.96, Types: tc.detailsTypes},
				},
				validation: &places.Validation{IsValid: true, Types: []string{"street_address"}},
			}
			svc := newService(p, nil)
			sess := session.New("s1", session.ModeManual, 0)

			cand := collins
			cand.ResultType = tc.resultType
			out, err := svc.Reconcile(context.Background(), sess, cand, ReconcileOptions{Query: "Collins"})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if out.Selection == nil || out.Selection.Intent != tc.expected {
				t.Errorf("Expected intent %s, got %+v", tc.expected, out.Selection)
			}
			if p.validateCalls != tc.validateCalls {
				t.Errorf("Expected %d validation calls, got %d", tc.validateCalls, p.validateCalls)
			}
		})
	}
}
