// Package agent exposes the address finder to a conversational voice agent.
// Every tool returns a JSON string the agent can read back; failures are
// reported in the payload ({"status":"error"}) rather than as Go errors.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/reop/addressfinder/internal/events"
	"github.com/reop/addressfinder/internal/finder"
	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/logger"
	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
)

const (
	noteValidated   = "IMPORTANT: Do NOT read the address aloud. The user can see it on screen. Just say something brief like 'Found it' or 'That's on screen now'."
	noteSomeOptions = "IMPORTANT: Do NOT read addresses aloud or state the count. Just say 'some options are on screen' or similar."
	noteOptions     = "IMPORTANT: Do NOT read addresses aloud, state the count, or describe the results. Just say 'options are on screen' or 'take a look'."
	noteConfirmed   = "IMPORTANT: Do NOT read the address aloud. It is visible on screen. Say 'got it', 'done', or ask what's next."
	noteLowConf     = "Only one option was found and it may not be right. Ask the user to check it on screen before selecting."
	noteRural       = "Ask the user to confirm the rural address shown on screen, then call confirm_rural_address."
)

// Toolkit runs agent tools against a session.
type Toolkit struct {
	finder    *finder.Service
	strict    places.Searcher
	publisher events.Publisher
}

// New builds a toolkit. strict is used for the single-result validation
// search that runs next to the normal search for address queries; nil skips
// it.
func New(svc *finder.Service, strict places.Searcher, publisher events.Publisher) *Toolkit {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Toolkit{finder: svc, strict: strict, publisher: publisher}
}

type payload map[string]any

func respond(p payload) string {
	b, err := json.Marshal(p)
	if err != nil {
		msg, _ := json.Marshal(err.Error())
		return `{"status":"error","error":` + string(msg) + `}`
	}
	return string(b)
}

func failure(msg string) string {
	return respond(payload{"status": "error", "error": msg})
}

// suggestionView 는 agent/브라우저에 보여줄 후보 형태
func suggestionView(c places.Candidate) payload {
	resultType := c.ResultType
	if resultType == "" {
		resultType = intent.ClassifyResult(c.Types, c.Description).String()
	}
	return payload{
		"placeId":     c.PlaceID,
		"description": c.Description,
		"resultType":  resultType,
		"suburb":      c.Suburb,
		"confidence":  c.Score(),
		"types":       c.Types,
	}
}

func suggestionViews(cands []places.Candidate) []payload {
	out := make([]payload, len(cands))
	for i, c := range cands {
		out[i] = suggestionView(c)
	}
	return out
}

// SearchAddress clears any selection and searches. Address queries also run
// a strict single-result search: when it succeeds the address is reported as
// validated and the broader results stay on screen as options.
func (t *Toolkit) SearchAddress(ctx context.Context, sess *session.Session, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return failure("Please say the address, suburb or street to search for.")
	}
	sess.ClearSelection()
	predicted := sess.SetActiveSearch(query, session.ModeVoice)

	if predicted == intent.Address {
		return t.searchAddressIntent(ctx, sess, query)
	}

	res, err := t.finder.Search(ctx, sess, finder.SearchRequest{
		Query:        query,
		Mode:         session.ModeVoice,
		Autocomplete: true,
		Intent:       predicted,
	})
	if err != nil {
		return failure(fmt.Sprintf("Search failed: %v", err))
	}
	return searchResponse(query, res, "Options are on screen.", noteOptions)
}

func (t *Toolkit) searchAddressIntent(ctx context.Context, sess *session.Session, query string) string {
	log := logger.GetLogger("agent")

	var validated *places.Candidate
	if t.strict != nil {
		strict, err := t.strict.GetPlaceSuggestions(ctx, places.SuggestionRequest{
			Query:        query,
			Intent:       intent.Address,
			Autocomplete: false,
			SessionToken: sess.SessionToken(),
			MaxResults:   1,
		})
		switch {
		case err != nil:
			log.Warnf("strict address 검색 실패 (query=%q): %v", query, err)
		case len(strict) > 0:
			validated = &strict[0]
		}
	}

	// loose list: general intent so a strict miss still gets broad options
	res, err := t.finder.Search(ctx, sess, finder.SearchRequest{
		Query:        query,
		Mode:         session.ModeVoice,
		Autocomplete: true,
		Intent:       intent.General,
	})
	if err != nil {
		log.Warnf("loose address 검색 실패 (query=%q): %v", query, err)
	}

	if validated != nil {
		if res == nil || len(res.Results.Candidates) == 0 {
			// loose 결과가 없으면 strict 결과만 화면에 올린다
			rs := session.ResultSet{
				Query:      query,
				Intent:     intent.Address,
				Mode:       session.ModeVoice,
				Candidates: []places.Candidate{*validated},
			}
			if err := sess.SetResults(sess.BeginAttempt(), rs); err != nil {
				return failure(err.Error())
			}
			t.publish(ctx, events.NewUpdate(sess.ID, events.TypeSuggestions, payload{
				"query":       query,
				"intent":      intent.Address,
				"suggestions": suggestionViews(rs.Candidates),
			}))
		}
		p := payload{
			"status":  "validated",
			"count":   1,
			"message": "Found it, it's on screen.",
			"note":    noteValidated,
		}
		if res != nil && res.AutoSelected {
			p["autoSelected"] = true
		}
		return respond(p)
	}

	if res != nil && len(res.Results.Candidates) > 0 {
		return searchResponse(query, res, "Some options are on screen.", noteSomeOptions)
	}
	return respond(payload{"status": "validation_failed", "error": "The provided address could not be validated."})
}

func searchResponse(query string, res *finder.SearchResult, message, note string) string {
	rs := res.Results
	switch {
	case rs.Error != "":
		return failure(rs.Error)
	case len(rs.Candidates) == 0:
		return respond(payload{
			"status":  "no_results",
			"message": fmt.Sprintf("No results for '%s'. Could you try a different search?", query),
		})
	case res.AutoSelected:
		return respond(payload{
			"status":          "confirmed",
			"autoSelected":    true,
			"message":         "Done.",
			"acknowledgement": res.Outcome.Acknowledgement,
			"note":            noteConfirmed,
		})
	case res.Outcome != nil && res.Outcome.Kind == finder.OutcomeRural:
		return respond(payload{"status": "rural_confirmation", "message": "Please confirm the rural address on screen.", "note": noteRural})
	}

	p := payload{
		"status":  "suggestions_available",
		"count":   len(rs.Candidates),
		"message": message,
		"note":    note,
	}
	if res.LowConfidence {
		p["lowConfidence"] = true
		p["note"] = noteLowConf
	}
	return respond(p)
}

// SelectSuggestion confirms the candidate with placeID from the current results.
func (t *Toolkit) SelectSuggestion(ctx context.Context, sess *session.Session, placeID string) string {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return failure("That suggestion doesn't have a valid place ID. Try another.")
	}

	out, err := t.finder.Select(ctx, sess, placeID, session.ModeVoice)
	if err != nil {
		return selectFailure(placeID, err)
	}

	switch out.Kind {
	case finder.OutcomeRural:
		return respond(payload{
			"status":           "rural_confirmation",
			"message":          "Please confirm the rural address on screen.",
			"formattedAddress": out.Rural.Validation.FormattedAddress,
			"note":             noteRural,
		})
	case finder.OutcomeAlreadySelected:
		return respond(payload{
			"status":  "confirmed",
			"message": "That one is already selected.",
			"intent":  out.Selection.Intent,
			"note":    noteConfirmed,
		})
	}

	p := payload{
		"status":          "confirmed",
		"message":         "Done.",
		"intent":          out.Selection.Intent,
		"acknowledgement": out.Acknowledgement,
		"note":            noteConfirmed,
	}
	if out.Warning != "" {
		p["warning"] = out.Warning
	}
	return respond(p)
}

func selectFailure(placeID string, err error) string {
	var nf *finder.NotFoundError
	var verr *finder.ValidationError
	switch {
	case errors.As(err, &nf):
		available := make([]payload, len(nf.Available))
		for i, c := range nf.Available {
			available[i] = payload{"placeId": c.PlaceID, "description": c.Description}
		}
		return respond(payload{
			"status":      "not_found",
			"error":       fmt.Sprintf("No suggestion with place ID '%s' in current results. Use search_address to refresh.", placeID),
			"requestedId": nf.RequestedID,
			"available":   available,
		})
	case errors.As(err, &verr):
		return respond(payload{"status": "validation_failed", "error": verr.Message})
	case errors.Is(err, finder.ErrStaleAttempt):
		return failure("A newer request replaced this one. Please try again.")
	default:
		return failure(err.Error())
	}
}

// SelectByOrdinal resolves "first", "2", "3rd"... against the current results
// and behaves exactly like SelectSuggestion with that candidate's place id.
func (t *Toolkit) SelectByOrdinal(ctx context.Context, sess *session.Session, ordinal string) string {
	index, ok := ParseOrdinal(ordinal)
	if !ok {
		return failure(fmt.Sprintf("Didn't understand '%s'. Please say first, second, third, etc.", ordinal))
	}

	rs, _ := sess.Results()
	n := len(rs.Candidates)
	if n == 0 {
		return failure("No search results to select from. Please search for an address first.")
	}
	if index >= n {
		return failure(fmt.Sprintf("Only %d results available. Choose 1 to %d.", n, n))
	}
	return t.SelectSuggestion(ctx, sess, rs.Candidates[index].PlaceID)
}

// GetSuggestions lists the current results in display order.
func (t *Toolkit) GetSuggestions(_ context.Context, sess *session.Session) string {
	rs, ok := sess.Results()
	if !ok {
		return respond(payload{"status": "no_results", "message": "No search has been made yet."})
	}
	items := suggestionViews(rs.Candidates)
	for i := range items {
		items[i]["ordinal"] = i + 1
	}
	return respond(payload{
		"status":        "ok",
		"query":         rs.Query,
		"intent":        rs.Intent,
		"count":         len(items),
		"suggestions":   items,
		"lowConfidence": rs.LowConfidence,
	})
}

// GetCurrentState summarises the session for the agent.
func (t *Toolkit) GetCurrentState(_ context.Context, sess *session.Session) string {
	st := sess.Snapshot()

	numSuggestions := 0
	if st.Results != nil {
		numSuggestions = len(st.Results.Candidates)
	}
	var current payload
	if st.Selection != nil {
		current = payload{
			"description": st.Selection.Description,
			"suburb":      st.Selection.Suburb,
			"postcode":    st.Selection.Postcode,
			"intent":      st.Selection.Intent,
		}
	}

	b, err := json.MarshalIndent(payload{
		"last_query":             st.LastAgentQuery,
		"active_query":           st.ActiveQuery,
		"active_intent":          st.ActiveIntent,
		"num_suggestions":        numSuggestions,
		"has_selection":          st.Selection != nil,
		"selection_acknowledged": st.SelectionAcknowledged,
		"current_selection":      current,
		"recall_mode":            st.RecallMode,
		"pending_rural":          st.PendingRural != nil,
		"manual_input_requested": st.ManualInputRequested,
	}, "", "  ")
	if err != nil {
		return failure(err.Error())
	}
	return string(b)
}

// GetConfirmedSelection returns the confirmed selection, if any.
func (t *Toolkit) GetConfirmedSelection(_ context.Context, sess *session.Session) string {
	sel, ok := sess.Selection()
	if !ok {
		return respond(payload{"status": "none", "message": "No address has been selected yet."})
	}
	return respond(payload{
		"status":        "selected",
		"selection":     sel,
		"intent":        sel.Intent,
		"isFullAddress": sel.Intent == intent.Address,
	})
}

// ClearSelection resets query, selection and intent. History is kept.
func (t *Toolkit) ClearSelection(ctx context.Context, sess *session.Session) string {
	sess.ClearSelectionAndSearch()
	t.publish(ctx, events.NewUpdate(sess.ID, events.TypeClear, payload{}))
	return respond(payload{"status": "cleared", "message": "Ready for a new search."})
}

// ConfirmUserSelection is called after the agent has acknowledged the
// selection out loud.
func (t *Toolkit) ConfirmUserSelection(ctx context.Context, sess *session.Session) string {
	if _, ok := sess.Selection(); !ok {
		return failure("No selection to confirm.")
	}
	sess.SetSelectionAcknowledged(true)
	t.publish(ctx, events.NewUpdate(sess.ID, events.TypeSelectionAcknowledged, payload{"acknowledged": true}))
	return respond(payload{"status": "acknowledged", "message": "Selection confirmed."})
}

// SetSelectionAcknowledged sets the UI synchronisation flag.
func (t *Toolkit) SetSelectionAcknowledged(ctx context.Context, sess *session.Session, acknowledged any) string {
	ack := parseBool(acknowledged)
	sess.SetSelectionAcknowledged(ack)
	t.publish(ctx, events.NewUpdate(sess.ID, events.TypeSelectionAcknowledged, payload{"acknowledged": ack}))
	return respond(payload{"status": "ok", "selection_acknowledged": ack})
}

// RequestManualInput turns on manual text entry while voice stays active.
func (t *Toolkit) RequestManualInput(ctx context.Context, sess *session.Session, reason string) string {
	sess.RequestManualInput(reason)
	t.publish(ctx, events.NewUpdate(sess.ID, events.TypeRequestManualInput, payload{"reason": reason}))
	return respond(payload{"status": "hybrid_mode_activated", "message": "Manual input enabled."})
}

// GetHistory lists logged searches and selections, newest last.
func (t *Toolkit) GetHistory(_ context.Context, sess *session.Session) string {
	searches := sess.SearchHistory()
	selections := sess.SelectionHistory()

	s := make([]payload, len(searches))
	for i, e := range searches {
		s[i] = payload{"index": i, "query": e.Query, "resultCount": e.ResultCount, "intent": e.Context.Intent, "mode": e.Context.Mode}
	}
	sel := make([]payload, len(selections))
	for i, e := range selections {
		sel[i] = payload{"index": i, "originalQuery": e.OriginalQuery, "description": e.SelectedAddress.Description, "intent": e.Context.Intent}
	}
	return respond(payload{"status": "ok", "searches": s, "selections": sel})
}

// ShowOptionsAgain re-displays the last results and drops the selection.
func (t *Toolkit) ShowOptionsAgain(ctx context.Context, sess *session.Session) string {
	rs, ok := sess.Results()
	if !ok || len(rs.Candidates) == 0 || rs.Query == "" {
		return failure("No previous options available.")
	}
	sess.ClearSelection()
	t.publish(ctx, events.NewUpdate(sess.ID, events.TypeShowOptionsAgain, payload{
		"query":       rs.Query,
		"intent":      rs.Intent,
		"suggestions": suggestionViews(rs.Candidates),
	}))
	return respond(payload{
		"status":  "options_displayed",
		"count":   len(rs.Candidates),
		"message": "Previous options are on screen again.",
		"note":    "Do NOT list the options. They are visible on screen.",
	})
}

// ConfirmRuralAddress accepts or discards the pending rural confirmation.
func (t *Toolkit) ConfirmRuralAddress(ctx context.Context, sess *session.Session, accept any) string {
	if !parseBool(accept) {
		if err := t.finder.CancelRural(ctx, sess); err != nil {
			return failure("There is no rural address waiting for confirmation.")
		}
		return respond(payload{"status": "cancelled", "message": "Okay, that address was not used."})
	}

	out, err := t.finder.AcceptRural(ctx, sess)
	if err != nil {
		if errors.Is(err, finder.ErrNoPendingRural) {
			return failure("There is no rural address waiting for confirmation.")
		}
		return failure(err.Error())
	}
	return respond(payload{
		"status":          "confirmed",
		"message":         "Done.",
		"intent":          out.Selection.Intent,
		"acknowledgement": out.Acknowledgement,
		"note":            noteConfirmed,
	})
}

func (t *Toolkit) publish(ctx context.Context, u events.Update) {
	if err := t.publisher.Publish(ctx, u); err != nil {
		logger.ForSession("agent", u.SessionID).Warnf("세션 업데이트 전송 실패 (type=%s): %v", u.Type, err)
	}
}
