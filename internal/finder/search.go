package finder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/reop/addressfinder/internal/events"
	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/logger"
	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
	"github.com/reop/addressfinder/internal/telemetry"
)

// SearchRequest 검색 요청
type SearchRequest struct {
	Query        string
	Mode         session.Mode
	Autocomplete bool
	MaxResults   int
	// Intent overrides the classifier (recall re-issues with the logged intent).
	Intent intent.Intent
	Recall bool
}

// SearchResult is the installed result set plus what happened to it.
type SearchResult struct {
	Results       session.ResultSet `json:"results"`
	Bands         []string          `json:"bands"`
	AutoSelected  bool              `json:"autoSelected"`
	LowConfidence bool              `json:"lowConfidence"`
	Outcome       *Outcome          `json:"outcome,omitempty"`
	// AutoSelectError is set when auto-selection was attempted and failed.
	AutoSelectError string `json:"autoSelectError,omitempty"`
}

// Search queries the place collaborator and installs the results in the
// session. A single voice result is auto-selected when the policy allows
// it, otherwise it is flagged low confidence.
//
// A failing recall search is not an error: the result set carries the
// message instead.
func (s *Service) Search(ctx context.Context, sess *session.Session, req SearchRequest) (*SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	mode := req.Mode
	if mode == "" {
		mode = sess.Mode()
	}

	predicted := intent.Resolve(intent.Predicted(intent.Classify(query)), intent.Preserved(req.Intent))

	ctx, span := telemetry.StartSpan(ctx, "finder.search",
		attribute.String("session.id", sess.ID),
		attribute.String("finder.intent", predicted.String()),
		attribute.Bool("finder.recall", req.Recall),
	)
	defer span.End()

	log := logger.ForSession("finder", sess.ID)
	attempt := sess.BeginAttempt()

	limit := req.MaxResults
	if limit <= 0 {
		limit = s.policy.MaxSuggestions
	}
	candidates, err := s.searcher.GetPlaceSuggestions(ctx, places.SuggestionRequest{
		Query:        query,
		Intent:       predicted,
		Autocomplete: req.Autocomplete,
		SessionToken: sess.SessionToken(),
		MaxResults:   limit,
	})

	rs := session.ResultSet{
		Query:      query,
		Intent:     predicted,
		Mode:       mode,
		Candidates: candidates,
		Recalled:   req.Recall,
	}
	if err != nil {
		searchesTotal.WithLabelValues(predicted.String(), string(mode), "error").Inc()
		log.Warnf("place search 실패 (query=%q): %v", query, err)
		span.RecordError(err)
		if !req.Recall {
			return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
		}
		rs.Candidates = nil
		rs.Error = "Search failed. Please try again."
	}

	result := &SearchResult{}
	single := len(rs.Candidates) == 1 && mode == session.ModeVoice && rs.Error == ""
	autoSelect := single && s.policy.ShouldAutoSelect(query, rs.Candidates[0])
	if single && !autoSelect {
		rs.LowConfidence = true
		autoSelectTotal.WithLabelValues("low_confidence").Inc()
	}

	if err := sess.SetResults(attempt, rs); err != nil {
		return nil, err
	}
	searchesTotal.WithLabelValues(predicted.String(), string(mode), "ok").Inc()
	telemetry.RecordSearch(ctx, predicted.String(), string(mode), len(rs.Candidates))

	if s.history != nil && rs.Error == "" && len(rs.Candidates) >= 2 && !rs.Recalled {
		history := sess.SearchHistory()
		if len(history) > 0 {
			if err := s.history.RecordSearch(ctx, sess.ID, history[len(history)-1]); err != nil {
				log.Warnf("search history 저장 실패: %v", err)
			}
		}
	}

	s.publish(ctx, events.NewUpdate(sess.ID, events.TypeSuggestions, map[string]any{
		"query":         rs.Query,
		"intent":        rs.Intent,
		"suggestions":   rs.Candidates,
		"lowConfidence": rs.LowConfidence,
		"error":         rs.Error,
	}))

	if autoSelect {
		autoSelectTotal.WithLabelValues("auto").Inc()
		out, err := s.Reconcile(ctx, sess, rs.Candidates[0], ReconcileOptions{Mode: mode, Query: query, Recall: req.Recall})
		switch {
		case err == nil:
			result.AutoSelected = out.Kind == OutcomeSelected
			result.Outcome = out
		case errors.Is(err, ErrStaleAttempt):
			return nil, err
		default:
			result.AutoSelectError = err.Error()
		}
	}

	final, _ := sess.Results()
	result.Results = final
	result.LowConfidence = final.LowConfidence
	result.Bands = make([]string, len(final.Candidates))
	for i, c := range final.Candidates {
		result.Bands[i] = s.policy.Band(c.Score())
	}
	return result, nil
}

// RecallSearch re-issues a logged search with its original intent. The
// re-issued search is not logged again.
func (s *Service) RecallSearch(ctx context.Context, sess *session.Session, index int) (*SearchResult, error) {
	entry, err := sess.BeginRecallSearch(index)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, sess, SearchRequest{
		Query:        entry.Query,
		Mode:         entry.Context.Mode,
		Intent:       entry.Context.Intent,
		Autocomplete: true,
		Recall:       true,
	})
}
