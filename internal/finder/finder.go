package finder

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reop/addressfinder/internal/events"
	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/logger"
	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
	"github.com/reop/addressfinder/internal/telemetry"
)

// HistoryRecorder persists history entries outside the session (audit log).
type HistoryRecorder interface {
	RecordSearch(ctx context.Context, sessionID string, e session.SearchHistoryEntry) error
	RecordSelection(ctx context.Context, sessionID string, e session.SelectionHistoryEntry) error
}

// Service runs searches and turns candidates into selections for a session.
type Service struct {
	searcher  places.Searcher
	details   *places.DetailsCache
	validator places.Validator
	publisher events.Publisher
	history   HistoryRecorder
	policy    Policy
}

func New(searcher places.Searcher, details *places.DetailsCache, validator places.Validator, publisher events.Publisher, policy Policy) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		searcher:  searcher,
		details:   details,
		validator: validator,
		publisher: publisher,
		policy:    policy,
	}
}

// WithHistory attaches a durable history recorder.
func (s *Service) WithHistory(h HistoryRecorder) *Service {
	s.history = h
	return s
}

func (s *Service) Policy() Policy { return s.policy }

// OutcomeKind 후보 확정 결과 종류
type OutcomeKind string

const (
	OutcomeSelected        OutcomeKind = "selected"
	OutcomeRural           OutcomeKind = "rural_confirmation"
	OutcomeAlreadySelected OutcomeKind = "already_selected"
)

// Outcome is the result of a successful reconciliation: a selection, or a
// rural address waiting for the user.
type Outcome struct {
	Kind            OutcomeKind                `json:"kind"`
	Selection       *session.Selection         `json:"selection,omitempty"`
	Rural           *session.RuralConfirmation `json:"rural,omitempty"`
	Acknowledgement string                     `json:"acknowledgement,omitempty"`
	Warning         string                     `json:"warning,omitempty"`
}

// ReconcileOptions describe where a candidate came from.
type ReconcileOptions struct {
	Mode  session.Mode
	Query string
	// PreserveIntent is set when re-confirming a recalled selection and
	// overrides the intent derived from the candidate.
	PreserveIntent intent.Intent
	Recall         bool
}

// Reconcile enriches the candidate, resolves its intent and either
// promotes it to the session's selection, stores a pending rural
// confirmation, or fails validation leaving the session untouched.
func (s *Service) Reconcile(ctx context.Context, sess *session.Session, cand places.Candidate, opts ReconcileOptions) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "finder.reconcile",
		attribute.String("session.id", sess.ID),
		attribute.String("place.id", cand.PlaceID),
	)
	defer span.End()

	log := logger.ForSession("finder", sess.ID)
	attempt := sess.BeginAttempt()
	if opts.Mode == "" {
		opts.Mode = sess.Mode()
	}

	// 1. enrichment (실패해도 계속 진행)
	var warning string
	enriched := cand
	if s.details != nil {
		var err error
		enriched, err = s.details.Enrich(ctx, cand)
		if err != nil {
			enrichmentFailuresTotal.Inc()
			log.Warnf("place details enrichment 실패 (place_id=%s): %v", cand.PlaceID, err)
			warning = "Place details could not be loaded."
			enriched = cand
		}
	}

	// 2. intent resolution: the collaborator's resultType label beats the
	// local reading of types/description
	var verified intent.Signal
	if enriched.ResultType != "" {
		verified = intent.Verified(intent.Parse(enriched.ResultType))
	}
	resolved := intent.Resolve(
		intent.Predicted(intent.ClassifyResult(enriched.Types, enriched.Description)),
		verified,
		intent.Preserved(opts.PreserveIntent),
	)
	span.SetAttributes(attribute.String("finder.intent", resolved.String()))

	// 3. branch
	if resolved != intent.Address {
		sel := session.Selection{Candidate: enriched, OriginalQuery: opts.Query, Intent: resolved, Mode: opts.Mode}
		out, err := s.commit(ctx, sess, attempt, sel, !opts.Recall)
		if out != nil {
			out.Warning = warning
		}
		return out, s.observe(ctx, span, resolved, out, err)
	}

	validation, err := s.validator.ValidateAddress(ctx, enriched.Description)
	if !sess.IsCurrentAttempt(attempt) {
		log.Infof("오래된 검증 응답 폐기 (place_id=%s)", cand.PlaceID)
		return nil, s.observe(ctx, span, resolved, nil, ErrStaleAttempt)
	}
	if err != nil {
		log.Warnf("address validation 호출 실패 (place_id=%s): %v", cand.PlaceID, err)
		verr := &ValidationError{Message: "The address could not be validated right now.", Err: err}
		return nil, s.observe(ctx, span, resolved, nil, verr)
	}

	switch {
	case validation.IsValid:
		validated := fromValidation(enriched, validation)
		final := intent.Resolve(
			intent.Verified(intent.ClassifyResult(validated.Types, validated.Description)),
			intent.Preserved(opts.PreserveIntent),
		)
		sel := session.Selection{Candidate: validated, OriginalQuery: opts.Query, Intent: final, Mode: opts.Mode}
		out, err := s.commit(ctx, sess, attempt, sel, !opts.Recall)
		if out != nil {
			out.Warning = warning
		}
		return out, s.observe(ctx, span, final, out, err)

	case validation.IsRuralException:
		rc := session.RuralConfirmation{
			Result: enriched,
			Validation: session.RuralValidation{
				FormattedAddress: validation.FormattedAddress,
				PlaceID:          validation.PlaceID,
				Lat:              validation.Lat,
				Lng:              validation.Lng,
				Error:            validation.Error,
			},
			OriginalQuery: opts.Query,
			Mode:          opts.Mode,
		}
		if err := sess.SetPendingRural(attempt, rc); err != nil {
			return nil, s.observe(ctx, span, resolved, nil, err)
		}
		s.publish(ctx, events.NewUpdate(sess.ID, events.TypeRuralConfirmation, map[string]any{
			"result":     rc.Result,
			"validation": rc.Validation,
		}))
		out := &Outcome{Kind: OutcomeRural, Rural: &rc, Warning: warning}
		return out, s.observe(ctx, span, resolved, out, nil)

	default:
		msg := validation.Error
		if msg == "" {
			msg = "The provided address could not be validated."
		}
		return nil, s.observe(ctx, span, resolved, nil, &ValidationError{Message: msg})
	}
}

// AcceptRural promotes the pending rural confirmation to the selection,
// preferring the validator's formatted address and place id.
func (s *Service) AcceptRural(ctx context.Context, sess *session.Session) (*Outcome, error) {
	rc, ok := sess.PendingRural()
	if !ok {
		return nil, ErrNoPendingRural
	}

	cand := rc.Result.WithType(places.TypeUserConfirmedRural)
	if rc.Validation.FormattedAddress != "" {
		cand.Description = rc.Validation.FormattedAddress
	}
	if rc.Validation.PlaceID != "" {
		cand.PlaceID = rc.Validation.PlaceID
	}
	if rc.Validation.Lat != nil && rc.Validation.Lng != nil {
		cand.Lat = places.Float(*rc.Validation.Lat)
		cand.Lng = places.Float(*rc.Validation.Lng)
	}

	attempt := sess.BeginAttempt()
	sel := session.Selection{Candidate: cand, OriginalQuery: rc.OriginalQuery, Intent: intent.Address, Mode: rc.Mode}
	out, err := s.commit(ctx, sess, attempt, sel, true)
	if err == nil {
		reconcileTotal.WithLabelValues(intent.Address.String(), "rural_accepted").Inc()
	}
	return out, err
}

// CancelRural discards the pending rural confirmation. Nothing else in the
// session changes.
func (s *Service) CancelRural(ctx context.Context, sess *session.Session) error {
	if err := sess.CancelPendingRural(); err != nil {
		return err
	}
	reconcileTotal.WithLabelValues(intent.Address.String(), "rural_cancelled").Inc()
	s.publish(ctx, events.NewUpdate(sess.ID, events.TypeRuralConfirmation, map[string]any{"cancelled": true}))
	return nil
}

// Select reconciles the candidate with placeID from the current results.
// Selecting the recalled selection again keeps its preserved intent. When
// the id is not in the results but is already the confirmed selection the
// outcome is OutcomeAlreadySelected.
func (s *Service) Select(ctx context.Context, sess *session.Session, placeID string, mode session.Mode) (*Outcome, error) {
	rs, _ := sess.Results()
	cand, found := rs.Find(placeID)
	opts := ReconcileOptions{Mode: mode, Query: rs.Query}

	if current, ok := sess.Selection(); ok && current.PlaceID == placeID {
		if preserved := sess.PreservedIntent(); preserved != "" {
			if !found {
				cand, found = current.Candidate, true
			}
			opts.PreserveIntent = preserved
			opts.Recall = true
			opts.Query = current.OriginalQuery
		} else if !found {
			return &Outcome{Kind: OutcomeAlreadySelected, Selection: &current}, nil
		}
	}

	if !found {
		return nil, &NotFoundError{RequestedID: placeID, Available: rs.Candidates}
	}
	return s.Reconcile(ctx, sess, cand, opts)
}

// RecallSelection restores a logged selection (no network call) and
// notifies the bridge.
func (s *Service) RecallSelection(ctx context.Context, sess *session.Session, index int) (session.Selection, error) {
	sel, err := sess.RecallSelection(index)
	if err != nil {
		return session.Selection{}, err
	}
	s.publish(ctx, events.NewUpdate(sess.ID, events.TypeSelection, map[string]any{
		"suggestion": sel,
		"recalled":   true,
	}))
	return sel, nil
}

func (s *Service) commit(ctx context.Context, sess *session.Session, attempt uint64, sel session.Selection, fresh bool) (*Outcome, error) {
	entry, err := sess.CommitSelection(attempt, sel, fresh)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.RecordSelection(ctx, sess.ID, entry); err != nil {
			logger.ForSession("finder", sess.ID).Warnf("selection history 저장 실패: %v", err)
		}
	}

	ack := Acknowledgement(sel.Intent)
	s.publish(ctx, events.NewUpdate(sess.ID, events.TypeSelection, map[string]any{"suggestion": sel}))
	if sess.VoiceActive() {
		s.publish(ctx, events.NewUpdate(sess.ID, events.TypeAcknowledgement, map[string]any{"message": ack}))
	}
	return &Outcome{Kind: OutcomeSelected, Selection: &sel, Acknowledgement: ack}, nil
}

func (s *Service) observe(ctx context.Context, span trace.Span, resolved intent.Intent, out *Outcome, err error) error {
	outcome := "error"
	switch {
	case err == nil && out != nil:
		outcome = string(out.Kind)
	case errors.Is(err, ErrStaleAttempt):
		outcome = "stale"
	case errors.Is(err, ErrValidationFailed):
		outcome = "validation_failed"
	}
	reconcileTotal.WithLabelValues(resolved.String(), outcome).Inc()
	telemetry.RecordReconcile(ctx, resolved.String(), outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return err
}

func (s *Service) publish(ctx context.Context, u events.Update) {
	if err := s.publisher.Publish(ctx, u); err != nil {
		logger.ForSession("finder", u.SessionID).Warnf("세션 업데이트 전송 실패 (type=%s): %v", u.Type, err)
	}
}

// fromValidation builds the selected candidate from validated data,
// keeping the candidate's values where the validator has none.
func fromValidation(c places.Candidate, v *places.Validation) places.Candidate {
	out := c.Clone()
	if v.FormattedAddress != "" {
		out.Description = v.FormattedAddress
	}
	if v.PlaceID != "" {
		out.PlaceID = v.PlaceID
	}
	if v.Lat != nil && v.Lng != nil {
		out.Lat = places.Float(*v.Lat)
		out.Lng = places.Float(*v.Lng)
	}
	if len(v.Types) > 0 {
		out.Types = append([]string(nil), v.Types...)
	}
	return out
}
