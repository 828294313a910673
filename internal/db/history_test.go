package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	calls []execCall
	err   error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestRecordSearch(t *testing.T) {
	q := &fakeQuerier{}
	store := &HistoryStore{q: q}
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := store.RecordSearch(context.Background(), "s1", session.SearchHistoryEntry{
		Query:       "Kew",
		ResultCount: 3,
		Context:     session.Context{Mode: session.ModeVoice, Intent: intent.Suburb},
		Timestamp:   ts,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(q.calls) != 1 || !strings.Contains(q.calls[0].sql, "INSERT INTO address_search_history") {
		t.Fatalf("Unexpected calls: %+v", q.calls)
	}
	args := q.calls[0].args
	if args[0] != "s1" || args[1] != "Kew" || args[2] != 3 || args[3] != "voice" || args[4] != "suburb" || args[5] != ts {
		t.Errorf("Unexpected args: %v", args)
	}
}

func TestRecordSelectionStoresPayload(t *testing.T) {
	q := &fakeQuerier{}
	store := &HistoryStore{q: q}

	sel := session.Selection{
		Candidate:     places.Candidate{PlaceID: "p1", Description: "1 Smith St, Fitzroy VIC 3065"},
		OriginalQuery: "1 Smith St",
		Intent:        intent.Address,
		Mode:          session.ModeManual,
	}
	err := store.RecordSelection(context.Background(), "s1", session.SelectionHistoryEntry{
		OriginalQuery:   sel.OriginalQuery,
		SelectedAddress: sel,
		Context:         session.Context{Mode: sel.Mode, Intent: sel.Intent},
		Timestamp:       time.Now(),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	args := q.calls[0].args
	if args[2] != "p1" || args[5] != "address" {
		t.Errorf("Unexpected args: %v", args)
	}
	var decoded session.Selection
	if err := json.Unmarshal(args[6].([]byte), &decoded); err != nil {
		t.Fatalf("Expected a JSON payload: %v", err)
	}
	if decoded.PlaceID != "p1" || decoded.Intent != intent.Address {
		t.Errorf("Unexpected payload: %+v", decoded)
	}
}

func TestRecordErrorsAreWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	store := &HistoryStore{q: &fakeQuerier{err: cause}}

	if err := store.RecordSearch(context.Background(), "s1", session.SearchHistoryEntry{}); !errors.Is(err, cause) {
		t.Errorf("Expected the cause to be wrapped, got %v", err)
	}
	if err := store.EnsureSchema(context.Background()); !errors.Is(err, cause) {
		t.Errorf("Expected the cause to be wrapped, got %v", err)
	}
}
