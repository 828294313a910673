package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Type 세션 업데이트 종류
type Type string

const (
	TypeSuggestions           Type = "suggestions"
	TypeSelection             Type = "selection"
	TypeClear                 Type = "clear"
	TypeShowOptionsAgain      Type = "show_options_again"
	TypeSelectionAcknowledged Type = "selection_acknowledged"
	TypeRequestManualInput    Type = "request_manual_input"
	TypeRuralConfirmation     Type = "rural_confirmation"
	TypeAcknowledgement       Type = "acknowledgement"
)

// Update is one state change pushed to the browser that mirrors a session.
type Update struct {
	SessionID string    `json:"sessionId"`
	Type      Type      `json:"updateType"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func NewUpdate(sessionID string, typ Type, data any) Update {
	if data == nil {
		data = map[string]any{}
	}
	return Update{
		SessionID: sessionID,
		Type:      typ,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher delivers updates. Publishing is best effort: callers log the
// error and carry on.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
	Close() error
}

// Noop drops every update.
type Noop struct{}

func (Noop) Publish(context.Context, Update) error { return nil }
func (Noop) Close() error                          { return nil }

// Multi fans an update out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, u Update) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published updates in memory. Used by tests and by the
// CLI to print what a browser would have received.
type Recorder struct {
	mu      sync.Mutex
	updates []Update
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, u Update) error {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Updates returns a copy of everything published so far.
func (r *Recorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Update, len(r.updates))
	copy(out, r.updates)
	return out
}

// Types returns the update types in publish order.
func (r *Recorder) Types() []Type {
	var out []Type
	for _, u := range r.Updates() {
		out = append(out, u.Type)
	}
	return out
}
