package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reop/addressfinder/internal/session"
)

// ErrUnknownTool is returned by Dispatch for a name no tool answers to.
var ErrUnknownTool = errors.New("unknown tool")

// Parameter describes one tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Definition is what the conversational agent registers for a tool.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
}

type handlerFunc func(t *Toolkit, ctx context.Context, sess *session.Session, args map[string]any) string

type tool struct {
	def Definition
	run handlerFunc
}

var tools = []tool{
	{
		def: Definition{
			Name:        "search_address",
			Description: "Search for an Australian address, suburb, or street name. Updates suggestions on screen. Always clears existing selection.",
			Parameters:  []Parameter{{Name: "query", Description: "The address, suburb, or street name to search for", Required: true}},
		},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, args map[string]any) string {
			return t.SearchAddress(ctx, sess, argString(args, "query"))
		},
	},
	{
		def: Definition{
			Name:        "select_suggestion",
			Description: "Confirm the selection of a place by its unique placeId from current search results.",
			Parameters:  []Parameter{{Name: "place_id", Description: "The Google Places place ID of the suggestion to select", Required: true}},
		},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, args map[string]any) string {
			return t.SelectSuggestion(ctx, sess, argString(args, "place_id"))
		},
	},
	{
		def: Definition{
			Name:        "select_by_ordinal",
			Description: "Select a suggestion by its position from the last search results. ALWAYS use this for ordinal references.",
			Parameters:  []Parameter{{Name: "ordinal", Description: "Position like 'first', 'second', '1', '2', etc.", Required: true}},
		},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, args map[string]any) string {
			return t.SelectByOrdinal(ctx, sess, argString(args, "ordinal"))
		},
	},
	{
		def: Definition{Name: "get_suggestions", Description: "List the suggestions currently on screen, in order."},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, _ map[string]any) string {
			return t.GetSuggestions(ctx, sess)
		},
	},
	{
		def: Definition{Name: "get_current_state", Description: "Get comprehensive session state including search, suggestions, and selection for debugging."},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, _ map[string]any) string {
			return t.GetCurrentState(ctx, sess)
		},
	},
	{
		def: Definition{Name: "get_confirmed_selection", Description: "Get the confirmed address selection, if there is one."},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, _ map[string]any) string {
			return t.GetConfirmedSelection(ctx, sess)
		},
	},
	{
		def: Definition{Name: "clear_selection", Description: "Clear current selection and search state, resetting the system so user can start over."},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, _ map[string]any) string {
			return t.ClearSelection(ctx, sess)
		},
	},
	{
		def: Definition{Name: "confirm_user_selection", Description: "Call AFTER you have verbally acknowledged a selection to the user."},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, _ map[string]any) string {
			return t.ConfirmUserSelection(ctx, sess)
		},
	},
	{
		def: Definition{
			Name:        "request_manual_input",
			Description: "Enable manual text input while keeping voice conversation active (hybrid mode).",
			Parameters:  []Parameter{{Name: "reason", Description: "Brief explanation of why manual input is needed"}},
		},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, args map[string]any) string {
			return t.RequestManualInput(ctx, sess, argString(args, "reason"))
		},
	},
	{
		def: Definition{Name: "get_history", Description: "List previous searches and selections in this session."},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, _ map[string]any) string {
			return t.GetHistory(ctx, sess)
		},
	},
	{
		def: Definition{
			Name:        "set_selection_acknowledged",
			Description: "Set UI synchronization flag. Set true after confirming selection, false when starting new search.",
			Parameters:  []Parameter{{Name: "acknowledged", Description: "'true' or 'false'", Required: true}},
		},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, args map[string]any) string {
			return t.SetSelectionAcknowledged(ctx, sess, arg(args, "acknowledged"))
		},
	},
	{
		def: Definition{Name: "show_options_again", Description: "Show the previous address options again after a selection has been confirmed."},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, _ map[string]any) string {
			return t.ShowOptionsAgain(ctx, sess)
		},
	},
	{
		def: Definition{
			Name:        "confirm_rural_address",
			Description: "Accept or reject the rural address waiting for confirmation on screen.",
			Parameters:  []Parameter{{Name: "accept", Description: "'true' to use the address, 'false' to discard it", Required: true}},
		},
		run: func(t *Toolkit, ctx context.Context, sess *session.Session, args map[string]any) string {
			return t.ConfirmRuralAddress(ctx, sess, arg(args, "accept"))
		},
	},
}

var toolsByKey = func() map[string]tool {
	m := make(map[string]tool, len(tools))
	for _, t := range tools {
		m[toolKey(t.def.Name)] = t
	}
	return m
}()

// toolKey folds "searchAddress", "search_address" and "SEARCH-ADDRESS"
// to the same key.
func toolKey(name string) string {
	r := strings.NewReplacer("_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}

// Definitions returns the registered tools.
func Definitions() []Definition {
	out := make([]Definition, len(tools))
	for i, t := range tools {
		out[i] = t.def
	}
	return out
}

// Dispatch runs the named tool. Names are accepted in camelCase or
// snake_case and argument keys likewise.
func (t *Toolkit) Dispatch(ctx context.Context, sess *session.Session, name string, args map[string]any) (string, error) {
	tl, ok := toolsByKey[toolKey(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	for _, p := range tl.def.Parameters {
		if p.Required && arg(args, p.Name) == nil {
			return failure(fmt.Sprintf("Missing required argument '%s'.", p.Name)), nil
		}
	}
	sess.Touch()
	return tl.run(t, ctx, sess, args), nil
}

// arg looks a key up as given and in its folded form (place_id == placeId).
func arg(args map[string]any, name string) any {
	if v, ok := args[name]; ok {
		return v
	}
	key := toolKey(name)
	for k, v := range args {
		if toolKey(k) == key {
			return v
		}
	}
	return nil
}

func argString(args map[string]any, name string) string {
	switch v := arg(args, name).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
