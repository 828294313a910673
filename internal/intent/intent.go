// Package intent classifies free-text location queries into a coarse
// LocationIntent and resolves which intent wins when several sources
// (local heuristics, the validator, a recalled selection) disagree.
package intent

import "strings"

// Intent is the coarse category of what the user is looking for.
type Intent string

const (
	Suburb  Intent = "suburb"
	Street  Intent = "street"
	Address Intent = "address"
	General Intent = "general"
)

// All lists every intent in declaration order.
var All = []Intent{Suburb, Street, Address, General}

// Valid reports whether i is one of the four known intents.
func (i Intent) Valid() bool {
	switch i {
	case Suburb, Street, Address, General:
		return true
	}
	return false
}

func (i Intent) String() string {
	return string(i)
}

// Parse converts s into an Intent. Unknown or empty values map to General.
func Parse(s string) Intent {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	if i.Valid() {
		return i
	}
	return General
}
