package agent

import (
	"strconv"
	"strings"
)

var ordinalWords = map[string]int{
	"first": 0, "1st": 0,
	"second": 1, "2nd": 1,
	"third": 2, "3rd": 2,
	"fourth": 3, "4th": 3,
	"fifth": 4, "5th": 4,
}

// ParseOrdinal converts "first".."fifth", "1st".."5th" or a digit string
// into a zero-based index.
func ParseOrdinal(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i, ok := ordinalWords[s]; ok {
		return i, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// parseBool accepts "true", "1" and "yes" (any case) as true.
func parseBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true
		}
	}
	return false
}
