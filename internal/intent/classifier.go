package intent

import (
	"regexp"
	"strings"
)

var (
	// 123 / 12a / 5/10 / 12-14, ending at whitespace, punctuation or end of input
	houseNumberPrefixRe = regexp.MustCompile(`^\d+[a-z]?(?:(?:[/-]\d+[a-z]?)+|[\s,.;:]|$)`)
	barePostcodeRe      = regexp.MustCompile(`^\d{4}$`)
	unitPrefixRe        = regexp.MustCompile(`^(?:unit|u|apt|apartment|flat|shop|suite|ste|level|lvl|lot|factory|office)\.?\s*\d+`)
	unitAnywhereRe      = regexp.MustCompile(`\b(?:unit|apt|apartment|flat|shop|suite|level|lvl)\.?\s*\d+|\b\d+[a-z]?/\d+`)
	postcodeRe          = regexp.MustCompile(`\b\d{4}\b`)
	houseNumberTokenRe  = regexp.MustCompile(`^\d{1,3}[a-z]?$|^\d{5,}[a-z]?$`)
	suburbLikeRe        = regexp.MustCompile(`^[a-z0-9\s\-'&]+$`)
	digitsOnlyRe        = regexp.MustCompile(`^[\d\s]+$`)
)

// rule is one entry of the ordered classification table. match returns the
// intent and true when the rule fires.
type rule struct {
	name  string
	match func(q query) (Intent, bool)
}

// rules is evaluated top to bottom; the first rule that fires wins.
var rules = []rule{
	{name: "house_number_prefix", match: matchAddressPrefix},
	{name: "special_suburb", match: matchSpecialSuburb},
	{name: "street_keyword", match: matchStreetKeyword},
	{name: "unit_anywhere", match: matchUnitAnywhere},
	{name: "suburb_signal", match: matchSuburbSignal},
	{name: "suburb_like_text", match: matchSuburbLikeText},
}

// Classify maps raw query text to a LocationIntent. It is total: every
// input, including the empty string, yields one of the four intents.
func Classify(raw string) Intent {
	intent, _ := ClassifyWithRule(raw)
	return intent
}

// ClassifyWithRule is Classify that also reports which rule fired
// ("fallback" when none did).
func ClassifyWithRule(raw string) (Intent, string) {
	q := newQuery(raw)
	for _, r := range rules {
		if intent, ok := r.match(q); ok {
			return intent, r.name
		}
	}
	return General, "fallback"
}

func matchAddressPrefix(q query) (Intent, bool) {
	// a lone postcode is a suburb signal, not a house number
	if barePostcodeRe.MatchString(strings.TrimSpace(q.leading)) {
		return "", false
	}
	if houseNumberPrefixRe.MatchString(q.leading) || unitPrefixRe.MatchString(q.text) {
		return Address, true
	}
	return "", false
}

func matchSpecialSuburb(q query) (Intent, bool) {
	for _, s := range specialSuburbs {
		if !hasTokenPrefix(q.tokens, s.tokens) {
			continue
		}
		if len(q.tokens) == len(s.tokens) {
			if s.complete {
				return Suburb, true
			}
			// "mount" on its own is left to the later rules
			if len(s.tokens) == 1 {
				continue
			}
			return Suburb, true
		}

		rest := q.tokens[len(s.tokens):]
		if !containsAny(streetKeywords, rest) {
			return Suburb, true
		}
		if hasHouseNumber(rest) {
			return Address, true
		}
		return Street, true
	}
	return "", false
}

func matchStreetKeyword(q query) (Intent, bool) {
	if containsAny(streetKeywords, q.tokens) {
		return Street, true
	}
	return "", false
}

func matchUnitAnywhere(q query) (Intent, bool) {
	if unitAnywhereRe.MatchString(q.text) {
		return Address, true
	}
	return "", false
}

func matchSuburbSignal(q query) (Intent, bool) {
	signal := postcodeRe.MatchString(q.text) ||
		stateInTokens(q.tokens) != "" ||
		containsAny(suburbIndicators, q.tokens)
	if !signal {
		return "", false
	}
	if containsAny(streetKeywords, q.tokens) || containsAny(ruralKeywords, q.tokens) {
		return "", false
	}
	return Suburb, true
}

func matchSuburbLikeText(q query) (Intent, bool) {
	if len(q.text) <= 2 || !suburbLikeRe.MatchString(q.text) || digitsOnlyRe.MatchString(q.text) {
		return "", false
	}
	return Suburb, true
}

func hasTokenPrefix(tokens, prefix []string) bool {
	if len(tokens) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if tokens[i] != p {
			return false
		}
	}
	return true
}

// hasHouseNumber ignores four-digit tokens, which are postcodes.
func hasHouseNumber(tokens []string) bool {
	for _, t := range tokens {
		if houseNumberTokenRe.MatchString(t) {
			return true
		}
	}
	return false
}

// StreetKeyword reports whether word is a recognised street type.
func StreetKeyword(word string) bool {
	return contains(streetKeywords, strings.ToLower(word))
}
