package intent

import "regexp"

var leadingDigitRe = regexp.MustCompile(`^\s*\d`)

// ClassifyResult classifies a concrete search result from its provider
// taxonomy tags. The tags are source-verified, so this is preferred over
// Classify once a result has been chosen.
func ClassifyResult(types []string, description string) Intent {
	tags := toSet(types...)

	if contains(tags, "street_address") || contains(tags, "premise") || contains(tags, "subpremise") ||
		leadingDigitRe.MatchString(description) {
		return Address
	}
	if contains(tags, "route") {
		return Street
	}
	if contains(tags, "locality") || contains(tags, "sublocality") ||
		contains(tags, "administrative_area_level_2") || contains(tags, "postal_code") {
		return Suburb
	}
	return General
}
