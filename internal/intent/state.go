package intent

// ParseState returns the Australian state or territory named in text as
// its upper-case abbreviation ("VIC", "NSW", ...), or "" when none is found.
// The last mention wins because addresses end with the state.
func ParseState(text string) string {
	return stateInTokens(Tokenize(Normalize(text)))
}

func stateInTokens(tokens []string) string {
	found := ""
	for i := 0; i < len(tokens); i++ {
		if abbrev, ok := stateAbbreviations[tokens[i]]; ok {
			found = abbrev
			continue
		}
		for _, name := range stateNames {
			if !hasTokenPrefix(tokens[i:], name.tokens) {
				continue
			}
			next := i + len(name.tokens)
			// "Victoria Street" is a street, not the state
			if next < len(tokens) && contains(streetKeywords, tokens[next]) {
				continue
			}
			found = name.abbrev
			i = next - 1
			break
		}
	}
	return found
}

// StatesCompatible reports whether two state tokens agree. A missing token
// on either side is treated as compatible.
func StatesCompatible(a, b string) bool {
	return a == "" || b == "" || a == b
}
