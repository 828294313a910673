package intent

// Australian street-type tokens, full words and postal abbreviations.
var streetKeywords = toSet(
	"street", "st", "road", "rd", "avenue", "ave", "av", "drive", "dr", "drv",
	"lane", "ln", "court", "ct", "crescent", "cres", "cr", "place", "pl",
	"way", "parade", "pde", "boulevard", "boulevarde", "blvd", "bvd",
	"highway", "hwy", "terrace", "tce", "close", "cl", "circuit", "cct",
	"grove", "gr", "gve", "square", "sq", "esplanade", "esp", "parkway", "pkwy",
	"promenade", "prom", "walk", "track", "trail", "rise", "row", "mews", "loop",
	"alley", "arcade", "freeway", "fwy", "quay", "strand", "vista", "glade",
	"chase", "concourse", "link", "pass", "circle", "mall",
)

// Australian states and territories keyed by the token that names them.
var stateAbbreviations = map[string]string{
	"vic": "VIC",
	"nsw": "NSW",
	"qld": "QLD",
	"wa":  "WA",
	"sa":  "SA",
	"tas": "TAS",
	"nt":  "NT",
	"act": "ACT",
}

// Spelled-out state names, as token sequences.
var stateNames = []struct {
	tokens []string
	abbrev string
}{
	{[]string{"australian", "capital", "territory"}, "ACT"},
	{[]string{"northern", "territory"}, "NT"},
	{[]string{"new", "south", "wales"}, "NSW"},
	{[]string{"western", "australia"}, "WA"},
	{[]string{"south", "australia"}, "SA"},
	{[]string{"victoria"}, "VIC"},
	{[]string{"queensland"}, "QLD"},
	{[]string{"tasmania"}, "TAS"},
}

// Words that typically form part of a suburb name rather than a street.
var suburbIndicators = toSet(
	"north", "south", "east", "west", "upper", "lower", "central",
	"heights", "valley", "creek", "hill", "hills", "park", "beach", "bay",
	"vale", "downs", "springs", "gardens", "junction", "waters", "lakes",
	"river", "ridge", "forest", "plains", "flats", "island", "harbour",
)

// Rural delivery and property tokens; their presence means the text is not
// a plain suburb even without a street type.
var ruralKeywords = toSet(
	"rmb", "rsd", "cmb", "rmd", "lot", "farm", "station", "homestead",
	"rural", "property", "acreage",
)

// Place names that begin with street-like words but are conventionally
// suburbs. A complete entry is a suburb on its own; extensions are still
// re-tested against the street keywords.
type specialSuburb struct {
	tokens   []string
	complete bool
}

var specialSuburbs = []specialSuburb{
	{tokens: []string{"box", "hill"}, complete: true},
	{tokens: []string{"st", "kilda"}},
	{tokens: []string{"st", "albans"}},
	{tokens: []string{"st", "leonards"}},
	{tokens: []string{"st", "ives"}},
	{tokens: []string{"st", "marys"}},
	{tokens: []string{"st", "peters"}},
	{tokens: []string{"st", "helena"}},
	{tokens: []string{"mount"}},
	{tokens: []string{"mt"}},
	{tokens: []string{"port"}},
	{tokens: []string{"point"}},
	{tokens: []string{"glen"}},
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func contains(set map[string]struct{}, word string) bool {
	_, ok := set[word]
	return ok
}

func containsAny(set map[string]struct{}, words []string) bool {
	for _, w := range words {
		if contains(set, w) {
			return true
		}
	}
	return false
}
