package rules

import "strings"

// knownSlugNames covers slugs whose display names don't follow plain
// title-casing (acronyms, ampersands).
var knownSlugNames = map[string]string{
	"unc-tar-heels":    "UNC Tar Heels",
	"lsu-tigers":       "LSU Tigers",
	"usc-trojans":      "USC Trojans",
	"ucla-bruins":      "UCLA Bruins",
	"smu-mustangs":     "SMU Mustangs",
	"tcu-horned-frogs": "TCU Horned Frogs",
	"byu-cougars":      "BYU Cougars",
	"utep-miners":      "UTEP Miners",
	"texas-am-aggies":  "Texas A&M Aggies",
	"ole-miss-rebels":  "Ole Miss Rebels",
}

// SlugToDisplayName converts a hyphenated identifier slug into a display
// name: known slugs use their registered name, anything else title-cases
// each hyphen-separated word and joins with spaces.
func SlugToDisplayName(slug string) string {
	normalized := strings.ToLower(strings.TrimSpace(slug))
	if name, ok := knownSlugNames[normalized]; ok {
		return name
	}

	words := strings.Split(normalized, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
