package retrieval

import (
	"regexp"
	"strings"
)

var (
	temporalKeywords = []string{"change", "update", "recent", "latest", "amend"}
	globalKeywords   = []string{"across", "compare", "landscape", "overview", "portfolio"}
	localKeywords    = []string{"article", "section", "requirement", "clause", "paragraph"}

	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// ClassifyMode runs the priority cascade over the query text: temporal
// signals win over synthesis signals, which win over specific-entity
// signals. Anything unclassified goes to the hybrid strategy chain.
func ClassifyMode(query string) Mode {
	lowered := strings.ToLower(query)

	if yearPattern.MatchString(lowered) {
		return ModeTemporal
	}

	for _, kw := range temporalKeywords {
		if strings.Contains(lowered, kw) {
			return ModeTemporal
		}
	}

	for _, kw := range globalKeywords {
		if strings.Contains(lowered, kw) {
			return ModeGlobal
		}
	}

	for _, kw := range localKeywords {
		if strings.Contains(lowered, kw) {
			return ModeLocal
		}
	}

	return ModeHybrid
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "what": true,
	"how": true, "does": true, "are": true, "our": true, "about": true,
	"should": true, "would": true, "have": true, "has": true, "this": true,
	"that": true, "from": true, "into": true, "been": true, "were": true,
}

// searchTerms extracts the significant lowercase tokens used for substring
// matching inside the traversal queries.
func searchTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	terms := make([]string, 0, len(fields))

	for _, field := range fields {
		if len(field) < 3 || stopwords[field] {
			continue
		}
		terms = append(terms, field)
	}

	return terms
}
