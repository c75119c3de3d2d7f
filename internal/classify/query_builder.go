package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// stopWords are excluded when extracting search terms for an advanced query.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// advancedOperators mark a query already written in the arXiv API grammar.
var advancedOperators = []string{"+AND+", "+OR+", "all:", "ti:", "au:", "abs:", "cat:", "co:"}

var (
	wordPattern     = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)
	embeddedCatExpr = regexp.MustCompile(`\b(cs\.[A-Z]{2}|math\.[A-Z]{2}|physics\.[a-z-]+)\b`)
)

// categoryHints maps natural-language phrases to arXiv categories, checked in
// order so more specific phrases win.
var categoryHints = []struct {
	phrase   string
	category string
}{
	{"computer vision", "cs.CV"},
	{"vision", "cs.CV"},
	{"image", "cs.CV"},
	{"artificial intelligence", "cs.AI"},
	{"ai research", "cs.AI"},
	{"machine learning", "cs.LG"},
	{"deep learning", "cs.LG"},
	{"neural network", "cs.LG"},
	{"natural language", "cs.CL"},
	{"nlp", "cs.CL"},
	{"robotics", "cs.RO"},
	{"human computer", "cs.HC"},
	{"graphics", "cs.GR"},
	{"information retrieval", "cs.IR"},
	{"cryptography", "cs.CR"},
	{"software engineering", "cs.SE"},
	{"databases", "cs.DB"},
}

// BuildAdvancedQuery emits an arXiv advanced query like
// all:"graph neural network"+AND+cat:cs.CV from explicit search terms and a
// category. With no meaningful terms it degrades to a category-only query.
func BuildAdvancedQuery(searchTerms, category string) string {
	terms := ExtractSearchTerms(searchTerms)
	if terms == "" {
		return fmt.Sprintf("cat:%s", category)
	}
	return fmt.Sprintf(`all:"%s"+AND+cat:%s`, terms, category)
}

// ExtractSearchTerms keeps the lowercased words of length >= 3 that are not
// stop words, at most five, in encounter order.
func ExtractSearchTerms(text string) string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	var meaningful []string
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		meaningful = append(meaningful, w)
		if len(meaningful) == 5 {
			break
		}
	}

	return strings.Join(meaningful, " ")
}

// BuildSearchQuery translates arbitrary input into an arXiv API query string:
// advanced queries pass through, simple categories become cat: filters,
// phrases containing a category keep the category plus the remaining terms,
// and everything else goes through natural-language heuristics.
func BuildSearchQuery(input string) string {
	trimmed := strings.TrimSpace(input)

	if IsAdvancedQuery(trimmed) {
		return trimmed
	}
	if categoryPattern.MatchString(trimmed) {
		return fmt.Sprintf("cat:%s", trimmed)
	}

	if match := embeddedCatExpr.FindString(trimmed); match != "" {
		remainder := embeddedCatExpr.ReplaceAllString(trimmed, "")
		if terms := ExtractSearchTerms(remainder); terms != "" {
			return fmt.Sprintf(`all:"%s"+AND+cat:%s`, terms, match)
		}
		return fmt.Sprintf("cat:%s", match)
	}

	return convertNaturalLanguage(trimmed)
}

// IsAdvancedQuery reports whether the input already uses arXiv API operators.
func IsAdvancedQuery(query string) bool {
	for _, op := range advancedOperators {
		if strings.Contains(query, op) {
			return true
		}
	}
	return false
}

func convertNaturalLanguage(query string) string {
	lower := strings.ToLower(query)

	category := "cs.AI"
	for _, hint := range categoryHints {
		if strings.Contains(lower, hint.phrase) {
			category = hint.category
			break
		}
	}

	if terms := ExtractSearchTerms(query); terms != "" {
		return fmt.Sprintf(`all:"%s"+AND+cat:%s`, terms, category)
	}
	return fmt.Sprintf("cat:%s", category)
}
