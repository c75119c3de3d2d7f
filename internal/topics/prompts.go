package topics

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"nicheexplorer/internal/core"
)

// topicPrompt asks for label and description in one request. The model must
// answer with raw JSON; fences are stripped before parsing anyway.
const topicPrompt = `Your task is to name and summarize one topic. The topic is defined by these keywords: [KEYWORDS] and these documents:
[DOCUMENTS]
Return ONLY a JSON object of the form {"label": "<concise 5-word topic label>", "description": "<two-sentence summary>"}, with no additional text or explanations.`

func buildTopicPrompt(keywords []core.KeywordWeight, documents []string) string {
	terms := make([]string, len(keywords))
	for i, kw := range keywords {
		terms[i] = kw.Term
	}

	docLines := make([]string, len(documents))
	for i, doc := range documents {
		docLines[i] = fmt.Sprintf("- %s", doc)
	}

	prompt := strings.Replace(topicPrompt, "[KEYWORDS]", strings.Join(terms, ", "), 1)
	return strings.Replace(prompt, "[DOCUMENTS]", strings.Join(docLines, "\n"), 1)
}

var (
	numericPrefixPattern = regexp.MustCompile(`^\d+_`)
	labelPrefixPattern   = regexp.MustCompile(`(?i)^(label|topic|name):?\s*"?`)
)

// cleanTopicTitle normalizes raw model labels: numeric prefixes like "3_" and
// underscores come from fallback keyword labels, "Label:" prefixes and quotes
// from chatty model output.
func cleanTopicTitle(title string) string {
	cleaned := numericPrefixPattern.ReplaceAllString(title, "")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	cleaned = strings.TrimSpace(labelPrefixPattern.ReplaceAllString(cleaned, ""))
	cleaned = strings.Trim(cleaned, `"`)
	return capitalize(cleaned)
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
