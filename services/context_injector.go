package services

import (
	"fmt"
	"strings"

	"persona-knowledge-engine/models"
)

const knowledgeExcerptLimit = 500

// stopWords are dropped when deriving a search query from a chat message.
// Tokens of length <= 2 are dropped before this set is consulted.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"has": true, "was": true, "were": true, "with": true, "this": true,
	"that": true, "from": true, "they": true, "have": true, "will": true,
	"your": true, "what": true, "when": true, "where": true, "which": true,
	"about": true, "would": true, "there": true, "their": true, "them": true,
	"been": true, "being": true, "into": true, "some": true, "than": true,
	"then": true, "these": true, "those": true, "does": true, "doing": true,
	"how": true, "why": true, "who": true, "its": true, "his": true,
	"her": true, "our": true, "out": true, "get": true, "did": true,
	"just": true, "like": true, "also": true, "very": true, "could": true,
	"should": true, "tell": true, "know": true, "want": true, "need": true,
	"please": true,
}

// InjectKnowledgeContext folds ranked search results into a persona's
// system instructions. With no results the base prompt comes back
// unchanged. Results are injected in their ranked order, highest
// relevance first.
func InjectKnowledgeContext(basePrompt string, results []models.SearchResult) string {
	if len(results) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n=== RELEVANT KNOWLEDGE ===\n")
	b.WriteString("The following material from your knowledge base is relevant to the current conversation:\n\n")

	for i, result := range results {
		title := result.SourceTitle
		if title == "" {
			title = "Knowledge"
		}
		excerpt := result.Content
		if len(excerpt) > knowledgeExcerptLimit {
			excerpt = excerpt[:knowledgeExcerptLimit] + "..."
		}
		b.WriteString(fmt.Sprintf("[%d] %s (relevance: %.0f%%)\n%s\n\n", i+1, title, result.Similarity*100, excerpt))
	}

	b.WriteString("=== END RELEVANT KNOWLEDGE ===\n")
	b.WriteString("Use this material naturally in your responses where it applies. ")
	b.WriteString("Do not cite it as an external lookup or mention that you retrieved it from a knowledge base.")

	return b.String()
}

// ExtractSearchTerms derives a compact search query from a longer chat
// message: lower-cased, punctuation stripped, short tokens and stop words
// dropped, first ten remaining tokens joined by spaces.
func ExtractSearchTerms(message string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, message)

	var terms []string
	for _, token := range strings.Fields(cleaned) {
		if len(token) <= 2 || stopWords[token] {
			continue
		}
		terms = append(terms, token)
		if len(terms) == 10 {
			break
		}
	}
	return strings.Join(terms, " ")
}
