package tokenizer

import (
	"strings"
)

// EstimateTokens provides a rough token count estimate.
// Uses the heuristic of ~4 characters per token for English text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	// Count words and characters for a blended estimate
	words := len(strings.Fields(text))
	chars := len(text)

	wordEstimate := int(float64(words) * 1.3) // ~1.3 tokens per word
	charEstimate := chars / 4                 // ~4 chars per token

	return (wordEstimate + charEstimate) / 2
}

// TruncateToTokenBudget truncates text to approximately fit within a token budget.
func TruncateToTokenBudget(text string, budget int) string {
	if budget <= 0 {
		return ""
	}

	tokens := EstimateTokens(text)
	if tokens <= budget {
		return text
	}

	// Approximate: 4 chars per token
	maxChars := budget * 4
	if maxChars >= len(text) {
		return text
	}

	// Truncate at word boundary
	truncated := text[:maxChars]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > maxChars/2 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}

// SplitParagraphs splits text into pieces of at most budget estimated tokens,
// cutting at blank lines first and at sentence ends when a single paragraph
// is still too large. Piece order follows the input.
func SplitParagraphs(text string, budget int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if budget <= 0 || EstimateTokens(text) <= budget {
		return []string{text}
	}

	var pieces []string
	var cur strings.Builder
	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			pieces = append(pieces, cur.String())
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		units := []string{para}
		if EstimateTokens(para) > budget {
			units = splitSentences(para)
		}
		for _, u := range units {
			if cur.Len() > 0 && EstimateTokens(cur.String()+u) > budget {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(u)
		}
	}
	flush()
	return pieces
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		if (text[i] == '.' || text[i] == '?' || text[i] == '!') && (text[i+1] == ' ' || text[i+1] == '\n') {
			out = append(out, strings.TrimSpace(text[start:i+1]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
