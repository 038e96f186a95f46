package pipeline

import (
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/pkg/tokenizer"
)

// chunkSections packs consecutive sections into pieces of at most budget
// estimated tokens. A section larger than the budget is split by paragraph.
func chunkSections(sections []models.Section, budget int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, sec := range sections {
		text := sectionText(sec)
		if text == "" {
			continue
		}
		if tokenizer.EstimateTokens(text) > budget {
			flush()
			chunks = append(chunks, tokenizer.SplitParagraphs(text, budget)...)
			continue
		}
		if cur.Len() > 0 && tokenizer.EstimateTokens(cur.String()+"\n\n"+text) > budget {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(text)
	}
	flush()
	return chunks
}

func sectionText(sec models.Section) string {
	body := strings.TrimSpace(sec.Body)
	if sec.Title == "" {
		return body
	}
	if body == "" {
		return sec.Title
	}
	return sec.Title + "\n\n" + body
}
