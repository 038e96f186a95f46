// Package segment splits normalized document text into titled sections so
// extraction can use localized context.
package segment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ajitpratap0/casegraph/internal/models"
)

// maxHeaderLen bounds how long a line can be and still be treated as a header.
const maxHeaderLen = 80

var (
	markdownHeaderRE = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	numberedHeaderRE = regexp.MustCompile(`^(?:(?i:section|part|article)\s+)?(?:\d{1,2}|[IVX]{1,4})[.)]\s+([A-Z][^.!?]*)$`)
	labelHeaderRE    = regexp.MustCompile(`^([A-Z][A-Za-z /&'-]{2,60}):$`)
)

// Split returns the sections of text in order. Text before the first header
// becomes an untitled section. Text with no headers yields one untitled
// section; empty text yields none.
func Split(text string) []models.Section {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var sections []models.Section
	title := ""
	bodyStart := 0
	offset := 0

	flush := func(end int) {
		body := text[bodyStart:end]
		trimmed := strings.TrimSpace(body)
		if trimmed == "" && title == "" {
			return
		}
		lead := strings.Index(body, trimmed)
		sections = append(sections, models.Section{
			Title:  title,
			Body:   trimmed,
			Offset: bodyStart + lead,
		})
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineStart := offset
		offset += len(line)

		if t, ok := HeaderTitle(strings.TrimSpace(line)); ok {
			flush(lineStart)
			title = t
			bodyStart = offset
		}
	}
	flush(len(text))

	return sections
}

// HeaderTitle reports whether line looks like a section header and returns
// its cleaned title.
func HeaderTitle(line string) (string, bool) {
	if line == "" || len(line) > maxHeaderLen {
		return "", false
	}
	if m := markdownHeaderRE.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := numberedHeaderRE.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := labelHeaderRE.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if isUpperHeader(line) {
		return strings.TrimRight(line, ":"), true
	}
	return "", false
}

// isUpperHeader matches all-caps lines such as "SUMMARY OF INCIDENT" with at
// least two words or one long word and no sentence punctuation.
func isUpperHeader(line string) bool {
	trimmed := strings.TrimRight(line, ":")
	if strings.ContainsAny(trimmed, ".,;!?\"") {
		return false
	}
	letters := 0
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	if letters < 4 {
		return false
	}
	return len(strings.Fields(trimmed)) >= 2 || letters >= 6
}
