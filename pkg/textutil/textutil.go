// Package textutil provides small string helpers shared by the extraction
// stages and the prompt builders.
package textutil

import (
	"encoding/xml"
	"strings"
	"unicode/utf8"
)

// EscapeXML replaces characters with special meaning in XML so document text
// can be embedded in XML-delimited prompts without closing the tags.
func EscapeXML(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// EscapeText only fails on invalid UTF-8; return original on error.
		return s
	}
	return buf.String()
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Window returns the text within radius bytes on either side of [start, end),
// widened or narrowed to rune boundaries and collapsed to single spaces.
func Window(text string, start, end, radius int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return CollapseSpace(text[lo:hi])
}

// Span is a half-open byte range within a text.
type Span struct {
	Start, End int
}

// abbreviations end with a period but do not end a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "det": true, "sgt": true,
	"lt": true, "capt": true, "ofc": true, "st": true, "ave": true, "no": true,
	"jr": true, "sr": true, "approx": true, "vs": true, "inc": true, "co": true,
	"a.m": true, "p.m": true, "e.g": true, "i.e": true, "u.s": true,
}

// Sentences splits text into sentence spans. A sentence ends at ., ! or ?
// followed by whitespace unless the period closes a known abbreviation or a
// single initial. Blank lines always split, as does a newline that follows
// terminal punctuation or precedes a "Label:" line. Spans exclude
// surrounding whitespace.
func Sentences(text string) []Span {
	var out []Span
	start := 0
	emit := func(end int) {
		s, e := start, end
		for s < e && isSpace(text[s]) {
			s++
		}
		for e > s && isSpace(text[e-1]) {
			e--
		}
		if s < e {
			out = append(out, Span{Start: s, End: e})
		}
		start = end
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n' && i+1 < len(text) && text[i+1] == '\n':
			emit(i)
		case c == '\n' && (endsClause(text[start:i]) || startsLabel(text[i+1:])):
			emit(i)
		case (c == '.' || c == '!' || c == '?') && i+1 < len(text) && isSpace(text[i+1]):
			if c == '.' && isAbbreviation(text[start:i]) {
				continue
			}
			emit(i + 1)
		}
	}
	emit(len(text))
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func endsClause(s string) bool {
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}

// startsLabel reports whether s opens with a short "Label:" field such as a
// transcript speaker tag.
func startsLabel(s string) bool {
	for i := 0; i < len(s) && i <= 30; i++ {
		switch c := s[i]; {
		case c == ':':
			return i > 0
		case c == '\n':
			return false
		case !(c == ' ' || c == '.' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'):
			return false
		}
	}
	return false
}

// isAbbreviation reports whether the word before a period is an
// abbreviation or a lone capital initial.
func isAbbreviation(before string) bool {
	i := strings.LastIndexAny(before, " \t\n(")
	word := before[i+1:]
	if len(word) == 1 && word[0] >= 'A' && word[0] <= 'Z' {
		return true
	}
	return abbreviations[strings.ToLower(word)]
}
