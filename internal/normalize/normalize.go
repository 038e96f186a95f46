// Package normalize cleans raw extracted document text before classification
// and extraction: Unicode compatibility folding, quote and dash unification,
// OCR artifact repair and whitespace normalization.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var punctuationReplacer = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'",
	"\u2032", "'", "`", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u201f", `"`, "\u2033", `"`,
	"\u00ab", `"`, "\u00bb", `"`,
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2212", "-",
	"\u2014", " - ", "\u2015", " - ",
	"\u2026", "...",
	"\u00a0", " ", "\u2007", " ", "\u202f", " ", "\u3000", " ",
	"\u00ad", "", "\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "",
	"\r\n", "\n", "\r", "\n",
	"\f", "\n\n",
)

var (
	// "recov-\nered" -> "recovered"
	hyphenBreakRE = regexp.MustCompile(`([a-z])-\n[ \t]*([a-z])`)
	// table rules and runs of underscores or dots left by scanned forms
	ruleLineRE   = regexp.MustCompile(`(?m)^[ \t_=*~.|-]{4,}$`)
	horizSpaceRE = regexp.MustCompile(`[ \t]+`)
	blankLinesRE = regexp.MustCompile(`\n{3,}`)
)

// Text returns a normalized copy of raw. It never fails; empty or
// whitespace-only input yields "".
func Text(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	s := norm.NFKC.String(raw)
	s = punctuationReplacer.Replace(s)
	s = stripControl(s)
	s = hyphenBreakRE.ReplaceAllString(s, "$1$2")
	s = ruleLineRE.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(horizSpaceRE.ReplaceAllString(lines[i], " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRE.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// stripControl removes control characters other than newline and tab.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}
