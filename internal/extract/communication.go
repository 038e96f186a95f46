package extract

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
)

var nonDigitRE = regexp.MustCompile(`\D`)

var communicationMatchers = []matcher{
	{
		name:  "email",
		re:    regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		score: 90,
		build: func(h hit, r *result) bool {
			r.value = strings.ToLower(r.value)
			r.set("kind", "email")
			return true
		},
	},
	{
		name:  "phone_formatted",
		re:    regexp.MustCompile(`(?:\+?1[-. \t]?)?(?:\((\d{3})\)[ \t]?|\b(\d{3})[-. ])(\d{3})[-. ](\d{4})\b`),
		score: 85,
		build: func(h hit, r *result) bool {
			area := h.group(1)
			if area == "" {
				area = h.group(2)
			}
			r.value = area + "-" + h.group(3) + "-" + h.group(4)
			r.set("kind", "phone")
			return true
		},
	},
	{
		name:  "phone_international",
		re:    regexp.MustCompile(`\+\d{1,3}(?:[-. ]?\d{1,4}){2,4}\b`),
		score: 75,
		build: func(h hit, r *result) bool {
			digits := nonDigitRE.ReplaceAllString(r.value, "")
			if len(digits) < 8 || len(digits) > 15 {
				return false
			}
			r.value = "+" + digits
			r.set("kind", "phone")
			return true
		},
	},
	{
		name:  "phone_bare",
		re:    regexp.MustCompile(`\b(\d{10})\b`),
		group: 1,
		score: 50,
		build: func(h hit, r *result) bool {
			r.value = r.value[:3] + "-" + r.value[3:6] + "-" + r.value[6:]
			r.set("kind", "phone")
			return true
		},
	},
	{
		name:  "handle",
		re:    regexp.MustCompile(`(?:^|[\s(])@([A-Za-z0-9_]{3,30})\b`),
		group: 1,
		score: 45,
		build: func(h hit, r *result) bool {
			r.start--
			r.value = "@" + strings.ToLower(r.value)
			r.set("kind", "handle")
			return true
		},
	},
}

// CommunicationExtractor finds phone numbers, email addresses and social
// handles. Phone numbers normalize to NNN-NNN-NNNN or +digits.
type CommunicationExtractor struct {
	Radius int
}

func (e *CommunicationExtractor) Category() models.CandidateCategory {
	return models.CategoryCommunication
}

func (e *CommunicationExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryCommunication, communicationMatchers, radiusOr(e.Radius))
}
