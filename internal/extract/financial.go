package extract

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
)

func normalizeAmount(whole, cents string) string {
	whole = strings.ReplaceAll(whole, ",", "")
	if cents == "" {
		cents = "00"
	}
	return "USD " + whole + "." + cents
}

var financialMatchers = []matcher{
	{
		name:  "dollar_amount",
		re:    regexp.MustCompile(`\$[ \t]?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{2}))?\b`),
		score: 85,
		build: func(h hit, r *result) bool {
			r.value = normalizeAmount(h.group(1), h.group(2))
			r.set("kind", "amount")
			return true
		},
	},
	{
		name:  "worded_amount",
		re:    regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{2}))?[ \t]?(?:dollars|usd)\b`),
		score: 75,
		build: func(h hit, r *result) bool {
			r.value = normalizeAmount(h.group(1), h.group(2))
			r.set("kind", "amount")
			return true
		},
	},
	{
		name:  "card_ending",
		re:    regexp.MustCompile(`(?i)\b(?:card|visa|mastercard|amex|discover)\b[^.\n]{0,30}?\bending(?:[ \t]+in)?[ \t]+(\d{4})\b`),
		group: 1,
		score: 70,
		build: func(h hit, r *result) bool {
			r.value = "card ****" + r.value
			r.set("kind", "card")
			return true
		},
	},
	{
		name:  "account_number",
		re:    regexp.MustCompile(`(?i)\b(?:account|acct)\.?[ \t]*(?:number|no\.?|#)?[ \t]*[:#]?[ \t]*(?:ending(?:[ \t]+in)?[ \t]*)?([*x]{0,12}\d{4,17})\b`),
		group: 1,
		score: 80,
		build: func(h hit, r *result) bool {
			digits := nonDigitRE.ReplaceAllString(r.value, "")
			if len(digits) < len(r.value) {
				r.value = "acct ****" + digits
			} else {
				r.value = "acct " + digits
			}
			r.set("kind", "account")
			return true
		},
	},
	{
		name:  "check_number",
		re:    regexp.MustCompile(`(?i)\bcheck[ \t]*(?:#|no\.?|number)[ \t]*(\d{3,10})\b`),
		group: 1,
		score: 70,
		build: func(h hit, r *result) bool {
			r.value = "check " + r.value
			r.set("kind", "check")
			return true
		},
	},
	{
		name:  "transaction_reference",
		re:    regexp.MustCompile(`(?i)\b(?:transaction|confirmation|reference|wire)[ \t]*(?:id|#|no\.?|number)[ \t]*[:#]?[ \t]*([A-Z0-9-]{6,24})\b`),
		group: 1,
		score: 65,
		build: func(h hit, r *result) bool {
			if !hasDigitRE.MatchString(r.value) {
				return false
			}
			r.value = "ref " + strings.ToUpper(r.value)
			r.set("kind", "reference")
			return true
		},
	},
}

// FinancialExtractor finds monetary amounts, account and card references,
// check numbers and transaction identifiers. Candidates carry a "kind"
// attribute; only amounts are excluded from entity resolution.
type FinancialExtractor struct {
	Radius int
}

func (e *FinancialExtractor) Category() models.CandidateCategory { return models.CategoryFinancial }

func (e *FinancialExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryFinancial, financialMatchers, radiusOr(e.Radius))
}
