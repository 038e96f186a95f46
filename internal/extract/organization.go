package extract

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
)

const orgSuffix = `Inc|LLC|Ltd|Corp|Corporation|Company|Co|Group|Holdings|Bank|Credit Union|Police Department|Sheriff's Office|Sheriff's Department|Department|Dept|Agency|Bureau|Associates|Partners|Foundation|University|College|Clinic|Services|Industries|Enterprises|Logistics|Motors|Insurance|Trucking|Construction`

var orgMatchers = []matcher{
	{
		name:  "agency_acronym",
		re:    regexp.MustCompile(`\b(FBI|DEA|ATF|CIA|DHS|ICE|IRS|USPS|NYPD|LAPD|SFPD|NCIS|CBP|TSA|FAA|SEC|NTSB|CPS)\b`),
		group: 1,
		score: 85,
		build: func(h hit, r *result) bool {
			r.set("kind", "agency")
			return true
		},
	},
	{
		name:  "suffix_name",
		re:    regexp.MustCompile(`\b((?:[A-Z][A-Za-z&'.-]*[ \t]+){1,4}(?:` + orgSuffix + `))\b\.?`),
		group: 1,
		score: 80,
		build: func(h hit, r *result) bool {
			trimLeadingArticle(r)
			r.value = cleanPlace(r.value)
			if !strings.Contains(r.value, " ") {
				return false
			}
			return true
		},
	},
	{
		name:  "employer",
		re:    regexp.MustCompile(`\b(?:employed by|works for|worked for|works at|worked at|employee of|manager at|owner of)[ \t]+((?:[A-Z][A-Za-z&'-]+[ \t]?){1,4})`),
		group: 1,
		score: 70,
		build: func(h hit, r *result) bool {
			trimLeadingArticle(r)
			trimmed := strings.TrimRight(r.value, " \t")
			r.end -= len(r.value) - len(trimmed)
			r.value = cleanPlace(trimmed)
			r.set("kind", "employer")
			return r.value != ""
		},
	},
}

// OrganizationExtractor finds companies, agencies and employers.
type OrganizationExtractor struct {
	Radius int
}

func (e *OrganizationExtractor) Category() models.CandidateCategory {
	return models.CategoryOrganization
}

func (e *OrganizationExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryOrganization, orgMatchers, radiusOr(e.Radius))
}
