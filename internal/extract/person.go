package extract

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
)

const (
	nameTok  = `(?:[A-Z][a-z]+(?:[A-Z][a-z]+)?|[A-Z]'[A-Z][a-z]+)(?:-[A-Z][a-z]+)?`
	fullName = nameTok + `(?:[ \t]+[A-Z]\.)?(?:[ \t]+` + nameTok + `){1,2}`
	anyName  = nameTok + `(?:[ \t]+[A-Z]\.)?(?:[ \t]+` + nameTok + `){0,2}`
)

// stopTokens are capitalized words that are never part of a person's name.
var stopTokens = toSet(
	// calendar
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december", "jan", "feb", "mar", "apr",
	"jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	// function words that start sentences
	"the", "a", "an", "this", "that", "these", "those", "on", "in", "at", "after",
	"before", "when", "then", "while", "during", "yesterday", "today", "tonight",
	"later", "earlier", "he", "she", "they", "we", "i", "it", "his", "her", "their",
	"if", "but", "and", "or", "so", "as", "per", "from", "to", "with", "by", "of",
	"no", "yes", "not", "mr", "mrs", "ms", "dr",
	// document vocabulary
	"case", "report", "incident", "police", "department", "county", "city",
	"state", "evidence", "item", "exhibit", "summary", "statement", "interview",
	"section", "page", "officer", "detective", "witness", "suspect", "victim",
	"north", "south", "east", "west", "united", "states", "court", "district",
	"number", "date", "time", "location", "name", "narrative", "subject",
	"unknown", "approximately", "chain", "custody", "notes", "log", "record",
	"records", "medical", "financial", "surveillance", "transcript", "question",
	"answer", "q", "a", "follow", "review", "status", "type", "description",
	"street", "avenue", "road", "drive", "lane", "boulevard", "park", "hotel",
	"bank", "inc", "llc", "corp", "hospital", "station", "store", "center",
	"phone", "call", "email", "text", "account", "vehicle", "plate",
	// vehicle makes
	"toyota", "honda", "ford", "chevrolet", "chevy", "nissan", "dodge", "jeep",
	"bmw", "mercedes", "audi", "volkswagen", "hyundai", "kia", "subaru", "mazda",
	"lexus", "tesla", "buick", "cadillac", "chrysler", "gmc", "acura", "infiniti",
	"volvo", "ram", "lincoln", "mitsubishi", "pontiac",
)

// stopPhrases are multi-word strings that look like names but are not.
var stopPhrases = toSet(
	"case report", "incident report", "police department", "evidence log",
	"chain of custody", "witness statement", "united states", "new york",
	"los angeles", "las vegas", "san francisco", "san diego", "new jersey",
	"north carolina", "south carolina", "new mexico", "west virginia",
	"rhode island", "puerto rico", "supreme court",
)

func toSet(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

func tokenKey(tok string) string {
	return strings.ToLower(strings.TrimSuffix(tok, "."))
}

// trimName drops stop tokens from both ends of the name in r, adjusting the
// span. It rejects names that still contain a stop token, match a stop
// phrase, or end with fewer than minTokens tokens.
func trimName(r *result, minTokens int) bool {
	tokens := strings.Fields(r.value)
	lead, trail := 0, len(tokens)
	for lead < trail && stopTokens[tokenKey(tokens[lead])] {
		lead++
	}
	for trail > lead && stopTokens[tokenKey(tokens[trail-1])] {
		trail--
	}
	kept := tokens[lead:trail]
	if len(kept) < minTokens || len(kept) == 0 {
		return false
	}
	for _, tok := range kept {
		if stopTokens[tokenKey(tok)] {
			return false
		}
	}
	name := strings.Join(kept, " ")
	if stopPhrases[strings.ToLower(name)] {
		return false
	}

	base := r.start
	first, last := kept[0], kept[len(kept)-1]
	r.start = base + strings.Index(r.value, first)
	r.end = base + strings.LastIndex(r.value, last) + len(last)
	r.value = name
	return true
}

var titleRole = map[string]string{
	"det": "investigator", "detective": "investigator", "officer": "investigator",
	"ofc": "investigator", "sgt": "investigator", "sergeant": "investigator",
	"lt": "investigator", "lieutenant": "investigator", "capt": "investigator",
	"captain": "investigator", "agent": "investigator", "deputy": "investigator",
	"inspector": "investigator", "trooper": "investigator",
	"judge": "judge", "attorney": "attorney",
}

var labelRole = map[string]string{
	"suspect": "suspect", "victim": "victim", "witness": "witness",
	"complainant": "complainant", "defendant": "suspect", "deceased": "victim",
	"decedent": "victim", "informant": "informant", "driver": "driver",
	"passenger": "passenger", "interviewee": "interviewee",
	"reporting party": "complainant", "interviewed by": "investigator",
	"officer": "investigator", "investigator": "investigator",
}

var personMatchers = []matcher{
	{
		name:  "titled_name",
		re:    regexp.MustCompile(`\b(Mr|Mrs|Ms|Miss|Dr|Det|Detective|Officer|Ofc|Sgt|Sergeant|Lt|Lieutenant|Capt|Captain|Agent|Deputy|Inspector|Trooper|Prof|Professor|Judge|Attorney)\.?[ \t]+(` + anyName + `)\b`),
		group: 2,
		score: 90,
		build: func(h hit, r *result) bool {
			if !trimName(r, 1) {
				return false
			}
			if !strings.Contains(r.value, " ") {
				r.score -= 15
			}
			if role := titleRole[strings.ToLower(h.group(1))]; role != "" {
				r.set("role", role)
			}
			r.set("title", h.group(1))
			return true
		},
	},
	{
		name:  "role_labeled",
		re:    regexp.MustCompile(`\b((?i:suspect|victim|witness|complainant|defendant|deceased|decedent|informant|driver|passenger))[ \t]*[,:]?[ \t]+(` + fullName + `)\b`),
		group: 2,
		score: 90,
		build: func(h hit, r *result) bool {
			if !trimName(r, 2) {
				return false
			}
			r.set("role", labelRole[strings.ToLower(h.group(1))])
			return true
		},
	},
	{
		name:  "field_label",
		re:    regexp.MustCompile(`(?m)^[ \t]*((?i:name|witness|suspect|victim|interviewee|subject|reporting party|complainant|deceased|interviewed by|officer|investigator))[ \t]*:[ \t]*(` + fullName + `)\b`),
		group: 2,
		score: 85,
		build: func(h hit, r *result) bool {
			if !trimName(r, 2) {
				return false
			}
			if role := labelRole[strings.ToLower(h.group(1))]; role != "" {
				r.set("role", role)
			}
			return true
		},
	},
	{
		name:  "name_verb",
		re:    regexp.MustCompile(`\b(` + fullName + `)[ \t]+(?:was|is|were|said|stated|told|reported|claimed|saw|called|texted|left|arrived|went|testified|admitted|denied|met|drove|walked|ran|had|has|did|returned|entered|fled|identified|explained|recalled|remembered|advised|indicated|confirmed|observed|heard)\b`),
		group: 1,
		score: 80,
		build: func(h hit, r *result) bool { return trimName(r, 2) },
	},
	{
		name:  "name_object",
		re:    regexp.MustCompile(`\b(?:with|by|told|called|met|saw|contacted|interviewed|accompanied by|spoke with|spoke to|and)[ \t]+(` + fullName + `)\b`),
		group: 1,
		score: 65,
		build: func(h hit, r *result) bool { return trimName(r, 2) },
	},
	{
		name:  "capitalized_pair",
		re:    regexp.MustCompile(`\b(` + fullName + `)\b`),
		group: 1,
		score: 50,
		build: func(h hit, r *result) bool { return trimName(r, 2) },
	},
}

// PersonExtractor finds personal names. Names introduced by a role word or a
// labeled field carry the "role" attribute.
type PersonExtractor struct {
	Radius int
}

func (e *PersonExtractor) Category() models.CandidateCategory { return models.CategoryPerson }

func (e *PersonExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryPerson, personMatchers, radiusOr(e.Radius))
}
