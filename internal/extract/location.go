package extract

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
)

const (
	streetSuffix = `Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct|Place|Pl|Terrace|Ter|Parkway|Pkwy|Highway|Hwy|Circle|Cir`
	placeSuffix  = `Park|Mall|Hotel|Motel|Inn|Bar|Grill|Restaurant|Cafe|Station|Airport|Hospital|School|Church|Bank|Store|Market|Supermarket|Apartments|Building|Center|Centre|Plaza|Square|Bridge|Lake|River|Beach|Club|Garage|Warehouse|Diner|Pub|Tavern|Library|Gym|Theater|Theatre|Casino|Stadium|Arena|Lounge|Pharmacy|Terminal|Marina|Trail|Cemetery`
	usStates     = `AL|AK|AZ|AR|CA|CO|CT|DE|FL|GA|HI|ID|IL|IN|IA|KS|KY|LA|ME|MD|MA|MI|MN|MS|MO|MT|NE|NV|NH|NJ|NM|NY|NC|ND|OH|OK|OR|PA|RI|SC|SD|TN|TX|UT|VT|VA|WA|WV|WI|WY|DC`
	genericPlace = `home|residence|apartment|house|office|workplace|work|scene|parking lot|gas station|park|bar|restaurant|motel|hotel|school|church|store|warehouse|garage|gym|mall`
)

// leadingArticleRE strips a sentence-initial article from captured names.
var leadingArticleRE = regexp.MustCompile(`^(?:The|A|An)\s+`)

// trimLeadingArticle moves r past a leading article.
func trimLeadingArticle(r *result) {
	if loc := leadingArticleRE.FindStringIndex(r.value); loc != nil {
		r.start += loc[1]
		r.value = r.value[loc[1]:]
	}
}

func cleanPlace(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ".,;:")
	return strings.Join(strings.Fields(s), " ")
}

var locationMatchers = []matcher{
	{
		name:  "street_address",
		re:    regexp.MustCompile(`\b\d{1,6}[ \t]+(?:[NSEW]\.?[ \t]+)?(?:[A-Z][A-Za-z0-9]*[ \t]+){1,3}(?:` + streetSuffix + `)\b\.?(?:,?\s+(?:Apt|Apartment|Unit|Suite|#)\.?\s*[A-Za-z0-9-]+)?`),
		score: 90,
		build: func(h hit, r *result) bool {
			r.value = cleanPlace(r.value)
			r.set("kind", "address")
			return true
		},
	},
	{
		name:  "named_place",
		re:    regexp.MustCompile(`\b((?:[A-Z][A-Za-z'&]+[ \t]+){1,4}(?:` + placeSuffix + `))\b`),
		group: 1,
		score: 80,
		build: func(h hit, r *result) bool {
			trimLeadingArticle(r)
			r.value = cleanPlace(r.value)
			// A bare suffix such as "Park" is too weak on its own.
			if !strings.Contains(r.value, " ") {
				return false
			}
			r.set("kind", "place")
			return true
		},
	},
	{
		name:  "city_state",
		re:    regexp.MustCompile(`\b([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){0,2}),[ \t]+(` + usStates + `)\b(?:\s+\d{5}(?:-\d{4})?)?`),
		score: 75,
		build: func(h hit, r *result) bool {
			trimLeadingArticle(r)
			r.value = cleanPlace(r.value)
			r.set("kind", "city")
			return true
		},
	},
	{
		name:  "possessive_residence",
		re:    regexp.MustCompile(`\b((?:[A-Z][a-z]+[ \t]+){0,2}[A-Z][a-z]+'s[ \t]+(?:house|home|residence|apartment|place|office|shop|store))\b`),
		group: 1,
		score: 65,
		build: func(h hit, r *result) bool {
			trimLeadingArticle(r)
			r.value = cleanPlace(r.value)
			r.set("kind", "residence")
			return true
		},
	},
	{
		name:  "generic_place",
		re:    regexp.MustCompile(`(?i)\b(?:at|in|inside|outside|near|to|from)\s+(?:(?:the|his|her|their|my|a|an|our|your)\s+)?((?:` + genericPlace + `))\b`),
		group: 1,
		score: 45,
		build: func(h hit, r *result) bool {
			r.value = strings.ToLower(cleanPlace(r.value))
			r.set("kind", "generic")
			r.set("generic", "true")
			return true
		},
	},
}

// LocationExtractor finds street addresses, named places, city/state pairs
// and generic place references. Generic references carry the "generic"
// attribute and are not promoted to entities.
type LocationExtractor struct {
	Radius int
}

func (e *LocationExtractor) Category() models.CandidateCategory { return models.CategoryLocation }

func (e *LocationExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryLocation, locationMatchers, radiusOr(e.Radius))
}
