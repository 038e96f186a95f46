package extract

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
)

const (
	physicalItems = `kitchen knife|knife|handgun|gun|pistol|revolver|rifle|shotgun|firearm|weapon|bullets?|shell casings?|casings?|cartridges?|bloodstains?|blood|latent prints?|fingerprints?|DNA|hair samples?|fibers?|footprints?|shoe ?prints?|gloves?|ski mask|mask|rope|zip ties?|duct tape|crowbar|baseball bat|hammer|wallet|purse|receipt|clothing|jacket|hoodie|backpack|duffel bag|syringe|narcotics|cigarette butts?`
	digitalItems  = `cell ?phone|mobile phone|smartphone|iPhone|laptop|computer|hard drive|USB drive|thumb drive|SD card|SIM card|tablet|dashcam footage|surveillance footage|CCTV footage|video footage|security footage|text messages|call logs?|GPS data|browser history|voicemail|phone records`
	itemModifiers = `black|white|red|blue|bloody|blood-stained|broken|spent|small|large|leather|9mm|\.38|\.45|latex`
)

// collectionRE marks language describing an item being secured as evidence.
var collectionRE = regexp.MustCompile(`(?i)\b(?:recovered|found|collected|seized|bagged|logged|tagged|submitted|swabbed|photographed|retrieved|impounded|obtained)\b`)

// boostCollected raises r's score when collection language is nearby.
func boostCollected(h hit, r *result, boost int) {
	lo, hi := r.start-80, r.end+80
	if lo < 0 {
		lo = 0
	}
	if hi > len(h.text) {
		hi = len(h.text)
	}
	if collectionRE.MatchString(h.text[lo:hi]) {
		r.score += boost
		r.set("collected", "true")
	}
}

var (
	hexLetterRE = regexp.MustCompile(`[a-fA-F]`)
	titleWordRE = regexp.MustCompile(`^[a-z]`)
)

var evidenceMatchers = []matcher{
	{
		name:  "exhibit_number",
		re:    regexp.MustCompile(`\b((?i:exhibit|evidence item|item|evidence|property tag))[ \t]*(?i:#|no\.?|number)?[ \t]*[:#]?[ \t]*([A-Z]{0,3}-?\d{1,5}[A-Z]?)\b`),
		score: 85,
		build: func(h hit, r *result) bool {
			label := strings.ToLower(h.group(1))
			label = titleWordRE.ReplaceAllStringFunc(label, strings.ToUpper)
			r.value = label + " " + strings.ToUpper(h.group(2))
			r.set("kind", "item")
			boostCollected(h, r, 5)
			return true
		},
	},
	{
		name:  "hash",
		re:    regexp.MustCompile(`\b([a-fA-F0-9]{64}|[a-fA-F0-9]{40}|[a-fA-F0-9]{32})\b`),
		group: 1,
		score: 80,
		build: func(h hit, r *result) bool {
			if !hexLetterRE.MatchString(r.value) || !hasDigitRE.MatchString(r.value) {
				return false
			}
			r.value = strings.ToLower(r.value)
			r.set("kind", "hash")
			return true
		},
	},
	{
		name:  "ip_address",
		re:    regexp.MustCompile(`\b((?:25[0-5]|2[0-4]\d|1?\d?\d)(?:\.(?:25[0-5]|2[0-4]\d|1?\d?\d)){3})\b`),
		group: 1,
		score: 75,
		build: func(h hit, r *result) bool {
			r.set("kind", "ip")
			return true
		},
	},
	{
		name:  "digital_item",
		re:    regexp.MustCompile(`(?i)\b((?:(?:` + itemModifiers + `)[ \t]+)?(?:` + digitalItems + `))\b`),
		group: 1,
		score: 60,
		build: func(h hit, r *result) bool {
			r.value = strings.ToLower(cleanPlace(r.value))
			r.set("kind", "digital")
			boostCollected(h, r, 20)
			return true
		},
	},
	{
		name:  "physical_item",
		re:    regexp.MustCompile(`(?i)\b((?:(?:` + itemModifiers + `)[ \t]+){0,2}(?:` + physicalItems + `))\b`),
		group: 1,
		score: 55,
		build: func(h hit, r *result) bool {
			r.value = strings.ToLower(cleanPlace(r.value))
			r.set("kind", "physical")
			boostCollected(h, r, 20)
			return true
		},
	},
}

// EvidenceExtractor finds exhibit numbers, physical and digital items,
// IP addresses and file hashes. Items near collection language ("recovered",
// "seized") score higher.
type EvidenceExtractor struct {
	Radius int
}

func (e *EvidenceExtractor) Category() models.CandidateCategory { return models.CategoryEvidence }

func (e *EvidenceExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryEvidence, evidenceMatchers, radiusOr(e.Radius))
}
