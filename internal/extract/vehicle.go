package extract

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
)

const (
	vehicleMakes  = `Toyota|Honda|Ford|Chevrolet|Chevy|Nissan|Dodge|Jeep|BMW|Mercedes(?:-Benz)?|Audi|Volkswagen|VW|Hyundai|Kia|Subaru|Mazda|Lexus|Tesla|Buick|Cadillac|Chrysler|GMC|Acura|Infiniti|Volvo|Lincoln|Mitsubishi|Pontiac|Porsche|Jaguar`
	vehicleColors = `black|white|silver|gray|grey|red|blue|green|yellow|orange|brown|tan|beige|gold|maroon|burgundy|dark|light|dark blue|dark green|navy`
	vehicleBodies = `sedan|suv|SUV|truck|pickup truck|pickup|van|minivan|coupe|motorcycle|hatchback|convertible|car|jeep|wagon`
)

var (
	hasDigitRE  = regexp.MustCompile(`\d`)
	hasLetterRE = regexp.MustCompile(`[A-Za-z]`)
)

var vehicleMatchers = []matcher{
	{
		name:  "license_plate",
		re:    regexp.MustCompile(`(?i:license plate|plate number|plate|tag number|registration)[ \t]*(?i:#|no\.?|number)?[ \t]*[:#]?[ \t]*([A-Z0-9]{1,4}[- ]?[A-Z0-9]{2,5})\b`),
		group: 1,
		score: 90,
		build: func(h hit, r *result) bool {
			if !hasDigitRE.MatchString(r.value) {
				return false
			}
			r.value = strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(r.value))
			r.set("kind", "plate")
			return true
		},
	},
	{
		name:  "vin",
		re:    regexp.MustCompile(`\b([A-HJ-NPR-Z0-9]{17})\b`),
		group: 1,
		score: 85,
		build: func(h hit, r *result) bool {
			if !hasDigitRE.MatchString(r.value) || !hasLetterRE.MatchString(r.value) {
				return false
			}
			r.set("kind", "vin")
			return true
		},
	},
	{
		name:  "make_model",
		re:    regexp.MustCompile(`\b(?:((?i:` + vehicleColors + `))[ \t]+)?(?:((?:19|20)\d{2})[ \t]+)?(` + vehicleMakes + `)(?:[ \t]+([A-Z0-9][A-Za-z0-9-]+))?\b`),
		score: 70,
		build: func(h hit, r *result) bool {
			parts := []string{}
			for i := 1; i <= 4; i++ {
				if g := h.group(i); g != "" {
					parts = append(parts, g)
				}
			}
			if h.group(4) != "" {
				r.score += 15
				r.set("model", h.group(4))
			}
			if c := h.group(1); c != "" {
				r.set("color", strings.ToLower(c))
			}
			r.set("make", h.group(3))
			r.set("kind", "make_model")
			r.value = strings.Join(parts, " ")
			return true
		},
	},
	{
		name:  "described_vehicle",
		re:    regexp.MustCompile(`\b(?i:a|an|the|his|her|their)[ \t]+((?:((?i:` + vehicleColors + `))[ \t]+)?(?:(?i:two|four)-door[ \t]+)?(?:` + vehicleBodies + `))\b`),
		group: 1,
		score: 55,
		build: func(h hit, r *result) bool {
			r.value = strings.ToLower(cleanPlace(r.value))
			r.set("kind", "description")
			if h.group(2) == "" {
				r.score -= 10
				r.set("generic", "true")
			}
			return true
		},
	},
}

// VehicleExtractor finds license plates, VINs, make/model mentions and
// described vehicles.
type VehicleExtractor struct {
	Radius int
}

func (e *VehicleExtractor) Category() models.CandidateCategory { return models.CategoryVehicle }

func (e *VehicleExtractor) Extract(text string) []models.Candidate {
	return scan(text, models.CategoryVehicle, vehicleMatchers, radiusOr(e.Radius))
}
