// Package resolve maps extracted entity drafts onto case entities.
//
// A Resolver is a per-batch cache keyed by lower-cased name and type. It is
// seeded from the entities already stored for the case, so re-submitting a
// batch reuses existing IDs. Names that only nearly match are never merged;
// they are reported as NearDuplicate pairs for review.
package resolve

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/pkg/textutil"
)

// style is the display color and icon assigned to new entities of a type.
type style struct {
	color string
	icon  string
}

var palette = map[models.EntityType]style{
	models.EntityTypePerson:       {"#4A90D9", "user"},
	models.EntityTypeLocation:     {"#27AE60", "map-pin"},
	models.EntityTypeEvidence:     {"#E67E22", "search"},
	models.EntityTypeVehicle:      {"#8E44AD", "car"},
	models.EntityTypeOrganization: {"#C0392B", "building"},
	models.EntityTypeOther:        {"#7F8C8D", "circle"},
}

// Key returns the resolution key for a name and type.
func Key(name string, t models.EntityType) string {
	return strings.ToLower(textutil.CollapseSpace(name)) + "|" + string(t)
}

// Resolver resolves entity drafts for one case. It is not safe for
// concurrent use; the pipeline serializes resolution per case.
type Resolver struct {
	caseID  string
	byKey   map[string]*models.Entity
	order   []string
	created []string
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Resolver for caseID seeded with the case's stored entities.
func New(caseID string, existing []models.Entity, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		caseID: caseID,
		byKey:  make(map[string]*models.Entity, len(existing)),
		logger: logger,
		now:    time.Now,
	}
	for i := range existing {
		e := existing[i]
		r.add(Key(e.Name, e.Type), &e)
	}
	return r
}

func (r *Resolver) add(key string, e *models.Entity) {
	if _, ok := r.byKey[key]; !ok {
		r.order = append(r.order, key)
	}
	r.byKey[key] = e
}

// Resolve returns the case entity for draft, creating it when no entity with
// the same case-insensitive name and type exists. The second result reports
// whether the entity was created by this call.
func (r *Resolver) Resolve(draft models.ExtractedEntity, sourceDocumentID string) (models.Entity, bool) {
	name := textutil.CollapseSpace(draft.Name)
	t := draft.Type
	if !t.IsValid() {
		t = models.EntityTypeOther
	}
	key := Key(name, t)
	if e, ok := r.byKey[key]; ok {
		return *e, false
	}

	s := palette[t]
	e := &models.Entity{
		ID:               uuid.New().String(),
		CaseID:           r.caseID,
		Type:             t,
		Name:             name,
		Role:             draft.Role,
		Description:      draft.Description,
		Confidence:       models.ClampConfidence(draft.Confidence),
		FirstSeenAt:      r.now().UTC(),
		Color:            s.color,
		Icon:             s.icon,
		SourceDocumentID: sourceDocumentID,
	}
	r.add(key, e)
	r.created = append(r.created, key)
	r.logger.Debug("entity created", "case_id", r.caseID, "name", name, "type", t, "id", e.ID)
	return *e, true
}

// Lookup returns the cached entity for ref without creating one.
func (r *Resolver) Lookup(ref models.EntityRef) (models.Entity, bool) {
	e, ok := r.byKey[Key(ref.Name, ref.Type)]
	if !ok {
		return models.Entity{}, false
	}
	return *e, true
}

// Adopt replaces the cached entity for e's key, used when the store reports
// that a different ID already owns the key.
func (r *Resolver) Adopt(e models.Entity) {
	key := Key(e.Name, e.Type)
	copied := e
	r.add(key, &copied)
}

// Created returns the entities created during this batch in creation order.
func (r *Resolver) Created() []models.Entity {
	out := make([]models.Entity, 0, len(r.created))
	for _, key := range r.created {
		out = append(out, *r.byKey[key])
	}
	return out
}

// Entities returns every cached entity in insertion order.
func (r *Resolver) Entities() []models.Entity {
	out := make([]models.Entity, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.byKey[key])
	}
	return out
}

// NearDuplicates returns same-type entity pairs whose names are close but not
// equal, sorted by type then names.
func (r *Resolver) NearDuplicates() []models.NearDuplicate {
	return FindNearDuplicates(r.Entities())
}

// FindNearDuplicates compares every same-type pair of entities.
func FindNearDuplicates(entities []models.Entity) []models.NearDuplicate {
	byType := make(map[models.EntityType][]models.Entity)
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e)
	}

	var out []models.NearDuplicate
	for t, group := range byType {
		sort.Slice(group, func(i, j int) bool {
			return strings.ToLower(group[i].Name) < strings.ToLower(group[j].Name)
		})
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if !Similar(a.Name, b.Name, t) {
					continue
				}
				out = append(out, models.NearDuplicate{
					EntityID:      a.ID,
					OtherEntityID: b.ID,
					Type:          t,
					Name:          a.Name,
					OtherName:     b.Name,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].OtherName < out[j].OtherName
	})
	return out
}

// Similar reports whether two distinct names plausibly refer to the same
// entity: a small edit distance between names of five or more letters, or,
// for people, a shared surname with matching first initials.
func Similar(a, b string, t models.EntityType) bool {
	la := strings.ToLower(textutil.CollapseSpace(a))
	lb := strings.ToLower(textutil.CollapseSpace(b))
	if la == lb || la == "" || lb == "" {
		return false
	}
	if len(la) >= 5 && len(lb) >= 5 && levenshtein(la, lb) <= 2 {
		return true
	}
	if t != models.EntityTypePerson {
		return false
	}
	fa, fb := strings.Fields(la), strings.Fields(lb)
	if len(fa) < 2 || len(fb) < 2 {
		return false
	}
	return fa[len(fa)-1] == fb[len(fb)-1] && fa[0][0] == fb[0][0]
}

// levenshtein returns the edit distance between a and b over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
