// Package extract provides the pattern-based fact extractors.
//
// Each fact category is an independent Extractor strategy holding an ordered
// list of matchers. A matcher's hit is scored by a category-specific
// heuristic and rejected when it overlaps a span already accepted by an
// earlier, higher-priority matcher of the same extractor. Extractors never
// fail: text with nothing to match yields zero candidates.
package extract

import (
	"log/slog"
	"regexp"
	"sort"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/pkg/textutil"
)

// DefaultContextRadius is the number of bytes captured on either side of a
// match for its context window.
const DefaultContextRadius = 100

// Extractor scans text for one fact category.
type Extractor interface {
	Category() models.CandidateCategory
	Extract(text string) []models.Candidate
}

// hit wraps one regexp submatch index result.
type hit struct {
	text string
	idx  []int
}

// group returns submatch i or "" when it did not participate.
func (h hit) group(i int) string {
	if 2*i+1 >= len(h.idx) || h.idx[2*i] < 0 {
		return ""
	}
	return h.text[h.idx[2*i]:h.idx[2*i+1]]
}

// span returns the byte span of submatch i.
func (h hit) span(i int) (int, int) {
	if 2*i+1 >= len(h.idx) {
		return -1, -1
	}
	return h.idx[2*i], h.idx[2*i+1]
}

// result is the mutable outcome of a matcher's build step. It arrives
// pre-filled with the matched group's span, raw text and base score.
type result struct {
	start, end int
	value      string
	score      int
	attrs      map[string]string
}

func (r *result) set(key, value string) {
	if r.attrs == nil {
		r.attrs = make(map[string]string)
	}
	r.attrs[key] = value
}

// matcher is one pattern in an extractor's ordered list.
type matcher struct {
	name  string
	re    *regexp.Regexp
	group int
	score int
	// build normalizes and rescores a hit; returning false rejects it.
	build func(h hit, r *result) bool
}

type span struct{ start, end int }

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

func radiusOr(r int) int {
	if r <= 0 {
		return DefaultContextRadius
	}
	return r
}

// scan runs matchers in priority order and returns accepted candidates
// sorted by position.
func scan(text string, category models.CandidateCategory, matchers []matcher, radius int) []models.Candidate {
	if text == "" {
		return nil
	}

	var out []models.Candidate
	var taken []span
	for i := range matchers {
		m := &matchers[i]
		for _, idx := range m.re.FindAllStringSubmatchIndex(text, -1) {
			h := hit{text: text, idx: idx}
			start, end := h.span(m.group)
			if start < 0 || start >= end {
				continue
			}
			r := result{start: start, end: end, value: text[start:end], score: m.score}
			if m.build != nil && !m.build(h, &r) {
				continue
			}
			if r.value == "" || r.start < 0 || r.end > len(text) || r.start >= r.end {
				continue
			}
			if overlaps(taken, r.start, r.end) {
				continue
			}
			taken = append(taken, span{r.start, r.end})
			out = append(out, models.Candidate{
				Category:        category,
				OriginalText:    text[r.start:r.end],
				NormalizedValue: r.value,
				Context:         textutil.Window(text, r.start, r.end, radius),
				Confidence:      models.ClampConfidence(r.score),
				Pattern:         m.name,
				Start:           r.start,
				End:             r.end,
				Attributes:      r.attrs,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Set runs a group of extractors over the same text.
type Set struct {
	extractors []Extractor
	logger     *slog.Logger
}

// DefaultExtractors returns one extractor per supported category.
func DefaultExtractors(radius int) []Extractor {
	return []Extractor{
		&DateExtractor{Radius: radius},
		&TimeExtractor{Radius: radius},
		&LocationExtractor{Radius: radius},
		&PersonExtractor{Radius: radius},
		&OrganizationExtractor{Radius: radius},
		&VehicleExtractor{Radius: radius},
		&CommunicationExtractor{Radius: radius},
		&FinancialExtractor{Radius: radius},
		&EvidenceExtractor{Radius: radius},
	}
}

// NewSet creates a Set. With no extractors it uses DefaultExtractors with the
// default context radius.
func NewSet(logger *slog.Logger, extractors ...Extractor) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	if len(extractors) == 0 {
		extractors = DefaultExtractors(DefaultContextRadius)
	}
	return &Set{extractors: extractors, logger: logger}
}

// Extract runs every extractor over text and stamps each candidate with
// documentID. A panicking extractor is logged and contributes nothing.
func (s *Set) Extract(documentID, text string) []models.Candidate {
	var all []models.Candidate
	for _, ex := range s.extractors {
		all = append(all, s.runOne(ex, documentID, text)...)
	}
	return all
}

func (s *Set) runOne(ex Extractor, documentID, text string) (cands []models.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("extractor panicked, skipping category",
				"category", ex.Category(), "document_id", documentID, "panic", r)
			cands = nil
		}
	}()

	cands = ex.Extract(text)
	for i := range cands {
		cands[i].SourceDocumentID = documentID
		cands[i].Confidence = models.ClampConfidence(cands[i].Confidence)
	}
	if len(cands) > 0 {
		s.logger.Debug("candidates extracted",
			"category", ex.Category(), "document_id", documentID, "count", len(cands))
	}
	return cands
}
