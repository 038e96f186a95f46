// Package review assembles the human-review handoff for a case: low
// confidence events and alibis, every detected inconsistency, and possible
// duplicate entities. Queue management itself happens downstream.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ajitpratap0/casegraph/internal/consistency"
	"github.com/ajitpratap0/casegraph/internal/metrics"
	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/resolve"
	"github.com/ajitpratap0/casegraph/internal/store"
)

// DefaultThreshold is the confidence below which events and alibis are queued.
const DefaultThreshold = 60

var severityRank = map[models.Severity]int{
	models.SeverityHigh:   0,
	models.SeverityMedium: 1,
	models.SeverityLow:    2,
}

var kindRank = map[models.ReviewKind]int{
	models.ReviewInconsistency:      0,
	models.ReviewLowConfidenceAlibi: 1,
	models.ReviewLowConfidenceEvent: 2,
	models.ReviewPossibleDuplicate:  3,
}

// InconsistencySeverity grades an inconsistency for review.
func InconsistencySeverity(kind models.InconsistencyKind) models.Severity {
	switch kind {
	case models.InconsistencyLocation, models.InconsistencyAlibiEvent, models.InconsistencyEventLocation:
		return models.SeverityHigh
	case models.InconsistencyTime, models.InconsistencyActivity:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Input is everything Build needs for one case.
type Input struct {
	CaseID          string
	Entities        []models.Entity
	Events          []models.TimelineEvent
	Alibis          []models.AlibiStatement
	Inconsistencies []models.Inconsistency
	Duplicates      []models.NearDuplicate
	Threshold       int
}

// Build returns the review items in deterministic order.
func Build(in Input) []models.ReviewItem {
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	names := make(map[string]string, len(in.Entities))
	for i := range in.Entities {
		names[in.Entities[i].ID] = in.Entities[i].Name
	}
	nameOf := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	items := make([]models.ReviewItem, 0)
	for _, ev := range in.Events {
		if ev.Confidence >= threshold {
			continue
		}
		sev := models.SeverityLow
		if ev.Confidence < threshold/2 {
			sev = models.SeverityMedium
		}
		items = append(items, models.ReviewItem{
			Kind:       models.ReviewLowConfidenceEvent,
			Severity:   sev,
			CaseID:     in.CaseID,
			ArtifactID: ev.ID,
			Confidence: ev.Confidence,
			Summary:    fmt.Sprintf("event %q has confidence %d (precision %s)", ev.Title, ev.Confidence, ev.TimePrecision),
		})
	}
	for _, a := range in.Alibis {
		if a.Confidence >= threshold {
			continue
		}
		items = append(items, models.ReviewItem{
			Kind:       models.ReviewLowConfidenceAlibi,
			Severity:   models.SeverityMedium,
			CaseID:     in.CaseID,
			ArtifactID: a.ID,
			Confidence: a.Confidence,
			Summary: fmt.Sprintf("alibi v%d of %s (%s) has confidence %d",
				a.VersionNumber, nameOf(a.SubjectEntityID), a.LocationClaimed, a.Confidence),
		})
	}
	for i := range in.Inconsistencies {
		inc := in.Inconsistencies[i]
		items = append(items, models.ReviewItem{
			Kind:          models.ReviewInconsistency,
			Severity:      InconsistencySeverity(inc.Kind),
			CaseID:        in.CaseID,
			ArtifactID:    inc.SubjectEntityID,
			Summary:       fmt.Sprintf("%s: %s", nameOf(inc.SubjectEntityID), inc.Detail),
			Inconsistency: &inc,
		})
	}
	for _, d := range in.Duplicates {
		items = append(items, models.ReviewItem{
			Kind:       models.ReviewPossibleDuplicate,
			Severity:   models.SeverityLow,
			CaseID:     in.CaseID,
			ArtifactID: d.EntityID,
			Summary:    fmt.Sprintf("%s %q may be the same as %q", d.Type, d.Name, d.OtherName),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		if a.ArtifactID != b.ArtifactID {
			return a.ArtifactID < b.ArtifactID
		}
		return a.Summary < b.Summary
	})
	return items
}

// Report is the review state of one case.
type Report struct {
	CaseID          string                 `json:"case_id"`
	Items           []models.ReviewItem    `json:"items"`
	Inconsistencies []models.Inconsistency `json:"inconsistencies"`
	Duplicates      []models.NearDuplicate `json:"possible_duplicates"`
}

// Summary counts items per severity, e.g. "high=1 medium=0 low=3".
func (r *Report) Summary() string {
	counts := map[models.Severity]int{}
	for _, it := range r.Items {
		counts[it.Severity]++
	}
	parts := make([]string, 0, 3)
	for _, s := range []models.Severity{models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		parts = append(parts, fmt.Sprintf("%s=%d", s, counts[s]))
	}
	return strings.Join(parts, " ")
}

// Manager computes review reports from the stored graph.
type Manager struct {
	store     store.GraphStore
	threshold int
	window    time.Duration
	logger    *slog.Logger
}

// NewManager creates a Manager. A zero threshold or window uses the defaults.
func NewManager(st store.GraphStore, threshold int, window time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = consistency.DefaultEventWindow
	}
	return &Manager{store: st, threshold: threshold, window: window, logger: logger}
}

// Run reads the case graph, detects inconsistencies and near-duplicates and
// returns the review report.
func (m *Manager) Run(ctx context.Context, caseID string) (*Report, error) {
	entities, err := m.store.ListEntities(ctx, caseID, "")
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	events, err := m.store.ListTimelineEvents(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	alibis, err := m.store.ListAlibis(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing alibis: %w", err)
	}

	incs := consistency.Detect(alibis, events, m.window)
	for _, inc := range incs {
		m.logger.Debug("inconsistency detected", "case_id", caseID, "subject", inc.SubjectEntityID,
			"kind", inc.Kind, "version1", inc.Version1, "version2", inc.Version2)
	}
	dups := resolve.FindNearDuplicates(entities)
	report := &Report{
		CaseID:          caseID,
		Inconsistencies: incs,
		Duplicates:      dups,
		Items: Build(Input{
			CaseID:          caseID,
			Entities:        entities,
			Events:          events,
			Alibis:          alibis,
			Inconsistencies: incs,
			Duplicates:      dups,
			Threshold:       m.threshold,
		}),
	}
	metrics.Add(metrics.Inconsistencies, len(incs))
	m.logger.Info("review queue built", "case_id", caseID, "items", len(report.Items),
		"inconsistencies", len(incs), "possible_duplicates", len(dups))
	return report, nil
}
