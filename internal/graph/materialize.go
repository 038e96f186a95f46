package graph

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/resolve"
)

// PlannedConnection is a connection ready for persistence together with the
// endpoint names its dedup key is built from.
type PlannedConnection struct {
	Connection models.Connection
	FromName   string
	ToName     string
}

// PlannedAlibi is an alibi version ready for persistence together with the
// subject name, used for logging and review summaries.
type PlannedAlibi struct {
	Alibi       models.AlibiStatement
	SubjectName string
}

// Plan holds the artifacts materialized from one extraction.
type Plan struct {
	Events      []models.TimelineEvent
	Connections []PlannedConnection
	Alibis      []PlannedAlibi

	// Unresolved counts references to entities the resolver did not know.
	Unresolved int
}

// Materialize assigns IDs to the drafts in ex, resolving entity references
// through r. Entities must already have been resolved; references the
// resolver cannot find are dropped and counted.
func Materialize(caseID string, ex *models.Extraction, r *resolve.Resolver) Plan {
	var plan Plan
	lookup := func(ref models.EntityRef) (models.Entity, bool) {
		if !ref.Type.IsValid() {
			ref.Type = models.EntityTypeOther
		}
		e, ok := r.Lookup(ref)
		if !ok {
			plan.Unresolved++
		}
		return e, ok
	}

	for _, d := range ex.Events {
		eventTime, precision := ParseEventTime(d.Date, d.Time, d.Approximate, d.DateInherited)
		ev := models.TimelineEvent{
			ID:                 uuid.New().String(),
			CaseID:             caseID,
			Type:               d.Type,
			Title:              d.Title,
			Description:        d.Description,
			EventTime:          eventTime,
			TimePrecision:      precision,
			Location:           d.Location,
			ParticipantIDs:     []string{},
			VerificationStatus: models.StatusUnverified,
			Confidence:         models.ClampConfidence(d.Confidence),
			SourceDocumentID:   ex.DocumentID,
		}
		if !ev.Type.IsValid() {
			ev.Type = models.EventOther
		}
		if ev.Title == "" {
			ev.Title = EventTitle(ev.Type, d.Participants, d.Location, d.Description)
		}
		if eventTime == nil {
			ev.Confidence = min(ev.Confidence, 30)
		}
		seen := make(map[string]bool)
		victim := false
		for _, p := range d.Participants {
			if e, ok := lookup(p); ok && !seen[e.ID] {
				seen[e.ID] = true
				ev.ParticipantIDs = append(ev.ParticipantIDs, e.ID)
				victim = victim || strings.EqualFold(e.Role, "victim")
			}
		}
		// A victim tagged by another document or an earlier run outranks
		// the alibi and fallback types.
		if victim && (ev.Type == models.EventSuspectMovement || ev.Type == models.EventOther) {
			if d.Title == "" || d.Title == EventTitle(d.Type, d.Participants, d.Location, d.Description) {
				ev.Title = EventTitle(models.EventVictimAction, d.Participants, d.Location, d.Description)
			}
			ev.Type = models.EventVictimAction
		}
		plan.Events = append(plan.Events, ev)
	}

	for _, d := range ex.Connections {
		from, ok := lookup(d.From)
		if !ok {
			continue
		}
		to, ok := lookup(d.To)
		if !ok || from.ID == to.ID {
			continue
		}
		conf := d.Confidence
		if !conf.IsValid() {
			conf = models.ConfidenceUnverified
		}
		plan.Connections = append(plan.Connections, PlannedConnection{
			Connection: models.Connection{
				ID:             uuid.New().String(),
				CaseID:         caseID,
				FromEntityID:   from.ID,
				ToEntityID:     to.ID,
				ConnectionType: d.Type,
				Label:          d.Label,
				Description:    d.Description,
				Confidence:     conf,
			},
			FromName: from.Name,
			ToName:   to.Name,
		})
	}

	for _, d := range ex.Alibis {
		subject, ok := lookup(d.Subject)
		if !ok {
			continue
		}
		al := models.AlibiStatement{
			ID:                     uuid.New().String(),
			CaseID:                 caseID,
			SubjectEntityID:        subject.ID,
			StatementDate:          dateOnly(d.StatementDate),
			AlibiStart:             clockOn(d.Date, d.StartTime),
			AlibiEnd:               clockOn(d.Date, d.EndTime),
			LocationClaimed:        d.Location,
			ActivityClaimed:        d.Activity,
			FullStatement:          d.FullStatement,
			CorroboratingEntityIDs: []string{},
			VerificationStatus:     models.StatusUnverified,
			Confidence:             models.ClampConfidence(d.Confidence),
			SourceDocumentID:       ex.DocumentID,
		}
		if al.AlibiStart != nil && al.AlibiEnd != nil && al.AlibiEnd.Before(*al.AlibiStart) {
			// The window crosses midnight.
			end := al.AlibiEnd.Add(24 * time.Hour)
			al.AlibiEnd = &end
		}
		seen := make(map[string]bool)
		for _, p := range d.Corroborators {
			if e, ok := lookup(p); ok && e.ID != subject.ID && !seen[e.ID] {
				seen[e.ID] = true
				al.CorroboratingEntityIDs = append(al.CorroboratingEntityIDs, e.ID)
			}
		}
		plan.Alibis = append(plan.Alibis, PlannedAlibi{Alibi: al, SubjectName: subject.Name})
	}
	return plan
}

func dateOnly(date string) *time.Time {
	t, ok := ParseDate(date)
	if !ok {
		return nil
	}
	return &t
}

// clockOn combines date and clock, returning nil unless both parse.
func clockOn(date, clock string) *time.Time {
	day, ok := ParseDate(date)
	if !ok {
		return nil
	}
	h, m, ok := ParseClock(clock)
	if !ok {
		return nil
	}
	t := day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	return &t
}
