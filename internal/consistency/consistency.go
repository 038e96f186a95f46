// Package consistency derives inconsistencies from alibi versions and
// timeline events. Every function is pure: the output depends only on the
// input values, never on their order, and is regenerated on each run.
package consistency

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/pkg/textutil"
)

// DefaultEventWindow is how close two timed events must be for conflicting
// locations to count as an inconsistency.
const DefaultEventWindow = 30 * time.Minute

var kindOrder = map[models.InconsistencyKind]int{
	models.InconsistencyLocation:      0,
	models.InconsistencyActivity:      1,
	models.InconsistencyTime:          2,
	models.InconsistencyCorroboration: 3,
	models.InconsistencyAlibiEvent:    4,
	models.InconsistencyEventLocation: 5,
}

// Detect runs every check and returns the combined, sorted result.
func Detect(alibis []models.AlibiStatement, events []models.TimelineEvent, window time.Duration) []models.Inconsistency {
	out := DetectAlibis(alibis)
	out = append(out, DetectAlibiEvents(alibis, events)...)
	out = append(out, DetectEvents(events, window)...)
	Sort(out)
	return out
}

// Sort orders inconsistencies by subject, versions, kind, then event IDs.
func Sort(items []models.Inconsistency) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.SubjectEntityID != b.SubjectEntityID {
			return a.SubjectEntityID < b.SubjectEntityID
		}
		if a.Version1 != b.Version1 {
			return a.Version1 < b.Version1
		}
		if a.Version2 != b.Version2 {
			return a.Version2 < b.Version2
		}
		if a.Kind != b.Kind {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		return strings.Join(a.EventIDs, ",") < strings.Join(b.EventIDs, ",")
	})
}

// DetectAlibis groups statements by subject, orders each group by version
// and compares adjacent versions on location, activity, time window and the
// set of corroborators. Each check is independent.
func DetectAlibis(alibis []models.AlibiStatement) []models.Inconsistency {
	bySubject := make(map[string][]models.AlibiStatement)
	for _, a := range alibis {
		bySubject[a.SubjectEntityID] = append(bySubject[a.SubjectEntityID], a)
	}

	subjects := make([]string, 0, len(bySubject))
	for s := range bySubject {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	var out []models.Inconsistency
	for _, subject := range subjects {
		versions := bySubject[subject]
		sort.SliceStable(versions, func(i, j int) bool {
			if versions[i].VersionNumber != versions[j].VersionNumber {
				return versions[i].VersionNumber < versions[j].VersionNumber
			}
			return versions[i].ID < versions[j].ID
		})
		for i := 1; i < len(versions); i++ {
			out = append(out, compareVersions(versions[i-1], versions[i])...)
		}
	}
	return out
}

func compareVersions(prev, next models.AlibiStatement) []models.Inconsistency {
	var out []models.Inconsistency
	add := func(kind models.InconsistencyKind, detail string) {
		out = append(out, models.Inconsistency{
			SubjectEntityID: next.SubjectEntityID,
			Version1:        prev.VersionNumber,
			Version2:        next.VersionNumber,
			Kind:            kind,
			Detail:          detail,
		})
	}

	if claimChanged(prev.LocationClaimed, next.LocationClaimed) {
		add(models.InconsistencyLocation, fmt.Sprintf("location changed from %q to %q",
			prev.LocationClaimed, next.LocationClaimed))
	}
	if claimChanged(prev.ActivityClaimed, next.ActivityClaimed) {
		add(models.InconsistencyActivity, fmt.Sprintf("activity changed from %q to %q",
			prev.ActivityClaimed, next.ActivityClaimed))
	}
	if !sameTime(prev.AlibiStart, next.AlibiStart) || !sameTime(prev.AlibiEnd, next.AlibiEnd) {
		add(models.InconsistencyTime, fmt.Sprintf("time window changed from %s to %s",
			window(prev.AlibiStart, prev.AlibiEnd), window(next.AlibiStart, next.AlibiEnd)))
	}
	if !sameSet(prev.CorroboratingEntityIDs, next.CorroboratingEntityIDs) {
		add(models.InconsistencyCorroboration, fmt.Sprintf("corroborators changed from %d to %d entities",
			len(prev.CorroboratingEntityIDs), len(next.CorroboratingEntityIDs)))
	}
	return out
}

// claimChanged compares claimed text exactly, ignoring surrounding whitespace.
func claimChanged(a, b string) bool {
	return strings.TrimSpace(a) != strings.TrimSpace(b)
}

// samePlace compares place names written by different documents, ignoring
// case and whitespace runs.
func samePlace(a, b string) bool {
	return strings.EqualFold(textutil.CollapseSpace(a), textutil.CollapseSpace(b))
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameSet(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	other := make(map[string]bool, len(b))
	for _, id := range b {
		if !set[id] {
			return false
		}
		other[id] = true
	}
	return len(set) == len(other)
}

func window(start, end *time.Time) string {
	format := func(t *time.Time) string {
		if t == nil {
			return "?"
		}
		return t.UTC().Format("2006-01-02 15:04")
	}
	return "[" + format(start) + " - " + format(end) + "]"
}

// timed reports whether an event's time is precise enough to compare.
func timed(ev models.TimelineEvent) bool {
	if ev.EventTime == nil {
		return false
	}
	return ev.TimePrecision == models.PrecisionExact || ev.TimePrecision == models.PrecisionApproximate
}

// DetectEvents reports participants placed at two different locations by
// timed events no more than window apart.
func DetectEvents(events []models.TimelineEvent, window time.Duration) []models.Inconsistency {
	if window <= 0 {
		window = DefaultEventWindow
	}
	byParticipant := make(map[string][]models.TimelineEvent)
	for _, ev := range events {
		if !timed(ev) || strings.TrimSpace(ev.Location) == "" {
			continue
		}
		for _, p := range ev.ParticipantIDs {
			byParticipant[p] = append(byParticipant[p], ev)
		}
	}

	var out []models.Inconsistency
	for participant, evs := range byParticipant {
		sort.SliceStable(evs, func(i, j int) bool {
			if !evs[i].EventTime.Equal(*evs[j].EventTime) {
				return evs[i].EventTime.Before(*evs[j].EventTime)
			}
			return evs[i].ID < evs[j].ID
		})
		for i := 0; i < len(evs); i++ {
			for j := i + 1; j < len(evs); j++ {
				a, b := evs[i], evs[j]
				gap := b.EventTime.Sub(*a.EventTime)
				if gap > window {
					break
				}
				if samePlace(a.Location, b.Location) {
					continue
				}
				ids := []string{a.ID, b.ID}
				sort.Strings(ids)
				out = append(out, models.Inconsistency{
					SubjectEntityID: participant,
					Kind:            models.InconsistencyEventLocation,
					Detail: fmt.Sprintf("placed at %q and %q %s apart",
						a.Location, b.Location, gap.Round(time.Minute)),
					EventIDs: ids,
				})
			}
		}
	}
	Sort(out)
	return out
}

// DetectAlibiEvents reports timed events that place an alibi subject
// somewhere other than the claimed location during the alibi window. An
// alibi without an end time covers its start instant only.
func DetectAlibiEvents(alibis []models.AlibiStatement, events []models.TimelineEvent) []models.Inconsistency {
	var out []models.Inconsistency
	for _, al := range alibis {
		if al.AlibiStart == nil || strings.TrimSpace(al.LocationClaimed) == "" {
			continue
		}
		start, end := *al.AlibiStart, *al.AlibiStart
		if al.AlibiEnd != nil {
			end = *al.AlibiEnd
		}
		for _, ev := range events {
			if !timed(ev) || strings.TrimSpace(ev.Location) == "" || !contains(ev.ParticipantIDs, al.SubjectEntityID) {
				continue
			}
			if ev.EventTime.Before(start) || ev.EventTime.After(end) {
				continue
			}
			if samePlace(ev.Location, al.LocationClaimed) {
				continue
			}
			out = append(out, models.Inconsistency{
				SubjectEntityID: al.SubjectEntityID,
				Version1:        al.VersionNumber,
				Kind:            models.InconsistencyAlibiEvent,
				Detail: fmt.Sprintf("alibi claims %q but event %q places subject at %q",
					al.LocationClaimed, ev.Title, ev.Location),
				EventIDs: []string{ev.ID},
			})
		}
	}
	Sort(out)
	return out
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
