package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/review"
	"github.com/ajitpratap0/casegraph/internal/store"
)

func TestInconsistencySeverity(t *testing.T) {
	tests := []struct {
		kind models.InconsistencyKind
		want models.Severity
	}{
		{models.InconsistencyLocation, models.SeverityHigh},
		{models.InconsistencyAlibiEvent, models.SeverityHigh},
		{models.InconsistencyEventLocation, models.SeverityHigh},
		{models.InconsistencyTime, models.SeverityMedium},
		{models.InconsistencyActivity, models.SeverityMedium},
		{models.InconsistencyCorroboration, models.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, review.InconsistencySeverity(tt.kind))
		})
	}
}

func TestBuild_ThresholdAndOrdering(t *testing.T) {
	items := review.Build(review.Input{
		CaseID:   "c1",
		Entities: []models.Entity{{ID: "jane", Name: "Jane Doe"}},
		Events: []models.TimelineEvent{
			{ID: "ev-ok", Title: "Sighting: Jane Doe", Confidence: 60},
			{ID: "ev-low", Title: "Other: undated", Confidence: 20, TimePrecision: models.PrecisionUnknown},
			{ID: "ev-mid", Title: "Phone call", Confidence: 45},
		},
		Alibis: []models.AlibiStatement{
			{ID: "al-low", SubjectEntityID: "jane", VersionNumber: 1, LocationClaimed: "Home", Confidence: 50},
			{ID: "al-ok", SubjectEntityID: "jane", VersionNumber: 2, LocationClaimed: "Bar", Confidence: 80},
		},
		Inconsistencies: []models.Inconsistency{
			{SubjectEntityID: "jane", Version1: 1, Version2: 2, Kind: models.InconsistencyLocation, Detail: "Home -> Bar"},
			{SubjectEntityID: "jane", Version1: 1, Version2: 2, Kind: models.InconsistencyCorroboration, Detail: "corroborators changed"},
		},
		Duplicates: []models.NearDuplicate{
			{EntityID: "j1", OtherEntityID: "j2", Type: models.EntityTypePerson, Name: "J. Smith", OtherName: "John Smith"},
		},
	})

	got := make([]string, len(items))
	for i, it := range items {
		got[i] = string(it.Severity) + "/" + string(it.Kind) + "/" + it.ArtifactID
	}
	assert.Equal(t, []string{
		"high/inconsistency/jane",
		"medium/low_confidence_alibi/al-low",
		"medium/low_confidence_event/ev-low",
		"low/inconsistency/jane",
		"low/low_confidence_event/ev-mid",
		"low/possible_duplicate/j1",
	}, got)

	assert.Equal(t, "Jane Doe: Home -> Bar", items[0].Summary)
	require.NotNil(t, items[0].Inconsistency)
	assert.Equal(t, models.InconsistencyLocation, items[0].Inconsistency.Kind)
	assert.Equal(t, "c1", items[0].CaseID)
}

func TestBuild_DefaultThreshold(t *testing.T) {
	items := review.Build(review.Input{Events: []models.TimelineEvent{{ID: "e", Confidence: 59}}})
	require.Len(t, items, 1)
	assert.Equal(t, 59, items[0].Confidence)

	items = review.Build(review.Input{Events: []models.TimelineEvent{{ID: "e", Confidence: 59}}, Threshold: 50})
	assert.Empty(t, items)
}

func TestManager_Run(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seen := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	for _, e := range []models.Entity{
		{ID: "jane", CaseID: "c1", Name: "Jane Doe", Type: models.EntityTypePerson, FirstSeenAt: seen},
		{ID: "jon", CaseID: "c1", Name: "Jon Smith", Type: models.EntityTypePerson, FirstSeenAt: seen},
		{ID: "john", CaseID: "c1", Name: "John Smith", Type: models.EntityTypePerson, FirstSeenAt: seen},
	} {
		_, err := s.UpsertEntity(ctx, e.ID, e)
		require.NoError(t, err)
	}
	for i, loc := range []string{"Home", "Friend's house"} {
		_, err := s.UpsertAlibiVersion(ctx, loc, models.AlibiStatement{
			ID: loc, CaseID: "c1", SubjectEntityID: "jane", LocationClaimed: loc,
			ActivityClaimed: "Sleeping", Confidence: 70 + i,
		})
		require.NoError(t, err)
	}

	report, err := review.NewManager(s, 0, 0, nil).Run(ctx, "c1")
	require.NoError(t, err)

	require.Len(t, report.Inconsistencies, 1)
	assert.Equal(t, models.InconsistencyLocation, report.Inconsistencies[0].Kind)
	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, "John Smith", report.Duplicates[0].Name)
	require.Len(t, report.Items, 2)
	assert.Equal(t, models.ReviewInconsistency, report.Items[0].Kind)
	assert.Equal(t, models.ReviewPossibleDuplicate, report.Items[1].Kind)
	assert.Equal(t, "high=1 medium=0 low=1", report.Summary())
}
