package models

// ReviewKind names why an artifact is eligible for human review.
type ReviewKind string

const (
	ReviewLowConfidenceEvent ReviewKind = "low_confidence_event"
	ReviewLowConfidenceAlibi ReviewKind = "low_confidence_alibi"
	ReviewInconsistency      ReviewKind = "inconsistency"
	ReviewPossibleDuplicate  ReviewKind = "possible_duplicate"
)

// Severity orders review items for the external queue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ReviewItem is one artifact handed off to the review workflow.
type ReviewItem struct {
	Kind          ReviewKind     `json:"kind"`
	Severity      Severity       `json:"severity"`
	CaseID        string         `json:"case_id"`
	ArtifactID    string         `json:"artifact_id,omitempty"`
	Confidence    int            `json:"confidence,omitempty"`
	Summary       string         `json:"summary"`
	Inconsistency *Inconsistency `json:"inconsistency,omitempty"`
}

// NearDuplicate is a pair of same-type entities whose names are close but
// not equal. They are never merged automatically.
type NearDuplicate struct {
	EntityID      string     `json:"entity_id"`
	OtherEntityID string     `json:"other_entity_id"`
	Type          EntityType `json:"type"`
	Name          string     `json:"name"`
	OtherName     string     `json:"other_name"`
}

// CaseStats holds counts for one case.
type CaseStats struct {
	CaseID         string           `json:"case_id"`
	Entities       int64            `json:"entities"`
	Events         int64            `json:"events"`
	Connections    int64            `json:"connections"`
	Alibis         int64            `json:"alibis"`
	EntitiesByType map[string]int64 `json:"entities_by_type"`
	EventsByType   map[string]int64 `json:"events_by_type"`
}
