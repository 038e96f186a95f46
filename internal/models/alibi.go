package models

import "time"

// AlibiStatement is one version of a subject's claimed whereabouts.
// VersionNumber is monotonic per subject, starts at 1 and is never reused.
type AlibiStatement struct {
	ID                     string             `json:"id"`
	CaseID                 string             `json:"case_id"`
	SubjectEntityID        string             `json:"subject_entity_id"`
	VersionNumber          int                `json:"version_number"`
	StatementDate          *time.Time         `json:"statement_date"`
	AlibiStart             *time.Time         `json:"alibi_start"`
	AlibiEnd               *time.Time         `json:"alibi_end"`
	LocationClaimed        string             `json:"location_claimed"`
	ActivityClaimed        string             `json:"activity_claimed"`
	FullStatement          string             `json:"full_statement,omitempty"`
	CorroboratingEntityIDs []string           `json:"corroborating_entity_ids"`
	VerificationStatus     VerificationStatus `json:"verification_status"`
	Confidence             int                `json:"confidence"`
	SourceDocumentID       string             `json:"source_document_id,omitempty"`
}

// InconsistencyKind names the field or relation that contradicts.
type InconsistencyKind string

const (
	InconsistencyLocation      InconsistencyKind = "location"
	InconsistencyActivity      InconsistencyKind = "activity"
	InconsistencyTime          InconsistencyKind = "time"
	InconsistencyCorroboration InconsistencyKind = "corroboration"
	InconsistencyEventLocation InconsistencyKind = "event_location"
	InconsistencyAlibiEvent    InconsistencyKind = "alibi_event"
)

// Inconsistency is derived from alibi versions or timeline events and is
// always regenerated rather than patched.
type Inconsistency struct {
	SubjectEntityID string            `json:"subject_entity_id"`
	Version1        int               `json:"version1,omitempty"`
	Version2        int               `json:"version2,omitempty"`
	Kind            InconsistencyKind `json:"kind"`
	Detail          string            `json:"detail"`
	EventIDs        []string          `json:"event_ids,omitempty"`
}
