package models

import "time"

// EventType is the timeline event category.
type EventType string

const (
	EventPhoneCall       EventType = "phone_call"
	EventSighting        EventType = "sighting"
	EventEvidenceFound   EventType = "evidence_found"
	EventTransaction     EventType = "transaction"
	EventWitnessAccount  EventType = "witness_account"
	EventVictimAction    EventType = "victim_action"
	EventSuspectMovement EventType = "suspect_movement"
	EventOther           EventType = "other"
)

// ValidEventTypes is the set of all valid event types.
var ValidEventTypes = []EventType{
	EventPhoneCall,
	EventSighting,
	EventEvidenceFound,
	EventTransaction,
	EventWitnessAccount,
	EventVictimAction,
	EventSuspectMovement,
	EventOther,
}

// IsValid returns true if the event type is recognized.
func (et EventType) IsValid() bool {
	for i := range ValidEventTypes {
		if et == ValidEventTypes[i] {
			return true
		}
	}
	return false
}

// TimePrecision describes how much of an event time is known.
type TimePrecision string

const (
	PrecisionExact       TimePrecision = "exact"
	PrecisionApproximate TimePrecision = "approximate"
	PrecisionEstimated   TimePrecision = "estimated"
	PrecisionUnknown     TimePrecision = "unknown"
)

// VerificationStatus is owned by the external reviewer workflow.
type VerificationStatus string

const (
	StatusVerified   VerificationStatus = "verified"
	StatusUnverified VerificationStatus = "unverified"
	StatusDisputed   VerificationStatus = "disputed"
	StatusFalse      VerificationStatus = "false"
)

// TimelineEvent is a time-stamped occurrence in a case.
// EventTime is nil when the source date could not be parsed.
type TimelineEvent struct {
	ID                 string             `json:"id"`
	CaseID             string             `json:"case_id"`
	Type               EventType          `json:"type"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	EventTime          *time.Time         `json:"event_time"`
	TimePrecision      TimePrecision      `json:"time_precision"`
	Location           string             `json:"location,omitempty"`
	ParticipantIDs     []string           `json:"participant_entity_ids"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Confidence         int                `json:"confidence_score"`
	SourceDocumentID   string             `json:"source_document_id,omitempty"`
}
