package models

// Connection types emitted by the relationship builder.
const (
	ConnAssociatedWith = "associated_with"
	ConnLocatedAt      = "located_at"
	ConnAffiliatedWith = "affiliated_with"
)

// ConnectionConfidence grades how well an edge is supported.
type ConnectionConfidence string

const (
	ConfidenceConfirmed  ConnectionConfidence = "confirmed"
	ConfidenceProbable   ConnectionConfidence = "probable"
	ConfidencePossible   ConnectionConfidence = "possible"
	ConfidenceUnverified ConnectionConfidence = "unverified"
)

// IsValid returns true if the confidence grade is recognized.
func (cc ConnectionConfidence) IsValid() bool {
	switch cc {
	case ConfidenceConfirmed, ConfidenceProbable, ConfidencePossible, ConfidenceUnverified:
		return true
	}
	return false
}

// Connection is a directed, typed edge between two entities.
// Uniqueness is keyed on (from, to, type, label).
type Connection struct {
	ID             string               `json:"id"`
	CaseID         string               `json:"case_id"`
	FromEntityID   string               `json:"from_entity_id"`
	ToEntityID     string               `json:"to_entity_id"`
	ConnectionType string               `json:"connection_type"`
	Label          string               `json:"label,omitempty"`
	Description    string               `json:"description,omitempty"`
	Confidence     ConnectionConfidence `json:"confidence"`
}
