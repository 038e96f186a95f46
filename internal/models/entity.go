package models

import "time"

// EntityType classifies the kind of case participant.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeLocation     EntityType = "location"
	EntityTypeEvidence     EntityType = "evidence"
	EntityTypeVehicle      EntityType = "vehicle"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeOther        EntityType = "other"
)

// ValidEntityTypes is the set of all valid entity types.
var ValidEntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeLocation,
	EntityTypeEvidence,
	EntityTypeVehicle,
	EntityTypeOrganization,
	EntityTypeOther,
}

// IsValid returns true if the entity type is recognized.
func (et EntityType) IsValid() bool {
	for i := range ValidEntityTypes {
		if et == ValidEntityTypes[i] {
			return true
		}
	}
	return false
}

// Entity is a canonical case participant node.
// Within one case no two entities share a case-insensitive name of the same type.
type Entity struct {
	ID          string     `json:"id"`
	CaseID      string     `json:"case_id"`
	Type        EntityType `json:"type"`
	Name        string     `json:"name"`
	Role        string     `json:"role,omitempty"`
	Description string     `json:"description,omitempty"`
	Confidence  int        `json:"confidence"`
	FirstSeenAt time.Time  `json:"first_seen_at"`

	// Color and Icon are display hints assigned on creation.
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`

	SourceDocumentID string `json:"source_document_id,omitempty"`
}
