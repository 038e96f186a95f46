package models

// EntityRef names an entity before it has been resolved to an ID.
type EntityRef struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// ExtractedEntity is an entity draft from either the pattern extractors or
// an enrichment source.
type ExtractedEntity struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Role        string     `json:"role,omitempty"`
	Description string     `json:"description,omitempty"`
	Confidence  int        `json:"confidence"`
}

// Ref returns the entity's unresolved reference.
func (e ExtractedEntity) Ref() EntityRef {
	return EntityRef{Name: e.Name, Type: e.Type}
}

// ExtractedEvent is a timeline event draft. Date and Time are normalized
// strings ("2006-01-02", "15:04") when the extractor could normalize them and
// the original text otherwise.
type ExtractedEvent struct {
	Type          EventType   `json:"type"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Date          string      `json:"date,omitempty"`
	Time          string      `json:"time,omitempty"`
	Approximate   bool        `json:"approximate,omitempty"`
	DateInherited bool        `json:"date_inherited,omitempty"`
	Location      string      `json:"location,omitempty"`
	Participants  []EntityRef `json:"participants,omitempty"`
	Confidence    int         `json:"confidence"`
}

// ExtractedConnection is an edge draft between two unresolved entities.
type ExtractedConnection struct {
	From        EntityRef            `json:"from"`
	To          EntityRef            `json:"to"`
	Type        string               `json:"type"`
	Label       string               `json:"label,omitempty"`
	Description string               `json:"description,omitempty"`
	Confidence  ConnectionConfidence `json:"confidence"`
}

// ExtractedAlibi is an alibi statement draft.
type ExtractedAlibi struct {
	Subject       EntityRef   `json:"subject"`
	StatementDate string      `json:"statement_date,omitempty"`
	Date          string      `json:"date,omitempty"`
	StartTime     string      `json:"start_time,omitempty"`
	EndTime       string      `json:"end_time,omitempty"`
	Location      string      `json:"location"`
	Activity      string      `json:"activity,omitempty"`
	FullStatement string      `json:"full_statement,omitempty"`
	Corroborators []EntityRef `json:"corroborators,omitempty"`
	Confidence    int         `json:"confidence"`
}

// Extraction source labels.
const (
	SourcePatterns = "patterns"
	SourceLLM      = "llm"
)

// Extraction holds the four artifact shapes produced for one document chunk.
type Extraction struct {
	DocumentID  string                `json:"document_id"`
	Source      string                `json:"source"`
	Entities    []ExtractedEntity     `json:"entities"`
	Events      []ExtractedEvent      `json:"events"`
	Connections []ExtractedConnection `json:"connections"`
	Alibis      []ExtractedAlibi      `json:"alibis"`
}

// Merge appends other's artifacts to e.
func (e *Extraction) Merge(other *Extraction) {
	if other == nil {
		return
	}
	e.Entities = append(e.Entities, other.Entities...)
	e.Events = append(e.Events, other.Events...)
	e.Connections = append(e.Connections, other.Connections...)
	e.Alibis = append(e.Alibis, other.Alibis...)
}
