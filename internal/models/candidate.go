package models

// CandidateCategory names the fact category an extractor produces.
type CandidateCategory string

const (
	CategoryDate          CandidateCategory = "date"
	CategoryTime          CandidateCategory = "time"
	CategoryLocation      CandidateCategory = "location"
	CategoryPerson        CandidateCategory = "person"
	CategoryOrganization  CandidateCategory = "organization"
	CategoryVehicle       CandidateCategory = "vehicle"
	CategoryCommunication CandidateCategory = "communication"
	CategoryFinancial     CandidateCategory = "financial"
	CategoryEvidence      CandidateCategory = "evidence"
)

// Candidate is an extractor's raw hit. It is never persisted directly.
type Candidate struct {
	Category         CandidateCategory `json:"category"`
	OriginalText     string            `json:"original_text"`
	NormalizedValue  string            `json:"normalized_value"`
	Context          string            `json:"context"`
	Confidence       int               `json:"confidence"`
	SourceDocumentID string            `json:"source_document_id,omitempty"`
	Pattern          string            `json:"pattern"`

	// Start and End are byte offsets of OriginalText within the scanned text.
	Start int `json:"start"`
	End   int `json:"end"`

	// Attributes carries category-specific hints such as "role" for people
	// or "kind" for financial instruments.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the named attribute or "".
func (c *Candidate) Attr(name string) string {
	if c.Attributes == nil {
		return ""
	}
	return c.Attributes[name]
}

// ClampConfidence bounds a heuristic score to [0, 100].
func ClampConfidence(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
