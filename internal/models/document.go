package models

// DocumentType is the classifier's label for an ingested document.
type DocumentType string

const (
	DocTypeIncidentReport   DocumentType = "incident_report"
	DocTypeInterview        DocumentType = "interview"
	DocTypeWitnessStatement DocumentType = "witness_statement"
	DocTypeEvidenceLog      DocumentType = "evidence_log"
	DocTypeMedicalRecord    DocumentType = "medical_record"
	DocTypeFinancialRecord  DocumentType = "financial_record"
	DocTypeCommunications   DocumentType = "communications_record"
	DocTypeSurveillance     DocumentType = "surveillance_log"
	DocTypeGeneral          DocumentType = "general_document"
)

// ValidDocumentTypes is the set of all document labels the classifier can emit.
var ValidDocumentTypes = []DocumentType{
	DocTypeIncidentReport,
	DocTypeInterview,
	DocTypeWitnessStatement,
	DocTypeEvidenceLog,
	DocTypeMedicalRecord,
	DocTypeFinancialRecord,
	DocTypeCommunications,
	DocTypeSurveillance,
	DocTypeGeneral,
}

// IsValid returns true if the document type is recognized.
func (dt DocumentType) IsValid() bool {
	for i := range ValidDocumentTypes {
		if dt == ValidDocumentTypes[i] {
			return true
		}
	}
	return false
}

// Document is one input record from the ingestion collaborator.
// RawText is already OCR'd or extracted from the source file.
type Document struct {
	ID           string       `json:"document_id" yaml:"document_id"`
	Filename     string       `json:"filename" yaml:"filename"`
	DocumentType DocumentType `json:"document_type,omitempty" yaml:"document_type,omitempty"`
	RawText      string       `json:"raw_text" yaml:"raw_text"`
}

// Section is a titled slice of normalized document text.
// Offset is the byte offset of Body within the normalized text.
type Section struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Offset int    `json:"offset"`
}
