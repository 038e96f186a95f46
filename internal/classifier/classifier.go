package classifier

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
)

// Classifier labels a document with its type.
type Classifier interface {
	Classify(text, filename string) models.DocumentType
}

// HeuristicClassifier applies an ordered keyword/structure rule set.
// The first matching rule wins; with no match the label is general_document.
type HeuristicClassifier struct {
	rules  []rule
	logger *slog.Logger
}

// NewClassifier creates a new heuristic document classifier.
func NewClassifier(logger *slog.Logger) *HeuristicClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicClassifier{rules: defaultRules(), logger: logger}
}

// rule matches against lower-cased text and a lower-cased file base name.
type rule struct {
	label models.DocumentType
	name  string
	match func(text, file string) bool
}

var (
	qaQuestionRE = regexp.MustCompile(`(?m)^\s*(?:q|question)\s*[:.)-]`)
	qaAnswerRE   = regexp.MustCompile(`(?m)^\s*(?:a|answer)\s*[:.)-]`)
	caseNumberRE = regexp.MustCompile(`\bcase\s*(?:number|no\.?|#)`)
	emailHdrRE   = regexp.MustCompile(`(?m)^\s*from:.*\n(?:.*\n){0,3}?\s*to:`)
)

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func defaultRules() []rule {
	return []rule{
		{
			label: models.DocTypeIncidentReport,
			name:  "report_with_case_number",
			match: func(text, file string) bool {
				hasReport := containsAny(text, "incident report", "police report", "offense report", "investigation report", "supplemental report")
				return hasReport && caseNumberRE.MatchString(text)
			},
		},
		{
			label: models.DocTypeInterview,
			name:  "question_answer_pair",
			match: func(text, _ string) bool {
				return qaQuestionRE.MatchString(text) && qaAnswerRE.MatchString(text)
			},
		},
		{
			label: models.DocTypeInterview,
			name:  "interview_keyword",
			match: func(text, file string) bool {
				return containsAny(text, "interview", "interrogation", "transcript of") ||
					containsAny(file, "interview", "transcript")
			},
		},
		{
			label: models.DocTypeWitnessStatement,
			name:  "statement_keyword",
			match: func(text, file string) bool {
				return containsAny(text, "witness statement", "sworn statement", "voluntary statement", "statement of witness", "affidavit") ||
					containsAny(file, "statement", "affidavit")
			},
		},
		{
			label: models.DocTypeEvidenceLog,
			name:  "evidence_custody",
			match: func(text, file string) bool {
				return containsAny(text, "evidence log", "chain of custody", "property receipt", "evidence inventory", "evidence item") ||
					containsAny(file, "evidence")
			},
		},
		{
			label: models.DocTypeMedicalRecord,
			name:  "medical_terms",
			match: func(text, file string) bool {
				return containsAny(text, "autopsy", "medical examiner", "cause of death", "toxicology", "patient", "diagnosis", "emergency room") ||
					containsAny(file, "autopsy", "medical")
			},
		},
		{
			label: models.DocTypeFinancialRecord,
			name:  "financial_terms",
			match: func(text, file string) bool {
				return containsAny(text, "bank statement", "account number", "wire transfer", "transaction history", "account balance", "routing number") ||
					containsAny(file, "bank", "financial", "statement_of_account")
			},
		},
		{
			label: models.DocTypeCommunications,
			name:  "communication_records",
			match: func(text, file string) bool {
				return containsAny(text, "call detail", "phone records", "call log", "text message", "sms", "subscriber information") ||
					emailHdrRE.MatchString(text) ||
					containsAny(file, "phone", "sms", "email", "cdr")
			},
		},
		{
			label: models.DocTypeSurveillance,
			name:  "surveillance_terms",
			match: func(text, file string) bool {
				return containsAny(text, "cctv", "surveillance", "camera footage", "video footage", "security camera") ||
					containsAny(file, "cctv", "surveillance", "camera")
			},
		},
	}
}

// Classify determines the document type from its normalized text and filename.
func (c *HeuristicClassifier) Classify(text, filename string) models.DocumentType {
	lower := strings.ToLower(text)
	file := strings.ToLower(filepath.Base(filename))
	if file == "." {
		file = ""
	}

	for i := range c.rules {
		if c.rules[i].match(lower, file) {
			c.logger.Debug("classified document", "type", c.rules[i].label, "rule", c.rules[i].name, "file", filename)
			return c.rules[i].label
		}
	}

	c.logger.Debug("classified document", "type", models.DocTypeGeneral, "rule", "default", "file", filename)
	return models.DocTypeGeneral
}
