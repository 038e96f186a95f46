// Package enrich obtains extraction drafts from an external language-model
// service. It is an alternative candidate source behind the same contract as
// the pattern extractors; callers fall back to patterns on any error.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/pkg/textutil"
	"github.com/ajitpratap0/casegraph/pkg/tokenizer"
)

// ErrEmptyResponse is returned when the service answers without text.
var ErrEmptyResponse = errors.New("empty response from enrichment service")

// Request is one document chunk submitted for enrichment.
type Request struct {
	DocumentID   string
	DocumentType models.DocumentType
	Text         string
}

// Source produces an Extraction for a document chunk.
type Source interface {
	Name() string
	Extract(ctx context.Context, req Request) (*models.Extraction, error)
}

// Config selects and tunes the enrichment source.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	MaxTokens         int
	RequestsPerSecond float64
	Burst             int
	CacheTTL          time.Duration
}

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// New builds the configured source wrapped in rate limiting and caching.
// It returns nil without error when no provider or no API key is configured,
// which callers treat as "patterns only".
func New(cfg Config, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Provider == "" {
		return nil, nil
	}
	if cfg.APIKey == "" {
		logger.Warn("enrichment provider configured without api key, using patterns only", "provider", cfg.Provider)
		return nil, nil
	}

	var src Source
	switch cfg.Provider {
	case ProviderAnthropic:
		src = NewClaudeSource(cfg, logger)
	case ProviderOpenAI:
		src = NewOpenAISource(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown enrichment provider %q", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		src = NewLimitedSource(src, cfg.RequestsPerSecond, cfg.Burst)
	}
	if cfg.CacheTTL > 0 {
		src = NewCachedSource(src, cfg.CacheTTL)
	}
	logger.Info("enrichment enabled", "provider", cfg.Provider, "model", cfg.Model)
	return src, nil
}

const systemPrompt = "You are a precise investigative fact extraction system. Output only valid JSON."

// promptTemplate embeds document text in an XML tag; the text is escaped so
// it cannot close the tag.
const promptTemplate = `Extract the case facts from the document below.

Return one JSON object with four arrays:
- "entities": {"name", "type", "role", "description", "confidence"}
  type is one of "person", "location", "evidence", "vehicle", "organization", "other".
- "events": {"type", "title", "description", "date", "time", "approximate", "location", "participants", "confidence"}
  type is one of "phone_call", "sighting", "evidence_found", "transaction", "witness_account",
  "victim_action", "suspect_movement", "other". date is YYYY-MM-DD, time is HH:MM (24h);
  leave either empty when the document does not state it. participants are {"name", "type"}.
- "connections": {"from", "to", "type", "label", "description", "confidence"}
  from/to are {"name", "type"}; type is "associated_with", "located_at" or "affiliated_with";
  confidence is one of "confirmed", "probable", "possible", "unverified".
- "alibis": {"subject", "statement_date", "date", "start_time", "end_time", "location", "activity",
  "full_statement", "corroborators", "confidence"} for every claim of whereabouts.
Confidence values for entities, events and alibis are integers 0-100.
Only report facts stated in the document. Return empty arrays when nothing applies.

<document type="%s">%s</document>`

// maxDocumentTokens caps the document text sent in one prompt.
const maxDocumentTokens = 8000

// BuildPrompt renders the extraction prompt for req.
func BuildPrompt(req Request) string {
	text := tokenizer.TruncateToTokenBudget(req.Text, maxDocumentTokens)
	return fmt.Sprintf(promptTemplate, req.DocumentType, textutil.EscapeXML(text))
}

// ParseResponse decodes a service response into a sanitized Extraction.
// Markdown code fences around the JSON are tolerated.
func ParseResponse(raw, documentID string) (*models.Extraction, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, ErrEmptyResponse
	}
	var ex models.Extraction
	if err := json.Unmarshal([]byte(body), &ex); err != nil {
		return nil, fmt.Errorf("parsing enrichment response: %w (raw: %s)", err, textutil.Truncate(body, 200))
	}
	ex.DocumentID = documentID
	ex.Source = models.SourceLLM
	sanitize(&ex)
	return &ex, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line, e.g. ```json.
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func sanitize(ex *models.Extraction) {
	entities := ex.Entities[:0]
	for _, e := range ex.Entities {
		e.Name = textutil.CollapseSpace(e.Name)
		if e.Name == "" {
			continue
		}
		e.Type = entityType(e.Type)
		e.Confidence = clamp(e.Confidence)
		entities = append(entities, e)
	}
	ex.Entities = entities

	for i := range ex.Events {
		ev := &ex.Events[i]
		if !ev.Type.IsValid() {
			ev.Type = models.EventOther
		}
		ev.Confidence = clamp(ev.Confidence)
		ev.Participants = refs(ev.Participants)
	}

	conns := ex.Connections[:0]
	for _, c := range ex.Connections {
		c.From.Type = entityType(c.From.Type)
		c.To.Type = entityType(c.To.Type)
		if c.From.Name == "" || c.To.Name == "" {
			continue
		}
		if !c.Confidence.IsValid() {
			c.Confidence = models.ConfidenceUnverified
		}
		conns = append(conns, c)
	}
	ex.Connections = conns

	alibis := ex.Alibis[:0]
	for _, a := range ex.Alibis {
		if a.Subject.Name == "" || a.Location == "" {
			continue
		}
		a.Subject.Type = models.EntityTypePerson
		a.Confidence = clamp(a.Confidence)
		a.Corroborators = refs(a.Corroborators)
		alibis = append(alibis, a)
	}
	ex.Alibis = alibis
}

func entityType(t models.EntityType) models.EntityType {
	t = models.EntityType(strings.ToLower(string(t)))
	if !t.IsValid() {
		return models.EntityTypeOther
	}
	return t
}

func refs(in []models.EntityRef) []models.EntityRef {
	out := in[:0]
	for _, r := range in {
		if r.Name == "" {
			continue
		}
		r.Type = entityType(r.Type)
		out = append(out, r)
	}
	return out
}

func clamp(v int) int {
	return max(0, min(100, v))
}
