// Package mcp implements the Model Context Protocol server for casegraph.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/pipeline"
	"github.com/ajitpratap0/casegraph/internal/review"
	"github.com/ajitpratap0/casegraph/internal/store"
)

// defaultEntityLimit caps list_entities when a query is given.
const defaultEntityLimit = 20

// Server wraps an MCPServer with casegraph dependencies.
type Server struct {
	mcp      *mcpserver.MCPServer
	st       store.GraphStore
	pipeline *pipeline.Pipeline
	reviewer *review.Manager
	logger   *slog.Logger
}

// NewServer creates a new MCP server. If st or p are nil the corresponding
// tool calls return an error result instead of panicking.
func NewServer(st store.GraphStore, p *pipeline.Pipeline, rev *review.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		st:       st,
		pipeline: p,
		reviewer: rev,
		logger:   logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"casegraph",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildIngestTool(), s.handleIngest)
	mcpSrv.AddTool(buildListEntitiesTool(), s.handleListEntities)
	mcpSrv.AddTool(buildTimelineTool(), s.handleTimeline)
	mcpSrv.AddTool(buildInconsistenciesTool(), s.handleInconsistencies)
	mcpSrv.AddTool(buildReviewTool(), s.handleReview)
	mcpSrv.AddTool(buildStatsTool(), s.handleStats)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleIngest is the exported handler for the "ingest_document" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleIngest(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleIngest(ctx, req)
}

// HandleListEntities is the exported handler for the "list_entities" tool.
func (s *Server) HandleListEntities(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListEntities(ctx, req)
}

// HandleTimeline is the exported handler for the "timeline" tool.
func (s *Server) HandleTimeline(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleTimeline(ctx, req)
}

// HandleInconsistencies is the exported handler for the "alibi_inconsistencies" tool.
func (s *Server) HandleInconsistencies(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleInconsistencies(ctx, req)
}

// HandleReview is the exported handler for the "review_queue" tool.
func (s *Server) HandleReview(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleReview(ctx, req)
}

// HandleStats is the exported handler for the "case_stats" tool.
func (s *Server) HandleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStats(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

func caseID(req mcpgo.CallToolRequest) (string, *mcpgo.CallToolResult) {
	id := strings.TrimSpace(req.GetString("case_id", ""))
	if id == "" {
		return "", mcpgo.NewToolResultError("case_id is required and must not be empty")
	}
	return id, nil
}

func withCase(opts ...mcpgo.ToolOption) []mcpgo.ToolOption {
	return append([]mcpgo.ToolOption{
		mcpgo.WithString("case_id",
			mcpgo.Required(),
			mcpgo.Description("Case identifier"),
		),
	}, opts...)
}

// --- tool definitions ---

func buildIngestTool() mcpgo.Tool {
	return mcpgo.NewTool("ingest_document", withCase(
		mcpgo.WithDescription("Extract entities, timeline events, connections and alibi statements from a document and add them to the case graph."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("Raw document text"),
		),
		mcpgo.WithString("filename",
			mcpgo.Description("Original file name, used as a classification hint"),
		),
		mcpgo.WithString("document_type",
			mcpgo.Description("Document type; classified automatically when omitted"),
		),
		mcpgo.WithString("document_id",
			mcpgo.Description("Stable document identifier; derived from the content when omitted"),
		),
	)...)
}

func buildListEntitiesTool() mcpgo.Tool {
	return mcpgo.NewTool("list_entities", withCase(
		mcpgo.WithDescription("List the case's entities, optionally filtered by type or name."),
		mcpgo.WithString("type",
			mcpgo.Description("Entity type: person, location, evidence, vehicle, organization or other"),
		),
		mcpgo.WithString("query",
			mcpgo.Description("Case-insensitive name substring"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of results for a query (default: 20)"),
		),
	)...)
}

func buildTimelineTool() mcpgo.Tool {
	return mcpgo.NewTool("timeline", withCase(
		mcpgo.WithDescription("Chronological timeline events for the case. Events without a time come last."),
	)...)
}

func buildInconsistenciesTool() mcpgo.Tool {
	return mcpgo.NewTool("alibi_inconsistencies", withCase(
		mcpgo.WithDescription("Contradictions between alibi versions and against the timeline."),
		mcpgo.WithString("subject_entity_id",
			mcpgo.Description("Only report inconsistencies for this subject"),
		),
	)...)
}

func buildReviewTool() mcpgo.Tool {
	return mcpgo.NewTool("review_queue", withCase(
		mcpgo.WithDescription("Items an investigator should review, most severe first."),
		mcpgo.WithString("severity",
			mcpgo.Description("Only return items of this severity: high, medium or low"),
		),
	)...)
}

func buildStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("case_stats", withCase(
		mcpgo.WithDescription("Artifact counts for the case, broken down by entity and event type."),
	)...)
}

// --- tool handlers ---

// handleIngest runs the pipeline over a single document.
func (s *Server) handleIngest(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.pipeline == nil {
		return mcpgo.NewToolResultError("pipeline is unavailable"), nil
	}
	id, bad := caseID(req)
	if bad != nil {
		return bad, nil
	}

	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcpgo.NewToolResultError("text is required and must not be empty"), nil
	}
	doc := models.Document{
		ID:       req.GetString("document_id", ""),
		Filename: req.GetString("filename", ""),
		RawText:  text,
	}
	if t := req.GetString("document_type", ""); t != "" {
		doc.DocumentType = models.DocumentType(t)
		if !doc.DocumentType.IsValid() {
			return mcpgo.NewToolResultErrorf("invalid document_type %q", t), nil
		}
	}

	report, err := s.pipeline.Run(ctx, id, []models.Document{doc})
	if err != nil {
		return mcpgo.NewToolResultErrorf("ingest failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: ingested document", "case_id", id, "events_created", report.EventsCreated)
	return toolResultJSON(report)
}

func (s *Server) handleListEntities(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	id, bad := caseID(req)
	if bad != nil {
		return bad, nil
	}

	entityType := models.EntityType(req.GetString("type", ""))
	if entityType != "" && !entityType.IsValid() {
		return mcpgo.NewToolResultErrorf("invalid type %q", entityType), nil
	}

	var (
		entities []models.Entity
		err      error
	)
	if query := req.GetString("query", ""); strings.TrimSpace(query) != "" {
		limit := req.GetInt("limit", defaultEntityLimit)
		if limit <= 0 {
			limit = defaultEntityLimit
		}
		entities, err = s.st.SearchEntities(ctx, id, query, limit)
		if err == nil && entityType != "" {
			filtered := entities[:0]
			for i := range entities {
				if entities[i].Type == entityType {
					filtered = append(filtered, entities[i])
				}
			}
			entities = filtered
		}
	} else {
		entities, err = s.st.ListEntities(ctx, id, entityType)
	}
	if err != nil {
		return mcpgo.NewToolResultErrorf("listing entities failed: %s", err.Error()), nil
	}
	if entities == nil {
		entities = []models.Entity{}
	}
	return toolResultJSON(map[string]any{"entities": entities})
}

func (s *Server) handleTimeline(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	id, bad := caseID(req)
	if bad != nil {
		return bad, nil
	}

	events, err := s.st.ListTimelineEvents(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("listing events failed: %s", err.Error()), nil
	}
	if events == nil {
		events = []models.TimelineEvent{}
	}
	return toolResultJSON(map[string]any{"events": events})
}

func (s *Server) handleInconsistencies(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	rep, bad := s.runReview(ctx, req)
	if bad != nil {
		return bad, nil
	}

	subject := req.GetString("subject_entity_id", "")
	out := []models.Inconsistency{}
	for _, inc := range rep.Inconsistencies {
		if subject == "" || inc.SubjectEntityID == subject {
			out = append(out, inc)
		}
	}
	return toolResultJSON(map[string]any{"inconsistencies": out})
}

func (s *Server) handleReview(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	rep, bad := s.runReview(ctx, req)
	if bad != nil {
		return bad, nil
	}

	severity := models.Severity(req.GetString("severity", ""))
	switch severity {
	case "":
		return toolResultJSON(rep)
	case models.SeverityHigh, models.SeverityMedium, models.SeverityLow:
	default:
		return mcpgo.NewToolResultErrorf("invalid severity %q", severity), nil
	}
	items := []models.ReviewItem{}
	for _, item := range rep.Items {
		if item.Severity == severity {
			items = append(items, item)
		}
	}
	return toolResultJSON(map[string]any{"case_id": rep.CaseID, "items": items})
}

func (s *Server) runReview(ctx context.Context, req mcpgo.CallToolRequest) (*review.Report, *mcpgo.CallToolResult) {
	if s.reviewer == nil {
		return nil, mcpgo.NewToolResultError("review is unavailable")
	}
	id, bad := caseID(req)
	if bad != nil {
		return nil, bad
	}
	rep, err := s.reviewer.Run(ctx, id)
	if err != nil {
		return nil, mcpgo.NewToolResultErrorf("review failed: %s", err.Error())
	}
	return rep, nil
}

func (s *Server) handleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	id, bad := caseID(req)
	if bad != nil {
		return bad, nil
	}

	stats, err := s.st.Stats(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}
	return toolResultJSON(stats)
}
