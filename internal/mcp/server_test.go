package mcp_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	casemcp "github.com/ajitpratap0/casegraph/internal/mcp"
	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/persist"
	"github.com/ajitpratap0/casegraph/internal/pipeline"
	"github.com/ajitpratap0/casegraph/internal/review"
	"github.com/ajitpratap0/casegraph/internal/store"
)

func newMCPServer(t *testing.T) (*casemcp.Server, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := store.NewMemoryStore()
	p := pipeline.New(st, nil, pipeline.Options{
		ElementTimeout: 2 * time.Second,
		Write:          persist.Options{Timeout: time.Second},
	}, logger)
	return casemcp.NewServer(st, p, review.NewManager(st, 0, 0, logger), logger), st
}

// makeReq builds a CallToolRequest with the given arguments.
func makeReq(toolName string, args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args
	return req
}

// textContent extracts the first TextContent string from a CallToolResult.
func textContent(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content item")
	tc, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func decodeResult(t *testing.T, result *mcpgo.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError, "tool returned error: %s", textContent(t, result))
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), v))
}

func ingestAlibis(t *testing.T, srv *casemcp.Server) {
	t.Helper()
	docs := []map[string]any{
		{
			"case_id":       "case-1",
			"document_id":   "interview-1",
			"document_type": "interview",
			"text": "Interviewee: Jane Doe\nInterviewed by: Maria Reyes\nDate: 03/20/2024\n\n" +
				"Q: Where were you on March 15, 2024?\nA: I was at Joe's Bar from 9 pm until 11 pm with Tom Baker.",
		},
		{
			"case_id":       "case-1",
			"document_id":   "statement-1",
			"document_type": "witness_statement",
			"text":          "Jane Doe stated that she was at home sleeping on the night of March 15, 2024.",
		},
	}
	for _, args := range docs {
		result, err := srv.HandleIngest(context.Background(), makeReq("ingest_document", args))
		require.NoError(t, err)
		var report pipeline.Report
		decodeResult(t, result, &report)
		assert.Equal(t, 1, report.AlibisCreated)
	}
}

func TestMCPIngest_AndList(t *testing.T) {
	srv, st := newMCPServer(t)
	ctx := context.Background()

	result, err := srv.HandleIngest(ctx, makeReq("ingest_document", map[string]any{
		"case_id":       "case-1",
		"document_type": "incident_report",
		"text":          "John Smith was seen at Riverside Park on March 15, 2024 at 9 pm with Mary Jones.",
	}))
	require.NoError(t, err)
	var report pipeline.Report
	decodeResult(t, result, &report)
	assert.Equal(t, 1, report.EventsCreated)

	stats, err := st.Stats(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Entities)

	result, err = srv.HandleListEntities(ctx, makeReq("list_entities", map[string]any{
		"case_id": "case-1",
		"type":    "person",
	}))
	require.NoError(t, err)
	var listed struct {
		Entities []models.Entity `json:"entities"`
	}
	decodeResult(t, result, &listed)
	assert.Len(t, listed.Entities, 2)

	result, err = srv.HandleListEntities(ctx, makeReq("list_entities", map[string]any{
		"case_id": "case-1",
		"query":   "riverside",
		"type":    "location",
	}))
	require.NoError(t, err)
	decodeResult(t, result, &listed)
	require.Len(t, listed.Entities, 1)
	assert.Equal(t, "Riverside Park", listed.Entities[0].Name)

	result, err = srv.HandleTimeline(ctx, makeReq("timeline", map[string]any{"case_id": "case-1"}))
	require.NoError(t, err)
	var timeline struct {
		Events []models.TimelineEvent `json:"events"`
	}
	decodeResult(t, result, &timeline)
	require.Len(t, timeline.Events, 1)
	assert.Equal(t, models.EventSighting, timeline.Events[0].Type)

	result, err = srv.HandleStats(ctx, makeReq("case_stats", map[string]any{"case_id": "case-1"}))
	require.NoError(t, err)
	var got models.CaseStats
	decodeResult(t, result, &got)
	assert.Equal(t, int64(1), got.Events)
}

func TestMCPInconsistenciesAndReview(t *testing.T) {
	srv, _ := newMCPServer(t)
	ctx := context.Background()
	ingestAlibis(t, srv)

	result, err := srv.HandleInconsistencies(ctx, makeReq("alibi_inconsistencies", map[string]any{"case_id": "case-1"}))
	require.NoError(t, err)
	var incs struct {
		Inconsistencies []models.Inconsistency `json:"inconsistencies"`
	}
	decodeResult(t, result, &incs)
	require.NotEmpty(t, incs.Inconsistencies)

	kinds := map[models.InconsistencyKind]bool{}
	for _, inc := range incs.Inconsistencies {
		kinds[inc.Kind] = true
	}
	assert.True(t, kinds[models.InconsistencyLocation])

	result, err = srv.HandleInconsistencies(ctx, makeReq("alibi_inconsistencies", map[string]any{
		"case_id":           "case-1",
		"subject_entity_id": "nobody",
	}))
	require.NoError(t, err)
	decodeResult(t, result, &incs)
	assert.Empty(t, incs.Inconsistencies)

	result, err = srv.HandleReview(ctx, makeReq("review_queue", map[string]any{
		"case_id":  "case-1",
		"severity": "high",
	}))
	require.NoError(t, err)
	var queue struct {
		Items []models.ReviewItem `json:"items"`
	}
	decodeResult(t, result, &queue)
	require.NotEmpty(t, queue.Items)
	for _, item := range queue.Items {
		assert.Equal(t, models.SeverityHigh, item.Severity)
	}
}

func TestMCP_ArgumentErrors(t *testing.T) {
	srv, _ := newMCPServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error)
		args map[string]any
	}{
		{"ingest without case", srv.HandleIngest, map[string]any{"text": "x"}},
		{"ingest without text", srv.HandleIngest, map[string]any{"case_id": "c", "text": "  "}},
		{"ingest bad type", srv.HandleIngest, map[string]any{"case_id": "c", "text": "x", "document_type": "memo"}},
		{"list bad type", srv.HandleListEntities, map[string]any{"case_id": "c", "type": "alien"}},
		{"timeline without case", srv.HandleTimeline, map[string]any{}},
		{"review bad severity", srv.HandleReview, map[string]any{"case_id": "c", "severity": "urgent"}},
		{"stats without case", srv.HandleStats, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.call(ctx, makeReq("tool", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestMCP_NilDependencies(t *testing.T) {
	srv := casemcp.NewServer(nil, nil, nil, nil)
	ctx := context.Background()
	args := map[string]any{"case_id": "c", "text": "x"}

	for _, call := range []func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error){
		srv.HandleIngest, srv.HandleListEntities, srv.HandleTimeline,
		srv.HandleInconsistencies, srv.HandleReview, srv.HandleStats,
	} {
		result, err := call(ctx, makeReq("tool", args))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	}
	assert.NotNil(t, srv.MCPServer())
}
