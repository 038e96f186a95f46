package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/casegraph/internal/api"
	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/persist"
	"github.com/ajitpratap0/casegraph/internal/pipeline"
	"github.com/ajitpratap0/casegraph/internal/review"
	"github.com/ajitpratap0/casegraph/internal/store"
)

const sighting = "John Smith was seen at Riverside Park on March 15, 2024 at 9 pm with Mary Jones."

// newTestServer creates a test HTTP server over a MemoryStore.
func newTestServer(t *testing.T, authToken string) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := store.NewMemoryStore()
	p := pipeline.New(st, nil, pipeline.Options{
		ElementTimeout: 2 * time.Second,
		Write:          persist.Options{Timeout: time.Second},
	}, logger)
	srv := api.NewServer(st, p, review.NewManager(st, 0, 0, logger), logger, authToken)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func doRequest(t *testing.T, method, url string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(context.Background(), method, url, body)
	} else {
		req, err = http.NewRequestWithContext(context.Background(), method, url, http.NoBody)
	}
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func ingest(t *testing.T, ts *httptest.Server, token string) pipeline.Report {
	t.Helper()
	body := jsonBody(t, map[string]any{
		"documents": []map[string]any{{
			"document_id":   "doc-1",
			"filename":      "report.txt",
			"document_type": "incident_report",
			"raw_text":      sighting,
		}},
	})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/cases/case-1/documents", body, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report pipeline.Report
	decode(t, resp, &report)
	return report
}

func TestAPI_Healthz(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]string
	decode(t, resp, &result)
	assert.Equal(t, "ok", result["status"])
}

func TestAPI_IngestAndRead(t *testing.T) {
	ts, _ := newTestServer(t, "")

	report := ingest(t, ts, "")
	assert.Equal(t, "case-1", report.CaseID)
	assert.Equal(t, 3, report.EntitiesCreated)
	assert.Equal(t, 1, report.EventsCreated)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/entities?type=person", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entities struct {
		Entities []models.Entity `json:"entities"`
	}
	decode(t, resp, &entities)
	require.Len(t, entities.Entities, 2)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/entities/"+entities.Entities[0].ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var one models.Entity
	decode(t, resp, &one)
	assert.Equal(t, entities.Entities[0].Name, one.Name)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/entities?q=smith", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &entities)
	require.Len(t, entities.Entities, 1)
	assert.Equal(t, "John Smith", entities.Entities[0].Name)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/events", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events struct {
		Events []models.TimelineEvent `json:"events"`
	}
	decode(t, resp, &events)
	require.Len(t, events.Events, 1)
	assert.Equal(t, "Sighting: John Smith", events.Events[0].Title)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/connections", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conns struct {
		Connections []models.Connection `json:"connections"`
	}
	decode(t, resp, &conns)
	assert.Len(t, conns.Connections, 3)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/stats", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.CaseStats
	decode(t, resp, &stats)
	assert.Equal(t, int64(3), stats.Entities)
	assert.Equal(t, int64(1), stats.Events)
}

func TestAPI_EmptyCaseReturnsEmptyLists(t *testing.T) {
	ts, _ := newTestServer(t, "")

	for _, path := range []string{"alibis", "inconsistencies", "events", "connections"} {
		resp := doRequest(t, http.MethodGet, ts.URL+"/v1/cases/none/"+path, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		var out map[string][]any
		decode(t, resp, &out)
		list, ok := out[path]
		assert.True(t, ok, path)
		assert.Empty(t, list, path)
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/cases/none/review", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep review.Report
	decode(t, resp, &rep)
	assert.Equal(t, "none", rep.CaseID)
	assert.Empty(t, rep.Items)
}

func TestAPI_IngestValidation(t *testing.T) {
	ts, _ := newTestServer(t, "")

	tests := []struct {
		name string
		body *bytes.Buffer
	}{
		{"malformed", bytes.NewBufferString("{not json")},
		{"no documents", jsonBody(t, map[string]any{"documents": []any{}})},
		{"empty text", jsonBody(t, map[string]any{"documents": []map[string]any{{"raw_text": "  "}}})},
		{"bad type", jsonBody(t, map[string]any{"documents": []map[string]any{{"raw_text": "x", "document_type": "memo"}}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, ts.URL+"/v1/cases/case-1/documents", tt.body, "")
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAPI_EntityErrors(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/entities/missing", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/entities?type=alien", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/entities?q=x&limit=-1", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Auth(t *testing.T) {
	ts, _ := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/stats", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/stats", nil, "wrong")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/cases/case-1/stats", nil, "secret")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health stays open.
	resp = doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	report := ingest(t, ts, "secret")
	assert.Equal(t, 1, report.EventsCreated)
}
