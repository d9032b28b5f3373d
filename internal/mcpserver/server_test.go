package mcpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/0anu/VoiceAI/internal/api"
	"github.com/0anu/VoiceAI/internal/orchestrator"
	"github.com/0anu/VoiceAI/internal/recorder"
)

type testServer struct {
	*Server
	sqlCalls atomic.Int32
	dir      string
}

func newTestServer(t *testing.T, sqlStatus int) *testServer {
	t.Helper()
	ts := &testServer{dir: t.TempDir()}

	mux := http.NewServeMux()
	mux.HandleFunc(api.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"healthy"}`)
	})
	mux.HandleFunc(api.PathLoadCSV, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"documents_loaded":3,"document_chunks":42}`)
	})
	mux.HandleFunc(api.PathRetrieveContext, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"context":"table sales(region, revenue)"}`)
	})
	mux.HandleFunc(api.PathGenerateSQL, func(w http.ResponseWriter, r *http.Request) {
		ts.sqlCalls.Add(1)
		w.WriteHeader(sqlStatus)
		if sqlStatus != http.StatusOK {
			io.WriteString(w, `{"error":"model unavailable"}`)
			return
		}
		io.WriteString(w, `{"generated_sql":"SELECT region, SUM(revenue) FROM sales GROUP BY region"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	collector := NewCollector()
	orch := orchestrator.New(orchestrator.Config{
		Backend:    api.New(srv.URL, 5*time.Second),
		Microphone: &recorder.FakeMicrophone{},
		Surface:    collector,
		Logger:     zerolog.Nop(),
		APIURL:     srv.URL,
		SampleRate: recorder.DefaultSampleRate,
	})
	t.Cleanup(orch.Close)

	ts.Server = New(orch, collector, "test", zerolog.Nop())
	return ts
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", result.Content[0])
	return ""
}

func (ts *testServer) loadCSV(t *testing.T) *mcp.CallToolResult {
	t.Helper()
	path := filepath.Join(ts.dir, "sales.csv")
	if err := os.WriteFile(path, []byte("region,revenue\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	result, err := ts.handleLoadCSV(context.Background(), callRequest("load_csv", map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("load_csv: %v", err)
	}
	return result
}

func TestHealthTool(t *testing.T) {
	ts := newTestServer(t, http.StatusOK)

	result, err := ts.handleHealth(context.Background(), callRequest("health", nil))
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if result.IsError {
		t.Errorf("health failed: %s", resultText(t, result))
	}
}

func TestLoadCSVTool(t *testing.T) {
	ts := newTestServer(t, http.StatusOK)

	result := ts.loadCSV(t)
	text := resultText(t, result)
	if result.IsError || !strings.Contains(text, "Documents: 3, Chunks: 42") {
		t.Errorf("result = %q (error=%v)", text, result.IsError)
	}

	// A second load is rejected for the session.
	again := ts.loadCSV(t)
	if !again.IsError {
		t.Error("second load should fail")
	}
}

func TestLoadCSVRejectsNonCSV(t *testing.T) {
	ts := newTestServer(t, http.StatusOK)

	result, _ := ts.handleLoadCSV(context.Background(), callRequest("load_csv", map[string]any{"path": "/tmp/report.xlsx"}))
	if !result.IsError || !strings.Contains(resultText(t, result), "Please select a CSV file") {
		t.Errorf("result = %q", resultText(t, result))
	}
}

func TestLoadCSVMissingPath(t *testing.T) {
	ts := newTestServer(t, http.StatusOK)

	result, err := ts.handleLoadCSV(context.Background(), callRequest("load_csv", map[string]any{}))
	if err != nil {
		t.Fatalf("load_csv: %v", err)
	}
	if !result.IsError {
		t.Error("missing path should be a tool error")
	}
}

func TestAskTool(t *testing.T) {
	ts := newTestServer(t, http.StatusOK)
	ts.loadCSV(t)

	result, err := ts.handleAsk(context.Background(), callRequest("ask", map[string]any{"query": "total revenue by region"}))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	text := resultText(t, result)
	if result.IsError {
		t.Fatalf("ask failed: %s", text)
	}
	for _, want := range []string{"Question: total revenue by region", "table sales(region, revenue)", "GROUP BY region"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

func TestAskBeforeLoad(t *testing.T) {
	ts := newTestServer(t, http.StatusOK)

	result, _ := ts.handleAsk(context.Background(), callRequest("ask", map[string]any{"query": "anything"}))
	if !result.IsError {
		t.Error("ask before load should fail")
	}
	if ts.sqlCalls.Load() != 0 {
		t.Error("no SQL request expected")
	}
}

func TestAskSurfacesServerError(t *testing.T) {
	ts := newTestServer(t, http.StatusServiceUnavailable)
	ts.loadCSV(t)

	result, _ := ts.handleAsk(context.Background(), callRequest("ask", map[string]any{"query": "q"}))
	if !result.IsError || !strings.Contains(resultText(t, result), "model unavailable") {
		t.Errorf("result = %q", resultText(t, result))
	}
}

func TestResetTool(t *testing.T) {
	ts := newTestServer(t, http.StatusOK)
	ts.loadCSV(t)
	ts.handleAsk(context.Background(), callRequest("ask", map[string]any{"query": "q"}))

	result, err := ts.handleReset(context.Background(), callRequest("reset", nil))
	if err != nil || result.IsError {
		t.Fatalf("reset: %v %v", err, result)
	}
	if snap := ts.orch.Snapshot(); snap.Result != nil || snap.State != orchestrator.StateReady {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestFormatResult(t *testing.T) {
	got := FormatResult(orchestrator.QueryResult{OriginalQuery: "q", RetrievedContext: "c", GeneratedSQL: "SELECT 1"})
	want := "Question: q\n\nContext:\nc\n\nSQL:\nSELECT 1"
	if got != want {
		t.Errorf("FormatResult = %q, want %q", got, want)
	}
}
