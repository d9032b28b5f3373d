package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/0anu/VoiceAI/internal/api"
	"github.com/0anu/VoiceAI/internal/journal"
	"github.com/0anu/VoiceAI/internal/orchestrator"
	"github.com/0anu/VoiceAI/internal/recorder"
)

// testEnv is a model wired to a real orchestrator and a mock API. Surface
// messages are queued and delivered by pump.
type testEnv struct {
	model   Model
	store   *journal.Store
	dir     string
	clip    *bytes.Buffer
	mu      sync.Mutex
	pending []tea.Msg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

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
		io.WriteString(w, `{"generated_sql":"SELECT region, SUM(revenue) FROM sales GROUP BY region"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store, err := journal.Open(journal.MemoryPath)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{store: store, dir: t.TempDir(), clip: &bytes.Buffer{}}
	surface := NewSurface()
	surface.Attach(func(msg tea.Msg) {
		env.mu.Lock()
		env.pending = append(env.pending, msg)
		env.mu.Unlock()
	})

	orch := orchestrator.New(orchestrator.Config{
		Backend:    api.New(srv.URL, 5*time.Second),
		Microphone: &recorder.FakeMicrophone{},
		Surface:    surface,
		Journal:    store,
		Logger:     zerolog.Nop(),
		APIURL:     srv.URL,
		SampleRate: recorder.DefaultSampleRate,
	})
	t.Cleanup(orch.Close)

	env.model = New(Options{
		Orchestrator: orch,
		Journal:      store,
		APIURL:       srv.URL,
		StartDir:     env.dir,
		Clipboard:    env.clip,
	})
	env.apply(tea.WindowSizeMsg{Width: 100, Height: 40})
	return env
}

func (e *testEnv) apply(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	e.model, cmd = applyUpdate(e.model, msg)
	return cmd
}

// run executes a handler command synchronously and delivers everything the
// orchestrator reported, then the handler's own result.
func (e *testEnv) run(t *testing.T, cmd tea.Cmd) HandlerDoneMsg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	done, ok := cmd().(HandlerDoneMsg)
	if !ok {
		t.Fatalf("command did not run a handler")
	}
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, msg := range pending {
		e.apply(msg)
	}
	e.apply(done)
	return done
}

func (e *testEnv) loadCSV(t *testing.T) {
	t.Helper()
	path := filepath.Join(e.dir, "sales.csv")
	if err := os.WriteFile(path, []byte("region,revenue\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	e.run(t, handlerCmd("select", func(context.Context) error { return e.model.orch.SelectFile(path) }))
	if done := e.run(t, e.apply(ctrl('u'))); done.Err != nil {
		t.Fatalf("upload: %v", done.Err)
	}
}

func ctrl(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyCtrlA + tea.KeyType(r-'a')}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	m := New(Options{})
	if m.focus != FocusFiles {
		t.Error("new model should focus the file picker")
	}
	if m.mode != orchestrator.ModeVoice {
		t.Error("new model should default to voice input")
	}
	if m.transcription != orchestrator.TranscriptionIdle {
		t.Errorf("transcription = %q", m.transcription)
	}
	if m.queryEnabled {
		t.Error("query should be disabled until a CSV is loaded")
	}
}

func TestViewWithoutSize(t *testing.T) {
	m := New(Options{})
	if view := m.View(); view != "Initializing..." {
		t.Errorf("view without size = %q, want 'Initializing...'", view)
	}
}

func TestToastLifecycle(t *testing.T) {
	m := New(Options{})

	m, cmd := applyUpdate(m, ToastMsg{Text: "first", Kind: ToastError})
	if cmd == nil {
		t.Fatal("toast should schedule its dismissal")
	}
	m, _ = applyUpdate(m, ToastMsg{Text: "second", Kind: ToastSuccess})

	// The first toast's timer must not dismiss the second.
	m, _ = applyUpdate(m, ClearToastMsg{Gen: 1})
	if m.toast != "second" {
		t.Errorf("toast = %q, want second", m.toast)
	}
	m, _ = applyUpdate(m, ClearToastMsg{Gen: 2})
	if m.toast != "" {
		t.Errorf("toast = %q, want cleared", m.toast)
	}
}

func TestBusySpinner(t *testing.T) {
	m := New(Options{})
	m.width, m.height = 80, 24

	m, cmd := applyUpdate(m, BusyMsg{Message: "Generating SQL..."})
	if cmd == nil {
		t.Error("busy should start the spinner")
	}
	if !strings.Contains(m.View(), "Generating SQL...") {
		t.Error("view should show the busy message")
	}
	m, _ = applyUpdate(m, IdleMsg{})
	if strings.Contains(m.View(), "Generating SQL...") {
		t.Error("busy message should be hidden")
	}
}

func TestRecordingDisplay(t *testing.T) {
	m := New(Options{})
	m.width, m.height = 80, 24
	m.queryEnabled = true

	m, _ = applyUpdate(m, RecordingStartedMsg{})
	m, _ = applyUpdate(m, RecordingTimeMsg{Elapsed: "0:03"})
	if !strings.Contains(m.View(), "Recording... 0:03") {
		t.Errorf("view missing recording time:\n%s", m.View())
	}

	m, _ = applyUpdate(m, RecordingStoppedMsg{})
	m, _ = applyUpdate(m, TranscriptionMsg{Text: "total revenue by region"})
	view := m.View()
	if strings.Contains(view, "Recording...") {
		t.Error("recording indicator should be gone")
	}
	if !strings.Contains(view, "total revenue by region") {
		t.Error("view should show the transcription")
	}
}

func TestResultAndClear(t *testing.T) {
	m := New(Options{})
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m.queryEnabled = true

	m, _ = applyUpdate(m, ResultMsg{Result: orchestrator.QueryResult{
		OriginalQuery:    "total revenue by region",
		RetrievedContext: "table sales(region, revenue)",
		GeneratedSQL:     "SELECT 1",
	}})
	view := m.View()
	for _, want := range []string{"RESULT", "total revenue by region", "table sales(region, revenue)", "SELECT"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m, _ = applyUpdate(m, ClearResultMsg{})
	if m.result != nil || strings.Contains(m.View(), "RESULT") {
		t.Error("result should be cleared")
	}
}

func TestCopySQLWithoutResult(t *testing.T) {
	m := New(Options{})

	m, _ = applyUpdate(m, ctrl('y'))
	if m.toast != "No SQL to copy" || m.toastKind != ToastError {
		t.Errorf("toast = %q (%v)", m.toast, m.toastKind)
	}
}

func TestCopySQLWritesOSC52(t *testing.T) {
	var buf bytes.Buffer
	m := New(Options{Clipboard: &buf})
	m.result = &orchestrator.QueryResult{GeneratedSQL: "SELECT 1"}

	_, cmd := applyUpdate(m, ctrl('y'))
	if cmd == nil {
		t.Fatal("expected copy command")
	}
	msg, ok := cmd().(ToastMsg)
	if !ok || msg.Kind != ToastSuccess {
		t.Fatalf("msg = %#v", msg)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte("SELECT 1"))
	if !strings.Contains(buf.String(), "]52;c;"+encoded) {
		t.Errorf("clipboard output = %q", buf.String())
	}
}

func TestTabCyclesFocus(t *testing.T) {
	m := New(Options{})

	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != FocusAPIKey {
		t.Errorf("focus = %v, want API key", m.focus)
	}
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != FocusQuery {
		t.Errorf("focus = %v, want query", m.focus)
	}
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != FocusFiles {
		t.Errorf("focus = %v, want files", m.focus)
	}

	m.fileLocked = true
	m, _ = applyUpdate(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != FocusQuery {
		t.Error("focus should stay on the query once the file is locked")
	}
}

func TestUploadFlow(t *testing.T) {
	env := newTestEnv(t)
	env.loadCSV(t)

	m := env.model
	if !m.queryEnabled || !m.fileLocked {
		t.Error("query should be enabled after upload")
	}
	if m.focus != FocusQuery {
		t.Error("focus should move to the query")
	}
	if !strings.Contains(m.uploadStatus, "Documents: 3, Chunks: 42") {
		t.Errorf("upload status = %q", m.uploadStatus)
	}
	if m.fileName != "sales.csv" {
		t.Errorf("file = %q", m.fileName)
	}
}

func TestUploadWithoutFileShowsError(t *testing.T) {
	env := newTestEnv(t)

	env.run(t, env.apply(ctrl('u')))
	if env.model.toast != "Please select a CSV file first" {
		t.Errorf("toast = %q", env.model.toast)
	}
}

func TestTextQueryFlow(t *testing.T) {
	env := newTestEnv(t)
	env.loadCSV(t)

	env.run(t, env.apply(ctrl('t')))
	if env.model.mode != orchestrator.ModeText {
		t.Fatal("ctrl+t should switch to text mode")
	}

	env.apply(runes("total revenue by region"))
	if got := env.model.orch.Snapshot().Session.TypedText; got != "total revenue by region" {
		t.Errorf("typed text = %q", got)
	}

	done := env.run(t, env.apply(tea.KeyMsg{Type: tea.KeyEnter}))
	if done.Err != nil {
		t.Fatalf("submit: %v", done.Err)
	}
	m := env.model
	if m.result == nil || !strings.Contains(m.result.GeneratedSQL, "GROUP BY region") {
		t.Fatalf("result = %+v", m.result)
	}
	if m.toast != "SQL generated successfully!" {
		t.Errorf("toast = %q", m.toast)
	}
	if m.busyMessage != "" {
		t.Error("busy indicator should be hidden")
	}

	env.run(t, env.apply(ctrl('n')))
	if env.model.result != nil || env.model.query.Value() != "" {
		t.Error("ask another should clear the result and the input")
	}
}

func TestEmptySubmitShowsValidation(t *testing.T) {
	env := newTestEnv(t)
	env.loadCSV(t)

	env.run(t, env.apply(tea.KeyMsg{Type: tea.KeyEnter}))
	if env.model.toast != "Please enter or record a question" {
		t.Errorf("toast = %q", env.model.toast)
	}
}

func TestActivityPanelLoadsJournal(t *testing.T) {
	env := newTestEnv(t)
	env.loadCSV(t)

	cmd := env.apply(ctrl('l'))
	if !env.model.showActivity || cmd == nil {
		t.Fatal("ctrl+l should open the activity panel and load entries")
	}
	env.apply(cmd())

	if len(env.model.activity) == 0 || env.model.activity[0].Kind != journal.KindUpload {
		t.Errorf("activity = %+v", env.model.activity)
	}
	if !strings.Contains(env.model.View(), "ACTIVITY") {
		t.Error("view should render the activity panel")
	}
}
