package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0anu/VoiceAI/internal/journal"
	"github.com/0anu/VoiceAI/internal/orchestrator"
	"github.com/0anu/VoiceAI/internal/ui"
)

// PanelFocus tracks which input has keyboard focus.
type PanelFocus int

const (
	FocusFiles PanelFocus = iota
	FocusAPIKey
	FocusQuery
)

const (
	errorToastDuration   = 4 * time.Second
	successToastDuration = 3 * time.Second
	activityLimit        = 8

	// filepicker sizes itself from WindowSizeMsg minus this margin.
	pickerMargin = 5
	pickerRows   = 6
)

// JournalReader lists recent diagnostics for the activity panel.
// *journal.Store implements it.
type JournalReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]journal.Entry, error)
}

// Options configures a Model.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Journal      JournalReader
	APIURL       string
	// APIKey prefills the API key input.
	APIKey string
	// StartDir is where the file picker opens. Defaults to the working
	// directory.
	StartDir string
	// Clipboard receives OSC 52 sequences. Defaults to stderr.
	Clipboard io.Writer
}

// Model is the root bubbletea model for the VoiceAI TUI. It only renders
// what the orchestrator reports through Surface and turns keys into
// orchestrator handlers run as commands.
type Model struct {
	orch      *orchestrator.Orchestrator
	journal   JournalReader
	apiURL    string
	clipboard io.Writer
	keys      KeyMap

	// Widgets
	picker  filepicker.Model
	apiKey  textinput.Model
	query   textinput.Model
	spinner spinner.Model
	results viewport.Model

	// Connection
	connChecked bool
	connected   bool
	connDetail  string

	// Upload
	fileName     string
	uploadStatus string
	uploadKind   orchestrator.UploadStatus
	fileLocked   bool

	// Query
	queryEnabled  bool
	mode          orchestrator.InputMode
	recording     bool
	recordingTime string
	transcription string
	result        *orchestrator.QueryResult

	// Activity panel
	showActivity bool
	activity     []journal.Entry

	// Transient state
	busyMessage string
	toast       string
	toastKind   ToastKind
	toastGen    int

	// UI state
	focus  PanelFocus
	width  int
	height int
}

// New creates a Model with default state.
func New(opts Options) Model {
	picker := filepicker.New()
	picker.AllowedTypes = []string{".csv"}
	picker.ShowPermissions = false
	picker.CurrentDirectory = opts.StartDir
	if picker.CurrentDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			picker.CurrentDirectory = wd
		}
	}

	apiKey := textinput.New()
	apiKey.Prompt = ""
	apiKey.Placeholder = "optional Groq API key"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'
	apiKey.SetValue(opts.APIKey)

	query := textinput.New()
	query.Prompt = "> "
	query.Placeholder = "Ask a question about your data"
	query.CharLimit = 1000

	clipboard := opts.Clipboard
	if clipboard == nil {
		clipboard = os.Stderr
	}

	return Model{
		orch:          opts.Orchestrator,
		journal:       opts.Journal,
		apiURL:        opts.APIURL,
		clipboard:     clipboard,
		keys:          DefaultKeyMap,
		picker:        picker,
		apiKey:        apiKey,
		query:         query,
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(ui.SpinnerStyle)),
		results:       viewport.New(80, 8),
		transcription: orchestrator.TranscriptionIdle,
		focus:         FocusFiles,
	}
}

// Init starts the file picker and the health probe.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.picker.Init(),
		handlerCmd("start", func(ctx context.Context) error { return m.orch.Start(ctx) }),
	)
}

// handlerCmd runs an orchestrator handler off the update loop. Handlers
// report through Surface, which sends back into the program.
func handlerCmd(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return HandlerDoneMsg{Op: op, Err: fn(context.Background())}
	}
}

// clearToastCmd fires after a delay to dismiss a toast.
func clearToastCmd(gen int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ClearToastMsg{Gen: gen}
	})
}

// copySQLCmd writes the SQL to the terminal clipboard via OSC 52.
func copySQLCmd(w io.Writer, sql string) tea.Cmd {
	return func() tea.Msg {
		if _, err := osc52.New(sql).WriteTo(w); err != nil {
			return ToastMsg{Text: "Copy failed: " + err.Error(), Kind: ToastError}
		}
		return ToastMsg{Text: "SQL copied to clipboard!", Kind: ToastSuccess}
	}
}

// loadJournalCmd reads recent journal entries for the session.
func loadJournalCmd(j JournalReader, sessionID string) tea.Cmd {
	return func() tea.Msg {
		entries, err := j.Recent(context.Background(), sessionID, activityLimit)
		if err != nil {
			return JournalLoadedMsg{} // the panel stays empty
		}
		return JournalLoadedMsg{Entries: entries}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.apiKey.Width = max(10, msg.Width/3)
		m.query.Width = max(20, msg.Width-6)
		m.results.Width = msg.Width
		m.results.Height = m.resultsHeight()
		m.refreshResults()
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(tea.WindowSizeMsg{Width: msg.Width, Height: pickerRows + pickerMargin})
		return m, cmd

	case BusyMsg:
		m.busyMessage = msg.Message
		return m, m.spinner.Tick

	case IdleMsg:
		m.busyMessage = ""
		return m, nil

	case spinner.TickMsg:
		if m.busyMessage == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ToastMsg:
		m.toastGen++
		m.toast = msg.Text
		m.toastKind = msg.Kind
		d := errorToastDuration
		if msg.Kind == ToastSuccess {
			d = successToastDuration
		}
		return m, clearToastCmd(m.toastGen, d)

	case ClearToastMsg:
		if msg.Gen == m.toastGen {
			m.toast = ""
		}
		return m, nil

	case ConnectionMsg:
		m.connChecked = true
		m.connected = msg.OK
		m.connDetail = msg.Detail
		return m, nil

	case FileSelectedMsg:
		m.fileName = msg.Name
		m.uploadStatus = ""
		return m, nil

	case UploadStatusMsg:
		m.uploadStatus = msg.Message
		m.uploadKind = msg.Status
		return m, nil

	case QueryEnabledMsg:
		m.queryEnabled = true
		m.fileLocked = true
		return m, m.setFocus(FocusQuery)

	case ModeChangedMsg:
		m.mode = msg.Mode
		m.recording = false
		m.recordingTime = ""
		return m, m.setFocus(m.focus)

	case RecordingStartedMsg:
		m.recording = true
		m.recordingTime = "0:00"
		return m, nil

	case RecordingTimeMsg:
		m.recordingTime = msg.Elapsed
		return m, nil

	case RecordingStoppedMsg:
		m.recording = false
		return m, nil

	case TranscriptionMsg:
		m.transcription = msg.Text
		return m, nil

	case ResultMsg:
		r := msg.Result
		m.result = &r
		m.refreshResults()
		m.results.GotoTop()
		return m, nil

	case ClearResultMsg:
		m.result = nil
		m.query.Reset()
		m.refreshResults()
		return m, nil

	case FocusQueryMsg:
		return m, m.setFocus(FocusQuery)

	case HandlerDoneMsg:
		// Failures were already surfaced as toasts; ErrBusy is a no-op.
		if m.showActivity && m.journal != nil && !errors.Is(msg.Err, orchestrator.ErrBusy) {
			return m, loadJournalCmd(m.journal, m.orch.SessionID())
		}
		return m, nil

	case JournalLoadedMsg:
		m.activity = msg.Entries
		return m, nil
	}

	// Everything else (directory reads, cursor blink) goes to the widgets.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	cmds = append(cmds, cmd)
	m.apiKey, cmd = m.apiKey.Update(msg)
	cmds = append(cmds, cmd)
	m.query, cmd = m.query.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey processes key presses. Global chords win over the focused
// widget.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Focus):
		return m, m.setFocus(m.nextFocus())

	case key.Matches(msg, m.keys.Upload):
		apiKey := m.apiKey.Value()
		return m, handlerCmd("upload", func(ctx context.Context) error {
			return m.orch.Upload(ctx, apiKey)
		})

	case key.Matches(msg, m.keys.ToggleMode):
		mode := orchestrator.ModeText
		if m.mode == orchestrator.ModeText {
			mode = orchestrator.ModeVoice
		}
		return m, handlerCmd("mode", func(context.Context) error {
			return m.orch.SetMode(mode)
		})

	case key.Matches(msg, m.keys.Record):
		return m, handlerCmd("record", m.orch.ToggleRecording)

	case key.Matches(msg, m.keys.AskAnother):
		return m, handlerCmd("ask-another", func(context.Context) error {
			return m.orch.AskAnother()
		})

	case key.Matches(msg, m.keys.CopySQL):
		if m.result == nil || m.result.GeneratedSQL == "" {
			return m.Update(ToastMsg{Text: "No SQL to copy", Kind: ToastError})
		}
		return m, copySQLCmd(m.clipboard, m.result.GeneratedSQL)

	case key.Matches(msg, m.keys.Activity):
		m.showActivity = !m.showActivity
		m.results.Height = m.resultsHeight()
		if m.showActivity && m.journal != nil {
			return m, loadJournalCmd(m.journal, m.orch.SessionID())
		}
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.results.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.results.HalfViewDown()
		return m, nil
	}

	switch m.focus {
	case FocusFiles:
		return m.updatePicker(msg)

	case FocusAPIKey:
		if key.Matches(msg, m.keys.Enter) {
			apiKey := m.apiKey.Value()
			return m, handlerCmd("upload", func(ctx context.Context) error {
				return m.orch.Upload(ctx, apiKey)
			})
		}
		var cmd tea.Cmd
		m.apiKey, cmd = m.apiKey.Update(msg)
		return m, cmd

	case FocusQuery:
		if key.Matches(msg, m.keys.Enter) {
			return m, handlerCmd("submit", func(ctx context.Context) error {
				_, err := m.orch.Submit(ctx)
				return err
			})
		}
		if m.mode != orchestrator.ModeText {
			return m, nil
		}
		before := m.query.Value()
		var cmd tea.Cmd
		m.query, cmd = m.query.Update(msg)
		if v := m.query.Value(); v != before {
			m.orch.SetTextInput(v)
		}
		return m, cmd
	}

	return m, nil
}

// updatePicker forwards a key to the file picker and hands any chosen
// file to the orchestrator, which rejects non-CSV names.
func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.fileLocked {
		return m, nil
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	path := ""
	if ok, p := m.picker.DidSelectFile(msg); ok {
		path = p
	} else if ok, p := m.picker.DidSelectDisabledFile(msg); ok {
		path = p
	}
	if path == "" {
		return m, cmd
	}
	return m, tea.Batch(cmd, handlerCmd("select", func(context.Context) error {
		return m.orch.SelectFile(path)
	}))
}

func (m Model) nextFocus() PanelFocus {
	if m.fileLocked {
		return FocusQuery
	}
	return (m.focus + 1) % 3
}

func (m *Model) setFocus(f PanelFocus) tea.Cmd {
	m.focus = f
	m.apiKey.Blur()
	m.query.Blur()
	switch {
	case f == FocusAPIKey:
		return m.apiKey.Focus()
	case f == FocusQuery && m.mode == orchestrator.ModeText:
		return m.query.Focus()
	}
	return nil
}

func (m Model) resultsHeight() int {
	if m.height == 0 {
		return 8
	}
	// Reserve: header, upload and query panels, dividers, toast, busy, footer
	reserved := 16 + pickerRows
	if m.showActivity {
		reserved += activityLimit + 2
	}
	return max(4, m.height-reserved)
}

// refreshResults re-renders the result panel content at the current width.
func (m *Model) refreshResults() {
	if m.result == nil {
		m.results.SetContent("")
		return
	}
	width := max(20, m.results.Width-4)
	var lines []string
	lines = append(lines, ui.LabelStyle.Render("Question"))
	for _, l := range wrapText(m.result.OriginalQuery, width) {
		lines = append(lines, "  "+l)
	}
	lines = append(lines, "", ui.LabelStyle.Render("Context"))
	for _, l := range wrapText(m.result.RetrievedContext, width) {
		lines = append(lines, "  "+ui.DimStyle.Render(l))
	}
	lines = append(lines, "", ui.LabelStyle.Render("SQL"))
	for _, l := range strings.Split(ui.HighlightSQL(m.result.GeneratedSQL), "\n") {
		lines = append(lines, "  "+l)
	}
	m.results.SetContent(strings.Join(lines, "\n"))
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, divider)
	sections = append(sections, m.renderUploadPanel())
	sections = append(sections, divider)
	sections = append(sections, m.renderQueryPanel())
	if m.result != nil {
		sections = append(sections, divider)
		sections = append(sections, m.renderResultsPanel())
	}
	if m.showActivity {
		sections = append(sections, divider)
		sections = append(sections, m.renderActivityPanel())
	}
	sections = append(sections, divider)
	if m.toast != "" {
		sections = append(sections, m.renderToast())
	}
	if m.busyMessage != "" {
		sections = append(sections, m.spinner.View()+" "+ui.PendingTextStyle.Render(m.busyMessage))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("VOICEAI")
	api := ui.DimStyle.Render(" — " + m.apiURL)

	var conn string
	switch {
	case !m.connChecked:
		conn = ui.IdleDotStyle.Render("○ checking API")
	case m.connected:
		conn = ui.ConnectedStyle.Render("● API online")
	default:
		conn = ui.ErrorTextStyle.Render("○ API offline")
	}

	left := title + api
	state := ""
	if m.orch != nil {
		state = ui.StatusStyle.Render(m.orch.Snapshot().State.String())
	}
	right := conn + "  " + state
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) panelTitle(title string, active bool) string {
	if active {
		return ui.PanelTitleActiveStyle.Render(title)
	}
	return ui.PanelTitleStyle.Render(title)
}

func (m Model) renderUploadPanel() string {
	var lines []string
	lines = append(lines, m.panelTitle("CSV FILE", !m.fileLocked && m.focus != FocusQuery))

	file := ui.DimStyle.Render("none selected")
	if m.fileName != "" {
		file = ui.SelectedStyle.Render(m.fileName)
	}
	lines = append(lines, "  File: "+file)

	if !m.fileLocked {
		if m.focus == FocusFiles {
			for _, l := range strings.Split(strings.TrimRight(m.picker.View(), "\n"), "\n") {
				lines = append(lines, "  "+clip(l, m.width-2))
			}
		} else {
			lines = append(lines, ui.DimStyle.Render("  Tab to browse for a CSV file"))
		}
		lines = append(lines, "  API key: "+m.apiKey.View())
	}

	if m.uploadStatus != "" {
		var style lipgloss.Style
		switch m.uploadKind {
		case orchestrator.UploadSucceeded:
			style = ui.ConnectedStyle
		case orchestrator.UploadFailed:
			style = ui.ErrorTextStyle
		default:
			style = ui.PendingTextStyle
		}
		lines = append(lines, "  "+style.Render(m.uploadStatus))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderQueryPanel() string {
	badge := ui.ModeBadgeStyle.Render(" [" + strings.ToUpper(m.mode.String()) + "]")
	lines := []string{m.panelTitle("ASK", m.focus == FocusQuery) + badge}

	if !m.queryEnabled {
		lines = append(lines, ui.DimStyle.Render("  Load a CSV file to start asking questions"))
		return strings.Join(lines, "\n")
	}

	if m.mode == orchestrator.ModeText {
		lines = append(lines, "  "+m.query.View())
		return strings.Join(lines, "\n")
	}

	if m.recording {
		lines = append(lines, "  "+ui.RecordingDotStyle.Render("● Recording... "+m.recordingTime))
	} else {
		lines = append(lines, "  "+ui.IdleDotStyle.Render("○ Press ^R to record"))
	}
	text := m.transcription
	style := ui.DimStyle
	switch text {
	case orchestrator.TranscriptionPending:
		style = ui.PendingTextStyle
	case orchestrator.TranscriptionIdle, orchestrator.TranscriptionEmpty:
	default:
		style = lipgloss.NewStyle()
	}
	for _, l := range wrapText(text, max(10, m.width-4)) {
		lines = append(lines, "  "+style.Render(l))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderResultsPanel() string {
	return m.panelTitle("RESULT", false) + "\n" + m.results.View()
}

func (m Model) renderActivityPanel() string {
	lines := []string{m.panelTitle("ACTIVITY", false)}
	if len(m.activity) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No activity yet..."))
	}
	for _, e := range m.activity {
		ts := ui.TimestampStyle.Render(e.CreatedAt.Format("[15:04:05]"))
		kind := ui.KindStyle(e.Kind).Render(fmt.Sprintf("%-13s", e.Kind))
		lines = append(lines, clip("  "+ts+" "+kind+" "+e.Message, m.width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderToast() string {
	switch m.toastKind {
	case ToastSuccess:
		return ui.SuccessStyle.Render("✓ ") + m.toast
	case ToastWarning:
		return ui.WarningStyle.Render("! ") + m.toast
	default:
		return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.toast)
	}
}

func (m Model) renderFooter() string {
	bindings := []key.Binding{m.keys.Focus, m.keys.Enter}
	if !m.fileLocked {
		bindings = append(bindings, m.keys.Upload)
	}
	if m.queryEnabled {
		bindings = append(bindings, m.keys.ToggleMode)
		if m.mode == orchestrator.ModeVoice {
			bindings = append(bindings, m.keys.Record)
		}
		bindings = append(bindings, m.keys.AskAnother)
	}
	if m.result != nil {
		bindings = append(bindings, m.keys.CopySQL, m.keys.ScrollUp)
	}
	bindings = append(bindings, m.keys.Activity, m.keys.Quit)

	var parts []string
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, ui.FooterKeyStyle.Render(h.Key)+ui.FooterDescStyle.Render(" "+h.Desc))
	}
	return strings.Join(parts, "  ")
}

// Helpers

// clip cuts a possibly styled line to width cells.
func clip(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
