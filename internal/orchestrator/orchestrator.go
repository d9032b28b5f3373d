// Package orchestrator implements the query workflow of the VoiceAI
// client: CSV selection and upload, voice or text query capture,
// transcription, and the context-then-SQL submission chain. It is
// independent of any rendering technology; results are reported through a
// Surface.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0anu/VoiceAI/internal/api"
	"github.com/0anu/VoiceAI/internal/clock"
	"github.com/0anu/VoiceAI/internal/journal"
	"github.com/0anu/VoiceAI/internal/recorder"
)

// Display strings for the transcription area.
const (
	TranscriptionIdle    = "Ready to record..."
	TranscriptionPending = "Transcribing..."
	TranscriptionEmpty   = "(No speech detected)"
)

// Backend is the remote API. *api.Client implements it.
type Backend interface {
	Health(ctx context.Context) (api.HealthResponse, error)
	LoadCSV(ctx context.Context, filename string, file io.Reader, apiKey string) (api.LoadCSVResponse, error)
	Transcribe(ctx context.Context, audio api.Audio) (api.TranscribeResponse, error)
	RetrieveContext(ctx context.Context, query string) (api.ContextResponse, error)
	GenerateSQL(ctx context.Context, query string) (api.SQLResponse, error)
}

// Journal receives diagnostics. *journal.Store implements it.
type Journal interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Config wires an Orchestrator. Backend, Microphone and Surface are
// required.
type Config struct {
	Backend    Backend
	Microphone recorder.Microphone
	Surface    Surface
	Journal    Journal
	Clock      clock.Clock
	Logger     zerolog.Logger
	SampleRate int

	// APIURL is shown in the connectivity warning.
	APIURL string
}

// Orchestrator owns the Session and drives the state machine. All methods
// are safe for concurrent use; handlers that touch the network or the
// microphone are serialized and return ErrBusy while another runs.
type Orchestrator struct {
	backend    Backend
	mic        recorder.Microphone
	surface    Surface
	journal    Journal
	clock      clock.Clock
	log        zerolog.Logger
	apiURL     string
	sampleRate int

	mu         sync.Mutex
	state      State
	session    Session
	result     *QueryResult
	fileLocked bool
	busy       bool

	// resume is the state to return to when a recording ends.
	resume    State
	recording *recorder.Session
	timer     *recorder.Timer

	// transcriptDirty is set while the transcription area shows anything
	// other than TranscriptionIdle.
	transcriptDirty bool
}

// New returns an orchestrator in StateIdle with a fresh Session.
func New(cfg Config) *Orchestrator {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	sessionID := uuid.NewString()
	return &Orchestrator{
		backend:    cfg.Backend,
		mic:        cfg.Microphone,
		surface:    cfg.Surface,
		journal:    cfg.Journal,
		clock:      clk,
		log:        cfg.Logger.With().Str("component", "orchestrator").Str("session", sessionID).Logger(),
		apiURL:     cfg.APIURL,
		sampleRate: cfg.SampleRate,
		state:      StateIdle,
		session:    Session{ID: sessionID, InputMode: ModeVoice},
	}
}

// SessionID identifies this run in the journal.
func (o *Orchestrator) SessionID() string { return o.session.ID }

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State:      o.state,
		Session:    o.session,
		FileLocked: o.fileLocked,
	}
	if o.session.SelectedFile != nil {
		f := *o.session.SelectedFile
		snap.Session.SelectedFile = &f
	}
	if o.result != nil {
		r := *o.result
		snap.Result = &r
	}
	if o.recording != nil {
		snap.RecordedChunks = o.recording.ChunkCount()
		snap.CaptureActive = o.recording.Active()
	}
	return snap
}

// Start moves Idle to AwaitingFile and probes the API once. The probe
// result never blocks other handlers.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateIdle {
		o.state = StateAwaitingFile
	}
	o.mu.Unlock()
	return o.ProbeHealth(ctx)
}

// ProbeHealth checks /health. Failure only surfaces a warning.
func (o *Orchestrator) ProbeHealth(ctx context.Context) error {
	resp, err := o.backend.Health(ctx)
	if err != nil {
		msg := fmt.Sprintf("Cannot connect to backend API. Make sure the server is running at %s", o.apiURL)
		o.log.Warn().Err(err).Str("api", o.apiURL).Msg("health probe failed")
		o.record(ctx, journal.KindWarning, msg, err.Error())
		o.surface.Connection(false, err.Error())
		o.surface.ShowWarning(msg)
		return err
	}
	o.log.Info().Str("status", resp.Status).Str("message", resp.Message).Msg("connected to API")
	o.surface.Connection(true, resp.Message)
	return nil
}

// SelectFile chooses the CSV to upload. Only names ending in ".csv" are
// accepted, and only until a CSV has been loaded.
func (o *Orchestrator) SelectFile(path string) error {
	name := filepath.Base(path)

	o.mu.Lock()
	switch {
	case o.fileLocked:
		o.mu.Unlock()
		return o.reject(invalid("A CSV file is already loaded for this session"))
	case o.busy:
		o.mu.Unlock()
		return ErrBusy
	case !strings.HasSuffix(name, ".csv"):
		o.mu.Unlock()
		return o.reject(invalid("Please select a CSV file"))
	}
	o.session.SelectedFile = &FileHandle{Name: name, Path: path}
	o.state = StateFileSelected
	o.mu.Unlock()

	o.log.Debug().Str("file", name).Msg("file selected")
	o.surface.FileSelected(name)
	return nil
}

// Upload sends the selected CSV to /load-csv. apiKey is forwarded only if
// it is non-blank. On success file selection is locked for the session.
func (o *Orchestrator) Upload(ctx context.Context, apiKey string) error {
	o.mu.Lock()
	switch {
	case o.busy:
		o.mu.Unlock()
		return ErrBusy
	case o.fileLocked:
		o.mu.Unlock()
		return o.reject(invalid("A CSV file is already loaded for this session"))
	case o.session.SelectedFile == nil:
		o.mu.Unlock()
		return o.reject(invalid("Please select a CSV file first"))
	}
	file := *o.session.SelectedFile
	o.busy = true
	o.state = StateUploading
	o.mu.Unlock()
	defer o.release()

	o.surface.UploadStatus("Uploading CSV...", UploadPending)

	var resp api.LoadCSVResponse
	err := o.network("Uploading and initializing CSV...", func() error {
		f, err := os.Open(file.Path)
		if err != nil {
			return fmt.Errorf("open %s: %w", file.Name, err)
		}
		defer f.Close()
		resp, err = o.backend.LoadCSV(ctx, file.Name, f, apiKey)
		return err
	})

	o.mu.Lock()
	if err != nil {
		o.state = StateFileSelected
		o.mu.Unlock()
		o.surface.UploadStatus("Error: "+err.Error(), UploadFailed)
		return o.fail(ctx, "upload", err)
	}
	o.state = StateReady
	o.fileLocked = true
	o.mu.Unlock()

	status := fmt.Sprintf("CSV loaded successfully! Documents: %d, Chunks: %d", resp.DocumentsLoaded, resp.DocumentChunks)
	o.log.Info().Str("file", file.Name).Int("documents", resp.DocumentsLoaded).Int("chunks", resp.DocumentChunks).Msg("csv loaded")
	o.record(ctx, journal.KindUpload, status, file.Name)
	o.surface.UploadStatus(status, UploadSucceeded)
	o.surface.ShowSuccess("CSV loaded successfully!")
	o.surface.QueryEnabled()
	return nil
}

// SetMode switches the active input mode and resets recording state. An
// active recording is discarded without transcription.
func (o *Orchestrator) SetMode(mode InputMode) error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrBusy
	}
	rec, tm := o.takeRecording()
	o.session.InputMode = mode
	switch {
	case mode == ModeText && o.state == StateReady && o.session.TypedText != "":
		o.state = StateTyping
	case mode == ModeVoice && o.state == StateTyping:
		o.state = StateReady
	}
	o.mu.Unlock()

	if rec != nil {
		o.discardRecording(rec, tm)
	}
	o.surface.ModeChanged(mode)
	return nil
}

// SetTextInput records the free-text field content.
func (o *Orchestrator) SetTextInput(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.session.TypedText = text
	if o.session.InputMode != ModeText {
		return
	}
	switch {
	case o.state == StateReady && text != "":
		o.state = StateTyping
	case o.state == StateTyping && text == "":
		o.state = StateReady
	}
}

// ToggleRecording starts a recording, or stops and transcribes the active one.
func (o *Orchestrator) ToggleRecording(ctx context.Context) error {
	o.mu.Lock()
	recording := o.recording != nil
	o.mu.Unlock()

	if recording {
		return o.StopRecording(ctx)
	}
	return o.StartRecording(ctx)
}

// StartRecording acquires the microphone and starts the elapsed-time
// display. A denied microphone surfaces a PermissionError and leaves the
// state unchanged.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.busy:
		o.mu.Unlock()
		return ErrBusy
	case o.recording != nil:
		o.mu.Unlock()
		return nil
	case !o.state.queryEnabled():
		o.mu.Unlock()
		return o.reject(invalid("Load a CSV file before recording"))
	case o.session.InputMode != ModeVoice:
		o.mu.Unlock()
		return o.reject(invalid("Switch to voice input to record"))
	}
	o.busy = true
	o.mu.Unlock()
	defer o.release()

	stream, err := o.mic.Open(ctx)
	if err != nil {
		return o.fail(ctx, "microphone", &PermissionError{Err: err})
	}
	started := o.clock.Now()
	rec := recorder.Start(stream, started, o.sampleRate)

	o.surface.RecordingStarted()
	o.surface.RecordingTime(recorder.FormatElapsed(0))
	tm := recorder.StartTimer(o.clock, started, recorder.TickInterval, o.surface.RecordingTime)

	o.mu.Lock()
	o.recording = rec
	o.timer = tm
	o.resume = o.state
	o.state = StateRecording
	o.session.IsRecording = true
	o.mu.Unlock()

	o.log.Info().Msg("recording started")
	return nil
}

// StopRecording ends the active recording, releases the microphone and
// transcribes the audio. A successful transcription, even an empty one,
// becomes the voice query; a failed one leaves the previous query text.
func (o *Orchestrator) StopRecording(ctx context.Context) error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrBusy
	}
	rec, tm := o.takeRecording()
	if rec == nil {
		o.mu.Unlock()
		return nil
	}
	o.busy = true
	o.state = StateTranscribing
	resume := o.resume
	o.transcriptDirty = true
	o.mu.Unlock()
	defer o.release()

	tm.Stop()
	audio, err := rec.Stop()
	o.surface.RecordingStopped()
	if err != nil {
		o.setState(resume)
		return o.fail(ctx, "recording", err)
	}
	o.log.Info().Int("bytes", len(audio.Data)).Msg("recording stopped")

	o.surface.ShowTranscription(TranscriptionPending)
	var resp api.TranscribeResponse
	err = o.network("Transcribing audio...", func() error {
		var err error
		resp, err = o.backend.Transcribe(ctx, audio)
		return err
	})

	o.mu.Lock()
	o.state = resume
	if err == nil {
		o.session.CurrentQueryText = resp.TranscribedText
	}
	o.mu.Unlock()

	if err != nil {
		o.surface.ShowTranscription("Error: " + err.Error())
		return o.fail(ctx, "transcribe", err)
	}

	shown := resp.TranscribedText
	if strings.TrimSpace(shown) == "" {
		shown = TranscriptionEmpty
	}
	o.record(ctx, journal.KindTranscription, shown, "")
	o.surface.ShowTranscription(shown)
	o.surface.ShowSuccess("Audio transcribed successfully!")
	return nil
}

// Submit resolves the query from the active input mode and runs
// /retrieve-context then /generate-sql with the same payload. Both must
// succeed for a result to be shown; nothing from a failed attempt is kept.
func (o *Orchestrator) Submit(ctx context.Context) (QueryResult, error) {
	o.mu.Lock()
	switch {
	case o.busy:
		o.mu.Unlock()
		return QueryResult{}, ErrBusy
	case o.recording != nil:
		o.mu.Unlock()
		return QueryResult{}, o.reject(invalid("Stop recording before submitting"))
	case !o.state.queryEnabled():
		o.mu.Unlock()
		return QueryResult{}, o.reject(invalid("Load a CSV file before asking a question"))
	}
	var query string
	if o.session.InputMode == ModeVoice {
		query = strings.TrimSpace(o.session.CurrentQueryText)
	} else {
		query = strings.TrimSpace(o.session.TypedText)
	}
	if query == "" {
		o.mu.Unlock()
		return QueryResult{}, o.reject(invalid("Please enter or record a question"))
	}
	prev := o.state
	o.busy = true
	o.state = StateSubmitting
	o.mu.Unlock()
	defer o.release()

	var contextResp api.ContextResponse
	var sqlResp api.SQLResponse
	err := o.network("Generating SQL...", func() error {
		var err error
		if contextResp, err = o.backend.RetrieveContext(ctx, query); err != nil {
			return err
		}
		sqlResp, err = o.backend.GenerateSQL(ctx, query)
		return err
	})
	if err != nil {
		o.setState(prev)
		return QueryResult{}, o.fail(ctx, "submit", err)
	}

	result := QueryResult{
		OriginalQuery:    query,
		RetrievedContext: contextResp.Context,
		GeneratedSQL:     sqlResp.GeneratedSQL,
	}
	o.mu.Lock()
	o.result = &result
	o.state = StateResultsShown
	o.mu.Unlock()

	o.log.Info().Str("query", query).Int("context_docs", contextResp.DocumentsCount).Msg("sql generated")
	o.record(ctx, journal.KindQuery, query, result.GeneratedSQL)
	o.surface.ShowResult(result)
	o.surface.ShowSuccess("SQL generated successfully!")
	return result, nil
}

// AskAnother clears the query, the result and any recording, and returns
// focus to the query input. When everything is already clear it does
// nothing.
func (o *Orchestrator) AskAnother() error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrBusy
	}
	if !o.state.queryEnabled() && o.state != StateRecording {
		o.mu.Unlock()
		return nil
	}
	if o.state == StateReady && o.result == nil && o.recording == nil &&
		o.session.CurrentQueryText == "" && o.session.TypedText == "" && !o.transcriptDirty {
		o.mu.Unlock()
		return nil
	}
	rec, tm := o.takeRecording()
	o.session.CurrentQueryText = ""
	o.session.TypedText = ""
	o.result = nil
	o.transcriptDirty = false
	o.state = StateReady
	o.mu.Unlock()

	if rec != nil {
		o.discardRecording(rec, tm)
	}
	o.surface.ClearResult()
	o.surface.ShowTranscription(TranscriptionIdle)
	o.surface.FocusQuery()
	return nil
}

// Close releases the microphone if a recording is still active.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	rec, tm := o.takeRecording()
	o.mu.Unlock()
	if rec != nil {
		tm.Stop()
		rec.Cancel()
	}
}

// takeRecording detaches the active recording. Caller holds o.mu.
func (o *Orchestrator) takeRecording() (*recorder.Session, *recorder.Timer) {
	rec, tm := o.recording, o.timer
	if rec == nil {
		return nil, nil
	}
	o.recording = nil
	o.timer = nil
	o.session.IsRecording = false
	if o.state == StateRecording {
		o.state = o.resume
	}
	return rec, tm
}

func (o *Orchestrator) discardRecording(rec *recorder.Session, tm *recorder.Timer) {
	tm.Stop()
	rec.Cancel()
	o.surface.RecordingStopped()
	o.log.Info().Msg("recording discarded")
}

// network brackets call with the busy indicator.
func (o *Orchestrator) network(message string, call func() error) error {
	o.surface.ShowBusy(message)
	defer o.surface.HideBusy()
	return call()
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// reject surfaces a validation failure.
func (o *Orchestrator) reject(err *ValidationError) error {
	o.log.Debug().Str("reason", err.Message).Msg("validation failed")
	o.surface.ShowError(err.Message)
	return err
}

// fail surfaces and records an operation failure and returns err.
func (o *Orchestrator) fail(ctx context.Context, op string, err error) error {
	ev := o.log.Error().Err(err).Str("op", op)
	var se *api.ServerError
	if errors.As(err, &se) {
		ev = ev.Str("endpoint", se.Endpoint).Int("status", se.StatusCode)
	}
	ev.Msg("operation failed")

	msg := err.Error()
	detail := op
	var pe *PermissionError
	if errors.As(err, &pe) && pe.Err != nil {
		detail = op + ": " + pe.Err.Error()
	}
	o.record(ctx, journal.KindError, msg, detail)
	o.surface.ShowError(msg)
	return err
}

// record appends to the journal. Journal failures are only logged.
func (o *Orchestrator) record(ctx context.Context, kind, message, detail string) {
	if o.journal == nil {
		return
	}
	err := o.journal.Append(context.WithoutCancel(ctx), journal.Entry{
		SessionID: o.session.ID,
		Kind:      kind,
		Message:   message,
		Detail:    detail,
		CreatedAt: o.clock.Now(),
	})
	if err != nil {
		o.log.Warn().Err(err).Str("kind", kind).Msg("journal append failed")
	}
}
