package orchestrator

// State is a stage of the query workflow.
type State int

const (
	StateIdle State = iota
	StateAwaitingFile
	StateFileSelected
	StateUploading
	StateReady
	StateRecording
	StateTyping
	StateTranscribing
	StateSubmitting
	StateResultsShown
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateAwaitingFile: "awaiting-file",
	StateFileSelected: "file-selected",
	StateUploading:    "uploading",
	StateReady:        "ready",
	StateRecording:    "recording",
	StateTyping:       "typing",
	StateTranscribing: "transcribing",
	StateSubmitting:   "submitting",
	StateResultsShown: "results-shown",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// queryEnabled reports whether the CSV is loaded and no operation is running.
func (s State) queryEnabled() bool {
	return s == StateReady || s == StateTyping || s == StateResultsShown
}

// InputMode selects where the query text comes from.
type InputMode int

const (
	ModeVoice InputMode = iota
	ModeText
)

func (m InputMode) String() string {
	if m == ModeText {
		return "text"
	}
	return "voice"
}

// FileHandle is a CSV chosen for upload.
type FileHandle struct {
	Name string
	Path string
}

// Session is the in-memory state of one client run.
type Session struct {
	ID           string
	SelectedFile *FileHandle
	// CurrentQueryText is the last completed transcription.
	CurrentQueryText string
	// TypedText is the raw content of the free-text field.
	TypedText   string
	InputMode   InputMode
	IsRecording bool
}

// QueryResult is the outcome of a successful submission.
type QueryResult struct {
	OriginalQuery    string
	RetrievedContext string
	GeneratedSQL     string
}

// Snapshot is a copy of the orchestrator's state.
type Snapshot struct {
	State      State
	Session    Session
	Result     *QueryResult
	FileLocked bool
	// RecordedChunks is the chunk count of the active recording, if any.
	RecordedChunks int
	// CaptureActive reports whether a recording holds the microphone.
	CaptureActive bool
}
