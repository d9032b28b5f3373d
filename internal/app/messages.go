package app

import (
	"github.com/0anu/VoiceAI/internal/journal"
	"github.com/0anu/VoiceAI/internal/orchestrator"
)

// BusyMsg shows the busy spinner with a message.
type BusyMsg struct {
	Message string
}

// IdleMsg hides the busy spinner.
type IdleMsg struct{}

// ToastKind classifies a transient notice.
type ToastKind int

const (
	ToastError ToastKind = iota
	ToastSuccess
	ToastWarning
)

// ToastMsg shows a transient notice.
type ToastMsg struct {
	Text string
	Kind ToastKind
}

// ClearToastMsg dismisses the toast with the given generation, if it is
// still the one on screen.
type ClearToastMsg struct {
	Gen int
}

// ConnectionMsg carries the health probe outcome.
type ConnectionMsg struct {
	OK     bool
	Detail string
}

// FileSelectedMsg is sent when a CSV has been accepted for upload.
type FileSelectedMsg struct {
	Name string
}

// UploadStatusMsg updates the upload status line.
type UploadStatusMsg struct {
	Message string
	Status  orchestrator.UploadStatus
}

// QueryEnabledMsg is sent once a CSV is loaded.
type QueryEnabledMsg struct{}

// ModeChangedMsg carries the active input mode.
type ModeChangedMsg struct {
	Mode orchestrator.InputMode
}

// RecordingStartedMsg is sent when the microphone is live.
type RecordingStartedMsg struct{}

// RecordingTimeMsg carries the elapsed recording time as m:ss.
type RecordingTimeMsg struct {
	Elapsed string
}

// RecordingStoppedMsg is sent when the microphone is released.
type RecordingStoppedMsg struct{}

// TranscriptionMsg replaces the transcription area.
type TranscriptionMsg struct {
	Text string
}

// ResultMsg carries a generated SQL result.
type ResultMsg struct {
	Result orchestrator.QueryResult
}

// ClearResultMsg hides the result panel.
type ClearResultMsg struct{}

// FocusQueryMsg moves focus to the query input.
type FocusQueryMsg struct{}

// HandlerDoneMsg is sent when an orchestrator handler returns.
type HandlerDoneMsg struct {
	Op  string
	Err error
}

// JournalLoadedMsg carries recent journal entries for the activity panel.
type JournalLoadedMsg struct {
	Entries []journal.Entry
}
