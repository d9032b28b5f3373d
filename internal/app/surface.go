package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0anu/VoiceAI/internal/orchestrator"
)

// Surface forwards orchestrator display calls into the bubbletea program as
// messages, so all rendering state changes happen in Update.
type Surface struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

var _ orchestrator.Surface = (*Surface)(nil)

// NewSurface returns a surface that drops messages until Attach is called.
func NewSurface() *Surface {
	return &Surface{}
}

// Attach sets the destination, normally (*tea.Program).Send.
func (s *Surface) Attach(send func(tea.Msg)) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

func (s *Surface) emit(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (s *Surface) ShowBusy(message string)    { s.emit(BusyMsg{Message: message}) }
func (s *Surface) HideBusy()                  { s.emit(IdleMsg{}) }
func (s *Surface) ShowError(message string)   { s.emit(ToastMsg{Text: message, Kind: ToastError}) }
func (s *Surface) ShowSuccess(message string) { s.emit(ToastMsg{Text: message, Kind: ToastSuccess}) }
func (s *Surface) ShowWarning(message string) { s.emit(ToastMsg{Text: message, Kind: ToastWarning}) }

func (s *Surface) Connection(ok bool, detail string) {
	s.emit(ConnectionMsg{OK: ok, Detail: detail})
}

func (s *Surface) FileSelected(name string) { s.emit(FileSelectedMsg{Name: name}) }

func (s *Surface) UploadStatus(message string, status orchestrator.UploadStatus) {
	s.emit(UploadStatusMsg{Message: message, Status: status})
}

func (s *Surface) QueryEnabled()                           { s.emit(QueryEnabledMsg{}) }
func (s *Surface) ModeChanged(mode orchestrator.InputMode) { s.emit(ModeChangedMsg{Mode: mode}) }
func (s *Surface) RecordingStarted()                       { s.emit(RecordingStartedMsg{}) }
func (s *Surface) RecordingTime(elapsed string)            { s.emit(RecordingTimeMsg{Elapsed: elapsed}) }
func (s *Surface) RecordingStopped()                       { s.emit(RecordingStoppedMsg{}) }
func (s *Surface) ShowTranscription(text string)           { s.emit(TranscriptionMsg{Text: text}) }

func (s *Surface) ShowResult(result orchestrator.QueryResult) { s.emit(ResultMsg{Result: result}) }
func (s *Surface) ClearResult()                               { s.emit(ClearResultMsg{}) }
func (s *Surface) FocusQuery()                                { s.emit(FocusQueryMsg{}) }
