package orchestrator

// UploadStatus classifies the upload status line.
type UploadStatus int

const (
	UploadPending UploadStatus = iota
	UploadSucceeded
	UploadFailed
)

// Surface renders what the orchestrator reports. Implementations must not
// call back into the orchestrator synchronously.
type Surface interface {
	// ShowBusy and HideBusy bracket every network call.
	ShowBusy(message string)
	HideBusy()

	// Transient notices.
	ShowError(message string)
	ShowSuccess(message string)
	ShowWarning(message string)

	// Connection reports the health probe outcome.
	Connection(ok bool, detail string)

	FileSelected(name string)
	UploadStatus(message string, status UploadStatus)
	// QueryEnabled is called once the CSV is loaded.
	QueryEnabled()

	ModeChanged(mode InputMode)
	RecordingStarted()
	RecordingTime(elapsed string)
	RecordingStopped()
	ShowTranscription(text string)

	ShowResult(result QueryResult)
	ClearResult()
	FocusQuery()
}

// NopSurface ignores everything. Embed it to implement part of Surface.
type NopSurface struct{}

func (NopSurface) ShowBusy(string)                   {}
func (NopSurface) HideBusy()                         {}
func (NopSurface) ShowError(string)                  {}
func (NopSurface) ShowSuccess(string)                {}
func (NopSurface) ShowWarning(string)                {}
func (NopSurface) Connection(bool, string)           {}
func (NopSurface) FileSelected(string)               {}
func (NopSurface) UploadStatus(string, UploadStatus) {}
func (NopSurface) QueryEnabled()                     {}
func (NopSurface) ModeChanged(InputMode)             {}
func (NopSurface) RecordingStarted()                 {}
func (NopSurface) RecordingTime(string)              {}
func (NopSurface) RecordingStopped()                 {}
func (NopSurface) ShowTranscription(string)          {}
func (NopSurface) ShowResult(QueryResult)            {}
func (NopSurface) ClearResult()                      {}
func (NopSurface) FocusQuery()                       {}
