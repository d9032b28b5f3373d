// Package journal records client diagnostics (surfaced errors, connectivity
// warnings, completed uploads and queries) in SQLite.
package journal

import "time"

// Entry kinds.
const (
	KindError         = "error"
	KindWarning       = "warning"
	KindUpload        = "upload"
	KindTranscription = "transcription"
	KindQuery         = "query"
)

// Entry is one diagnostics record.
type Entry struct {
	ID        string
	SessionID string
	Kind      string
	Message   string
	Detail    string
	CreatedAt time.Time
}
