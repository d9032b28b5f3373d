// Package api provides the HTTP client and wire types for the VoiceAI
// backend (CSV ingestion, transcription, context retrieval, SQL generation).
package api

// Endpoint paths relative to the configured base URL.
const (
	PathHealth          = "/health"
	PathLoadCSV         = "/load-csv"
	PathTranscribe      = "/transcribe"
	PathRetrieveContext = "/retrieve-context"
	PathGenerateSQL     = "/generate-sql"
)

// Multipart field names.
const (
	FieldFile       = "file"
	FieldGroqAPIKey = "groq_api_key"
)

// QueryRequest is the JSON body for /retrieve-context and /generate-sql.
type QueryRequest struct {
	Query string `json:"query"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// LoadCSVResponse is returned by /load-csv.
type LoadCSVResponse struct {
	Message         string `json:"message,omitempty"`
	DocumentsLoaded int    `json:"documents_loaded"`
	DocumentChunks  int    `json:"document_chunks"`
}

// TranscribeResponse is returned by /transcribe.
type TranscribeResponse struct {
	TranscribedText string `json:"transcribed_text"`
}

// ContextResponse is returned by /retrieve-context.
type ContextResponse struct {
	Context        string `json:"context"`
	DocumentsCount int    `json:"documents_count,omitempty"`
}

// SQLResponse is returned by /generate-sql.
type SQLResponse struct {
	NaturalLanguageQuery string `json:"natural_language_query,omitempty"`
	GeneratedSQL         string `json:"generated_sql"`
}

// ErrorResponse is the body of any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Fallback messages used when a failed response carries no usable error.
var fallbackMessages = map[string]string{
	PathHealth:          "Health check failed",
	PathLoadCSV:         "Failed to load CSV",
	PathTranscribe:      "Transcription failed",
	PathRetrieveContext: "Failed to retrieve context",
	PathGenerateSQL:     "Failed to generate SQL",
}

// FallbackMessage returns the generic failure message for an endpoint.
func FallbackMessage(path string) string {
	if msg, ok := fallbackMessages[path]; ok {
		return msg
	}
	return "Request failed"
}

// Audio is a finished recording ready for upload.
type Audio struct {
	Filename    string
	ContentType string
	Data        []byte
}
