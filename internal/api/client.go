package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is where the backend listens when run locally.
const DefaultBaseURL = "http://localhost:5000"

// maxErrorBody bounds how much of a failed response is read for its error field.
const maxErrorBody = 64 * 1024

// Client talks to the VoiceAI backend over HTTP. Each method issues exactly
// one request; there are no retries.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the given base URL. A non-positive timeout
// leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration) *Client {
	hc := &http.Client{}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: hc,
	}
}

// Health probes the /health endpoint.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+PathHealth, nil)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("build health request: %w", err)
	}
	var out HealthResponse
	if err := c.do(req, PathHealth, &out); err != nil {
		return HealthResponse{}, err
	}
	return out, nil
}

// LoadCSV uploads a CSV file for ingestion. apiKey is sent as groq_api_key
// only when it is non-empty after trimming.
func (c *Client) LoadCSV(ctx context.Context, filename string, file io.Reader, apiKey string) (LoadCSVResponse, error) {
	fields := map[string]string{}
	if key := strings.TrimSpace(apiKey); key != "" {
		fields[FieldGroqAPIKey] = key
	}
	req, err := c.multipartRequest(ctx, PathLoadCSV, filename, "text/csv", file, fields)
	if err != nil {
		return LoadCSVResponse{}, err
	}
	var out LoadCSVResponse
	if err := c.do(req, PathLoadCSV, &out); err != nil {
		return LoadCSVResponse{}, err
	}
	return out, nil
}

// Transcribe uploads a recording and returns the transcribed text.
func (c *Client) Transcribe(ctx context.Context, audio Audio) (TranscribeResponse, error) {
	filename := audio.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	req, err := c.multipartRequest(ctx, PathTranscribe, filename, audio.ContentType, bytes.NewReader(audio.Data), nil)
	if err != nil {
		return TranscribeResponse{}, err
	}
	var out TranscribeResponse
	if err := c.do(req, PathTranscribe, &out); err != nil {
		return TranscribeResponse{}, err
	}
	return out, nil
}

// RetrieveContext fetches the CSV passages relevant to query.
func (c *Client) RetrieveContext(ctx context.Context, query string) (ContextResponse, error) {
	req, err := c.jsonRequest(ctx, PathRetrieveContext, QueryRequest{Query: query})
	if err != nil {
		return ContextResponse{}, err
	}
	var out ContextResponse
	if err := c.do(req, PathRetrieveContext, &out); err != nil {
		return ContextResponse{}, err
	}
	return out, nil
}

// GenerateSQL asks the backend to turn query into SQL.
func (c *Client) GenerateSQL(ctx context.Context, query string) (SQLResponse, error) {
	req, err := c.jsonRequest(ctx, PathGenerateSQL, QueryRequest{Query: query})
	if err != nil {
		return SQLResponse{}, err
	}
	var out SQLResponse
	if err := c.do(req, PathGenerateSQL, &out); err != nil {
		return SQLResponse{}, err
	}
	return out, nil
}

func (c *Client) jsonRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// multipartRequest buffers the whole body; uploads are single CSV files or
// short voice clips.
func (c *Client) multipartRequest(ctx context.Context, path, filename, contentType string, file io.Reader, fields map[string]string) (*http.Request, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := createFilePart(mw, filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("create %s file part: %w", path, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy %s file: %w", path, err)
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write %s field %s: %w", path, name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close %s body: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func createFilePart(mw *multipart.Writer, filename, contentType string) (io.Writer, error) {
	if contentType == "" {
		return mw.CreateFormFile(FieldFile, filename)
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldFile, escapeQuotes(filename)),
	}
	h["Content-Type"] = []string{contentType}
	return mw.CreatePart(h)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// do sends req and decodes a 2xx body into out. Non-2xx responses become
// *ServerError; transport and decode failures become *NetworkError.
func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServerError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body, path),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Endpoint: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorMessage(body io.Reader, path string) string {
	var er ErrorResponse
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&er); err != nil {
		return FallbackMessage(path)
	}
	if strings.TrimSpace(er.Error) == "" {
		return FallbackMessage(path)
	}
	return er.Error
}
