package api

import "fmt"

// ServerError is returned when the API answers with a non-2xx status.
// Message is the body's "error" field, or the endpoint fallback.
type ServerError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string { return e.Message }

// NetworkError is returned when the API could not be reached or the
// response could not be read.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
