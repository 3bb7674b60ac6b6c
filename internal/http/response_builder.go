// Package http provides HTTP server and handler implementations.
//
// This file implements helpers for writing JSON and error responses in a
// consistent shape.

package http

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// ErrorBody is the JSON body of every API error.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// JSONResponse provides a fluent API for writing JSON responses.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a response with a 200 status.
func NewJSONResponse(payload any) *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		payload:    payload,
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Write encodes the payload. Encoding happens before any header is sent so
// a failure can still become a 500.
func (b *JSONResponse) Write(w http.ResponseWriter) error {
	body, err := json.Marshal(b.payload)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return err
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(b.statusCode)
	_, err = w.Write(body)
	return err
}

// JSONError creates a JSON error response.
func JSONError(statusCode int, message, requestID string) *JSONResponse {
	return NewJSONResponse(ErrorBody{Error: message, RequestID: requestID}).Status(statusCode)
}

// HTMLError writes a small HTML error page. The message is escaped.
func HTMLError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`))
}
