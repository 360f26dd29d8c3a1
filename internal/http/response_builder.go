// Package http serves the expense JSON API.
//
// This file holds the fluent builder every handler answers through, so all
// bodies are JSON and every error carries a "message" field.
package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"expenses/internal/log"
)

// JSONResponseBuilder assembles a JSON response.
type JSONResponseBuilder struct {
	statusCode int
	payload    interface{}
	headers    map[string]string
}

// NewJSONResponse creates a builder with a default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v interface{}) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Message sets a {"message": msg} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Body(messageBody{Message: msg})
}

// Write sends the response. The body is encoded before the status line goes
// out, so a value that cannot be encoded turns into a 500 instead of an
// empty reply.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	if b.payload != nil {
		if err := json.NewEncoder(&body).Encode(b.payload); err != nil {
			if r != nil {
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response",
					log.FieldError, err)
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(messageBody{Message: "Failed to encode response"})
			return
		}
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if body.Len() > 0 {
		_, _ = w.Write(body.Bytes())
	}
}

type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse builds the uniform error body.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Message(message)
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError carries detail in an "error" field when detail is
// non-empty; callers pass it only outside production.
func InternalServerError(message, detail string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusInternalServerError).
		Body(messageBody{Message: message, Error: detail})
}

func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	b := ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed")
	if allowedMethods != "" {
		b.Header("Allow", allowedMethods)
	}
	return b
}
