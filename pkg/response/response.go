// Package response writes JSON envelopes for route handlers mounted in the
// pipeline. Successful payloads are written directly; failures are handed
// to the error stages so they render through the same error view as every
// other failure.
package response

import (
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/shashiranjanraj/webstart/pkg/httperr"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
	"github.com/shashiranjanraj/webstart/pkg/reqid"
)

type envelope struct {
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Invalid carries field-level failures to the error stages as a 422.
type Invalid struct {
	Fields map[string]string
}

func (e *Invalid) Error() string { return "Validation failed" }

// StatusCode satisfies the interface httperr.StatusOf looks for.
func (e *Invalid) StatusCode() int { return http.StatusUnprocessableEntity }

func write(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(envelope{
		Status:    status,
		RequestID: reqid.FromCtx(r.Context()),
		Data:      data,
	})
}

// Success sends a 200 JSON response with data.
func Success(w http.ResponseWriter, r *http.Request, data any) {
	write(w, r, http.StatusOK, data)
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, r *http.Request, data any) {
	write(w, r, http.StatusCreated, data)
}

// Error fails the request with status and message.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	pipeline.Fail(w, r, httperr.New(status, message))
}

// ValidationError fails the request with a 422 carrying errs.
func ValidationError(w http.ResponseWriter, r *http.Request, errs map[string]string) {
	pipeline.Fail(w, r, &Invalid{Fields: errs})
}
