// Package httperr carries an HTTP status alongside an error so that the
// terminal error stages can pick the response code.
//
//	return httperr.New(http.StatusConflict, "email already taken")
//	return httperr.Wrap(http.StatusBadGateway, err)
//
// Errors without a status resolve to 500 through StatusOf.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error with an HTTP status code.
type Error struct {
	Status  int
	Message string
	Err     error
	// Stack is the goroutine stack of a recovered panic, if any.
	Stack string
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return http.StatusText(e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by the error.
func (e *Error) StatusCode() int { return e.Status }

// New returns an error with the given status and message.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap attaches a status to err. The message is taken from err.
func Wrap(status int, err error) *Error {
	return &Error{Status: status, Err: err}
}

// Recovered turns a recovered panic value into a 500 carrying stack.
func Recovered(v any, stack []byte) *Error {
	return &Error{
		Status: http.StatusInternalServerError,
		Err:    fmt.Errorf("panic: %v", v),
		Stack:  string(stack),
	}
}

// NotFound is synthesized when no stage claims a request.
func NotFound() *Error {
	return New(http.StatusNotFound, "Not Found")
}

// PayloadTooLarge is raised by the body parser when the request body exceeds
// limit bytes.
func PayloadTooLarge(limit int64) *Error {
	return &Error{
		Status:  http.StatusRequestEntityTooLarge,
		Message: "request entity too large",
		Err:     fmt.Errorf("body exceeds %d bytes", limit),
	}
}

// BadRequest is raised for bodies that cannot be parsed.
func BadRequest(message string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message, Err: err}
}

type statusCoder interface {
	StatusCode() int
}

// StatusOf returns the first 4xx/5xx status found in err's chain, or 500.
func StatusOf(err error) int {
	for e := err; e != nil; e = errors.Unwrap(e) {
		sc, ok := e.(statusCoder)
		if !ok {
			continue
		}
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// Message returns the user-facing message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Detail builds the diagnostic payload shown in development. The map is never
// empty: status, message and the Go type are always present. A recovered
// panic adds its stack.
func Detail(err error) map[string]any {
	status := StatusOf(err)
	detail := map[string]any{
		"status":  status,
		"message": Message(err),
		"type":    fmt.Sprintf("%T", err),
		// 4xx messages are meant for the client.
		"expose": status < 500,
	}

	var chain []string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	if len(chain) > 0 {
		detail["causes"] = chain
	}

	var he *Error
	if errors.As(err, &he) && he.Stack != "" {
		detail["stack"] = he.Stack
	}

	return detail
}
