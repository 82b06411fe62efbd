package pipeline

import (
	"context"
	"net/http"

	"github.com/shashiranjanraj/webstart/pkg/httperr"
)

type ctxKey int

const (
	nextKey ctxKey = iota
	writerKey
)

// StageFunc adapts a function to the Stage interface through Func.
type StageFunc func(w http.ResponseWriter, r *http.Request, next Next)

// ErrorStageFunc adapts a function to the ErrorStage interface through
// ErrorFunc.
type ErrorStageFunc func(err error, w http.ResponseWriter, r *http.Request, next Next)

type funcStage struct {
	name string
	fn   StageFunc
}

func (s funcStage) Name() string { return s.name }

func (s funcStage) Handle(w http.ResponseWriter, r *http.Request, next Next) {
	s.fn(w, r, next)
}

// Func returns a named Stage backed by fn.
func Func(name string, fn StageFunc) Stage {
	return funcStage{name: name, fn: fn}
}

type funcErrorStage struct {
	name string
	fn   ErrorStageFunc
}

func (s funcErrorStage) Name() string { return s.name }

func (s funcErrorStage) HandleError(err error, w http.ResponseWriter, r *http.Request, next Next) {
	s.fn(err, w, r, next)
}

// ErrorFunc returns a named ErrorStage backed by fn.
func ErrorFunc(name string, fn ErrorStageFunc) ErrorStage {
	return funcErrorStage{name: name, fn: fn}
}

// ── net/http middleware bridge ───────────────────────────────────────────────

type wrapped struct {
	name string
	h    http.Handler
}

func (s wrapped) Name() string { return s.name }

func (s wrapped) Handle(w http.ResponseWriter, r *http.Request, next Next) {
	s.h.ServeHTTP(w, WithNext(r, next))
}

// Wrap turns a func(http.Handler) http.Handler middleware into a Stage. The
// inner handler given to mw continues the pipeline.
func Wrap(name string, mw func(http.Handler) http.Handler) Stage {
	return wrapped{name: name, h: mw(http.HandlerFunc(Pass))}
}

// Handler turns a plain http.Handler into a Stage. The handler may call Pass
// or Fail to continue; otherwise it terminates the chain.
func Handler(name string, h http.Handler) Stage {
	return wrapped{name: name, h: h}
}

// WithNext stores the continuation in the request context so plain
// http.Handlers further down can reach it through Pass and Fail.
func WithNext(r *http.Request, next Next) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), nextKey, next))
}

func nextFrom(r *http.Request) (Next, bool) {
	next, ok := r.Context().Value(nextKey).(Next)
	return next, ok && next != nil
}

// Pass hands the request to the next stage. Outside a pipeline it answers 404.
func Pass(w http.ResponseWriter, r *http.Request) {
	if next, ok := nextFrom(r); ok {
		next(w, r, nil)
		return
	}
	http.NotFound(w, r)
}

// Fail hands err to the error stages. Outside a pipeline it writes a plain
// error response with the status resolved from err.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	if next, ok := nextFrom(r); ok {
		next(w, r, err)
		return
	}
	status := httperr.StatusOf(err)
	http.Error(w, http.StatusText(status), status)
}

// Committed reports whether a response status has already been sent for r.
func Committed(r *http.Request) bool {
	rw, ok := r.Context().Value(writerKey).(*responseWriter)
	return ok && rw.wroteHeader
}

// ── response tracking ────────────────────────────────────────────────────────

// responseWriter records whether the header has been written.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		rw.wroteHeader = true
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
