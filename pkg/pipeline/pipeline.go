// Package pipeline runs a request through an ordered list of stages.
//
// Every stage receives the continuation next. Calling next(w, r, nil) hands
// the request to the following stage; calling next(w, r, err) skips the
// remaining regular stages and enters the error stages. A stage that does
// not call next terminates the chain.
//
//	var b pipeline.Builder
//	b.Use(cors, bodyParser).
//		UseIf(format != "", accessLog).
//		Catch(renderError)
//	http.ListenAndServe(":3000", b.Build())
//
// The stage list is fixed by Build and never changes afterwards.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/shashiranjanraj/webstart/pkg/httperr"
	"github.com/shashiranjanraj/webstart/pkg/logger"
)

// Next is the continuation passed to every stage.
type Next func(w http.ResponseWriter, r *http.Request, err error)

// Stage is one regular unit of the pipeline.
type Stage interface {
	Name() string
	Handle(w http.ResponseWriter, r *http.Request, next Next)
}

// ErrorStage handles errors raised by earlier stages.
type ErrorStage interface {
	Name() string
	HandleError(err error, w http.ResponseWriter, r *http.Request, next Next)
}

// Pipeline is an immutable, ready-to-serve stage chain.
type Pipeline struct {
	stages      []Stage
	errorStages []ErrorStage
}

// Builder collects stages in order. The zero value is ready to use.
type Builder struct {
	stages      []Stage
	errorStages []ErrorStage
}

// Use appends regular stages.
func (b *Builder) Use(stages ...Stage) *Builder {
	for _, s := range stages {
		if s != nil {
			b.stages = append(b.stages, s)
		}
	}
	return b
}

// UseIf appends stages only when ok is true.
func (b *Builder) UseIf(ok bool, stages ...Stage) *Builder {
	if !ok {
		return b
	}
	return b.Use(stages...)
}

// Catch appends error stages.
func (b *Builder) Catch(stages ...ErrorStage) *Builder {
	for _, s := range stages {
		if s != nil {
			b.errorStages = append(b.errorStages, s)
		}
	}
	return b
}

// CatchIf appends error stages only when ok is true.
func (b *Builder) CatchIf(ok bool, stages ...ErrorStage) *Builder {
	if !ok {
		return b
	}
	return b.Catch(stages...)
}

// Build freezes the collected stages into a Pipeline.
func (b *Builder) Build() *Pipeline {
	return &Pipeline{
		stages:      append([]Stage(nil), b.stages...),
		errorStages: append([]ErrorStage(nil), b.errorStages...),
	}
}

// Names lists regular stages followed by error stages, in dispatch order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.stages)+len(p.errorStages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	for _, s := range p.errorStages {
		names = append(names, s.Name())
	}
	return names
}

// ServeHTTP dispatches one request through the chain.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := &responseWriter{ResponseWriter: w}
	r = r.WithContext(context.WithValue(r.Context(), writerKey, rw))

	d := &dispatch{p: p}
	d.next(rw, r, nil)

	if !d.exhausted || rw.wroteHeader {
		return
	}

	status := http.StatusNotFound
	if d.err != nil {
		status = httperr.StatusOf(d.err)
	}
	http.Error(rw, http.StatusText(status), status)
}

// dispatch is the per-request cursor over the stage lists.
type dispatch struct {
	p         *Pipeline
	stage     int
	errStage  int
	err       error
	exhausted bool
}

func (d *dispatch) next(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		d.err = err
	}

	if d.err == nil {
		if d.stage < len(d.p.stages) {
			s := d.p.stages[d.stage]
			d.stage++
			d.invoke(w, r, func() { s.Handle(w, r, d.next) })
			return
		}
	} else if d.errStage < len(d.p.errorStages) {
		s := d.p.errorStages[d.errStage]
		d.errStage++
		cur := d.err
		d.invoke(w, r, func() { s.HandleError(cur, w, r, d.next) })
		return
	}

	d.exhausted = true
}

// invoke runs fn and turns a panic into an error for the error stages.
func (d *dispatch) invoke(w http.ResponseWriter, r *http.Request, fn func()) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}

		err := httperr.Recovered(rec, debug.Stack())
		logger.WithCtx(r.Context()).Error("panic recovered",
			"error", fmt.Sprintf("%v", rec),
			"stack", err.Stack,
			"method", r.Method,
			"path", r.URL.Path,
		)
		d.next(w, r, err)
	}()
	fn()
}
