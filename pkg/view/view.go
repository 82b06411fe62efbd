// Package view renders named templates from a template root directory.
//
// The engine identifier selects how a view name maps to a file and which
// template package executes it:
//
//	html  views/<name>.html  html/template (default)
//	text  views/<name>.tmpl  text/template
//	json  no files; the view data is encoded as JSON
//
// Templates are parsed on first use and cached, so constructing an Engine
// never touches the filesystem.
package view

import (
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	texttemplate "text/template"

	"github.com/bytedance/sonic"

	"github.com/shashiranjanraj/webstart/pkg/pipeline"
)

// Supported engine identifiers.
const (
	HTML = "html"
	Text = "text"
	JSON = "json"
)

// ErrUnknownEngine is returned by Render when the engine identifier is not
// supported.
var ErrUnknownEngine = errors.New("view: unknown engine")

// ErrorView is the data handed to the "error" view.
type ErrorView struct {
	Message string         `json:"message"`
	Error   map[string]any `json:"error"`
	Status  int            `json:"status"`
}

// executor is the common surface of html/template and text/template.
type executor interface {
	Execute(w io.Writer, data any) error
}

// Engine resolves and renders views.
type Engine struct {
	dir    string
	engine string

	mu    sync.RWMutex
	cache map[string]executor
}

// New registers a template root and an engine identifier.
func New(dir, engine string) *Engine {
	if engine == "" {
		engine = HTML
	}
	return &Engine{
		dir:    dir,
		engine: engine,
		cache:  make(map[string]executor),
	}
}

// Dir returns the template root.
func (e *Engine) Dir() string { return e.dir }

// Name returns the engine identifier.
func (e *Engine) Name() string { return e.engine }

// ContentType returns the Content-Type a rendered view should be sent with.
func (e *Engine) ContentType() string {
	switch e.engine {
	case JSON:
		return "application/json; charset=utf-8"
	case Text:
		return "text/plain; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// Render executes the view called name with data into w.
func (e *Engine) Render(w io.Writer, name string, data any) error {
	if e.engine == JSON {
		out, err := sonic.Marshal(data)
		if err != nil {
			return fmt.Errorf("view: encode %s: %w", name, err)
		}
		_, err = w.Write(out)
		return err
	}

	tpl, err := e.lookup(name)
	if err != nil {
		return err
	}
	if err := tpl.Execute(w, data); err != nil {
		return fmt.Errorf("view: render %s: %w", name, err)
	}
	return nil
}

func (e *Engine) lookup(name string) (executor, error) {
	e.mu.RLock()
	tpl, ok := e.cache[name]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := e.parse(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[name] = tpl
	e.mu.Unlock()
	return tpl, nil
}

func (e *Engine) parse(name string) (executor, error) {
	var ext string
	switch e.engine {
	case HTML:
		ext = ".html"
	case Text:
		ext = ".tmpl"
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEngine, e.engine)
	}

	path := filepath.Join(e.dir, filepath.FromSlash(name)+ext)
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("view: failed to lookup view %q in %q: %w", name, e.dir, err)
	}

	if e.engine == Text {
		tpl, err := texttemplate.New(name).Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("view: parse %s: %w", path, err)
		}
		return tpl, nil
	}

	tpl, err := htmltemplate.New(name).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("view: parse %s: %w", path, err)
	}
	return tpl, nil
}

type ctxKey struct{}

// WithEngine stores e in ctx.
func WithEngine(ctx context.Context, e *Engine) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

// FromCtx returns the engine installed by Stage, or nil.
func FromCtx(ctx context.Context) *Engine {
	e, _ := ctx.Value(ctxKey{}).(*Engine)
	return e
}

// Stage exposes e to every later stage through the request context.
func Stage(e *Engine) pipeline.Stage {
	return pipeline.Func("views", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		next(w, r.WithContext(WithEngine(r.Context(), e)), nil)
	})
}
