// Package app assembles the web application.
//
// # Minimal usage
//
//	package main
//
//	import (
//	    "fmt"
//	    "net/http"
//
//	    "github.com/shashiranjanraj/webstart/pkg/app"
//	    "github.com/shashiranjanraj/webstart/pkg/router"
//	)
//
//	func main() {
//	    app.Create("dev", app.Routes(func(r *router.Router) {
//	        r.Get("/hello", "hello", func(w http.ResponseWriter, req *http.Request) {
//	            fmt.Fprintln(w, "hello")
//	        })
//	    })).Run()
//	}
//
// Every request walks the same ordered stages: view config, access log (only
// when a format is given), CORS, JSON body parser, static files, routes and
// the not-found fallback, then the development and production error
// renderers.
package app

import (
	"io"
	"net/http"
	"os"

	"github.com/shashiranjanraj/webstart/config"
	"github.com/shashiranjanraj/webstart/pkg/bodyparser"
	"github.com/shashiranjanraj/webstart/pkg/metrics"
	"github.com/shashiranjanraj/webstart/pkg/middleware"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
	"github.com/shashiranjanraj/webstart/pkg/reqid"
	"github.com/shashiranjanraj/webstart/pkg/router"
	"github.com/shashiranjanraj/webstart/pkg/static"
	"github.com/shashiranjanraj/webstart/pkg/storage"
	"github.com/shashiranjanraj/webstart/pkg/view"
)

// Application is the assembled request handler plus the settings it was
// built from. Create one with Create; it is safe for concurrent use.
type Application struct {
	cfg       config.App
	logFormat string
	logOut    io.Writer
	disk      storage.Disk
	views     *view.Engine
	routesFns []func(*router.Router)

	router   *router.Router
	pipeline *pipeline.Pipeline
}

// Option customises Create.
type Option func(*Application)

// WithConfig replaces the settings read from config.Current.
func WithConfig(cfg config.App) Option {
	return func(a *Application) { a.cfg = cfg }
}

// Routes registers a route-registration callback. Callbacks run in order.
func Routes(fn func(*router.Router)) Option {
	return func(a *Application) { a.routesFns = append(a.routesFns, fn) }
}

// WithDisk serves static files from d instead of the public directory.
func WithDisk(d storage.Disk) Option {
	return func(a *Application) { a.disk = d }
}

// WithLogOutput sends access-log lines to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *Application) { a.logOut = w }
}

// WithViews overrides the template root and engine.
func WithViews(dir, engine string) Option {
	return func(a *Application) {
		a.cfg.ViewsDir = dir
		a.cfg.ViewEngine = engine
	}
}

// Create assembles the application. An empty loggerFormat installs no access
// logger. Nothing is read from disk here; templates and static files are
// opened on the first request that needs them.
func Create(loggerFormat string, opts ...Option) *Application {
	a := &Application{
		cfg:       config.Current(),
		logFormat: loggerFormat,
		logOut:    os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.disk == nil {
		a.disk = storage.NewLocal(a.cfg.PublicDir)
	}
	a.views = view.New(a.cfg.ViewsDir, a.cfg.ViewEngine)

	a.router = router.New()
	for _, fn := range a.routesFns {
		fn(a.router)
	}
	if a.cfg.MetricsEnabled {
		a.router.Handle("/metrics", "metrics", metrics.Handler())
	}

	limit := a.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = bodyparser.DefaultLimit
	}

	var b pipeline.Builder
	b.UseIf(a.cfg.MetricsEnabled, pipeline.Wrap("metrics", metrics.Middleware())).
		Use(pipeline.Wrap("request-id", reqid.Middleware())).
		Use(view.Stage(a.views)).
		UseIf(loggerFormat != "", middleware.AccessLog(loggerFormat, a.logOut)).
		Use(
			middleware.CORS(middleware.DefaultCORSOptions()),
			bodyparser.JSON(limit),
			static.New(a.disk, static.DefaultOptions()),
			pipeline.Handler("router", a.router),
			notFound(),
		).
		CatchIf(a.cfg.IsDevelopment(), a.errorStage("development-errors", true)).
		Catch(a.errorStage("production-errors", false))

	a.pipeline = b.Build()
	return a
}

// ServeHTTP dispatches one request through the pipeline.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.pipeline.ServeHTTP(w, r)
}

// Env returns the environment mode the application was assembled for.
func (a *Application) Env() string { return a.cfg.Env }

// Config returns the settings snapshot.
func (a *Application) Config() config.App { return a.cfg }

// Router returns the route table.
func (a *Application) Router() *router.Router { return a.router }

// Views returns the view engine shared by handlers and the error stages.
func (a *Application) Views() *view.Engine { return a.views }

// Stages lists the installed stage names in dispatch order.
func (a *Application) Stages() []string { return a.pipeline.Names() }
