package app

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/shashiranjanraj/webstart/pkg/httperr"
	"github.com/shashiranjanraj/webstart/pkg/logger"
	"github.com/shashiranjanraj/webstart/pkg/metrics"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
	"github.com/shashiranjanraj/webstart/pkg/view"
)

// notFound runs after the route table: nothing claimed the request.
func notFound() pipeline.Stage {
	return pipeline.Func("not-found", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		next(w, r, httperr.NotFound())
	})
}

// errorStage renders the "error" view. With detailed set the view receives
// the diagnostic detail of err; otherwise an empty object.
func (a *Application) errorStage(name string, detailed bool) pipeline.ErrorStage {
	return pipeline.ErrorFunc(name, func(err error, w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		a.renderError(err, w, r, detailed)
	})
}

func (a *Application) renderError(err error, w http.ResponseWriter, r *http.Request, detailed bool) {
	status := httperr.StatusOf(err)
	log := logger.WithCtx(r.Context())
	metrics.RecordError(status)

	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"error", err.Error(),
			"status", status,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}

	if pipeline.Committed(r) {
		log.Warn("error after response started", "error", err.Error(), "path", r.URL.Path)
		return
	}

	data := view.ErrorView{
		Message: httperr.Message(err),
		Error:   map[string]any{},
		Status:  status,
	}
	if detailed {
		data.Error = httperr.Detail(err)
	}

	var buf bytes.Buffer
	if rerr := a.views.Render(&buf, "error", data); rerr != nil {
		log.Error("error view failed", "error", rerr.Error(), "status", status)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(status)
		fmt.Fprintf(w, "%d %s", status, data.Message)
		return
	}

	w.Header().Set("Content-Type", a.views.ContentType())
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
