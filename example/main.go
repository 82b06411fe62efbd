// Package main is an example project built on the bootstrap.
//
// To run this example:
//
//	cd example
//	go run . serve --log-format dev
//	# Then: curl http://localhost:3000/hello
//	#       curl -XPOST -H 'Content-Type: application/json' -d '{"name":"ada"}' localhost:3000/greet
package main

import (
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/shashiranjanraj/webstart/pkg/app"
	"github.com/shashiranjanraj/webstart/pkg/bodyparser"
	"github.com/shashiranjanraj/webstart/pkg/httperr"
	"github.com/shashiranjanraj/webstart/pkg/logger"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
	"github.com/shashiranjanraj/webstart/pkg/response"
	"github.com/shashiranjanraj/webstart/pkg/router"
	"github.com/shashiranjanraj/webstart/pkg/view"
)

func main() {
	app.Execute("example", app.Routes(func(r *router.Router) {
		r.Get("/", "home", homeHandler)
		r.Get("/hello", "hello", helloHandler)
		r.Post("/greet", "greet", greetHandler)
	}))
}

// ─── Example Handlers ─────────────────────────────────────────────────────────

func homeHandler(w http.ResponseWriter, r *http.Request) {
	e := view.FromCtx(r.Context())
	w.Header().Set("Content-Type", e.ContentType())
	if err := e.Render(w, "index", map[string]string{"Title": "webstart"}); err != nil {
		pipeline.Fail(w, r, err)
	}
}

func helloHandler(w http.ResponseWriter, r *http.Request) {
	response.Success(w, r, map[string]string{"message": "hello"})
}

type greeting struct {
	Name string `json:"name"`
}

func greetHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := bodyparser.FromCtx(r.Context()); !ok {
		pipeline.Fail(w, r, httperr.New(http.StatusUnsupportedMediaType, "send application/json"))
		return
	}

	var g greeting
	if err := sonic.Unmarshal(bodyparser.Raw(r.Context()), &g); err != nil {
		pipeline.Fail(w, r, httperr.BadRequest("invalid greeting", err))
		return
	}
	if g.Name == "" {
		response.ValidationError(w, r, map[string]string{"name": "required"})
		return
	}

	logger.WithCtx(r.Context()).Info("greeting", "name", g.Name)
	response.Success(w, r, map[string]string{"message": "hello, " + g.Name})
}
