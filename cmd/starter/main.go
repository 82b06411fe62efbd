// Command starter runs the bare application: no routes beyond /metrics, so
// every request is answered by the static files or the error views.
//
//	starter serve --log-format dev --port 3000
//	starter route:list
//	starter config
package main

import "github.com/shashiranjanraj/webstart/pkg/app"

func main() {
	app.Execute("starter")
}
