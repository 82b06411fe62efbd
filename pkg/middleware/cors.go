// Package middleware provides the header and logging stages of the request
// pipeline.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shashiranjanraj/webstart/pkg/pipeline"
)

// CORSOptions configures the CORS stage.
type CORSOptions struct {
	AllowOrigin      string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
}

// DefaultCORSOptions allows any origin with the usual REST methods.
func DefaultCORSOptions() CORSOptions {
	return CORSOptions{
		AllowOrigin:      "*",
		AllowMethods:     []string{"GET", "POST", "OPTIONS", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"X-Requested-With", "content-type"},
		AllowCredentials: true,
	}
}

// CORS sets the four Access-Control-* headers on every response, whatever
// the request origin or method. OPTIONS requests continue down the chain.
func CORS(opts CORSOptions) pipeline.Stage {
	methods := strings.Join(opts.AllowMethods, ",")
	headers := strings.Join(opts.AllowHeaders, ",")
	credentials := strconv.FormatBool(opts.AllowCredentials)

	return pipeline.Func("cors", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", opts.AllowOrigin)
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Allow-Credentials", credentials)

		next(w, r, nil)
	})
}
