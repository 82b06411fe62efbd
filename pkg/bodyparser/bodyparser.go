// Package bodyparser decodes JSON request bodies ahead of the route table.
//
// Requests whose Content-Type is application/json (or any +json type) are
// read up to the configured limit and parsed. The parsed value is available
// through FromCtx and the raw bytes are put back on r.Body, so handlers can
// still decode into their own structs:
//
//	body, _ := bodyparser.FromCtx(r.Context())
//	m, _ := body.(map[string]any)
//
// Other content types pass through untouched.
package bodyparser

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/shashiranjanraj/webstart/pkg/httperr"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
)

// DefaultLimit is the largest accepted body: 50 MB.
const DefaultLimit int64 = 50 << 20

type ctxKey struct{}

type parsed struct {
	value any
	raw   []byte
}

// FromCtx returns the parsed JSON body, if the body parser ran on the request.
func FromCtx(ctx context.Context) (any, bool) {
	p, ok := ctx.Value(ctxKey{}).(parsed)
	return p.value, ok
}

// Raw returns the raw JSON bytes read by the body parser.
func Raw(ctx context.Context) []byte {
	p, _ := ctx.Value(ctxKey{}).(parsed)
	return p.raw
}

// IsJSON reports whether the request declares a JSON media type.
func IsJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// JSON returns the body-parser stage. A limit <= 0 means DefaultLimit.
func JSON(limit int64) pipeline.Stage {
	if limit <= 0 {
		limit = DefaultLimit
	}

	return pipeline.Func("json", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		if !IsJSON(r) {
			next(w, r, nil)
			return
		}

		if r.ContentLength > limit {
			next(w, r, httperr.PayloadTooLarge(limit))
			return
		}

		raw, err := readLimited(r.Body, limit)
		if err != nil {
			next(w, r, err)
			return
		}

		value, err := decode(raw)
		if err != nil {
			next(w, r, err)
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, parsed{value: value, raw: raw}))
		r.Body = io.NopCloser(bytes.NewReader(raw))
		r.ContentLength = int64(len(raw))
		next(w, r, nil)
	})
}

// readLimited reads at most limit bytes; one more byte means the body is too
// large.
func readLimited(body io.Reader, limit int64) ([]byte, error) {
	if body == nil || body == http.NoBody {
		return nil, nil
	}

	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, httperr.BadRequest("request aborted", err)
	}
	if int64(len(raw)) > limit {
		return nil, httperr.PayloadTooLarge(limit)
	}
	return raw, nil
}

// decode accepts only objects and arrays. An empty body decodes to an empty
// object.
func decode(raw []byte) (any, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}

	if c := trimmed[0]; c != '{' && c != '[' {
		return nil, httperr.BadRequest("invalid JSON: body must be an object or array", nil)
	}

	var value any
	if err := sonic.Unmarshal(trimmed, &value); err != nil {
		return nil, httperr.BadRequest("invalid JSON", err)
	}
	return value, nil
}
