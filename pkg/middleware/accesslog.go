package middleware

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/webstart/pkg/logger"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
	"github.com/shashiranjanraj/webstart/pkg/reqid"
)

// Predefined access-log formats.
var formats = map[string]string{
	"combined": `:remote-addr - :remote-user [:date[clf]] ":method :url HTTP/:http-version" :status :res[content-length] ":referrer" ":user-agent"`,
	"common":   `:remote-addr - :remote-user [:date[clf]] ":method :url HTTP/:http-version" :status :res[content-length]`,
	"dev":      `:method :url :status :response-time ms - :res[content-length]`,
	"short":    `:remote-addr :remote-user :method :url HTTP/:http-version :status :res[content-length] - :response-time ms`,
	"tiny":     `:method :url :status :res[content-length] - :response-time ms`,
}

// FormatSlog logs a structured record through pkg/logger instead of a text
// line.
const FormatSlog = "slog"

var tokenRe = regexp.MustCompile(`:([-\w]{2,})(?:\[([^\]]+)\])?`)

// exchange is what a token can look at once the response is done.
type exchange struct {
	r       *http.Request
	rec     *statusRecorder
	start   time.Time
	elapsed time.Duration
}

type segment func(x *exchange) string

// AccessLog returns the request-logging stage. format is a predefined name
// (combined, common, dev, short, tiny, slog) or a token template such as
// ":method :url :status". One line is written to out per request after the
// response completes; out defaults to stdout.
func AccessLog(format string, out io.Writer) pipeline.Stage {
	if out == nil {
		out = os.Stdout
	}

	if format == FormatSlog {
		return pipeline.Func("logger", slogLine)
	}

	if predefined, ok := formats[format]; ok {
		format = predefined
	}
	segments := compile(format)

	var mu sync.Mutex
	return pipeline.Func("logger", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		x := &exchange{r: r, rec: &statusRecorder{ResponseWriter: w}, start: time.Now()}
		next(x.rec, r, nil)
		x.elapsed = time.Since(x.start)

		var b strings.Builder
		for _, seg := range segments {
			b.WriteString(seg(x))
		}
		b.WriteByte('\n')

		mu.Lock()
		defer mu.Unlock()
		_, _ = io.WriteString(out, b.String())
	})
}

// slogLine logs method, path, status, duration and IP with the request
// logger.
func slogLine(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}
	next(rec, r, nil)

	logger.WithCtx(r.Context()).Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.statusOr(http.StatusOK),
		"duration", time.Since(start).String(),
		"ip", r.RemoteAddr,
	)
}

// compile splits format into literal and token segments.
func compile(format string) []segment {
	var segs []segment
	last := 0
	for _, m := range tokenRe.FindAllStringSubmatchIndex(format, -1) {
		if m[0] > last {
			lit := format[last:m[0]]
			segs = append(segs, func(*exchange) string { return lit })
		}

		name := format[m[2]:m[3]]
		arg := ""
		if m[4] >= 0 {
			arg = format[m[4]:m[5]]
		}
		segs = append(segs, tokenSegment(name, arg))
		last = m[1]
	}
	if last < len(format) {
		lit := format[last:]
		segs = append(segs, func(*exchange) string { return lit })
	}
	return segs
}

func tokenSegment(name, arg string) segment {
	return func(x *exchange) string {
		v := token(x, name, arg)
		if v == "" {
			return "-"
		}
		return v
	}
}

func token(x *exchange, name, arg string) string {
	r := x.r
	switch name {
	case "method":
		return r.Method
	case "url":
		return r.URL.RequestURI()
	case "status":
		if x.rec.status == 0 {
			return ""
		}
		return strconv.Itoa(x.rec.status)
	case "response-time":
		digits := 3
		if n, err := strconv.Atoi(arg); err == nil && n >= 0 && n <= 6 {
			digits = n
		}
		return strconv.FormatFloat(float64(x.elapsed)/float64(time.Millisecond), 'f', digits, 64)
	case "date":
		return formatDate(x.start, arg)
	case "remote-addr":
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	case "remote-user":
		user, _, _ := r.BasicAuth()
		return user
	case "http-version":
		return fmt.Sprintf("%d.%d", r.ProtoMajor, r.ProtoMinor)
	case "referrer", "referer":
		return r.Referer()
	case "user-agent":
		return r.UserAgent()
	case "id":
		return reqid.FromCtx(r.Context())
	case "req":
		return strings.Join(r.Header.Values(arg), ", ")
	case "res":
		if strings.EqualFold(arg, "content-length") {
			if v := x.rec.Header().Get("Content-Length"); v != "" {
				return v
			}
			if x.rec.size > 0 {
				return strconv.Itoa(x.rec.size)
			}
			return ""
		}
		return strings.Join(x.rec.Header().Values(arg), ", ")
	default:
		return ""
	}
}

func formatDate(t time.Time, layout string) string {
	t = t.UTC()
	switch layout {
	case "clf":
		return t.Format("02/Jan/2006:15:04:05 -0700")
	case "iso":
		return t.Format("2006-01-02T15:04:05.000Z")
	default:
		return t.Format(http.TimeFormat)
	}
}

// statusRecorder wraps http.ResponseWriter to capture status and size.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *statusRecorder) statusOr(fallback int) int {
	if rw.status == 0 {
		return fallback
	}
	return rw.status
}
