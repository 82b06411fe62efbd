package pipeline_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/webstart/pkg/httperr"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
)

// trace records the order stages ran in.
type trace []string

func (tr *trace) pass(name string) pipeline.Stage {
	return pipeline.Func(name, func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		*tr = append(*tr, name)
		next(w, r, nil)
	})
}

func (tr *trace) fail(name string, err error) pipeline.Stage {
	return pipeline.Func(name, func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		*tr = append(*tr, name)
		next(w, r, err)
	})
}

func (tr *trace) write(name string, status int) pipeline.Stage {
	return pipeline.Func(name, func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		*tr = append(*tr, name)
		w.WriteHeader(status)
	})
}

func (tr *trace) catch(name string, forward bool) pipeline.ErrorStage {
	return pipeline.ErrorFunc(name, func(err error, w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		*tr = append(*tr, name+":"+err.Error())
		if forward {
			next(w, r, err)
			return
		}
		w.WriteHeader(httperr.StatusOf(err))
	})
}

func serve(p http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStagesRunInOrder(t *testing.T) {
	var tr trace
	var b pipeline.Builder
	b.Use(tr.pass("a"), tr.pass("b")).
		UseIf(false, tr.pass("skipped")).
		UseIf(true, tr.pass("c")).
		Use(tr.write("end", http.StatusAccepted)).
		Catch(tr.catch("never", false))

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, trace{"a", "b", "c", "end"}, tr)
}

func TestErrorSkipsRemainingRegularStages(t *testing.T) {
	var tr trace
	var b pipeline.Builder
	b.Use(tr.pass("a"), tr.fail("b", httperr.New(http.StatusConflict, "clash")), tr.pass("c")).
		Catch(tr.catch("first", true), tr.catch("second", false))

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, trace{"a", "b", "first:clash", "second:clash"}, tr)
}

func TestCatchIfSkipsWhenFalse(t *testing.T) {
	var tr trace
	var b pipeline.Builder
	b.Use(tr.fail("boom", errors.New("x"))).
		CatchIf(false, tr.catch("dev", false)).
		Catch(tr.catch("prod", false))

	p := b.Build()
	assert.Equal(t, []string{"boom", "prod"}, p.Names())

	rec := serve(p, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, trace{"boom", "prod:x"}, tr)
}

func TestNextNilFromErrorStageKeepsError(t *testing.T) {
	var tr trace
	var b pipeline.Builder
	b.Use(tr.fail("boom", errors.New("kept"))).
		Catch(
			pipeline.ErrorFunc("swallow", func(err error, w http.ResponseWriter, r *http.Request, next pipeline.Next) {
				tr = append(tr, "swallow")
				next(w, r, nil)
			}),
			tr.catch("last", false),
		)

	serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, trace{"boom", "swallow", "last:kept"}, tr)
}

func TestExhaustedChainIs404(t *testing.T) {
	var tr trace
	var b pipeline.Builder
	b.Use(tr.pass("a"))

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found")
}

func TestUnhandledErrorUsesItsStatus(t *testing.T) {
	var b pipeline.Builder
	b.Use(pipeline.Func("fail", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		next(w, r, httperr.New(http.StatusTeapot, "short and stout"))
	}))

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStageThatDoesNotCallNextTerminates(t *testing.T) {
	var b pipeline.Builder
	b.Use(pipeline.Func("silent", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {}))

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestPanicBecomes500(t *testing.T) {
	var caught error
	var b pipeline.Builder
	b.Use(pipeline.Func("explode", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		panic("kaboom")
	})).Catch(pipeline.ErrorFunc("catch", func(err error, w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		caught = err
		w.WriteHeader(httperr.StatusOf(err))
	}))

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Error(t, caught)
	assert.Contains(t, caught.Error(), "panic: kaboom")

	var he *httperr.Error
	require.ErrorAs(t, caught, &he)
	assert.Contains(t, he.Stack, "goroutine")
}

func TestPanicInErrorStageFallsThrough(t *testing.T) {
	var b pipeline.Builder
	b.Use(pipeline.Func("fail", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		next(w, r, errors.New("first"))
	})).Catch(pipeline.ErrorFunc("broken", func(err error, w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		panic("again")
	}))

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAbortHandlerPanicPropagates(t *testing.T) {
	var b pipeline.Builder
	b.Use(pipeline.Func("abort", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(b.Build(), http.MethodGet, "/")
	})
}

func TestBuildIsImmutable(t *testing.T) {
	var tr trace
	var b pipeline.Builder
	b.Use(tr.write("a", http.StatusOK))
	p := b.Build()

	b.Use(tr.pass("late"))
	assert.Equal(t, []string{"a"}, p.Names())
}

func TestWrapBridgesMiddleware(t *testing.T) {
	var b pipeline.Builder
	b.Use(
		pipeline.Wrap("header", func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Wrapped", "yes")
				next.ServeHTTP(w, r)
				w.Header().Set("X-After", "too-late")
			})
		}),
		pipeline.Func("end", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
			_, _ = w.Write([]byte("done"))
		}),
	)

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.Equal(t, "yes", rec.Header().Get("X-Wrapped"))
	assert.Equal(t, "done", rec.Body.String())
}

func TestHandlerPassAndFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		pipeline.Fail(w, r, httperr.New(http.StatusBadGateway, "upstream"))
	})
	mux.HandleFunc("/", pipeline.Pass)

	var tr trace
	var b pipeline.Builder
	b.Use(pipeline.Handler("routes", mux), tr.write("fallback", http.StatusGone)).
		Catch(tr.catch("err", false))
	p := b.Build()

	assert.Equal(t, "ok", serve(p, http.MethodGet, "/ok").Body.String())
	assert.Equal(t, http.StatusGone, serve(p, http.MethodGet, "/elsewhere").Code)
	assert.Equal(t, http.StatusBadGateway, serve(p, http.MethodGet, "/fail").Code)
	assert.Equal(t, trace{"fallback", "err:upstream"}, tr)
}

func TestPassAndFailOutsidePipeline(t *testing.T) {
	rec := httptest.NewRecorder()
	pipeline.Pass(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	pipeline.Fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), httperr.New(http.StatusForbidden, "no"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Forbidden"))
}

func TestCommitted(t *testing.T) {
	var before, after bool
	var b pipeline.Builder
	b.Use(pipeline.Func("write", func(w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		before = pipeline.Committed(r)
		_, _ = w.Write([]byte("partial"))
		after = pipeline.Committed(r)
		next(w, r, errors.New("late failure"))
	})).Catch(pipeline.ErrorFunc("late", func(err error, w http.ResponseWriter, r *http.Request, next pipeline.Next) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := serve(b.Build(), http.MethodGet, "/")
	assert.False(t, before)
	assert.True(t, after)
	assert.Equal(t, http.StatusOK, rec.Code, "status is fixed once the body started")
	assert.Equal(t, "partial", rec.Body.String())
}
