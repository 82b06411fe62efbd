package response_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/webstart/pkg/httperr"
	"github.com/shashiranjanraj/webstart/pkg/pipeline"
	"github.com/shashiranjanraj/webstart/pkg/reqid"
	"github.com/shashiranjanraj/webstart/pkg/response"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Success(rec, httptest.NewRequest(http.MethodGet, "/", nil), map[string]int{"n": 1})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":200,"data":{"n":1}}`, rec.Body.String())
}

func TestCreatedCarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(reqid.WithValue(req.Context(), "abc-123"))

	rec := httptest.NewRecorder()
	response.Created(rec, req, "ok")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"status":201,"request_id":"abc-123","data":"ok"}`, rec.Body.String())
}

// failing mounts h in a pipeline and records what reaches the error stage.
func failing(h http.HandlerFunc) (http.Handler, *error) {
	var caught error
	var b pipeline.Builder
	b.Use(pipeline.Handler("route", h)).
		Catch(pipeline.ErrorFunc("catch", func(err error, w http.ResponseWriter, r *http.Request, next pipeline.Next) {
			caught = err
			w.WriteHeader(httperr.StatusOf(err))
		}))
	return b.Build(), &caught
}

func TestErrorReachesErrorStages(t *testing.T) {
	h, caught := failing(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusConflict, "already exists")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var he *httperr.Error
	require.ErrorAs(t, *caught, &he)
	assert.Equal(t, "already exists", he.Message)
}

func TestValidationErrorCarriesFields(t *testing.T) {
	h, caught := failing(func(w http.ResponseWriter, r *http.Request) {
		response.ValidationError(w, r, map[string]string{"name": "required"})
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var inv *response.Invalid
	require.True(t, errors.As(*caught, &inv))
	assert.Equal(t, map[string]string{"name": "required"}, inv.Fields)
}

func TestErrorOutsidePipeline(t *testing.T) {
	rec := httptest.NewRecorder()
	response.ValidationError(rec, httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"a": "b"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
