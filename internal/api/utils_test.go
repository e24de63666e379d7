package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("place 1: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("missing city: %w", ErrBadRequest), http.StatusBadRequest},
		{ErrEmailTaken, http.StatusBadRequest},
		{fmt.Errorf("version 3: %w", ErrConflict), http.StatusConflict},
		{ErrUnverified, http.StatusUnauthorized},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	ErrorResponse(w, r, http.StatusNotFound, "Place not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "Place not found"}, body)
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		PlaceID string `json:"placeId"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"placeId":"abc"}`))
		var p payload
		require.NoError(t, DecodeJSONBody(w, r, &p))
		assert.Equal(t, "abc", p.PlaceID)
	})

	t.Run("unknown field", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
		var p payload
		err := DecodeJSONBody(w, r, &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown key "other"`)
	})

	t.Run("empty body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p payload
		assert.EqualError(t, DecodeJSONBody(w, r, &p), "body must not be empty")
	})

	t.Run("trailing data", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"placeId":"a"}{"placeId":"b"}`))
		var p payload
		assert.EqualError(t, DecodeJSONBody(w, r, &p), "body must only contain a single JSON value")
	})
}

func TestURLParamUUID(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", value)
		return r.WithContext(contextWithRoute(r, rctx))
	}

	got, err := URLParamUUID(withParam(id.String()), "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = URLParamUUID(withParam("not-a-uuid"), "id")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&minRating=4.5&tags=a,%20b,,c", nil)

	assert.Equal(t, 5, QueryInt(r, "limit", 10))
	assert.Equal(t, 10, QueryInt(r, "bad", 10))
	assert.Equal(t, 7, QueryInt(r, "missing", 7))

	v, err := QueryFloat(r, "minRating")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.InDelta(t, 4.5, *v, 1e-9)

	_, err = QueryFloat(r, "bad")
	assert.ErrorIs(t, err, ErrBadRequest)

	assert.Equal(t, []string{"a", "b", "c"}, SplitCSV(r.URL.Query().Get("tags")))
	assert.Nil(t, SplitCSV(""))
}

func contextWithRoute(r *http.Request, rctx *chi.Context) context.Context {
	return context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
}

func TestServiceErrorResponse(t *testing.T) {
	t.Run("client message is unwrapped", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		err := fmt.Errorf("loading place: %w", Errorf(ErrNotFound, "Place not found"))
		ServiceErrorResponse(w, r, err)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Place not found"}`, w.Body.String())
	})

	t.Run("internal errors carry the raw text", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ServiceErrorResponse(w, r, errors.New("connection reset"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"Internal server error: connection reset"}`, w.Body.String())
	})
}
