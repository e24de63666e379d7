package place

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandlerGetPlace(t *testing.T) {
	svc, repo := setup()
	h := NewHandler(svc, svc.logger)
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		repo.On("GetPlace", mock.Anything, id).Return(&types.Place{ID: id, Name: "Fort"}, nil).Once()
		rr := httptest.NewRecorder()
		h.GetPlace(rr, withParams(httptest.NewRequest(http.MethodGet, "/api/places/"+id.String(), nil), "id", id.String()))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"name":"Fort"`)
	})

	t.Run("not found", func(t *testing.T) {
		other := uuid.New()
		repo.On("GetPlace", mock.Anything, other).Return(nil, api.Errorf(api.ErrNotFound, "Place not found")).Once()
		rr := httptest.NewRecorder()
		h.GetPlace(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", other.String()))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"Place not found"}`, rr.Body.String())
	})

	t.Run("bad id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.GetPlace(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "nope"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandlerSearchDefaultsCityToAll(t *testing.T) {
	svc, repo := setup()
	h := NewHandler(svc, svc.logger)
	repo.On("Search", mock.Anything, "temple", "", searchLimit).Return([]types.Place{{Name: "Golden Temple"}}, nil).Once()

	rr := httptest.NewRecorder()
	h.SearchPlaces(rr, httptest.NewRequest(http.MethodGet, "/api/places/search?keyword=temple", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got types.PlaceList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "All", got.City)
	assert.Equal(t, "temple", got.Keyword)
	assert.Equal(t, 1, got.Count)
}

func TestHandlerCreatePlace(t *testing.T) {
	svc, repo := setup()
	h := NewHandler(svc, svc.logger)
	id := uuid.New()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p types.Place) bool {
		return p.Name == "Fort" && p.Category == types.CategoryOther
	})).Return(&types.Place{ID: id, Name: "Fort", City: "Jaipur"}, nil).Once()

	body := `{"name":"Fort","city":"Jaipur","location":{"lat":26.98,"lng":75.85}}`
	rr := httptest.NewRecorder()
	h.CreatePlace(rr, httptest.NewRequest(http.MethodPost, "/api/places", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rr.Code)
	repo.AssertExpectations(t)
}

func TestHandlerDeletePlace(t *testing.T) {
	svc, repo := setup()
	h := NewHandler(svc, svc.logger)
	id := uuid.New()
	repo.On("Delete", mock.Anything, id).Return(nil).Once()

	rr := httptest.NewRecorder()
	h.DeletePlace(rr, withParams(httptest.NewRequest(http.MethodDelete, "/", nil), "id", id.String()))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Place deleted successfully"}`, rr.Body.String())
}

func TestHandlerBudgetValidation(t *testing.T) {
	svc, _ := setup()
	h := NewHandler(svc, svc.logger)
	rr := httptest.NewRecorder()
	h.GetPlacesByBudget(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "city", "Goa", "budget", "Free"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
