package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
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

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandlerReplan(t *testing.T) {
	t.Run("returns the reordered day", func(t *testing.T) {
		f := setup(&scoreEstimator{scores: map[uuid.UUID]int{}})
		it, _ := threeStops()
		f.repo.On("Get", mock.Anything, it.ID).Return(it, nil).Once()
		f.repo.On("Update", mock.Anything, mock.Anything).Return(nil, nil).Once()
		f.notes.On("Save", mock.Anything, mock.Anything).Return(&types.Notification{}, nil).Maybe()
		f.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
		f.places.On("GetPlacesByIDs", mock.Anything, mock.Anything).Return([]types.Place{}, nil).Maybe()
		h := NewHandler(f.svc, f.svc.logger)

		req := withParam(httptest.NewRequest(http.MethodPost, "/api/itinerary/"+it.ID.String()+"/replan", nil), "id", it.ID.String())
		rr := httptest.NewRecorder()
		h.ReplanItinerary(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, it.ID.String(), got["id"])
	})

	t.Run("unknown itinerary is 404", func(t *testing.T) {
		f := setup(&scoreEstimator{})
		id := uuid.New()
		f.repo.On("Get", mock.Anything, id).Return(nil, api.Errorf(api.ErrNotFound, "Itinerary not found")).Once()
		h := NewHandler(f.svc, f.svc.logger)

		rr := httptest.NewRecorder()
		h.ReplanItinerary(rr, withParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", id.String()))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), "Itinerary not found")
	})

	t.Run("concurrent write is 409", func(t *testing.T) {
		f := setup(&scoreEstimator{scores: map[uuid.UUID]int{}})
		it, _ := threeStops()
		f.repo.On("Get", mock.Anything, it.ID).Return(it, nil).Once()
		f.repo.On("Update", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("update: %w", api.ErrConflict)).Once()
		h := NewHandler(f.svc, f.svc.logger)

		rr := httptest.NewRecorder()
		h.ReplanItinerary(rr, withParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", it.ID.String()))

		assert.Equal(t, http.StatusConflict, rr.Code)
		f.notes.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		f := setup(&scoreEstimator{})
		h := NewHandler(f.svc, f.svc.logger)

		rr := httptest.NewRecorder()
		h.ReplanItinerary(rr, withParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", "nope"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		f.repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestHandlerCreateItinerary(t *testing.T) {
	f := setup(&scoreEstimator{})
	h := NewHandler(f.svc, f.svc.logger)

	rr := httptest.NewRecorder()
	h.CreateItinerary(rr, httptest.NewRequest(http.MethodPost, "/api/itinerary", strings.NewReader(`{"userId":"`+uuid.NewString()+`"}`)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "userId, date, and placeIds are required")
}

func TestHandlerDeleteItinerary(t *testing.T) {
	f := setup(&scoreEstimator{})
	id := uuid.New()
	f.repo.On("Delete", mock.Anything, id).Return(nil).Once()
	h := NewHandler(f.svc, f.svc.logger)

	rr := httptest.NewRecorder()
	h.DeleteItinerary(rr, withParam(httptest.NewRequest(http.MethodDelete, "/", nil), "id", id.String()))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Itinerary deleted successfully"}`, rr.Body.String())
}
