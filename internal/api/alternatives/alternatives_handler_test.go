package alternatives

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-crowd-planner/internal/api"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

func TestHandlerAlternatives(t *testing.T) {
	originLoc := types.Location{Lat: 18.9220, Lng: 72.8347}
	origin := types.Place{ID: uuid.New(), Name: "Gateway of India", City: "Mumbai", Location: originLoc}
	quiet := placeAt("Quiet", originLoc, 1.0)

	badRequests := map[string]string{
		"missing placeId": `{"city":"Mumbai"}`,
		"missing city":    `{"placeId":"` + origin.ID.String() + `"}`,
		"malformed id":    `{"placeId":"abc","city":"Mumbai"}`,
		"empty body":      ``,
	}
	for name, body := range badRequests {
		t.Run(name, func(t *testing.T) {
			places := new(MockPlaceSource)
			h := NewHandler(NewServiceImpl(places, scoreEstimator{}, 2, testLogger()), testLogger())

			rr := httptest.NewRecorder()
			h.Alternatives(rr, httptest.NewRequest(http.MethodPost, "/api/places/alternatives", strings.NewReader(body)))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), `"error"`)
			places.AssertNotCalled(t, "GetPlace", mock.Anything, mock.Anything)
		})
	}

	t.Run("unknown place is 404", func(t *testing.T) {
		places := new(MockPlaceSource)
		places.On("GetPlace", mock.Anything, origin.ID).Return(nil, api.Errorf(api.ErrNotFound, "Place not found")).Once()
		h := NewHandler(NewServiceImpl(places, scoreEstimator{}, 2, testLogger()), testLogger())

		rr := httptest.NewRecorder()
		body := `{"placeId":"` + origin.ID.String() + `","city":"Mumbai"}`
		h.Alternatives(rr, httptest.NewRequest(http.MethodPost, "/api/places/alternatives", strings.NewReader(body)))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("ranked alternatives", func(t *testing.T) {
		places := new(MockPlaceSource)
		places.On("GetPlace", mock.Anything, origin.ID).Return(&origin, nil).Once()
		places.On("ListByCity", mock.Anything, "Mumbai").Return([]types.Place{origin, quiet}, nil).Once()
		est := scoreEstimator{scores: map[uuid.UUID]int{quiet.ID: 10}}
		h := NewHandler(NewServiceImpl(places, est, 2, testLogger()), testLogger())

		rr := httptest.NewRecorder()
		body := `{"placeId":"` + origin.ID.String() + `","city":"Mumbai","radius":3}`
		h.Alternatives(rr, httptest.NewRequest(http.MethodPost, "/api/places/alternatives", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rr.Code)
		var got types.AlternativesResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got.Alternatives, 1)
		assert.Equal(t, "Quiet", got.Alternatives[0].Name)
		assert.Equal(t, 10, got.Alternatives[0].CrowdScore)
	})
}

func TestHandlerNearby(t *testing.T) {
	t.Run("requires lat, lng and city", func(t *testing.T) {
		h := NewHandler(NewServiceImpl(new(MockPlaceSource), scoreEstimator{}, 2, testLogger()), testLogger())
		for _, q := range []string{"?lat=1&lng=2", "?city=Delhi&lat=1", "?city=Delhi&lat=x&lng=2"} {
			rr := httptest.NewRecorder()
			h.Nearby(rr, httptest.NewRequest(http.MethodGet, "/api/places/nearby"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		}
	})

	t.Run("lists places inside the radius", func(t *testing.T) {
		center := types.Location{Lat: 28.6139, Lng: 77.2090}
		places := new(MockPlaceSource)
		places.On("ListByCity", mock.Anything, "Delhi").
			Return([]types.Place{placeAt("Close", center, 0.5), placeAt("Far", center, 9)}, nil).Once()
		h := NewHandler(NewServiceImpl(places, scoreEstimator{}, 2, testLogger()), testLogger())

		rr := httptest.NewRecorder()
		h.Nearby(rr, httptest.NewRequest(http.MethodGet, "/api/places/nearby?city=Delhi&lat=28.6139&lng=77.2090", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var got []types.NearbyPlace
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "Close", got[0].Name)
	})
}
