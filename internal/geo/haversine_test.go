package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

var (
	gatewayOfIndia = types.Location{Lat: 18.9220, Lng: 72.8347}
	marineDrive    = types.Location{Lat: 18.9440, Lng: 72.8230}
	indiaGate      = types.Location{Lat: 28.6129, Lng: 77.2295}
)

func TestDistanceKm(t *testing.T) {
	t.Run("same point", func(t *testing.T) {
		assert.Equal(t, 0.0, DistanceKm(gatewayOfIndia, gatewayOfIndia))
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, DistanceKm(gatewayOfIndia, indiaGate), DistanceKm(indiaGate, gatewayOfIndia), 1e-9)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		d := DistanceKm(types.Location{Lat: 0, Lng: 0}, types.Location{Lat: 1, Lng: 0})
		assert.InDelta(t, 111.195, d, 0.01)
	})

	t.Run("mumbai to delhi", func(t *testing.T) {
		assert.InDelta(t, 1166, DistanceKm(gatewayOfIndia, indiaGate), 10)
	})
}

func TestWithin(t *testing.T) {
	assert.True(t, Within(gatewayOfIndia, marineDrive, 5))
	assert.False(t, Within(gatewayOfIndia, indiaGate, 5))
	assert.True(t, Within(gatewayOfIndia, gatewayOfIndia, 0))
}
