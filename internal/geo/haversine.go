// Package geo holds great-circle helpers used to filter places by radius.
package geo

import (
	"math"

	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceKm returns the haversine distance between two coordinates in kilometres.
func DistanceKm(a, b types.Location) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Within reports whether b lies within radiusKm of a.
func Within(a, b types.Location, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}
