// Package geo resolves a travel distance for a visit: origin strategies
// (device coordinates, IP geolocation, a fixed default), forward geocoding
// of the destination address, and a corrected geodesic distance. Every
// failure degrades to a coarser estimate or a manual override, never an
// error that halts the visit workflow.
package geo

import (
	"fmt"
	"math"
)

const earthRadiusKM = 6371.0

// DefaultRoadFactor approximates road distance from the great-circle
// distance between two points.
const DefaultRoadFactor = 1.4

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// RoadDistance corrects the geodesic distance by factor to approximate real
// travel distance. A non-positive factor falls back to the default.
func RoadDistance(a, b Coordinates, factor float64) float64 {
	if factor <= 0 {
		factor = DefaultRoadFactor
	}
	return Haversine(a, b) * factor
}
