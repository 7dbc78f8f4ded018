// Package geo provides great-circle distance computation and coarse
// location encoding for the feed's proximity ranking.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// DistanceKm computes the haversine great-circle distance in kilometers
// between two latitude/longitude points given in degrees.
// The result is always >= 0 and symmetric in its arguments.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// FormatDistance renders a distance for display:
// below 1 km as whole meters, 1-10 km with one decimal place,
// above 10 km as a rounded integer.
func FormatDistance(km float64) string {
	switch {
	case km < 1:
		return fmt.Sprintf("%.0fm", km*1000)
	case km <= 10:
		return fmt.Sprintf("%.1fkm", km)
	default:
		return fmt.Sprintf("%.0fkm", km)
	}
}
