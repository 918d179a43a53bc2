package geo

import "math"

const (
	earthRadiusMiles = 3958.8
	averageSpeedMph  = 25.0 // city traffic average
)

// HaversineMiles returns the great-circle distance in miles between two
// coordinates, rounded to two decimal places.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Round(earthRadiusMiles*c*100) / 100
}

// EstimateDurationMinutes returns the travel time for distanceMiles at an
// average city speed. Never less than one minute for a non-zero trip.
func EstimateDurationMinutes(distanceMiles float64) int {
	if distanceMiles <= 0 {
		return 0
	}
	minutes := int(math.Round(distanceMiles / averageSpeedMph * 60))
	if minutes < 1 {
		return 1
	}
	return minutes
}
