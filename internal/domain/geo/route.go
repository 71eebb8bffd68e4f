// Package geo holds the small amount of spatial math and the human-readable
// formatting the mobile client renders on route cards.
package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// walkingSpeedMPS is the pace used for rough duration estimates.
const walkingSpeedMPS = 1.4

// Distance returns the great-circle distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// WalkingDuration estimates the walking time in whole seconds for a distance
// in meters.
func WalkingDuration(meters float64) int {
	if meters <= 0 {
		return 0
	}
	return int(meters / walkingSpeedMPS)
}

// FormatDistance renders meters below 1000 as integer meters and larger
// distances as kilometers with one decimal.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders seconds below one hour as whole minutes (seconds
// truncated) and longer durations as "H h" or "H h M min", omitting minutes
// when they are exactly zero.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 3600 {
		return fmt.Sprintf("%d min", seconds/60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, minutes)
}

// RouteInfo is the formatted summary for a route between two points.
type RouteInfo struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds int     `json:"duration_seconds"`
	Distance        string  `json:"distance"`
	Duration        string  `json:"duration"`
}

// Route computes and formats the straight-line route between two points.
func Route(fromLat, fromLon, toLat, toLon float64) RouteInfo {
	meters := Distance(fromLat, fromLon, toLat, toLon)
	seconds := WalkingDuration(meters)
	return RouteInfo{
		DistanceMeters:  meters,
		DurationSeconds: seconds,
		Distance:        FormatDistance(meters),
		Duration:        FormatDuration(seconds),
	}
}
