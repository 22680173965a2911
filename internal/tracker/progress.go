package tracker

import (
	"math"

	"github.com/tiiuae/uav_bridge/internal/types"
)

const (
	milesPerDegree = 69.172
	feetPerMile    = 5280
	// advanceRadius is how close, in raw degrees, the vehicle must get to a
	// waypoint before the next one becomes active.
	advanceRadius = 0.0001
)

// degreeDistance is the straight distance in degrees, with no projection.
func degreeDistance(pos types.Position, wp types.Waypoint) float64 {
	return math.Hypot(wp.Latitude-pos.Latitude, wp.Longitude-pos.Longitude)
}

// feetDistance is a flat-earth approximation, usable over short ranges only.
func feetDistance(pos types.Position, wp types.Waypoint) float64 {
	const feetPerDegree = milesPerDegree * feetPerMile
	north := (wp.Latitude - pos.Latitude) * feetPerDegree
	east := (wp.Longitude - pos.Longitude) * feetPerDegree * math.Cos(pos.Latitude*math.Pi/180)
	return math.Hypot(north, east)
}

// advance measures the distance to route[index] and moves on to the next
// waypoint when inside advanceRadius. The reported distance is always to the
// waypoint that was active on entry. route must not be empty.
func advance(pos types.Position, route []types.Waypoint, index int) types.WaypointProgress {
	index = index % len(route)
	if index < 0 {
		index += len(route)
	}
	wp := route[index]
	p := types.WaypointProgress{Index: index, Distance: feetDistance(pos, wp)}
	if degreeDistance(pos, wp) <= advanceRadius {
		p.Index = (index + 1) % len(route)
	}
	return p
}
