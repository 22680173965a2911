// Package missionsource provides the route a tracker measures waypoint
// progress against.
package missionsource

import (
	"context"

	"github.com/tiiuae/uav_bridge/internal/missionfile"
	"github.com/tiiuae/uav_bridge/internal/types"
)

// Source returns the ordered waypoints of the active mission. An empty list
// means no route is known yet.
type Source interface {
	FetchWaypoints(ctx context.Context) ([]types.Waypoint, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context) ([]types.Waypoint, error)

func (f Func) FetchWaypoints(ctx context.Context) ([]types.Waypoint, error) {
	return f(ctx)
}

// None is a source without a route.
var None Source = Func(func(context.Context) ([]types.Waypoint, error) {
	return nil, nil
})

// Static always returns the same route.
func Static(wps []types.Waypoint) Source {
	return Func(func(context.Context) ([]types.Waypoint, error) {
		out := make([]types.Waypoint, len(wps))
		copy(out, wps)
		return out, nil
	})
}

type file struct {
	path string
}

// NewFile reads the route from a JSON, GPX or MWP file on every fetch.
func NewFile(path string) Source {
	return &file{path: path}
}

func (f *file) FetchWaypoints(ctx context.Context) ([]types.Waypoint, error) {
	return missionfile.ReadWaypoints(f.path)
}
