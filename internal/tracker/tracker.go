// Package tracker keeps the latest vehicle state and the progress along the
// mission route.
package tracker

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/failure"
	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/missionsource"
	"github.com/tiiuae/uav_bridge/internal/types"
)

// Tracker owns the VehicleState. Each Update swaps in a whole new snapshot,
// so readers never see fields from two different readings.
type Tracker struct {
	session *link.Session
	source  missionsource.Source

	// mu serialises Update; the route and index are only touched under it.
	mu    sync.Mutex
	route []types.Waypoint
	index int

	state atomic.Pointer[types.VehicleState]
}

func New(session *link.Session, source missionsource.Source) *Tracker {
	if source == nil {
		source = missionsource.None
	}
	return &Tracker{session: session, source: source}
}

// Connect opens the link and takes the first reading.
func (t *Tracker) Connect(ctx context.Context) error {
	err := t.session.Do(func(l link.VehicleLink) error {
		return l.Connect(ctx)
	})
	if err != nil {
		return failure.Wrapf(err, "connect")
	}
	_, err = t.Update(ctx)
	return err
}

// Update reads the link once and publishes a new snapshot.
func (t *Tracker) Update(ctx context.Context) (types.VehicleState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var tm link.Telemetry
	err := t.session.Do(func(l link.VehicleLink) error {
		var err error
		tm, err = l.ReadTelemetry(ctx)
		return err
	})
	if err != nil {
		return types.VehicleState{}, failure.Wrapf(err, "read telemetry")
	}

	// The route is fetched until it is non-empty and then kept for the
	// tracker's lifetime.
	if len(t.route) == 0 {
		route, err := t.source.FetchWaypoints(ctx)
		if err != nil {
			log.WithField("component", "tracker").Warnf("Could not fetch waypoints: %v", err)
		} else if len(route) > 0 {
			t.route = route
			t.index = 1 % len(route)
			log.Printf("Tracking route of %d waypoints", len(route))
		}
	}

	state := normalize(tm)
	if len(t.route) > 0 {
		state.Waypoint = advance(state.Position, t.route, t.index)
		t.index = state.Waypoint.Index
	}
	state.Updated = time.Now().UTC()
	t.state.Store(&state)
	return state, nil
}

// State returns the latest snapshot without touching the link.
func (t *Tracker) State() (types.VehicleState, bool) {
	s := t.state.Load()
	if s == nil {
		return types.VehicleState{}, false
	}
	return *s, true
}

func (t *Tracker) Quick(ctx context.Context) (types.QuickView, error) {
	state, err := t.Update(ctx)
	if err != nil {
		return types.QuickView{}, err
	}
	return state.Quick(), nil
}

func (t *Tracker) Stats(ctx context.Context) (types.Stats, error) {
	state, err := t.Update(ctx)
	if err != nil {
		return types.Stats{}, err
	}
	var cmds []types.MissionCommand
	err = t.session.Do(func(l link.VehicleLink) error {
		var err error
		cmds, err = l.DownloadCommands(ctx)
		return err
	})
	if err != nil {
		return types.Stats{}, failure.Wrapf(err, "download commands")
	}
	if cmds == nil {
		cmds = []types.MissionCommand{}
	}
	return types.Stats{
		Quick:    state.Quick(),
		Mode:     state.Mode,
		Commands: cmds,
		Armed:    state.Armed,
		Status:   state.SystemStatus,
	}, nil
}

func normalize(tm link.Telemetry) types.VehicleState {
	return types.VehicleState{
		Altitude: tm.Altitude,
		Orientation: types.Orientation{
			Yaw:   heading(degrees(tm.Yaw)),
			Pitch: degrees(tm.Pitch),
			Roll:  degrees(tm.Roll),
		},
		GroundSpeed:    tm.GroundSpeed,
		AirSpeed:       tm.AirSpeed,
		BatteryVoltage: tm.BatteryVoltage,
		GPS:            tm.GPS,
		Position:       types.Position{Latitude: tm.Latitude, Longitude: tm.Longitude},
		Armed:          tm.Armed,
		Mode:           tm.Mode,
		SystemStatus:   tm.SystemStatus,
	}
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// heading maps any angle in degrees into [0, 360). A corrupt reading (NaN or
// infinite) becomes 0.
func heading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}
