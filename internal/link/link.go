// Package link defines the connection to the autopilot that every vehicle
// component talks through.
package link

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tiiuae/uav_bridge/internal/types"
)

// ErrUnknownMode is returned by SetMode for names the autopilot does not know.
var ErrUnknownMode = errors.New("unknown flight mode")

// Telemetry is one raw reading from the autopilot. Angles are radians.
type Telemetry struct {
	Latitude       float64
	Longitude      float64
	Altitude       float64
	Roll           float64
	Pitch          float64
	Yaw            float64
	GroundSpeed    float64
	AirSpeed       float64
	BatteryVoltage float64
	GPS            types.GPSFix
	Mode           types.FlightMode
	Armed          bool
	SystemStatus   string
}

// VehicleLink is a session with the autopilot. Implementations are not
// required to be safe for concurrent use; callers go through a Session.
type VehicleLink interface {
	Connect(ctx context.Context) error
	Close() error

	ReadTelemetry(ctx context.Context) (Telemetry, error)

	Mode(ctx context.Context) (types.FlightMode, error)
	SetMode(ctx context.Context, mode types.FlightMode) error

	Armed(ctx context.Context) (bool, error)
	SetArmed(ctx context.Context, armed bool) error
	IsArmable(ctx context.Context) (bool, error)

	DownloadCommands(ctx context.Context) ([]types.MissionCommand, error)
	UploadCommands(ctx context.Context, cmds []types.MissionCommand) error
	ClearCommands(ctx context.Context) error
	SetNextCommand(ctx context.Context, index int) error

	Parameter(ctx context.Context, key string) (float64, error)
	SetParameter(ctx context.Context, key string, value float64) error
	Parameters(ctx context.Context) (map[string]float64, error)
}
