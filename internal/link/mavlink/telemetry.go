package mavlink

import (
	"context"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/pkg/errors"

	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/types"
)

// cache keeps the latest value of every stream the bridge reads.
type cache struct {
	heartbeat time.Time
	vehicle   ardupilotmega.MAV_TYPE
	autopilot ardupilotmega.MAV_AUTOPILOT
	custom    uint32
	armed     bool
	state     ardupilotmega.MAV_STATE

	lat, lon, alt    float64
	roll, pitch, yaw float64
	groundSpeed      float64
	airSpeed         float64
	voltage          float64
	gps              types.GPSFix
	ekfFlags         ardupilotmega.EKF_STATUS_FLAGS
	ekfSeen          bool
}

func (c *cache) update(msg message.Message, now time.Time) {
	switch m := msg.(type) {
	case *ardupilotmega.MessageHeartbeat:
		c.heartbeat = now
		c.vehicle = m.Type
		c.autopilot = m.Autopilot
		c.custom = m.CustomMode
		c.armed = m.BaseMode&ardupilotmega.MAV_MODE_FLAG_SAFETY_ARMED != 0
		c.state = m.SystemStatus

	case *ardupilotmega.MessageGlobalPositionInt:
		c.lat = float64(m.Lat) / 1e7
		c.lon = float64(m.Lon) / 1e7
		c.alt = float64(m.Alt) / 1000 // MSL

	case *ardupilotmega.MessageAttitude:
		c.roll = float64(m.Roll)
		c.pitch = float64(m.Pitch)
		c.yaw = float64(m.Yaw)

	case *ardupilotmega.MessageVfrHud:
		c.groundSpeed = float64(m.Groundspeed)
		c.airSpeed = float64(m.Airspeed)

	case *ardupilotmega.MessageSysStatus:
		c.voltage = float64(m.VoltageBattery) / 1000

	case *ardupilotmega.MessageGpsRawInt:
		c.gps = types.GPSFix{
			HorizontalError: float64(m.Eph),
			VerticalError:   float64(m.Epv),
			Satellites:      int(m.SatellitesVisible),
			FixType:         int(m.FixType),
		}

	case *ardupilotmega.MessageEkfStatusReport:
		c.ekfFlags = m.Flags
		c.ekfSeen = true
	}
}

func (c *cache) class() link.VehicleClass {
	return vehicleClass(c.vehicle)
}

func vehicleClass(t ardupilotmega.MAV_TYPE) link.VehicleClass {
	switch t {
	case ardupilotmega.MAV_TYPE_QUADROTOR,
		ardupilotmega.MAV_TYPE_HEXAROTOR,
		ardupilotmega.MAV_TYPE_OCTOROTOR,
		ardupilotmega.MAV_TYPE_TRICOPTER,
		ardupilotmega.MAV_TYPE_HELICOPTER,
		ardupilotmega.MAV_TYPE_COAXIAL:
		return link.ClassCopter
	case ardupilotmega.MAV_TYPE_GROUND_ROVER,
		ardupilotmega.MAV_TYPE_SURFACE_BOAT:
		return link.ClassRover
	}
	return link.ClassPlane
}

func stateName(s ardupilotmega.MAV_STATE) string {
	switch s {
	case ardupilotmega.MAV_STATE_UNINIT:
		return "UNINIT"
	case ardupilotmega.MAV_STATE_BOOT:
		return "BOOT"
	case ardupilotmega.MAV_STATE_CALIBRATING:
		return "CALIBRATING"
	case ardupilotmega.MAV_STATE_STANDBY:
		return "STANDBY"
	case ardupilotmega.MAV_STATE_ACTIVE:
		return "ACTIVE"
	case ardupilotmega.MAV_STATE_CRITICAL:
		return "CRITICAL"
	case ardupilotmega.MAV_STATE_EMERGENCY:
		return "EMERGENCY"
	case ardupilotmega.MAV_STATE_POWEROFF:
		return "POWEROFF"
	case ardupilotmega.MAV_STATE_FLIGHT_TERMINATION:
		return "FLIGHT_TERMINATION"
	}
	return "UNKNOWN"
}

// armable mirrors ArduPilot's own pre-arm view as far as the bridge can
// see it from telemetry.
func (c *cache) armable() bool {
	if c.heartbeat.IsZero() {
		return false
	}
	switch c.state {
	case ardupilotmega.MAV_STATE_UNINIT, ardupilotmega.MAV_STATE_BOOT:
		return false
	}
	if link.ModeName(c.class(), c.custom) == "INITIALISING" {
		return false
	}
	if c.gps.FixType <= 1 {
		return false
	}
	if c.autopilot == ardupilotmega.MAV_AUTOPILOT_ARDUPILOTMEGA {
		return c.ekfSeen && c.ekfFlags&ardupilotmega.EKF_PRED_POS_HORIZ_ABS != 0
	}
	return true
}

// snapshot copies the cache after checking the autopilot is still talking.
func (l *Link) snapshot() (cache, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return cache{}, errors.New("link not connected")
	}
	if age := time.Since(l.cache.heartbeat); age > 3*l.cfg.Timeout {
		return cache{}, errors.Errorf("link lost, last heartbeat %s ago", age.Round(time.Second))
	}
	return l.cache, nil
}

func (l *Link) ReadTelemetry(ctx context.Context) (link.Telemetry, error) {
	c, err := l.snapshot()
	if err != nil {
		return link.Telemetry{}, err
	}
	return link.Telemetry{
		Latitude:       c.lat,
		Longitude:      c.lon,
		Altitude:       c.alt,
		Roll:           c.roll,
		Pitch:          c.pitch,
		Yaw:            c.yaw,
		GroundSpeed:    c.groundSpeed,
		AirSpeed:       c.airSpeed,
		BatteryVoltage: c.voltage,
		GPS:            c.gps,
		Mode:           link.ModeName(c.class(), c.custom),
		Armed:          c.armed,
		SystemStatus:   stateName(c.state),
	}, nil
}

func (l *Link) Mode(ctx context.Context) (types.FlightMode, error) {
	c, err := l.snapshot()
	if err != nil {
		return "", err
	}
	return link.ModeName(c.class(), c.custom), nil
}

func (l *Link) Armed(ctx context.Context) (bool, error) {
	c, err := l.snapshot()
	if err != nil {
		return false, err
	}
	return c.armed, nil
}

func (l *Link) IsArmable(ctx context.Context) (bool, error) {
	c, err := l.snapshot()
	if err != nil {
		return false, err
	}
	return c.armable(), nil
}
