// Package sim is an in-memory autopilot. It implements link.VehicleLink so
// the bridge can run without hardware, and it is the link every package's
// tests drive.
package sim

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/types"
)

type Config struct {
	Lat   float64 `yaml:"lat"`
	Lon   float64 `yaml:"lon"`
	Alt   float64 `yaml:"alt"`
	Speed float64 `yaml:"speed"` // m/s
}

type Vehicle struct {
	mu  sync.Mutex
	cfg Config

	connected bool
	lat, lon  float64
	alt       float64

	roll, pitch, yaw float64
	groundSpeed      float64
	airSpeed         float64
	battery          float64
	gps              types.GPSFix

	mode    types.FlightMode
	armed   bool
	armable bool
	status  string

	params   map[string]float64
	commands []types.MissionCommand
	next     int

	failNext error
	calls    []string
}

var defaultParams = map[string]float64{
	"THR_MIN":       0,
	"THR_MAX":       75,
	"ARSPD_FBW_MIN": 9,
	"ARSPD_FBW_MAX": 22,
	"WP_RADIUS":     90,
	"RTL_ALTITUDE":  100,
	"TRIM_ARSPD_CM": 1200,
}

func New(cfg Config) *Vehicle {
	if cfg.Speed <= 0 {
		cfg.Speed = 15
	}
	params := make(map[string]float64, len(defaultParams))
	for k, v := range defaultParams {
		params[k] = v
	}
	return &Vehicle{
		cfg:     cfg,
		lat:     cfg.Lat,
		lon:     cfg.Lon,
		alt:     cfg.Alt,
		battery: 12.6,
		gps:     types.GPSFix{HorizontalError: 121, VerticalError: 65535, Satellites: 10, FixType: 3},
		mode:    "MANUAL",
		armable: true,
		status:  "STANDBY",
		params:  params,
	}
}

// enter records the call and returns the injected failure, if any.
// Callers hold v.mu.
func (v *Vehicle) enter(op string, needConnection bool) error {
	v.calls = append(v.calls, op)
	if err := v.failNext; err != nil {
		v.failNext = nil
		return err
	}
	if needConnection && !v.connected {
		return errors.New("sim: not connected")
	}
	return nil
}

func (v *Vehicle) Connect(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("Connect", false); err != nil {
		return err
	}
	v.connected = true
	log.Printf("Simulated vehicle at %.6f,%.6f", v.lat, v.lon)
	return nil
}

func (v *Vehicle) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connected = false
	return nil
}

func (v *Vehicle) ReadTelemetry(ctx context.Context) (link.Telemetry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("ReadTelemetry", true); err != nil {
		return link.Telemetry{}, err
	}
	return link.Telemetry{
		Latitude:       v.lat,
		Longitude:      v.lon,
		Altitude:       v.alt,
		Roll:           v.roll,
		Pitch:          v.pitch,
		Yaw:            v.yaw,
		GroundSpeed:    v.groundSpeed,
		AirSpeed:       v.airSpeed,
		BatteryVoltage: v.battery,
		GPS:            v.gps,
		Mode:           v.mode,
		Armed:          v.armed,
		SystemStatus:   v.status,
	}, nil
}

func (v *Vehicle) Mode(ctx context.Context) (types.FlightMode, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("Mode", true); err != nil {
		return "", err
	}
	return v.mode, nil
}

func (v *Vehicle) SetMode(ctx context.Context, mode types.FlightMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("SetMode", true); err != nil {
		return err
	}
	if _, ok := link.ModeNumber(link.ClassPlane, mode); !ok {
		return errors.Wrapf(link.ErrUnknownMode, "%s", mode)
	}
	v.mode = mode
	return nil
}

func (v *Vehicle) Armed(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("Armed", true); err != nil {
		return false, err
	}
	return v.armed, nil
}

func (v *Vehicle) SetArmed(ctx context.Context, armed bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("SetArmed", true); err != nil {
		return err
	}
	if armed && !v.armable {
		return errors.New("sim: arming denied, pre-arm checks failing")
	}
	v.armed = armed
	if armed {
		v.status = "ACTIVE"
	} else {
		v.status = "STANDBY"
	}
	return nil
}

func (v *Vehicle) IsArmable(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("IsArmable", true); err != nil {
		return false, err
	}
	return v.armable, nil
}

func (v *Vehicle) DownloadCommands(ctx context.Context) ([]types.MissionCommand, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("DownloadCommands", true); err != nil {
		return nil, err
	}
	out := make([]types.MissionCommand, len(v.commands))
	copy(out, v.commands)
	return out, nil
}

func (v *Vehicle) UploadCommands(ctx context.Context, cmds []types.MissionCommand) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("UploadCommands", true); err != nil {
		return err
	}
	v.commands = make([]types.MissionCommand, len(cmds))
	for i, c := range cmds {
		c.Seq = i
		v.commands[i] = c
	}
	if v.next >= len(v.commands) {
		v.next = 0
	}
	return nil
}

func (v *Vehicle) ClearCommands(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("ClearCommands", true); err != nil {
		return err
	}
	v.commands = nil
	v.next = 0
	return nil
}

// SetNextCommand is unchecked against the queue like a real autopilot's
// mission pointer write; an index past the end simply leaves nothing to fly.
// Like the MAVLink seq field it must fit in 16 bits.
func (v *Vehicle) SetNextCommand(ctx context.Context, index int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("SetNextCommand", true); err != nil {
		return err
	}
	if index < 0 || index > math.MaxUint16 {
		return errors.Errorf("mission item %d out of range", index)
	}
	v.next = index
	return nil
}

func (v *Vehicle) Parameter(ctx context.Context, key string) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("Parameter", true); err != nil {
		return 0, err
	}
	value, ok := v.params[key]
	if !ok {
		return 0, errors.Errorf("sim: parameter %q not found", key)
	}
	return value, nil
}

func (v *Vehicle) SetParameter(ctx context.Context, key string, value float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("SetParameter", true); err != nil {
		return err
	}
	v.params[key] = value
	return nil
}

func (v *Vehicle) Parameters(ctx context.Context) (map[string]float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("Parameters", true); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(v.params))
	for k, x := range v.params {
		out[k] = x
	}
	return out, nil
}

// SetPosition teleports the vehicle.
func (v *Vehicle) SetPosition(lat, lon, alt float64) {
	v.mu.Lock()
	v.lat, v.lon, v.alt = lat, lon, alt
	v.mu.Unlock()
}

// SetAttitude sets roll, pitch and yaw in radians.
func (v *Vehicle) SetAttitude(roll, pitch, yaw float64) {
	v.mu.Lock()
	v.roll, v.pitch, v.yaw = roll, pitch, yaw
	v.mu.Unlock()
}

func (v *Vehicle) SetArmable(armable bool) {
	v.mu.Lock()
	v.armable = armable
	v.mu.Unlock()
}

// NextCommand is the mission pointer, home excluded.
func (v *Vehicle) NextCommand() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.next
}

// FailNext makes the next link call return err.
func (v *Vehicle) FailNext(err error) {
	v.mu.Lock()
	v.failNext = err
	v.mu.Unlock()
}

// Calls lists the link methods invoked so far, oldest first.
func (v *Vehicle) Calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.calls))
	copy(out, v.calls)
	return out
}

func (v *Vehicle) ResetCalls() {
	v.mu.Lock()
	v.calls = nil
	v.mu.Unlock()
}

// ParameterKeys returns the parameter names in sorted order.
func (v *Vehicle) ParameterKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	keys := make([]string, 0, len(v.params))
	for k := range v.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run advances the simulation every interval until ctx is cancelled.
func (v *Vehicle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Step(interval.Seconds())
		}
	}
}

// Step advances the vehicle by dt seconds. It only moves while armed in AUTO,
// flying the current mission item and then moving the pointer on.
func (v *Vehicle) Step(dt float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.battery = math.Max(10.5, v.battery-0.0005*dt)
	if !v.armed || v.mode != "AUTO" || v.next >= len(v.commands) || v.next < 0 {
		v.groundSpeed, v.airSpeed = 0, 0
		return
	}

	target := v.commands[v.next]
	targetLat, targetLon := target.Latitude, target.Longitude
	if target.Kind == types.KindTakeoff || (targetLat == 0 && targetLon == 0) {
		targetLat, targetLon = v.lat, v.lon
	}

	here := geo.NewPoint(v.lat, v.lon)
	there := geo.NewPoint(targetLat, targetLon)
	remainingKm := here.GreatCircleDistance(there)
	stepKm := v.cfg.Speed * dt / 1000

	v.alt += clamp(target.Altitude-v.alt, -3*dt, 3*dt)
	if target.Kind == types.KindLand && remainingKm <= stepKm {
		v.alt = math.Max(0, v.alt-3*dt)
	}

	if remainingKm <= stepKm {
		v.lat, v.lon = targetLat, targetLon
		v.groundSpeed = remainingKm * 1000 / dt
		if target.Kind == types.KindLand {
			if v.alt <= 0 {
				v.armed = false
				v.status = "STANDBY"
				v.next++
			}
		} else if math.Abs(target.Altitude-v.alt) < 1 || target.Kind != types.KindTakeoff {
			v.next++
		}
	} else {
		bearing := here.BearingTo(there)
		p := here.PointAtDistanceAndBearing(stepKm, bearing)
		v.lat, v.lon = p.Lat(), p.Lng()
		v.groundSpeed = v.cfg.Speed
		v.yaw = wrapPi(bearing * math.Pi / 180)
	}
	v.airSpeed = v.groundSpeed
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// wrapPi maps an angle into (-π, π] the way ATTITUDE reports yaw.
func wrapPi(rad float64) float64 {
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	for rad <= -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}
