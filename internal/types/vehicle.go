package types

import (
	"encoding/json"
	"time"
)

// FlightMode is the autopilot's name for a flight mode, e.g. "AUTO" or "RTL".
type FlightMode string

type Orientation struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

type Position struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// GPSFix holds GPS quality as reported by the autopilot (eph/epv are raw
// dilution values, not metres).
type GPSFix struct {
	HorizontalError float64 `json:"eph"`
	VerticalError   float64 `json:"epv"`
	Satellites      int     `json:"satellites"`
	FixType         int     `json:"fix_type"`
}

type WaypointProgress struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"` // feet
}

// VehicleState is an immutable snapshot produced by one tracker update.
type VehicleState struct {
	Altitude       float64          `json:"altitude"`
	Orientation    Orientation      `json:"orientation"`
	GroundSpeed    float64          `json:"ground_speed"`
	AirSpeed       float64          `json:"air_speed"`
	BatteryVoltage float64          `json:"battery_voltage"`
	GPS            GPSFix           `json:"gps"`
	Position       Position         `json:"position"`
	Armed          bool             `json:"armed"`
	Mode           FlightMode       `json:"mode"`
	SystemStatus   string           `json:"system_status"`
	Waypoint       WaypointProgress `json:"waypoint"`
	Updated        time.Time        `json:"updated"`
}

// Quick projects the state onto the fields a ground station polls.
func (s VehicleState) Quick() QuickView {
	return QuickView{
		Altitude:       s.Altitude,
		Orientation:    s.Orientation,
		Position:       s.Position,
		GroundSpeed:    s.GroundSpeed,
		AirSpeed:       s.AirSpeed,
		BatteryVoltage: s.BatteryVoltage,
		Waypoint:       s.Waypoint,
		GPS:            s.GPS,
	}
}

type QuickView struct {
	Altitude       float64
	Orientation    Orientation
	Position       Position
	GroundSpeed    float64
	AirSpeed       float64
	BatteryVoltage float64
	Waypoint       WaypointProgress
	GPS            GPSFix
}

// MarshalJSON keeps the wire shape the ground-station client reads:
// waypoint is [index, distance] and connection is [eph, epv, satellites].
func (q QuickView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Altitude    float64     `json:"altitude"`
		Orientation Orientation `json:"orientation"`
		Lat         float64     `json:"lat"`
		Lon         float64     `json:"lon"`
		GroundSpeed float64     `json:"ground_speed"`
		AirSpeed    float64     `json:"air_speed"`
		Battery     float64     `json:"battery"`
		Waypoint    [2]float64  `json:"waypoint"`
		Connection  [3]float64  `json:"connection"`
	}{
		Altitude:    q.Altitude,
		Orientation: q.Orientation,
		Lat:         q.Position.Latitude,
		Lon:         q.Position.Longitude,
		GroundSpeed: q.GroundSpeed,
		AirSpeed:    q.AirSpeed,
		Battery:     q.BatteryVoltage,
		Waypoint:    [2]float64{float64(q.Waypoint.Index), q.Waypoint.Distance},
		Connection:  [3]float64{q.GPS.HorizontalError, q.GPS.VerticalError, float64(q.GPS.Satellites)},
	})
}

type Stats struct {
	Quick    QuickView        `json:"quick"`
	Mode     FlightMode       `json:"mode"`
	Commands []MissionCommand `json:"commands"`
	Armed    bool             `json:"armed"`
	Status   string           `json:"status"`
}
