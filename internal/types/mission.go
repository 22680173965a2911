package types

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Waypoint is one point of the active route as served by the ground
// station's data service.
type Waypoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type CommandKind int

const (
	KindOther CommandKind = iota
	KindTakeoff
	KindWaypoint
	KindLand
	KindGeofence
)

// MAV_CMD ids of the recognised kinds
const (
	CmdNavWaypoint              uint16 = 16
	CmdNavLand                  uint16 = 21
	CmdNavTakeoff               uint16 = 22
	CmdNavFencePolygonInclusion uint16 = 5001
)

// FrameGlobalRelativeAlt is MAV_FRAME_GLOBAL_RELATIVE_ALT.
const FrameGlobalRelativeAlt uint8 = 3

var kindNames = map[CommandKind]string{
	KindOther:    "OTHER",
	KindTakeoff:  "TAKEOFF",
	KindWaypoint: "WAYPOINT",
	KindLand:     "LAND",
	KindGeofence: "GEOFENCE",
}

// ParseCommandKind accepts the four insertable kinds only, spelled exactly
// as TAKEOFF, WAYPOINT, LAND or GEOFENCE.
func ParseCommandKind(name string) (CommandKind, error) {
	switch name {
	case "TAKEOFF":
		return KindTakeoff, nil
	case "WAYPOINT":
		return KindWaypoint, nil
	case "LAND":
		return KindLand, nil
	case "GEOFENCE":
		return KindGeofence, nil
	}
	return KindOther, errors.Errorf("unknown command kind %q", name)
}

func (k CommandKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindOther]
}

// Exclusive reports whether a command of this kind must be alone in the queue.
func (k CommandKind) Exclusive() bool {
	return k == KindTakeoff || k == KindLand
}

func (k CommandKind) Command() uint16 {
	switch k {
	case KindTakeoff:
		return CmdNavTakeoff
	case KindWaypoint:
		return CmdNavWaypoint
	case KindLand:
		return CmdNavLand
	case KindGeofence:
		return CmdNavFencePolygonInclusion
	}
	return 0
}

func KindForCommand(command uint16) CommandKind {
	switch command {
	case CmdNavTakeoff:
		return KindTakeoff
	case CmdNavWaypoint:
		return KindWaypoint
	case CmdNavLand:
		return KindLand
	case CmdNavFencePolygonInclusion:
		return KindGeofence
	}
	return KindOther
}

func (k CommandKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *CommandKind) UnmarshalText(text []byte) error {
	if string(text) == kindNames[KindOther] {
		*k = KindOther
		return nil
	}
	kind, err := ParseCommandKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// MissionCommand is one item of the onboard mission queue. Items of kinds
// this bridge does not create keep their raw command id and params so they
// survive a download/upload round trip.
type MissionCommand struct {
	Seq          int         `json:"seq"`
	Kind         CommandKind `json:"kind"`
	Command      uint16      `json:"command"`
	Frame        uint8       `json:"frame"`
	Params       [4]float64  `json:"params"`
	Latitude     float64     `json:"lat"`
	Longitude    float64     `json:"lon"`
	Altitude     float64     `json:"alt"`
	Autocontinue bool        `json:"autocontinue"`
}

func NewMissionCommand(kind CommandKind, lat, lon, alt float64) MissionCommand {
	return MissionCommand{
		Kind:         kind,
		Command:      kind.Command(),
		Frame:        FrameGlobalRelativeAlt,
		Latitude:     lat,
		Longitude:    lon,
		Altitude:     alt,
		Autocontinue: true,
	}
}

// UnmarshalJSON fills Command from Kind (and Kind from Command) when only
// one of them is present, so hand-written mission files may name either.
func (c *MissionCommand) UnmarshalJSON(b []byte) error {
	type plain MissionCommand
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Command == 0 {
		p.Command = p.Kind.Command()
	} else if p.Kind == KindOther {
		p.Kind = KindForCommand(p.Command)
	}
	*c = MissionCommand(p)
	return nil
}
