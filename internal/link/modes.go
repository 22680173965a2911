package link

import (
	"fmt"

	"github.com/tiiuae/uav_bridge/internal/types"
)

// VehicleClass selects which ArduPilot custom-mode table applies.
type VehicleClass int

const (
	ClassPlane VehicleClass = iota
	ClassCopter
	ClassRover
)

var planeModes = map[uint32]types.FlightMode{
	0:  "MANUAL",
	1:  "CIRCLE",
	2:  "STABILIZE",
	3:  "TRAINING",
	4:  "ACRO",
	5:  "FBWA",
	6:  "FBWB",
	7:  "CRUISE",
	8:  "AUTOTUNE",
	10: "AUTO",
	11: "RTL",
	12: "LOITER",
	13: "TAKEOFF",
	14: "AVOID_ADSB",
	15: "GUIDED",
	16: "INITIALISING",
	17: "QSTABILIZE",
	18: "QHOVER",
	19: "QLOITER",
	20: "QLAND",
	21: "QRTL",
}

var copterModes = map[uint32]types.FlightMode{
	0:  "STABILIZE",
	1:  "ACRO",
	2:  "ALT_HOLD",
	3:  "AUTO",
	4:  "GUIDED",
	5:  "LOITER",
	6:  "RTL",
	7:  "CIRCLE",
	9:  "LAND",
	11: "DRIFT",
	13: "SPORT",
	14: "FLIP",
	15: "AUTOTUNE",
	16: "POSHOLD",
	17: "BRAKE",
	18: "THROW",
	21: "SMART_RTL",
}

var roverModes = map[uint32]types.FlightMode{
	0:  "MANUAL",
	1:  "ACRO",
	3:  "STEERING",
	4:  "HOLD",
	5:  "LOITER",
	6:  "FOLLOW",
	7:  "SIMPLE",
	10: "AUTO",
	11: "RTL",
	12: "SMART_RTL",
	15: "GUIDED",
	16: "INITIALISING",
}

func modeTable(class VehicleClass) map[uint32]types.FlightMode {
	switch class {
	case ClassCopter:
		return copterModes
	case ClassRover:
		return roverModes
	}
	return planeModes
}

// ModeName maps an ArduPilot custom mode number to its name. Unknown numbers
// are rendered as "MODE(n)".
func ModeName(class VehicleClass, custom uint32) types.FlightMode {
	if name, ok := modeTable(class)[custom]; ok {
		return name
	}
	return types.FlightMode(fmt.Sprintf("MODE(%d)", custom))
}

// ModeNumber is the inverse of ModeName.
func ModeNumber(class VehicleClass, mode types.FlightMode) (uint32, bool) {
	for k, v := range modeTable(class) {
		if v == mode {
			return k, true
		}
	}
	return 0, false
}
