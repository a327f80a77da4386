// Package modecode decodes ArduPilot and PX4 custom_mode values into the
// mode name strings spec'd for string-wise comparison (spec §3
// VehicleMode, §4.5 HEARTBEAT projection).
//
// Grounded on this codebase's flightmode.go for the Go table-per-vehicle-
// class idiom, and on original_source/dronesdk/flight_control/controller.py
// for the exact ArduPilot mode-number source of truth and the PX4 main/sub
// mode decode. Unlike flightmode.go this package returns the autopilot's
// own mode name strings rather than folding them into a unified enum,
// since spec.md compares VehicleMode by name directly.
package modecode

import "github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"

// Category groups ArduPilot vehicle types that share one mode table.
type Category int

const (
	CategoryCopter Category = iota
	CategoryPlane
	CategoryRover
)

// CategoryFor maps a MAVLink vehicle type to the ArduPilot mode table that
// applies to it. Unrecognized types default to Copter, matching this
// codebase's own flightmode.go fallback.
func CategoryFor(vehicleType ardupilotmega.MAV_TYPE) Category {
	switch vehicleType {
	case ardupilotmega.MAV_TYPE_FIXED_WING,
		ardupilotmega.MAV_TYPE_VTOL_TAILSITTER_DUOROTOR,
		ardupilotmega.MAV_TYPE_VTOL_TAILSITTER_QUADROTOR,
		ardupilotmega.MAV_TYPE_VTOL_TILTROTOR,
		ardupilotmega.MAV_TYPE_VTOL_FIXEDROTOR,
		ardupilotmega.MAV_TYPE_VTOL_TAILSITTER:
		return CategoryPlane
	case ardupilotmega.MAV_TYPE_GROUND_ROVER, ardupilotmega.MAV_TYPE_SURFACE_BOAT:
		return CategoryRover
	default:
		return CategoryCopter
	}
}

var copterModes = map[uint32]string{
	0: "STABILIZE", 1: "ACRO", 2: "ALT_HOLD", 3: "AUTO", 4: "GUIDED",
	5: "LOITER", 6: "RTL", 7: "CIRCLE", 9: "LAND", 11: "DRIFT",
	13: "SPORT", 14: "FLIP", 15: "AUTOTUNE", 16: "POSHOLD", 17: "BRAKE",
	18: "THROW", 19: "AVOID_ADSB", 20: "GUIDED_NOGPS", 21: "SMART_RTL",
	22: "FLOWHOLD", 23: "FOLLOW", 24: "ZIGZAG", 25: "SYSTEMID",
	26: "AUTOROTATE", 27: "TURTLE",
}

var planeModes = map[uint32]string{
	0: "MANUAL", 1: "CIRCLE", 2: "STABILIZE", 3: "TRAINING", 4: "ACRO",
	5: "FBWA", 6: "FBWB", 7: "CRUISE", 8: "AUTOTUNE", 10: "AUTO",
	11: "RTL", 12: "LOITER", 13: "TAKEOFF", 14: "AVOID_ADSB", 15: "GUIDED",
	16: "INITIALISING", 17: "QSTABILIZE", 18: "QHOVER", 19: "QLOITER",
	20: "QLAND", 21: "QRTL", 22: "QAUTOTUNE", 23: "QACRO", 24: "THERMAL",
}

var roverModes = map[uint32]string{
	0: "MANUAL", 1: "ACRO", 3: "STEERING", 4: "HOLD", 5: "LOITER",
	6: "FOLLOW", 7: "SIMPLE", 8: "DOCK", 9: "CIRCLE", 10: "AUTO",
	11: "RTL", 12: "SMART_RTL", 15: "GUIDED", 16: "INITIALISING",
}

func tableFor(c Category) map[uint32]string {
	switch c {
	case CategoryPlane:
		return planeModes
	case CategoryRover:
		return roverModes
	default:
		return copterModes
	}
}

// ModeName looks up the ArduPilot mode name for customMode within the
// given category. Returns "UNKNOWN" for an unrecognized custom_mode, per
// spec §4.5.
func ModeName(c Category, customMode uint32) string {
	if name, ok := tableFor(c)[customMode]; ok {
		return name
	}
	return "UNKNOWN"
}

// ModeID is ModeName's inverse, used by FlightCommander.SetMode. ok is
// false for an unrecognized name.
func ModeID(c Category, name string) (uint32, bool) {
	for id, n := range tableFor(c) {
		if n == name {
			return id, true
		}
	}
	return 0, false
}
