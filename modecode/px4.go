package modecode

// PX4 packs its mode into custom_mode as main_mode in bits 16-23 and
// sub_mode in bits 24-31; base_mode's MAV_MODE_FLAG_CUSTOM_MODE_ENABLED bit
// marks that custom_mode should be interpreted this way at all. Grounded
// on original_source/dronesdk/flight_control/controller.py's PX4 mode
// decode.
const (
	px4MainManual     = 1
	px4MainAltctl     = 2
	px4MainPosctl     = 3
	px4MainAuto       = 4
	px4MainAcro       = 5
	px4MainOffboard   = 6
	px4MainStabilized = 7
	px4MainRattitude  = 8

	px4SubAutoReady        = 1
	px4SubAutoTakeoff      = 2
	px4SubAutoLoiter       = 3
	px4SubAutoMission      = 4
	px4SubAutoRTL          = 5
	px4SubAutoLand         = 6
	px4SubAutoRTGS         = 7
	px4SubAutoFollowTarget = 8
	px4SubAutoPrecland     = 9
)

var px4MainNames = map[uint32]string{
	px4MainManual:     "MANUAL",
	px4MainAltctl:     "ALTCTL",
	px4MainPosctl:     "POSCTL",
	px4MainAcro:       "ACRO",
	px4MainOffboard:   "OFFBOARD",
	px4MainStabilized: "STABILIZED",
	px4MainRattitude:  "RATTITUDE",
}

var px4AutoSubNames = map[uint32]string{
	px4SubAutoReady:        "AUTO.READY",
	px4SubAutoTakeoff:      "AUTO.TAKEOFF",
	px4SubAutoLoiter:       "AUTO.LOITER",
	px4SubAutoMission:      "AUTO.MISSION",
	px4SubAutoRTL:          "AUTO.RTL",
	px4SubAutoLand:         "AUTO.LAND",
	px4SubAutoRTGS:         "AUTO.RTGS",
	px4SubAutoFollowTarget: "AUTO.FOLLOW_TARGET",
	px4SubAutoPrecland:     "AUTO.PRECLAND",
}

// PX4ModeName decodes a PX4 custom_mode value into its dotted mode name
// (e.g. "AUTO.MISSION", "POSCTL"). Returns "UNKNOWN" for an unrecognized
// main/sub combination.
func PX4ModeName(customMode uint32) string {
	main := (customMode >> 16) & 0xFF
	sub := (customMode >> 24) & 0xFF

	if main == px4MainAuto {
		if name, ok := px4AutoSubNames[sub]; ok {
			return name
		}
		return "UNKNOWN"
	}
	if name, ok := px4MainNames[main]; ok {
		return name
	}
	return "UNKNOWN"
}

// PX4ModeID is PX4ModeName's inverse, returning the custom_mode value (with
// the main/sub mode fields populated; base_mode's custom-mode-enabled bit
// is the caller's responsibility to set) for a known mode name.
func PX4ModeID(name string) (uint32, bool) {
	for id, n := range px4MainNames {
		if n == name {
			return id << 16, true
		}
	}
	for id, n := range px4AutoSubNames {
		if n == name {
			return (uint32(px4MainAuto) << 16) | (id << 24), true
		}
	}
	return 0, false
}

// MAVModeFlagCustomModeEnabled is MAV_MODE_FLAG_CUSTOM_MODE_ENABLED from
// the common dialect, repeated here as an untyped constant so
// FlightCommander can use the same bit on both the ArduPilot and PX4
// paths.
const MAVModeFlagCustomModeEnabled = 0x01
