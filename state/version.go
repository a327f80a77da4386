package state

import "github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"

// Version decodes AUTOPILOT_VERSION's flight_sw_version word into the
// semantic-version-like fields dronekit-style clients expose. Grounded on
// original_source/dronesdk/models/version.py's bit layout: byte3.byte2.byte1
// is major.minor.patch and byte0 is the release type/stability byte.
type Version struct {
	Raw          uint32
	AutopilotType ardupilotmega.MAV_AUTOPILOT
	VehicleType   ardupilotmega.MAV_TYPE
	Major, Minor, Patch byte
	Release             byte
}

// VersionFromMAVLink decodes an AUTOPILOT_VERSION flight_sw_version word.
func VersionFromMAVLink(flightSWVersion uint32, autopilot ardupilotmega.MAV_AUTOPILOT, vehicleType ardupilotmega.MAV_TYPE) Version {
	return Version{
		Raw:           flightSWVersion,
		AutopilotType: autopilot,
		VehicleType:   vehicleType,
		Major:         byte(flightSWVersion >> 24),
		Minor:         byte(flightSWVersion >> 16),
		Patch:         byte(flightSWVersion >> 8),
		Release:       byte(flightSWVersion),
	}
}

// IsStable reports whether the release byte marks an official release
// build (255), per spec §3.
func (v Version) IsStable() bool { return v.Release == 255 }

// ReleaseType decodes the top two bits of the release byte into one of
// dev/alpha/beta/rc, per spec §3.
func (v Version) ReleaseType() string {
	switch v.Release >> 6 {
	case 0:
		return "dev"
	case 1:
		return "alpha"
	case 2:
		return "beta"
	case 3:
		return "rc"
	default:
		return "unknown"
	}
}

// Capabilities is the 13 named booleans extracted from AUTOPILOT_VERSION's
// 64-bit capabilities bitfield, per spec §3. Bit positions follow the
// MAV_PROTOCOL_CAPABILITY enum, as consumed by
// original_source/dronesdk/models/version.py.
type Capabilities struct {
	MissionFloat                bool
	ParamFloat                  bool
	MissionInt                  bool
	CommandInt                  bool
	ParamUnion                  bool
	FTP                         bool
	SetAttitudeTarget           bool
	SetPositionTargetLocalNED   bool
	SetPositionTargetGlobalInt  bool
	TerrainData                 bool
	SetActuatorTarget           bool
	FlightTermination           bool
	CompassCalibration          bool
}

// CapabilitiesFromMAVLink extracts the 13 named capability bits from the
// AUTOPILOT_VERSION capabilities word (bits 0..12, in enum declaration
// order).
func CapabilitiesFromMAVLink(word uint64) Capabilities {
	bit := func(n uint) bool { return word&(1<<n) != 0 }
	return Capabilities{
		MissionFloat:               bit(0),
		ParamFloat:                 bit(1),
		MissionInt:                 bit(2),
		CommandInt:                 bit(3),
		ParamUnion:                 bit(4),
		FTP:                        bit(5),
		SetAttitudeTarget:          bit(6),
		SetPositionTargetLocalNED:  bit(7),
		SetPositionTargetGlobalInt: bit(8),
		TerrainData:                bit(9),
		SetActuatorTarget:          bit(10),
		FlightTermination:          bit(11),
		CompassCalibration:         bit(12),
	}
}
