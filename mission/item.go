// Package mission implements MissionService (spec §4.7): the download
// state machine, the protocol-correct (redesigned per spec §9) upload
// loop, the dense-sequence invariant, and convenience item constructors.
//
// Grounded on original_source/dronesdk/mission/manager.py (convenience
// constructors) and original_source/dronesdk/mission/sequence.py (state
// machine; upload redesigned to be request/response-driven instead of the
// original's fixed-gap stream).
package mission

import "github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"

// Item is one mission command, position-addressed: Seq is always equal to
// its index in the owning Service's list after any mutation (spec §3, §8
// "Sequence density").
type Item struct {
	Seq          uint16
	Frame        ardupilotmega.MAV_FRAME
	Command      ardupilotmega.MAV_CMD
	Current      uint8
	Autocontinue uint8
	Param1, Param2, Param3, Param4 float32
	X, Y, Z float32
}

// ItemFromMAVLink is the read side of the round-trip property spec §8
// requires: from_mavlink(to_mavlink(c)) == c.
func ItemFromMAVLink(msg *ardupilotmega.MessageMissionItem) Item {
	return Item{
		Seq:          msg.Seq,
		Frame:        msg.Frame,
		Command:      msg.Command,
		Current:      msg.Current,
		Autocontinue: msg.Autocontinue,
		Param1:       msg.Param1,
		Param2:       msg.Param2,
		Param3:       msg.Param3,
		Param4:       msg.Param4,
		X:            msg.X,
		Y:            msg.Y,
		Z:            msg.Z,
	}
}

// ToMAVLink is ItemFromMAVLink's inverse.
func (it Item) ToMAVLink(targetSystem, targetComponent uint8) *ardupilotmega.MessageMissionItem {
	return &ardupilotmega.MessageMissionItem{
		TargetSystem:    targetSystem,
		TargetComponent: targetComponent,
		Seq:             it.Seq,
		Frame:           it.Frame,
		Command:         it.Command,
		Current:         it.Current,
		Autocontinue:    it.Autocontinue,
		Param1:          it.Param1,
		Param2:          it.Param2,
		Param3:          it.Param3,
		Param4:          it.Param4,
		X:               it.X,
		Y:               it.Y,
		Z:               it.Z,
	}
}

// Waypoint builds a MAV_CMD_NAV_WAYPOINT item at (lat, lon, relative alt),
// relative-alt framed by default per spec §4.7.
func Waypoint(seq uint16, lat, lon, alt float64) Item {
	return Item{
		Seq:     seq,
		Frame:   ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT,
		Command: ardupilotmega.MAV_CMD_NAV_WAYPOINT,
		X:       float32(lat),
		Y:       float32(lon),
		Z:       float32(alt),
	}
}

// Takeoff builds a MAV_CMD_NAV_TAKEOFF item to the given relative altitude.
func Takeoff(seq uint16, alt float64) Item {
	return Item{
		Seq:     seq,
		Frame:   ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT,
		Command: ardupilotmega.MAV_CMD_NAV_TAKEOFF,
		Z:       float32(alt),
	}
}

// Land builds a MAV_CMD_NAV_LAND item at (lat, lon).
func Land(seq uint16, lat, lon float64) Item {
	return Item{
		Seq:     seq,
		Frame:   ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT,
		Command: ardupilotmega.MAV_CMD_NAV_LAND,
		X:       float32(lat),
		Y:       float32(lon),
	}
}

// RTL builds a MAV_CMD_NAV_RETURN_TO_LAUNCH item.
func RTL(seq uint16) Item {
	return Item{Seq: seq, Frame: ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT, Command: ardupilotmega.MAV_CMD_NAV_RETURN_TO_LAUNCH}
}

// LoiterTime builds a MAV_CMD_NAV_LOITER_TIME item that loiters at
// (lat, lon, alt) for seconds before continuing.
func LoiterTime(seq uint16, lat, lon, alt float64, seconds float32) Item {
	return Item{
		Seq:     seq,
		Frame:   ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT,
		Command: ardupilotmega.MAV_CMD_NAV_LOITER_TIME,
		Param1:  seconds,
		X:       float32(lat),
		Y:       float32(lon),
		Z:       float32(alt),
	}
}

// LoiterUnlimited builds a MAV_CMD_NAV_LOITER_UNLIM item that loiters at
// (lat, lon, alt) indefinitely.
func LoiterUnlimited(seq uint16, lat, lon, alt float64) Item {
	return Item{
		Seq:     seq,
		Frame:   ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT,
		Command: ardupilotmega.MAV_CMD_NAV_LOITER_UNLIM,
		X:       float32(lat),
		Y:       float32(lon),
		Z:       float32(alt),
	}
}
