// Package flightcommand sends the outbound flight commands named in spec
// §4.8: mode changes, arm/disarm, takeoff, guided repositioning, velocity
// control, yaw control, and reboot.
//
// Grounded on original_source/dronesdk/flight_control/controller.py.
package flightcommand

import (
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/openskylab/groundlink/groundlinkerr"
	"github.com/openskylab/groundlink/modecode"
)

// PositionTargetTypeMask is the SET_POSITION_TARGET_{LOCAL_NED,GLOBAL_INT}
// type_mask value selecting velocity-only control (ignore position,
// acceleration, yaw, and yaw rate), per the resolved ambiguity recorded for
// velocity control.
const PositionTargetTypeMask = 0x0DC7

// targetedSender is the subset of transport.Transport the service needs.
type targetedSender interface {
	Send(msg message.Message) error
	Alive() bool
	TargetSystem() uint8
	TargetComponent() uint8
}

// vehicleTyper supplies the last observed autopilot/vehicle type, used to
// pick between ArduPilot's SET_MODE table lookup and PX4's bit-packed
// COMMAND_LONG translation.
type vehicleTyper interface {
	AutopilotType() (ardupilotmega.MAV_AUTOPILOT, bool)
	VehicleType() (ardupilotmega.MAV_TYPE, bool)
}

// Service sends flight commands through a transport, targeting whatever
// system/component the transport currently has adopted.
type Service struct {
	transport targetedSender
	vehicle   vehicleTyper
}

// New constructs a Service.
func New(transport targetedSender, vehicle vehicleTyper) *Service {
	return &Service{transport: transport, vehicle: vehicle}
}

func (s *Service) send(msg message.Message) error {
	if !s.transport.Alive() {
		return groundlinkerr.ErrNotConnected
	}
	return s.transport.Send(msg)
}

// SetMode switches the vehicle to the named flight mode. ArduPilot vehicles
// resolve name through the per-category mode table and send SET_MODE;
// PX4 vehicles resolve through the PX4 main/auto-sub table and send
// MAV_CMD_DO_SET_MODE since PX4 never accepts bare SET_MODE.
func (s *Service) SetMode(name string) error {
	autopilot, haveAutopilot := s.vehicle.AutopilotType()
	vehicleType, haveVehicleType := s.vehicle.VehicleType()
	if !haveAutopilot || !haveVehicleType {
		return groundlinkerr.ErrNotConnected
	}

	if autopilot == ardupilotmega.MAV_AUTOPILOT_PX4 {
		custom, ok := modecode.PX4ModeID(name)
		if !ok {
			return groundlinkerr.ErrInvalidArgument
		}
		return s.send(&ardupilotmega.MessageCommandLong{
			TargetSystem:    s.transport.TargetSystem(),
			TargetComponent: s.transport.TargetComponent(),
			Command:         ardupilotmega.MAV_CMD_DO_SET_MODE,
			Param1:          float32(modecode.MAVModeFlagCustomModeEnabled),
			Param2:          float32(custom),
		})
	}

	custom, ok := modecode.ModeID(modecode.CategoryFor(vehicleType), name)
	if !ok {
		return groundlinkerr.ErrInvalidArgument
	}
	return s.send(&ardupilotmega.MessageSetMode{
		TargetSystem: s.transport.TargetSystem(),
		BaseMode:     modecode.MAVModeFlagCustomModeEnabled,
		CustomMode:   custom,
	})
}

// Arm sends MAV_CMD_COMPONENT_ARM_DISARM with param1=1.
func (s *Service) Arm() error {
	return s.armDisarm(1)
}

// Disarm sends MAV_CMD_COMPONENT_ARM_DISARM with param1=0.
func (s *Service) Disarm() error {
	return s.armDisarm(0)
}

func (s *Service) armDisarm(value float32) error {
	return s.send(&ardupilotmega.MessageCommandLong{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Command:         ardupilotmega.MAV_CMD_COMPONENT_ARM_DISARM,
		Param1:          value,
	})
}

// Takeoff sends MAV_CMD_NAV_TAKEOFF to the given relative altitude.
func (s *Service) Takeoff(altitude float64) error {
	return s.send(&ardupilotmega.MessageCommandLong{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Command:         ardupilotmega.MAV_CMD_NAV_TAKEOFF,
		Param7:          float32(altitude),
	})
}

// Goto repositions a vehicle already in a guided-style mode by sending a
// single current=2 MISSION_ITEM at seq 0, the conventional MAVLink
// "fly here now" idiom that does not touch the stored mission. frame
// selects GLOBAL_RELATIVE_ALT vs GLOBAL per whether the caller's location
// is relative-to-home or absolute MSL (spec §4.8). Goto sends only the
// MISSION_ITEM; speed overrides are separate MAV_CMD_DO_CHANGE_SPEED
// commands sent through ChangeAirspeed / ChangeGroundspeed.
func (s *Service) Goto(frame ardupilotmega.MAV_FRAME, lat, lon, alt float64) error {
	return s.send(&ardupilotmega.MessageMissionItem{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Seq:             0,
		Frame:           frame,
		Command:         ardupilotmega.MAV_CMD_NAV_WAYPOINT,
		Current:         2,
		Autocontinue:    1,
		X:               float32(lat),
		Y:               float32(lon),
		Z:               float32(alt),
	})
}

// GotoRelative is Goto with GLOBAL_RELATIVE_ALT framing, for a location
// whose altitude is already relative to home.
func (s *Service) GotoRelative(lat, lon, relativeAlt float64) error {
	return s.Goto(ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT, lat, lon, relativeAlt)
}

// GotoGlobal is Goto with GLOBAL framing, for an absolute MSL location.
func (s *Service) GotoGlobal(lat, lon, mslAlt float64) error {
	return s.Goto(ardupilotmega.MAV_FRAME_GLOBAL, lat, lon, mslAlt)
}

const (
	speedTypeAirspeed     = 0
	speedTypeGroundspeed  = 1
	speedNoThrottleChange = -1
)

// ChangeAirspeed dispatches MAV_CMD_DO_CHANGE_SPEED to set target airspeed,
// per spec §4.8's "speed overrides dispatched separately."
func (s *Service) ChangeAirspeed(metersPerSecond float32) error {
	return s.changeSpeed(speedTypeAirspeed, metersPerSecond)
}

// ChangeGroundspeed dispatches MAV_CMD_DO_CHANGE_SPEED to set target
// groundspeed.
func (s *Service) ChangeGroundspeed(metersPerSecond float32) error {
	return s.changeSpeed(speedTypeGroundspeed, metersPerSecond)
}

func (s *Service) changeSpeed(speedType, speed float32) error {
	return s.send(&ardupilotmega.MessageCommandLong{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Command:         ardupilotmega.MAV_CMD_DO_CHANGE_SPEED,
		Param1:          speedType,
		Param2:          speed,
		Param3:          speedNoThrottleChange,
	})
}

// VelocityNED commands a velocity-only SET_POSITION_TARGET_LOCAL_NED in
// the vehicle's local NED frame.
func (s *Service) VelocityNED(vx, vy, vz float32) error {
	return s.send(&ardupilotmega.MessageSetPositionTargetLocalNed{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		CoordinateFrame: ardupilotmega.MAV_FRAME_LOCAL_NED,
		TypeMask:        PositionTargetTypeMask,
		Vx:              vx,
		Vy:              vy,
		Vz:              vz,
	})
}

// VelocityGlobal commands a velocity-only SET_POSITION_TARGET_GLOBAL_INT.
func (s *Service) VelocityGlobal(vx, vy, vz float32) error {
	return s.send(&ardupilotmega.MessageSetPositionTargetGlobalInt{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		CoordinateFrame: ardupilotmega.MAV_FRAME_GLOBAL_RELATIVE_ALT,
		TypeMask:        PositionTargetTypeMask,
		Vx:              vx,
		Vy:              vy,
		Vz:              vz,
	})
}

// ConditionYaw sends MAV_CMD_CONDITION_YAW: turn to angle degrees at
// speed deg/s, direction +1 clockwise / -1 counter-clockwise, relative
// selecting relative-to-current vs absolute heading.
func (s *Service) ConditionYaw(angle, speed float32, clockwise bool, relative bool) error {
	direction := float32(1)
	if !clockwise {
		direction = -1
	}
	isRelative := float32(0)
	if relative {
		isRelative = 1
	}
	return s.send(&ardupilotmega.MessageCommandLong{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Command:         ardupilotmega.MAV_CMD_CONDITION_YAW,
		Param1:          angle,
		Param2:          speed,
		Param3:          direction,
		Param4:          isRelative,
	})
}

// Reboot sends MAV_CMD_PREFLIGHT_REBOOT_SHUTDOWN with param1=1 (reboot
// autopilot).
func (s *Service) Reboot() error {
	return s.send(&ardupilotmega.MessageCommandLong{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Command:         ardupilotmega.MAV_CMD_PREFLIGHT_REBOOT_SHUTDOWN,
		Param1:          1,
	})
}
