// Package gimbal projects mount/gimbal orientation and sends mount control
// commands, per spec §4.10.
//
// Grounded on original_source/dronesdk/gimbal/controller.py.
package gimbal

import (
	"sync"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/openskylab/groundlink/groundlinkerr"
	"github.com/openskylab/groundlink/mavbus"
	"github.com/openskylab/groundlink/state"
)

type sender interface {
	Send(msg message.Message) error
	TargetSystem() uint8
	TargetComponent() uint8
}

// Orientation is the gimbal's last known pitch/roll/yaw, degrees.
type Orientation struct {
	Pitch float32
	Roll  float32
	Yaw   float32
}

// Service projects MOUNT_STATUS/MOUNT_ORIENTATION and sends mount control
// commands.
type Service struct {
	transport sender

	mu          sync.RWMutex
	orientation Orientation
	haveReading bool
}

// New constructs a Service.
func New(transport sender) *Service {
	return &Service{transport: transport}
}

// Attach subscribes to MOUNT_STATUS and MOUNT_ORIENTATION.
func (s *Service) Attach(bus *mavbus.Bus) {
	bus.SubscribeMessage("MOUNT_STATUS", mavbus.PriorityNormal, s.onMountStatus)
	bus.SubscribeMessage("MOUNT_ORIENTATION", mavbus.PriorityNormal, s.onMountOrientation)
}

func (s *Service) onMountStatus(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageMountStatus)
	if !ok {
		return
	}
	// MOUNT_STATUS reports centidegrees; MOUNT_ORIENTATION reports degrees
	// directly, so the two message types share this handler's scaling only
	// here, not in onMountOrientation.
	s.store(Orientation{
		Pitch: float32(msg.PointingA) / 100,
		Roll:  float32(msg.PointingB) / 100,
		Yaw:   float32(msg.PointingC) / 100,
	})
}

func (s *Service) onMountOrientation(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageMountOrientation)
	if !ok {
		return
	}
	s.store(Orientation{Pitch: msg.Pitch, Roll: msg.Roll, Yaw: msg.Yaw})
}

func (s *Service) store(o Orientation) {
	s.mu.Lock()
	s.orientation = o
	s.haveReading = true
	s.mu.Unlock()
}

// Orientation returns the last projected mount orientation and whether one
// has been observed yet.
func (s *Service) Orientation() (Orientation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orientation, s.haveReading
}

// Rotate points the mount to the given pitch/roll/yaw (degrees), switching
// it to MAV_MOUNT_MODE_MAVLINK_TARGETING first.
func (s *Service) Rotate(pitch, roll, yaw float32) error {
	if err := s.transport.Send(&ardupilotmega.MessageMountConfigure{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		MountMode:       ardupilotmega.MAV_MOUNT_MODE_MAVLINK_TARGETING,
	}); err != nil {
		return err
	}
	return s.transport.Send(&ardupilotmega.MessageMountControl{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		InputA:          int32(pitch * 100),
		InputB:          int32(roll * 100),
		InputC:          int32(yaw * 100),
		SavePosition:    0,
	})
}

// TargetLocationRelative points the mount at loc, whose altitude is
// already expressed relative to home — no home argument is needed.
func (s *Service) TargetLocationRelative(loc state.LocationGlobalRelative) error {
	return s.setROI(loc.Lat, loc.Lon, loc.RelativeAlt)
}

// TargetLocationGlobal points the mount at an MSL location. Since
// MAV_CMD_DO_SET_ROI's altitude parameter is relative to home, not
// absolute, home must be given (and must itself carry a known altitude)
// so the relative altitude can be computed; otherwise this returns
// ErrInvalidArgument, per spec §4.10.
func (s *Service) TargetLocationGlobal(loc, home state.LocationGlobal) error {
	if home.Alt == nil {
		return groundlinkerr.ErrInvalidArgument
	}
	locAlt := 0.0
	if loc.Alt != nil {
		locAlt = *loc.Alt
	}
	return s.setROI(loc.Lat, loc.Lon, locAlt-*home.Alt)
}

func (s *Service) setROI(lat, lon, alt float64) error {
	if err := s.transport.Send(&ardupilotmega.MessageMountConfigure{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		MountMode:       ardupilotmega.MAV_MOUNT_MODE_GPS_POINT,
	}); err != nil {
		return err
	}
	return s.transport.Send(&ardupilotmega.MessageCommandLong{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Command:         ardupilotmega.MAV_CMD_DO_SET_ROI,
		Param5:          float32(lat),
		Param6:          float32(lon),
		Param7:          float32(alt),
	})
}

// Release returns the mount to RC-targeting (manual operator) control.
func (s *Service) Release() error {
	return s.transport.Send(&ardupilotmega.MessageMountConfigure{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		MountMode:       ardupilotmega.MAV_MOUNT_MODE_RC_TARGETING,
	})
}
