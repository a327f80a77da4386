package state

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"

	"github.com/openskylab/groundlink/mavbus"
)

func newTestProjector() (*Projector, *mavbus.Bus) {
	bus := mavbus.New(nil)
	p := NewProjector(bus)
	p.Attach()
	return p, bus
}

func heartbeat(vehicleType ardupilotmega.MAV_TYPE, autopilot ardupilotmega.MAV_AUTOPILOT, customMode uint32, armed bool) *ardupilotmega.MessageHeartbeat {
	base := ardupilotmega.MAV_MODE_FLAG(0)
	if armed {
		base = 0x80
	}
	return &ardupilotmega.MessageHeartbeat{
		Type:         vehicleType,
		Autopilot:    autopilot,
		CustomMode:   customMode,
		BaseMode:     base,
		SystemStatus: ardupilotmega.MAV_STATE_ACTIVE,
	}
}

func publishHeartbeat(bus *mavbus.Bus, msg *ardupilotmega.MessageHeartbeat) {
	bus.PublishMessage(mavbus.MessageEvent{MessageType: "HEARTBEAT", Message: msg})
}

func TestOnHeartbeat_SetsModeAndArmed(t *testing.T) {
	p, bus := newTestProjector()

	publishHeartbeat(bus, heartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, ardupilotmega.MAV_AUTOPILOT_ARDUPILOTMEGA, 4, true))

	if p.Mode() != "GUIDED" {
		t.Errorf("Mode() = %q, want GUIDED", p.Mode())
	}
	if !p.Armed() {
		t.Error("Armed() should be true")
	}
}

func TestOnHeartbeat_FiltersNonVehicleTypes(t *testing.T) {
	p, bus := newTestProjector()

	publishHeartbeat(bus, heartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, ardupilotmega.MAV_AUTOPILOT_ARDUPILOTMEGA, 0, false))
	if p.Mode() != "STABILIZE" {
		t.Fatalf("Mode() = %q, want STABILIZE", p.Mode())
	}

	// A GCS on the same link transmitting its own HEARTBEAT must never
	// overwrite the real vehicle's last-known mode/armed state.
	publishHeartbeat(bus, heartbeat(ardupilotmega.MAV_TYPE_GCS, ardupilotmega.MAV_AUTOPILOT_INVALID, 4, true))

	if p.Mode() != "STABILIZE" {
		t.Errorf("Mode() = %q, want STABILIZE (unchanged by a GCS heartbeat)", p.Mode())
	}
	if p.Armed() {
		t.Error("Armed() should remain false after a GCS heartbeat")
	}
}

func TestOnHeartbeat_NotifiesOnlyOnChange(t *testing.T) {
	_, bus := newTestProjector()

	var modes []string
	bus.SubscribeAttribute("mode", mavbus.PriorityNormal, func(evt mavbus.AttributeEvent) {
		modes = append(modes, evt.Value.(string))
	})

	publishHeartbeat(bus, heartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, ardupilotmega.MAV_AUTOPILOT_ARDUPILOTMEGA, 0, false)) // STABILIZE
	publishHeartbeat(bus, heartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, ardupilotmega.MAV_AUTOPILOT_ARDUPILOTMEGA, 0, false)) // STABILIZE again
	publishHeartbeat(bus, heartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, ardupilotmega.MAV_AUTOPILOT_ARDUPILOTMEGA, 4, false)) // GUIDED

	want := []string{"STABILIZE", "GUIDED"}
	if len(modes) != len(want) {
		t.Fatalf("modes = %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Errorf("modes[%d] = %q, want %q", i, modes[i], want[i])
		}
	}
}

func TestOnHeartbeat_PX4ModeDecode(t *testing.T) {
	p, bus := newTestProjector()

	custom := (uint32(4) << 16) | (uint32(4) << 24) // px4MainAuto / px4SubAutoMission
	publishHeartbeat(bus, heartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, ardupilotmega.MAV_AUTOPILOT_PX4, custom, false))

	if p.Mode() != "AUTO.MISSION" {
		t.Errorf("Mode() = %q, want AUTO.MISSION", p.Mode())
	}
}

func TestOnSysStatus_HandlesSentinelValues(t *testing.T) {
	p, bus := newTestProjector()

	bus.PublishMessage(mavbus.MessageEvent{
		MessageType: "SYS_STATUS",
		Message: &ardupilotmega.MessageSysStatus{
			VoltageBattery:   0xFFFF,
			CurrentBattery:   -1,
			BatteryRemaining: -1,
		},
	})

	b := p.Battery()
	if b.Voltage != nil || b.Current != nil || b.Level != nil {
		t.Errorf("sentinel fields should decode to nil, got %+v", b)
	}
}

func TestOnSysStatus_DecodesRealValues(t *testing.T) {
	p, bus := newTestProjector()

	bus.PublishMessage(mavbus.MessageEvent{
		MessageType: "SYS_STATUS",
		Message: &ardupilotmega.MessageSysStatus{
			VoltageBattery:   12400,
			CurrentBattery:   250,
			BatteryRemaining: 80,
		},
	})

	b := p.Battery()
	if b.Voltage == nil || *b.Voltage != 12.4 {
		t.Errorf("Voltage = %v, want 12.4", b.Voltage)
	}
	if b.Current == nil || *b.Current != 2.5 {
		t.Errorf("Current = %v, want 2.5", b.Current)
	}
	if b.Level == nil || *b.Level != 80 {
		t.Errorf("Level = %v, want 80", b.Level)
	}
}

func TestOnGlobalPositionInt_HeadingSentinel(t *testing.T) {
	p, bus := newTestProjector()

	bus.PublishMessage(mavbus.MessageEvent{
		MessageType: "GLOBAL_POSITION_INT",
		Message:     &ardupilotmega.MessageGlobalPositionInt{Hdg: 65535},
	})

	if _, ok := p.Heading(); ok {
		t.Error("Heading should report ok=false for the 65535 sentinel")
	}
}

func TestAutopilotAndVehicleType_UnsetBeforeFirstHeartbeat(t *testing.T) {
	p, _ := newTestProjector()

	if _, ok := p.AutopilotType(); ok {
		t.Error("AutopilotType should report ok=false before any heartbeat")
	}
	if _, ok := p.VehicleType(); ok {
		t.Error("VehicleType should report ok=false before any heartbeat")
	}
}
