package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
)

type fakeAdopter struct {
	sys, comp uint8
	alive     bool
}

func (f *fakeAdopter) SetTarget(sys, comp uint8) { f.sys, f.comp = sys, comp }
func (f *fakeAdopter) TargetSystem() uint8       { return f.sys }
func (f *fakeAdopter) Alive() bool               { return f.alive }

func TestIsVehicleType(t *testing.T) {
	tests := []struct {
		name string
		typ  ardupilotmega.MAV_TYPE
		want bool
	}{
		{"quadrotor is a vehicle", ardupilotmega.MAV_TYPE_QUADROTOR, true},
		{"fixed wing is a vehicle", ardupilotmega.MAV_TYPE_FIXED_WING, true},
		{"gcs is not a vehicle", ardupilotmega.MAV_TYPE_GCS, false},
		{"gimbal is not a vehicle", ardupilotmega.MAV_TYPE_GIMBAL, false},
		{"adsb is not a vehicle", ardupilotmega.MAV_TYPE_ADSB, false},
		{"onboard controller is not a vehicle", ardupilotmega.MAV_TYPE_ONBOARD_CONTROLLER, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVehicleType(tt.typ); got != tt.want {
				t.Errorf("IsVehicleType(%v) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestAdoptTarget_FirstHeartbeatWins(t *testing.T) {
	adopter := &fakeAdopter{alive: true}
	m := New(adopter)

	m.AdoptTarget(1, 1, ardupilotmega.MAV_TYPE_QUADROTOR)
	m.AdoptTarget(2, 2, ardupilotmega.MAV_TYPE_QUADROTOR)

	if adopter.sys != 1 || adopter.comp != 1 {
		t.Errorf("got sys=%d comp=%d, want first-adopted 1/1", adopter.sys, adopter.comp)
	}
}

func TestAdoptTarget_FiltersNonVehicleHeartbeats(t *testing.T) {
	adopter := &fakeAdopter{alive: true}
	m := New(adopter)

	m.AdoptTarget(9, 9, ardupilotmega.MAV_TYPE_GCS)

	if adopter.sys != 0 {
		t.Errorf("a GCS heartbeat must never adopt a target, got sys=%d", adopter.sys)
	}
}

func TestHandleHeartbeat_ConnectEdgeFiresOnce(t *testing.T) {
	adopter := &fakeAdopter{alive: true}
	m := New(adopter)

	connects := 0
	m.OnConnect(func() { connects++ })

	now := time.Now()
	m.HandleHeartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, now)
	m.HandleHeartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, now.Add(10*time.Millisecond))

	if connects != 1 {
		t.Errorf("connects = %d, want 1 (edge-triggered, not level-triggered)", connects)
	}
}

func TestHandleHeartbeat_FilteredTypeIsIgnored(t *testing.T) {
	adopter := &fakeAdopter{alive: true}
	m := New(adopter)

	connects := 0
	m.OnConnect(func() { connects++ })
	m.HandleHeartbeat(ardupilotmega.MAV_TYPE_GIMBAL, time.Now())

	if connects != 0 {
		t.Error("a gimbal heartbeat must not trigger the connect edge")
	}
	if m.IsConnected() {
		t.Error("a gimbal-only heartbeat stream must not be reported as connected")
	}
}

func TestIsConnected_DisconnectEdgeFiresOnStaleness(t *testing.T) {
	adopter := &fakeAdopter{alive: true}
	m := New(adopter).WithTimeout(20 * time.Millisecond)

	disconnects := 0
	m.OnDisconnect(func() { disconnects++ })

	m.HandleHeartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, time.Now())
	if !m.IsConnected() {
		t.Fatal("should be connected immediately after a heartbeat")
	}

	time.Sleep(40 * time.Millisecond)
	if m.IsConnected() {
		t.Error("should be disconnected once the liveness window elapses")
	}
	if disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", disconnects)
	}
}

func TestWaitForConnection_SucceedsOnceHeartbeatArrives(t *testing.T) {
	adopter := &fakeAdopter{alive: true}
	m := New(adopter)

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.HandleHeartbeat(ardupilotmega.MAV_TYPE_QUADROTOR, time.Now())
	}()

	if err := m.WaitForConnection(context.Background(), time.Second); err != nil {
		t.Errorf("WaitForConnection: %v", err)
	}
}

func TestWaitForConnection_TimesOut(t *testing.T) {
	adopter := &fakeAdopter{alive: true}
	m := New(adopter)

	err := m.WaitForConnection(context.Background(), 30*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestWaitForConnection_ReturnsNotConnectedWhenTransportDies(t *testing.T) {
	adopter := &fakeAdopter{alive: false}
	m := New(adopter)

	err := m.WaitForConnection(context.Background(), time.Second)
	if err == nil {
		t.Fatal("expected an error when the transport is already dead")
	}
}
