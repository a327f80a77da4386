// Package heartbeat implements the heartbeat-driven connection lifecycle
// named in spec §4.4: vehicle-type filtering, first-heartbeat-wins target
// endpoint adoption, edge-triggered connect/disconnect, and a blocking
// liveness poll.
//
// Grounded on original_source/dronesdk/datalink/heartbeat.py.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"

	"github.com/openskylab/groundlink/groundlinkerr"
	"github.com/openskylab/groundlink/mavbus"
)

// DefaultTimeout is the liveness window after which a vehicle with no
// heartbeat is considered disconnected, per spec §4.4.
const DefaultTimeout = 5 * time.Second

const pollInterval = 100 * time.Millisecond // 10 Hz, per spec §5

// filteredTypes are heartbeat sources that are never a vehicle and must
// never update connection state, per spec §4.4 and Testable Properties §8.
var filteredTypes = map[ardupilotmega.MAV_TYPE]bool{
	ardupilotmega.MAV_TYPE_GCS:               true,
	ardupilotmega.MAV_TYPE_GIMBAL:             true,
	ardupilotmega.MAV_TYPE_ADSB:               true,
	ardupilotmega.MAV_TYPE_ONBOARD_CONTROLLER: true,
}

// IsVehicleType reports whether a HEARTBEAT from vehicleType should be
// treated as coming from a vehicle (as opposed to a GCS, gimbal, ADSB
// receiver, or onboard companion computer also speaking MAVLink on the
// same link). Shared with the state package so mode/armed/system_status
// projection and connection-lifecycle tracking apply the identical filter,
// per the Testable Properties §8 "Heartbeat filter" invariant.
func IsVehicleType(vehicleType ardupilotmega.MAV_TYPE) bool {
	return !filteredTypes[vehicleType]
}

// TargetAdopter is implemented by the transport: the monitor calls
// SetTarget exactly once, on the first accepted heartbeat.
type TargetAdopter interface {
	SetTarget(sys, comp uint8)
	TargetSystem() uint8
	Alive() bool
}

// Monitor tracks vehicle liveness from HEARTBEAT messages.
type Monitor struct {
	transport TargetAdopter
	timeout   time.Duration

	mu            sync.RWMutex
	lastHeartbeat time.Time
	haveHeartbeat bool
	connected     bool

	onConnect    func()
	onDisconnect func()
}

// New constructs a Monitor with DefaultTimeout. Use WithTimeout to
// override.
func New(transport TargetAdopter) *Monitor {
	return &Monitor{transport: transport, timeout: DefaultTimeout}
}

// WithTimeout overrides the liveness window.
func (m *Monitor) WithTimeout(d time.Duration) *Monitor {
	m.timeout = d
	return m
}

// OnConnect registers a callback fired exactly once per connect edge.
func (m *Monitor) OnConnect(fn func()) { m.onConnect = fn }

// OnDisconnect registers a callback fired exactly once per disconnect edge.
func (m *Monitor) OnDisconnect(fn func()) { m.onDisconnect = fn }

// Attach subscribes the monitor to HEARTBEAT on bus.
func (m *Monitor) Attach(bus *mavbus.Bus) {
	bus.SubscribeMessage("HEARTBEAT", mavbus.PriorityHigh, m.onHeartbeatEvent)
}

func (m *Monitor) onHeartbeatEvent(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageHeartbeat)
	if !ok {
		return
	}
	m.HandleHeartbeat(msg.Type, evt.Timestamp)
	_ = msg
}

// HandleHeartbeat processes one accepted-or-filtered heartbeat. Exported
// separately from the bus-subscribed onHeartbeatEvent so tests can drive
// it directly with a chosen vehicle type and timestamp; target adoption
// from (srcSystem, srcComponent) is done by AdoptTarget instead.
func (m *Monitor) HandleHeartbeat(vehicleType ardupilotmega.MAV_TYPE, now time.Time) {
	if filteredTypes[vehicleType] {
		return
	}

	m.mu.Lock()
	wasConnected := m.wasConnectedLocked(now)
	m.lastHeartbeat = now
	m.haveHeartbeat = true
	isConnected := true // a heartbeat just arrived, so by definition live now
	m.connected = isConnected
	m.mu.Unlock()

	if !wasConnected && isConnected && m.onConnect != nil {
		m.onConnect()
	}
}

// AdoptTarget records (sys, comp) as the session's target endpoint, but
// only the first time it's called (spec §4.4 "if target endpoint is
// unset, adopt"). Intended to be wired from the transport's raw message
// listener, which has the src system/component HEARTBEAT payloads don't
// carry themselves.
func (m *Monitor) AdoptTarget(sys, comp uint8, vehicleType ardupilotmega.MAV_TYPE) {
	if filteredTypes[vehicleType] {
		return
	}
	if m.transport.TargetSystem() == 0 {
		m.transport.SetTarget(sys, comp)
	}
}

func (m *Monitor) wasConnectedLocked(now time.Time) bool {
	if !m.haveHeartbeat {
		return false
	}
	return now.Sub(m.lastHeartbeat) < m.timeout
}

// IsConnected reports whether a heartbeat has been seen within timeout.
// Evaluated live (not just from the cached flag) so a stalled heartbeat
// stream is correctly reported as disconnected even between bus publishes.
func (m *Monitor) IsConnected() bool {
	m.mu.RLock()
	wasConnected := m.connected
	stillLive := m.wasConnectedLocked(time.Now())
	m.mu.RUnlock()

	if wasConnected && !stillLive {
		m.mu.Lock()
		// Re-check under the write lock in case a heartbeat arrived
		// concurrently.
		if m.connected && !m.wasConnectedLocked(time.Now()) {
			m.connected = false
			m.mu.Unlock()
			if m.onDisconnect != nil {
				m.onDisconnect()
			}
			return false
		}
		live := m.connected
		m.mu.Unlock()
		return live
	}
	return stillLive
}

// WaitForConnection blocks, polling IsConnected at 10 Hz, until connected
// or ctx is done / timeout elapses. Returns ErrTimeout on expiry and
// ErrNotConnected if the transport died during the wait.
func (m *Monitor) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if m.IsConnected() {
			return nil
		}
		if !m.transport.Alive() {
			return groundlinkerr.ErrNotConnected
		}
		if time.Now().After(deadline) {
			return groundlinkerr.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
