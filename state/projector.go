package state

import (
	"sync"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"

	"github.com/openskylab/groundlink/heartbeat"
	"github.com/openskylab/groundlink/mavbus"
	"github.com/openskylab/groundlink/modecode"
)

// Projector is the generic flight-state projector: it owns every vehicle
// attribute named in spec §4.5 except RC channels and gimbal/mount state,
// which the channel and gimbal packages project themselves. Every
// attribute has exactly one writer (this type, on the bus's delivery
// goroutine); readers take a snapshot under the lock.
type Projector struct {
	mu sync.RWMutex

	autopilotType ardupilotmega.MAV_AUTOPILOT
	vehicleType   ardupilotmega.MAV_TYPE
	haveHeartbeat bool

	armed        bool
	mode         string
	systemStatus SystemStatus

	attitude Attitude
	battery  Battery
	gps      GPSInfo

	globalFrame         LocationGlobal
	globalRelativeFrame LocationGlobalRelative
	localFrame          LocationLocal
	velocity            [3]float32
	heading             *float32

	vfrHud VFRHud
	ekf    EKFStatus
	ekfSet bool

	version      Version
	versionSet   bool
	capabilities Capabilities

	rangefinder    Rangefinder
	rangefinderSet bool
	wind           Wind
	windSet        bool

	bus *mavbus.Bus
}

// NewProjector constructs a Projector that republishes attribute changes
// onto bus.
func NewProjector(bus *mavbus.Bus) *Projector {
	return &Projector{bus: bus, mode: ""}
}

// Attach subscribes the projector to every message type it projects.
// Idempotent is not required here (callers attach exactly once from
// vehicle.Connect), unlike mavbus.Router.
func (p *Projector) Attach() {
	p.bus.SubscribeMessage("HEARTBEAT", mavbus.PriorityNormal, p.onHeartbeat)
	p.bus.SubscribeMessage("SYS_STATUS", mavbus.PriorityNormal, p.onSysStatus)
	p.bus.SubscribeMessage("GPS_RAW_INT", mavbus.PriorityNormal, p.onGPSRawInt)
	p.bus.SubscribeMessage("GLOBAL_POSITION_INT", mavbus.PriorityNormal, p.onGlobalPositionInt)
	p.bus.SubscribeMessage("LOCAL_POSITION_NED", mavbus.PriorityNormal, p.onLocalPositionNED)
	p.bus.SubscribeMessage("ATTITUDE", mavbus.PriorityNormal, p.onAttitude)
	p.bus.SubscribeMessage("VFR_HUD", mavbus.PriorityNormal, p.onVFRHud)
	p.bus.SubscribeMessage("EKF_STATUS_REPORT", mavbus.PriorityNormal, p.onEKFStatusReport)
	p.bus.SubscribeMessage("AUTOPILOT_VERSION", mavbus.PriorityNormal, p.onAutopilotVersion)
	p.bus.SubscribeMessage("RANGEFINDER", mavbus.PriorityNormal, p.onRangefinder)
	p.bus.SubscribeMessage("WIND", mavbus.PriorityNormal, p.onWind)
}

func (p *Projector) publish(name string, value any) {
	p.bus.PublishAttribute(mavbus.AttributeEvent{Name: name, Value: value})
}

// isHealthy combines EKFStatus.IsOK() and SystemStatus.IsReady() into the
// "health" attribute, per SPEC_FULL.md's HealthMonitor. Caller must hold
// p.mu.
func (p *Projector) isHealthy() bool {
	return p.ekfSet && p.ekf.IsOK() && p.systemStatus.IsReady()
}

func (p *Projector) onHeartbeat(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageHeartbeat)
	if !ok {
		return
	}
	if !heartbeat.IsVehicleType(msg.Type) {
		// GCS/gimbal/ADSB/onboard-controller heartbeats never mutate
		// mode/armed/system_status, per spec §4.4 and §8.
		return
	}

	const mavModeFlagSafetyArmed = 0x80
	armed := msg.BaseMode&mavModeFlagSafetyArmed != 0

	var modeName string
	if msg.Autopilot == ardupilotmega.MAV_AUTOPILOT_PX4 {
		modeName = modecode.PX4ModeName(msg.CustomMode)
	} else {
		modeName = modecode.ModeName(modecode.CategoryFor(msg.Type), msg.CustomMode)
	}
	status := SystemStatus(msg.SystemStatus)

	p.mu.Lock()
	p.autopilotType = msg.Autopilot
	p.vehicleType = msg.Type
	p.haveHeartbeat = true
	modeChanged := modeName != p.mode
	armedChanged := armed != p.armed
	statusChanged := status != p.systemStatus
	wasHealthy := p.isHealthy()
	p.mode = modeName
	p.armed = armed
	p.systemStatus = status
	nowHealthy := p.isHealthy()
	p.mu.Unlock()

	// Per spec's Testable Scenario #2, the very first HEARTBEAT's mode
	// counts as a change relative to the zero-value "" that can never
	// equal a real mode name, so no special-casing is needed here beyond
	// comparing against the previous stored value.
	if modeChanged {
		p.publish("mode", modeName)
	}
	if armedChanged {
		p.publish("armed", armed)
	}
	if statusChanged {
		p.publish("system_status", status)
	}
	if nowHealthy != wasHealthy {
		p.publish("health", nowHealthy)
	}
}

func (p *Projector) onSysStatus(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageSysStatus)
	if !ok {
		return
	}
	b := Battery{}
	if msg.VoltageBattery != 0xFFFF {
		v := float32(msg.VoltageBattery) / 1000.0
		b.Voltage = &v
	}
	if msg.CurrentBattery != -1 {
		c := float32(msg.CurrentBattery) / 100.0
		b.Current = &c
	}
	if msg.BatteryRemaining != -1 {
		l := msg.BatteryRemaining
		b.Level = &l
	}
	p.mu.Lock()
	p.battery = b
	p.mu.Unlock()
	p.publish("battery", b)
}

func (p *Projector) onGPSRawInt(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageGpsRawInt)
	if !ok {
		return
	}
	g := GPSInfo{
		Eph:               float32(msg.Eph) / 100.0,
		Epv:               float32(msg.Epv) / 100.0,
		FixType:           uint8(msg.FixType),
		SatellitesVisible: msg.SatellitesVisible,
	}
	p.mu.Lock()
	p.gps = g
	p.mu.Unlock()
	p.publish("gps_0", g)
}

func (p *Projector) onGlobalPositionInt(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageGlobalPositionInt)
	if !ok {
		return
	}
	global := LocationGlobalFromMAVLink(msg.Lat, msg.Lon, msg.Alt)
	relative := LocationGlobalRelative{
		Lat:         global.Lat,
		Lon:         global.Lon,
		RelativeAlt: float64(msg.RelativeAlt) / 1000.0,
	}
	velocity := [3]float32{
		float32(msg.Vx) / 100.0,
		float32(msg.Vy) / 100.0,
		float32(msg.Vz) / 100.0,
	}
	var heading *float32
	if msg.Hdg != 65535 {
		h := float32(msg.Hdg) / 100.0
		heading = &h
	}

	p.mu.Lock()
	if global.Alt == nil {
		// A zero raw alt is not accepted; keep the last accepted altitude.
		global.Alt = p.globalFrame.Alt
	}
	p.globalFrame = global
	p.globalRelativeFrame = relative
	p.velocity = velocity
	p.heading = heading
	p.mu.Unlock()

	p.publish("global_frame", global)
	p.publish("global_relative_frame", relative)
	p.publish("velocity", velocity)
	if heading != nil {
		p.publish("heading", *heading)
	}
}

func (p *Projector) onLocalPositionNED(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageLocalPositionNed)
	if !ok {
		return
	}
	local := LocationLocal{North: msg.X, East: msg.Y, Down: msg.Z}
	p.mu.Lock()
	p.localFrame = local
	p.mu.Unlock()
	p.publish("local_frame", local)
}

func (p *Projector) onAttitude(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageAttitude)
	if !ok {
		return
	}
	a := Attitude{Roll: msg.Roll, Pitch: msg.Pitch, Yaw: msg.Yaw}
	p.mu.Lock()
	p.attitude = a
	p.mu.Unlock()
	p.publish("attitude", a)
}

func (p *Projector) onVFRHud(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageVfrHud)
	if !ok {
		return
	}
	v := VFRHud{
		Airspeed:    msg.Airspeed,
		Groundspeed: msg.Groundspeed,
		Heading:     msg.Heading,
		Throttle:    msg.Throttle,
		Alt:         msg.Alt,
		Climb:       msg.Climb,
	}
	p.mu.Lock()
	p.vfrHud = v
	p.mu.Unlock()
	p.publish("vfr_hud", v)
}

func (p *Projector) onEKFStatusReport(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageEkfStatusReport)
	if !ok {
		return
	}
	e := EKFStatus{
		VelocityVariance:   msg.VelocityVariance,
		PosHorizVariance:   msg.PosHorizVariance,
		PosVertVariance:    msg.PosVertVariance,
		CompassVariance:    msg.CompassVariance,
		TerrainAltVariance: msg.TerrainAltVariance,
		Flags:              uint16(msg.Flags),
	}
	p.mu.Lock()
	wasHealthy := p.isHealthy()
	p.ekf = e
	p.ekfSet = true
	nowHealthy := p.isHealthy()
	p.mu.Unlock()
	p.publish("ekf_status", e)
	if nowHealthy != wasHealthy {
		p.publish("health", nowHealthy)
	}
}

func (p *Projector) onAutopilotVersion(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageAutopilotVersion)
	if !ok {
		return
	}
	p.mu.RLock()
	autopilot, vehicle := p.autopilotType, p.vehicleType
	p.mu.RUnlock()

	v := VersionFromMAVLink(msg.FlightSwVersion, autopilot, vehicle)
	caps := CapabilitiesFromMAVLink(msg.Capabilities)

	p.mu.Lock()
	p.version = v
	p.versionSet = true
	p.capabilities = caps
	p.mu.Unlock()

	p.publish("version", v)
	p.publish("capabilities", caps)
}

func (p *Projector) onRangefinder(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageRangefinder)
	if !ok {
		return
	}
	r := Rangefinder{Distance: msg.Distance, Voltage: msg.Voltage}
	p.mu.Lock()
	p.rangefinder = r
	p.rangefinderSet = true
	p.mu.Unlock()
	p.publish("rangefinder", r)
}

func (p *Projector) onWind(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageWind)
	if !ok {
		return
	}
	w := Wind{Direction: msg.Direction, Speed: msg.Speed, SpeedZ: msg.SpeedZ}
	p.mu.Lock()
	p.wind = w
	p.windSet = true
	p.mu.Unlock()
	p.publish("wind", w)
}

// --- read-side accessors ---

// Mode returns the most recently decoded mode name, or "" before the first
// HEARTBEAT.
func (p *Projector) Mode() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// Armed returns the most recently decoded armed state.
func (p *Projector) Armed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.armed
}

// SystemStatus returns the most recently decoded system status.
func (p *Projector) SystemStatus() SystemStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.systemStatus
}

// AutopilotType returns the autopilot type observed on the last HEARTBEAT,
// or false if none has been seen yet.
func (p *Projector) AutopilotType() (ardupilotmega.MAV_AUTOPILOT, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autopilotType, p.haveHeartbeat
}

// VehicleType returns the vehicle type observed on the last HEARTBEAT, or
// false if none has been seen yet.
func (p *Projector) VehicleType() (ardupilotmega.MAV_TYPE, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vehicleType, p.haveHeartbeat
}

// Attitude returns the last ATTITUDE projection.
func (p *Projector) Attitude() Attitude {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.attitude
}

// Battery returns the last SYS_STATUS-derived battery reading.
func (p *Projector) Battery() Battery {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.battery
}

// GPS returns the last GPS_RAW_INT projection.
func (p *Projector) GPS() GPSInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gps
}

// GlobalFrame returns the last GLOBAL_POSITION_INT projection (MSL).
func (p *Projector) GlobalFrame() LocationGlobal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.globalFrame
}

// GlobalRelativeFrame returns the last GLOBAL_POSITION_INT projection
// relative to home.
func (p *Projector) GlobalRelativeFrame() LocationGlobalRelative {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.globalRelativeFrame
}

// LocalFrame returns the last LOCAL_POSITION_NED projection.
func (p *Projector) LocalFrame() LocationLocal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.localFrame
}

// Velocity returns the last [vx,vy,vz] m/s reading from GLOBAL_POSITION_INT.
func (p *Projector) Velocity() [3]float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.velocity
}

// Heading returns the last heading in degrees, or ok=false if the wire
// value was the 65535 "absent" sentinel or none has arrived yet.
func (p *Projector) Heading() (heading float32, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.heading == nil {
		return 0, false
	}
	return *p.heading, true
}

// VFRHud returns the last VFR_HUD projection.
func (p *Projector) VFRHud() VFRHud {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vfrHud
}

// EKFStatus returns the last EKF_STATUS_REPORT projection and whether one
// has been observed yet.
func (p *Projector) EKFStatus() (EKFStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ekf, p.ekfSet
}

// Version returns the last AUTOPILOT_VERSION-derived version and whether
// one has been observed yet.
func (p *Projector) Version() (Version, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version, p.versionSet
}

// Capabilities returns the last decoded capability bitfield.
func (p *Projector) Capabilities() Capabilities {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capabilities
}

// Rangefinder returns the last RANGEFINDER projection and whether one has
// been observed yet.
func (p *Projector) Rangefinder() (Rangefinder, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rangefinder, p.rangefinderSet
}

// Wind returns the last WIND projection and whether one has been observed
// yet.
func (p *Projector) Wind() (Wind, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wind, p.windSet
}
