// Package vehicle is the library's facade: it composes the transport, the
// event bus, and every subsystem service into the single connected session
// object spec §6 describes as the public surface.
//
// Grounded on this codebase's own top-level session wiring, generalized
// from a GCS/dashboard bridge session to a single ground-side vehicle
// session.
package vehicle

import (
	"context"
	"log"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/openskylab/groundlink/channel"
	"github.com/openskylab/groundlink/corelog"
	"github.com/openskylab/groundlink/flightcommand"
	"github.com/openskylab/groundlink/gimbal"
	"github.com/openskylab/groundlink/groundlinkerr"
	"github.com/openskylab/groundlink/heartbeat"
	"github.com/openskylab/groundlink/mavbus"
	"github.com/openskylab/groundlink/mission"
	"github.com/openskylab/groundlink/parameter"
	"github.com/openskylab/groundlink/state"
	"github.com/openskylab/groundlink/transport"
)

// defaultConnectTimeout bounds how long Connect waits for the vehicle's
// first HEARTBEAT before giving up, per spec §4.11's step 3 (distinct from
// heartbeat.DefaultTimeout, which is the liveness window applied once
// connected, per spec §4.4).
const defaultConnectTimeout = 30 * time.Second

// defaultBaseRate is "rate" in spec §6's stream table: the base Hz every
// per-stream multiplier is computed against.
const defaultBaseRate = 4

// streamMultipliers gives each REQUEST_DATA_STREAM id's multiplier of the
// base rate, per spec §6's stream table.
var streamMultipliers = []struct {
	stream     ardupilotmega.MAV_DATA_STREAM
	multiplier uint16
}{
	{ardupilotmega.MAV_DATA_STREAM_ALL, 1},
	{ardupilotmega.MAV_DATA_STREAM_RAW_SENSORS, 2},
	{ardupilotmega.MAV_DATA_STREAM_EXTENDED_STATUS, 1},
	{ardupilotmega.MAV_DATA_STREAM_RC_CHANNELS, 1},
	{ardupilotmega.MAV_DATA_STREAM_RAW_CONTROLLER, 1},
	{ardupilotmega.MAV_DATA_STREAM_POSITION, 2},
	{ardupilotmega.MAV_DATA_STREAM_EXTRA1, 1},
	{ardupilotmega.MAV_DATA_STREAM_EXTRA2, 1},
	{ardupilotmega.MAV_DATA_STREAM_EXTRA3, 1},
}

// Options configures Connect.
type Options struct {
	transport.Options
	// ConnectTimeout bounds step 3 of the connect procedure (spec §4.11):
	// how long to wait for the first vehicle HEARTBEAT. Defaults to
	// defaultConnectTimeout (30s).
	ConnectTimeout time.Duration
	// LivenessTimeout is the post-connect heartbeat staleness window (spec
	// §4.4). Defaults to heartbeat.DefaultTimeout (5s).
	LivenessTimeout time.Duration
	BaseStreamRate  uint16 // defaults to defaultBaseRate (4Hz)
	LogBuffer       *corelog.Buffer
}

// Vehicle is a live, connected MAVLink session and every subsystem wired
// to it.
type Vehicle struct {
	Transport  *transport.Transport
	Bus        *mavbus.Bus
	Heartbeat  *heartbeat.Monitor
	State      *state.Projector
	Parameters *parameter.Service
	Mission    *mission.Service
	Flight     *flightcommand.Service
	Channels   *channel.Service
	Gimbal     *gimbal.Service

	router         *mavbus.Router
	logger         *log.Logger
	baseStreamRate uint16
}

// Connect opens the transport, wires every subsystem, and blocks until a
// target vehicle has been adopted (or opts.ConnectTimeout / ctx elapses),
// then issues the initial stream-rate and capability requests.
func Connect(ctx context.Context, opts Options) (*Vehicle, error) {
	logger := opts.Logger
	buffer := opts.LogBuffer
	if buffer != nil {
		logger = buffer.NewLogger("vehicle")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[vehicle] ", log.LstdFlags)
	}
	opts.Options.Logger = logger

	t, err := transport.Open(ctx, opts.Options)
	if err != nil {
		return nil, err
	}

	bus := mavbus.New(logger)
	router := mavbus.NewRouter(bus)
	livenessTimeout := opts.LivenessTimeout
	if livenessTimeout == 0 {
		livenessTimeout = heartbeat.DefaultTimeout
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultConnectTimeout
	}
	hb := heartbeat.New(t).WithTimeout(livenessTimeout)
	projector := state.NewProjector(bus)

	baseRate := opts.BaseStreamRate
	if baseRate == 0 {
		baseRate = defaultBaseRate
	}

	v := &Vehicle{
		Transport:      t,
		Bus:            bus,
		Heartbeat:      hb,
		State:          projector,
		Parameters:     parameter.New(t),
		Mission:        mission.New(t),
		Flight:         flightcommand.New(t, projector),
		Channels:       channel.New(t),
		Gimbal:         gimbal.New(t),
		router:         router,
		logger:         logger,
		baseStreamRate: baseRate,
	}

	t.AddMessageListener(func(srcSystem, srcComponent uint8, msg message.Message) {
		if hbMsg, ok := msg.(*ardupilotmega.MessageHeartbeat); ok {
			hb.AdoptTarget(srcSystem, srcComponent, hbMsg.Type)
		}
		router.Route(msg)
	})

	router.Attach()
	hb.Attach(bus)
	projector.Attach()
	v.Parameters.Attach(bus)
	v.Mission.Attach(bus)
	v.Channels.Attach(bus)
	v.Gimbal.Attach(bus)

	if err := v.waitForTarget(ctx, connectTimeout); err != nil {
		t.Close()
		return nil, err
	}

	if err := v.requestStreams(); err != nil {
		logger.Printf("warn: requesting data streams: %v", err)
	}
	if err := v.requestCapabilities(); err != nil {
		logger.Printf("warn: requesting autopilot capabilities: %v", err)
	}

	return v, nil
}

func (v *Vehicle) waitForTarget(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for v.Transport.TargetSystem() == 0 {
		if !v.Transport.Alive() {
			return groundlinkerr.ErrNotConnected
		}
		if time.Now().After(deadline) {
			return groundlinkerr.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func (v *Vehicle) requestStreams() error {
	for _, s := range streamMultipliers {
		if err := v.Transport.Send(&ardupilotmega.MessageRequestDataStream{
			TargetSystem:    v.Transport.TargetSystem(),
			TargetComponent: v.Transport.TargetComponent(),
			ReqStreamId:     s.stream,
			ReqMessageRate:  s.multiplier * v.baseStreamRate,
			StartStop:       1,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vehicle) requestCapabilities() error {
	return v.Transport.Send(&ardupilotmega.MessageCommandLong{
		TargetSystem:    v.Transport.TargetSystem(),
		TargetComponent: v.Transport.TargetComponent(),
		Command:         ardupilotmega.MAV_CMD_REQUEST_AUTOPILOT_CAPABILITIES,
		Param1:          1,
	})
}

// defaultReadyAttributes are the attributes WaitReady waits for when the
// caller passes a nil/empty set, per spec §6.
var defaultReadyAttributes = []string{"parameters", "gps_0", "armed", "mode", "attitude"}

// WaitReady blocks until every named attribute (defaultReadyAttributes if
// attrs is empty) has been observed at least once, or ctx/timeout expires.
// "parameters" resolves to Parameters.IsLoaded(); every other name is
// resolved by subscribing once on the bus and waiting for its first
// delivery.
func (v *Vehicle) WaitReady(ctx context.Context, attrs []string, timeout time.Duration) error {
	if len(attrs) == 0 {
		attrs = defaultReadyAttributes
	}
	deadline := time.Now().Add(timeout)

	pending := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a != "parameters" {
			pending[a] = true
		}
	}

	var unsubs []func()
	done := make(chan struct{})
	if len(pending) > 0 {
		for name := range pending {
			name := name
			unsubs = append(unsubs, v.Bus.SubscribeAttribute(name, mavbus.PriorityNormal, func(evt mavbus.AttributeEvent) {
				delete(pending, name)
				if len(pending) == 0 {
					select {
					case done <- struct{}{}:
					default:
					}
				}
			}))
		}
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	needParameters := false
	for _, a := range attrs {
		if a == "parameters" {
			needParameters = true
		}
	}

	for {
		if needParameters && !v.Parameters.IsLoaded() {
			// keep waiting
		} else if len(pending) == 0 {
			return nil
		}
		if !v.Transport.Alive() {
			return groundlinkerr.ErrNotConnected
		}
		if time.Now().After(deadline) {
			return groundlinkerr.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// OnMessage subscribes fn to every decoded message of typeName (e.g.
// "ATTITUDE"). Returns an unsubscribe func.
func (v *Vehicle) OnMessage(typeName string, fn mavbus.MessageHandler) func() {
	return v.Bus.SubscribeMessage(typeName, mavbus.PriorityNormal, fn)
}

// OnAnyMessage subscribes fn to every decoded message regardless of type.
func (v *Vehicle) OnAnyMessage(fn mavbus.MessageHandler) func() {
	return v.Bus.SubscribeAllMessages(mavbus.PriorityNormal, fn)
}

// OnAttribute subscribes fn to changes of the named attribute (e.g.
// "mode", "battery", "gps_0").
func (v *Vehicle) OnAttribute(name string, fn mavbus.AttributeHandler) func() {
	return v.Bus.SubscribeAttribute(name, mavbus.PriorityNormal, fn)
}

// OnAnyAttribute subscribes fn to every attribute change.
func (v *Vehicle) OnAnyAttribute(fn mavbus.AttributeHandler) func() {
	return v.Bus.SubscribeAllAttributes(mavbus.PriorityNormal, fn)
}

// AddMessageListener registers a raw, pre-bus listener directly on the
// transport (see transport.MessageListener) for callers that need
// (srcSystem, srcComponent) the bus's stamped events don't carry.
func (v *Vehicle) AddMessageListener(l transport.MessageListener) {
	v.Transport.AddMessageListener(l)
}

// Close shuts down the underlying transport.
func (v *Vehicle) Close() {
	v.Transport.Close()
}
