// Package transport implements the full-duplex MAVLink data link: it opens
// a gomavlib Node over UDP/TCP/serial, runs a reader and a writer task with
// the timeout budget spec'd for this library, rewrites the outgoing target
// system at a single choke point, and shuts down with a bounded drain.
//
// Grounded on this codebase's own MAVLink adapter (buildEndpoints switch,
// *gomavlib.Node wrapping) and DangAW2002-DroneBridge's dual-node
// reader/writer split, generalized to the ground-side single-vehicle
// session this library models.
package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/openskylab/groundlink/groundlinkerr"
)

const (
	readerSelectTimeout = 50 * time.Millisecond
	writerPopTimeout    = 10 * time.Millisecond
	closeDrainBudget    = 5 * time.Second
	joinBudget          = 2 * time.Second
	outboundQueueCap    = 256
)

// MessageListener is invoked, in registration order, for every decoded
// ingress message.
type MessageListener func(srcSystem, srcComponent uint8, msg message.Message)

// Options configures Open.
type Options struct {
	// URI is one of: "udpin:host:port", "udpout:host:port", "host:port"
	// (equivalent to udpout), "tcp:host:port", or a serial device path
	// (optionally "device:baud").
	URI string
	// SerialBaud is used only when URI names a serial device and carries
	// no explicit baud suffix. Defaults to 115200.
	SerialBaud int
	SourceSystem    uint8
	SourceComponent uint8
	Logger          *log.Logger
}

// Transport owns one gomavlib Node and the session's target endpoint.
type Transport struct {
	node   *gomavlib.Node
	logger *log.Logger

	alive      atomic.Bool
	deathMu    sync.Mutex
	deathError error

	targetMu        sync.RWMutex
	targetSystem    uint8
	targetComponent uint8

	listenersMu sync.Mutex
	listeners   []MessageListener

	outbound chan message.Message

	wg sync.WaitGroup
}

// Open parses opts.URI, builds the matching gomavlib endpoint, starts the
// reader/writer tasks, and returns a live Transport.
func Open(ctx context.Context, opts Options) (*Transport, error) {
	endpoint, err := parseEndpoint(opts.URI, opts.SerialBaud)
	if err != nil {
		return nil, err
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   []gomavlib.EndpointConf{endpoint},
		Dialect:     ardupilotmega.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: int(opts.SourceSystem),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening transport: %v", groundlinkerr.ErrTransportFailed, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[transport] ", log.LstdFlags)
	}

	t := &Transport{
		node:     node,
		logger:   logger,
		outbound: make(chan message.Message, outboundQueueCap),
	}
	t.targetSystem = 0
	t.targetComponent = 0
	t.alive.Store(true)

	t.wg.Add(2)
	go t.readLoop(ctx)
	go t.writeLoop(ctx)

	return t, nil
}

func parseEndpoint(uri string, baud int) (gomavlib.EndpointConf, error) {
	switch {
	case strings.HasPrefix(uri, "udpin:"):
		addr := strings.TrimPrefix(uri, "udpin:")
		if !validHostPort(addr) {
			return nil, fmt.Errorf("%w: malformed udpin URI %q", groundlinkerr.ErrInvalidArgument, uri)
		}
		return gomavlib.EndpointUDPServer{Address: addr}, nil
	case strings.HasPrefix(uri, "udpout:"):
		addr := strings.TrimPrefix(uri, "udpout:")
		if !validHostPort(addr) {
			return nil, fmt.Errorf("%w: malformed udpout URI %q", groundlinkerr.ErrInvalidArgument, uri)
		}
		return gomavlib.EndpointUDPClient{Address: addr}, nil
	case strings.HasPrefix(uri, "tcp:"):
		addr := strings.TrimPrefix(uri, "tcp:")
		if !validHostPort(addr) {
			return nil, fmt.Errorf("%w: malformed tcp URI %q", groundlinkerr.ErrInvalidArgument, uri)
		}
		return gomavlib.EndpointTCPClient{Address: addr}, nil
	case validHostPort(uri) && !strings.HasPrefix(uri, "/"):
		// Bare "host:port" means udpout per spec §4.1/§6; an absolute
		// device path such as "/dev/ttyUSB0:57600" falls through to serial.
		return gomavlib.EndpointUDPClient{Address: uri}, nil
	default:
		// Anything else is a serial device path, optionally "path:baud".
		device := uri
		if baud == 0 {
			baud = 115200
		}
		if idx := strings.LastIndex(uri, ":"); idx > 0 {
			if b, err := strconv.Atoi(uri[idx+1:]); err == nil {
				device = uri[:idx]
				baud = b
			}
		}
		return gomavlib.EndpointSerial{Device: device, Baud: baud}, nil
	}
}

func validHostPort(s string) bool {
	_, _, err := net.SplitHostPort(s)
	return err == nil
}

// AddMessageListener registers l to be invoked, in registration order, for
// every decoded ingress message on the reader goroutine.
func (t *Transport) AddMessageListener(l MessageListener) {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *Transport) readLoop(ctx context.Context) {
	defer t.wg.Done()
	events := t.node.Events()
	for t.alive.Load() {
		select {
		case <-ctx.Done():
			t.fail(ctx.Err())
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			t.handleEvent(evt)
		case <-time.After(readerSelectTimeout):
			// Non-blocking poll point; lets the alive flag be re-checked
			// promptly even with no traffic.
		}
	}
}

func (t *Transport) handleEvent(evt gomavlib.Event) {
	switch e := evt.(type) {
	case *gomavlib.EventFrame:
		msg := e.Message()
		sys, comp := e.SystemID(), e.ComponentID()
		t.listenersMu.Lock()
		listeners := append([]MessageListener{}, t.listeners...)
		t.listenersMu.Unlock()
		for _, l := range listeners {
			l(sys, comp, msg)
		}
	case *gomavlib.EventParseError:
		t.logger.Printf("debug: parse error: %v", e.Error)
	case *gomavlib.EventChannelOpen:
		t.logger.Printf("channel open: %v", e.Channel)
	case *gomavlib.EventChannelClose:
		t.logger.Printf("channel closed: %v", e.Channel)
	}
}

func (t *Transport) writeLoop(ctx context.Context) {
	defer t.wg.Done()
	for t.alive.Load() {
		select {
		case <-ctx.Done():
			t.fail(ctx.Err())
			return
		case msg, ok := <-t.outbound:
			if !ok {
				return
			}
			t.send(msg)
		case <-time.After(writerPopTimeout):
		}
	}
}

func (t *Transport) send(msg message.Message) {
	rewriteTarget(msg, t.TargetSystem())
	if err := t.node.WriteMessageAll(msg); err != nil {
		if isFatalIOError(err) {
			t.fail(err)
			return
		}
		t.logger.Printf("write error: %v", err)
	}
}

// rewriteTarget is the single choke point guaranteeing every outgoing
// message addressed to a vehicle carries the session's actual target
// system, per spec §4.1.
func rewriteTarget(msg message.Message, target uint8) {
	switch m := msg.(type) {
	case *ardupilotmega.MessageCommandLong:
		m.TargetSystem = target
	case *ardupilotmega.MessageSetMode:
		m.TargetSystem = target
	case *ardupilotmega.MessageMissionItem:
		m.TargetSystem = target
	case *ardupilotmega.MessageMissionCount:
		m.TargetSystem = target
	case *ardupilotmega.MessageMissionRequest:
		m.TargetSystem = target
	case *ardupilotmega.MessageMissionRequestList:
		m.TargetSystem = target
	case *ardupilotmega.MessageMissionSetCurrent:
		m.TargetSystem = target
	case *ardupilotmega.MessageMissionAck:
		m.TargetSystem = target
	case *ardupilotmega.MessageParamRequestList:
		m.TargetSystem = target
	case *ardupilotmega.MessageParamSet:
		m.TargetSystem = target
	case *ardupilotmega.MessageSetPositionTargetLocalNed:
		m.TargetSystem = target
	case *ardupilotmega.MessageSetPositionTargetGlobalInt:
		m.TargetSystem = target
	case *ardupilotmega.MessageRcChannelsOverride:
		m.TargetSystem = target
	case *ardupilotmega.MessageMountConfigure:
		m.TargetSystem = target
	case *ardupilotmega.MessageMountControl:
		m.TargetSystem = target
	case *ardupilotmega.MessageRequestDataStream:
		m.TargetSystem = target
	}
}

// isFatalIOError mirrors spec §4.1's ECONNABORTED/WSAECONNRESET carve-out:
// a closed/reset/aborted connection is fatal, everything else (a parse
// error surfaced up through a write, a transient short write) is logged
// and dropped.
func isFatalIOError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "closed") ||
		strings.Contains(msg, "reset") ||
		strings.Contains(msg, "abort")
}

// Send enqueues msg for the writer task. Returns ErrNotConnected if the
// transport is already dead; if the bounded outbound queue is full it logs
// and returns a wrapped ErrTransportFailed rather than blocking.
func (t *Transport) Send(msg message.Message) error {
	if !t.alive.Load() {
		return groundlinkerr.ErrNotConnected
	}
	select {
	case t.outbound <- msg:
		return nil
	default:
		t.logger.Printf("error: outbound queue full, dropping %T", msg)
		return fmt.Errorf("%w: outbound queue full", groundlinkerr.ErrTransportFailed)
	}
}

func (t *Transport) fail(cause error) {
	if !t.alive.CompareAndSwap(true, false) {
		return
	}
	t.deathMu.Lock()
	t.deathError = cause
	t.deathMu.Unlock()
	t.logger.Printf("transport failed: %v", cause)
}

// Alive reports whether the transport is still considered live.
func (t *Transport) Alive() bool { return t.alive.Load() }

// DeathError returns the cause recorded when the transport transitioned to
// dead, or nil if it is still alive or was closed cleanly.
func (t *Transport) DeathError() error {
	t.deathMu.Lock()
	defer t.deathMu.Unlock()
	return t.deathError
}

// SetTarget adopts (sys, comp) as the session's target endpoint. Per spec
// §3 this happens exactly once per session; callers (HeartbeatMonitor)
// are responsible for only calling it when the target is still unset.
func (t *Transport) SetTarget(sys, comp uint8) {
	t.targetMu.Lock()
	defer t.targetMu.Unlock()
	t.targetSystem = sys
	t.targetComponent = comp
}

// TargetSystem returns the adopted target system, or 0 if none has been
// adopted yet.
func (t *Transport) TargetSystem() uint8 {
	t.targetMu.RLock()
	defer t.targetMu.RUnlock()
	return t.targetSystem
}

// TargetComponent returns the adopted target component, or 0 if none has
// been adopted yet.
func (t *Transport) TargetComponent() uint8 {
	t.targetMu.RLock()
	defer t.targetMu.RUnlock()
	return t.targetComponent
}

// Close waits up to closeDrainBudget for the writer to drain the outbound
// queue, then flips the alive flag, joins both tasks within joinBudget, and
// closes the underlying node. Safe to call more than once.
func (t *Transport) Close() {
	if !t.alive.Load() {
		t.node.Close()
		return
	}

	deadline := time.Now().Add(closeDrainBudget)
	for len(t.outbound) > 0 && t.alive.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if !t.alive.CompareAndSwap(true, false) {
		t.node.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(joinBudget):
		t.logger.Printf("warn: join budget exceeded closing transport")
	}

	t.node.Close()
}
