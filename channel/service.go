// Package channel projects RC_CHANNELS(_RAW) into a read-only table and
// implements override control with suspend/apply-all/resume coalescing,
// per spec §4.9.
//
// Grounded on original_source/dronesdk/channels/reader.py and
// original_source/dronesdk/channels/override.py.
package channel

import (
	"sync"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/openskylab/groundlink/mavbus"
)

// NumOverrideSlots is RC_CHANNELS_OVERRIDE's fixed channel count.
const NumOverrideSlots = 8

// rcAbsent is RC_CHANNELS(_RAW)'s "no data on this channel" wire sentinel.
const rcAbsent = 65535

type sender interface {
	Send(msg message.Message) error
	TargetSystem() uint8
	TargetComponent() uint8
}

// Service projects inbound RC channel reads and manages outbound RC
// overrides.
type Service struct {
	transport sender

	mu       sync.RWMutex
	readings map[int]uint16 // 1-indexed channel -> microseconds

	overrideMu  sync.Mutex
	overrides   [NumOverrideSlots]uint16
	suspended   bool
}

// New constructs a Service.
func New(transport sender) *Service {
	return &Service{transport: transport, readings: make(map[int]uint16)}
}

// Attach subscribes to RC_CHANNELS and RC_CHANNELS_RAW.
func (s *Service) Attach(bus *mavbus.Bus) {
	bus.SubscribeMessage("RC_CHANNELS", mavbus.PriorityNormal, s.onRCChannels)
	bus.SubscribeMessage("RC_CHANNELS_RAW", mavbus.PriorityNormal, s.onRCChannelsRaw)
}

func (s *Service) onRCChannels(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageRcChannels)
	if !ok {
		return
	}
	raw := [18]uint16{
		msg.Chan1Raw, msg.Chan2Raw, msg.Chan3Raw, msg.Chan4Raw,
		msg.Chan5Raw, msg.Chan6Raw, msg.Chan7Raw, msg.Chan8Raw,
		msg.Chan9Raw, msg.Chan10Raw, msg.Chan11Raw, msg.Chan12Raw,
		msg.Chan13Raw, msg.Chan14Raw, msg.Chan15Raw, msg.Chan16Raw,
		msg.Chan17Raw, msg.Chan18Raw,
	}
	s.store(raw[:int(msg.Chancount)])
}

func (s *Service) onRCChannelsRaw(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageRcChannelsRaw)
	if !ok {
		return
	}
	s.store([]uint16{
		msg.Chan1Raw, msg.Chan2Raw, msg.Chan3Raw, msg.Chan4Raw,
		msg.Chan5Raw, msg.Chan6Raw, msg.Chan7Raw, msg.Chan8Raw,
	})
}

func (s *Service) store(values []uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		ch := i + 1
		if v == rcAbsent {
			delete(s.readings, ch)
			continue
		}
		s.readings[ch] = v
	}
}

// Read returns channel ch's last reading (1-indexed) and whether it has
// data.
func (s *Service) Read(ch int) (uint16, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.readings[ch]
	return v, ok
}

// All returns a copy of every channel with data, keyed 1-indexed.
func (s *Service) All() map[int]uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]uint16, len(s.readings))
	for k, v := range s.readings {
		out[k] = v
	}
	return out
}

// Suspend begins a batch of override mutations: no RC_CHANNELS_OVERRIDE is
// sent until Resume, regardless of how many Set/Clear calls happen in
// between.
func (s *Service) Suspend() {
	s.overrideMu.Lock()
	defer s.overrideMu.Unlock()
	s.suspended = true
}

// Set stages slot (1-indexed, 1..NumOverrideSlots) to value. 0 is the
// MAVLink "release this channel" sentinel and is accepted as a value like
// any other — callers use Clear, not Set(slot, 0), to release a channel,
// per the resolved ambiguity that a zero value is not silently dropped.
func (s *Service) Set(slot int, value uint16) {
	s.overrideMu.Lock()
	defer s.overrideMu.Unlock()
	if slot < 1 || slot > NumOverrideSlots {
		return
	}
	s.overrides[slot-1] = value
	if !s.suspended {
		s.sendLocked()
	}
}

// Clear releases slot back to pass-through (MAVLink's 0 sentinel).
func (s *Service) Clear(slot int) {
	s.Set(slot, 0)
}

// Resume ends a Suspend batch, sending exactly one RC_CHANNELS_OVERRIDE
// reflecting every mutation made while suspended.
func (s *Service) Resume() error {
	s.overrideMu.Lock()
	defer s.overrideMu.Unlock()
	s.suspended = false
	return s.sendLocked()
}

func (s *Service) sendLocked() error {
	return s.transport.Send(&ardupilotmega.MessageRcChannelsOverride{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Chan1Raw:        s.overrides[0],
		Chan2Raw:        s.overrides[1],
		Chan3Raw:        s.overrides[2],
		Chan4Raw:        s.overrides[3],
		Chan5Raw:        s.overrides[4],
		Chan6Raw:        s.overrides[5],
		Chan7Raw:        s.overrides[6],
		Chan8Raw:        s.overrides[7],
	})
}
