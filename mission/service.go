package mission

import (
	"context"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"golang.org/x/time/rate"

	"github.com/openskylab/groundlink/groundlinkerr"
	"github.com/openskylab/groundlink/mavbus"
)

// State is the mission download/upload state machine's current phase.
type State int

const (
	StateIdle State = iota
	StateRequestingCount
	StateRequestingItems
	StateComplete
	StateUploading
)

const (
	waitPollInterval = 100 * time.Millisecond // 10 Hz, per spec §5
	resendInterval   = 500 * time.Millisecond // upload guard against a dropped MISSION_REQUEST
)

// targetedSender is the subset of transport.Transport the service needs.
type targetedSender interface {
	Send(msg message.Message) error
	Alive() bool
	TargetSystem() uint8
	TargetComponent() uint8
}

// Service implements the mission download state machine (IDLE ->
// REQUESTING_COUNT -> REQUESTING_ITEMS(i) -> COMPLETE) and the
// request/response-driven upload loop redesigned per spec §9.
//
// Grounded on original_source/dronesdk/mission/sequence.py; the upload
// loop departs from that source's fixed-interval stream and instead waits
// for each MISSION_REQUEST, matching the actual MAVLink mission protocol.
type Service struct {
	transport targetedSender

	mu      sync.RWMutex
	state   State
	items   []Item
	current int // MISSION_CURRENT's reported index, -1 if unknown

	downloadExpected int

	uploadItems []Item
	uploadAckCh chan ardupilotmega.MAV_MISSION_RESULT
	uploadNext  int

	limiter *rate.Limiter
}

// New constructs a Service sending requests through transport.
func New(transport targetedSender) *Service {
	return &Service{
		transport: transport,
		current:   -1,
		limiter:   rate.NewLimiter(rate.Every(resendInterval), 1),
	}
}

// Attach subscribes to the mission messages on bus.
func (s *Service) Attach(bus *mavbus.Bus) {
	bus.SubscribeMessage("MISSION_COUNT", mavbus.PriorityNormal, s.onMissionCount)
	bus.SubscribeMessage("MISSION_ITEM", mavbus.PriorityNormal, s.onMissionItem)
	bus.SubscribeMessage("MISSION_REQUEST", mavbus.PriorityNormal, s.onMissionRequest)
	bus.SubscribeMessage("MISSION_ACK", mavbus.PriorityNormal, s.onMissionAck)
	bus.SubscribeMessage("MISSION_CURRENT", mavbus.PriorityNormal, s.onMissionCurrent)
}

// Download begins a fresh full-mission download: IDLE -> REQUESTING_COUNT.
func (s *Service) Download() error {
	s.mu.Lock()
	s.state = StateRequestingCount
	s.items = nil
	s.downloadExpected = 0
	s.mu.Unlock()
	return s.transport.Send(&ardupilotmega.MessageMissionRequestList{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
	})
}

func (s *Service) onMissionCount(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageMissionCount)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.state != StateRequestingCount {
		s.mu.Unlock()
		return
	}
	count := int(msg.Count)
	if count == 0 {
		s.items = nil
		s.state = StateComplete
		s.mu.Unlock()
		return
	}
	s.items = make([]Item, count)
	s.downloadExpected = count
	s.state = StateRequestingItems
	s.mu.Unlock()

	s.transport.Send(&ardupilotmega.MessageMissionRequest{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Seq:             0,
	})
}

func (s *Service) onMissionItem(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageMissionItem)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.state != StateRequestingItems || int(msg.Seq) >= len(s.items) {
		s.mu.Unlock()
		return
	}
	s.items[msg.Seq] = ItemFromMAVLink(msg)
	next := int(msg.Seq) + 1
	done := next >= s.downloadExpected
	if done {
		s.state = StateComplete
	}
	s.mu.Unlock()

	if !done {
		s.transport.Send(&ardupilotmega.MessageMissionRequest{
			TargetSystem:    s.transport.TargetSystem(),
			TargetComponent: s.transport.TargetComponent(),
			Seq:             uint16(next),
		})
	}
}

// onMissionRequest answers the vehicle's per-item pull during an upload.
func (s *Service) onMissionRequest(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageMissionRequest)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.state != StateUploading || int(msg.Seq) >= len(s.uploadItems) {
		s.mu.Unlock()
		return
	}
	item := s.uploadItems[msg.Seq]
	s.uploadNext = int(msg.Seq) + 1
	s.mu.Unlock()

	s.transport.Send(item.ToMAVLink(s.transport.TargetSystem(), s.transport.TargetComponent()))
}

func (s *Service) onMissionAck(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageMissionAck)
	if !ok {
		return
	}
	s.mu.Lock()
	ch := s.uploadAckCh
	if s.state == StateUploading {
		s.state = StateIdle
		s.uploadAckCh = nil
	}
	s.mu.Unlock()
	if ch != nil {
		ch <- msg.Type
	}
}

func (s *Service) onMissionCurrent(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageMissionCurrent)
	if !ok {
		return
	}
	s.mu.Lock()
	s.current = int(msg.Seq)
	s.mu.Unlock()
}

// State reports the current phase of the download/upload state machine.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Items returns a copy of the downloaded (or most recently uploaded) list,
// indexed densely by Seq per spec §8.
func (s *Service) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Current returns MISSION_CURRENT's last reported index, or -1 if none has
// arrived yet.
func (s *Service) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// WaitReady blocks until a download reaches StateComplete, ctx is done,
// timeout elapses (ErrTimeout), or the transport dies (ErrNotConnected).
func (s *Service) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if s.State() == StateComplete {
			return nil
		}
		if !s.transport.Alive() {
			return groundlinkerr.ErrNotConnected
		}
		if time.Now().After(deadline) {
			return groundlinkerr.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitPollInterval):
		}
	}
}

// Upload replaces the vehicle's mission with items, renumbering Seq to the
// dense 0..n-1 invariant (spec §8), then drives the MISSION_COUNT /
// MISSION_REQUEST / MISSION_ITEM / MISSION_ACK exchange to completion. A
// background resend guards against the vehicle's first MISSION_REQUEST
// being dropped: if no request advances uploadNext within resendInterval,
// the currently expected item is resent.
func (s *Service) Upload(ctx context.Context, items []Item, timeout time.Duration) error {
	if !s.transport.Alive() {
		return groundlinkerr.ErrNotConnected
	}
	dense := make([]Item, len(items))
	for i, it := range items {
		it.Seq = uint16(i)
		dense[i] = it
	}

	ackCh := make(chan ardupilotmega.MAV_MISSION_RESULT, 1)
	s.mu.Lock()
	s.uploadItems = dense
	s.uploadNext = 0
	s.uploadAckCh = ackCh
	s.state = StateUploading
	s.mu.Unlock()

	if err := s.transport.Send(&ardupilotmega.MessageMissionCount{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Count:           uint16(len(dense)),
	}); err != nil {
		return err
	}

	guardCtx, cancelGuard := context.WithCancel(ctx)
	defer cancelGuard()
	go s.resendGuard(guardCtx)

	deadline := time.After(timeout)
	select {
	case result := <-ackCh:
		if result != ardupilotmega.MAV_MISSION_ACCEPTED {
			return groundlinkerr.ErrProtocolError
		}
		s.mu.Lock()
		s.items = dense
		s.mu.Unlock()
		return nil
	case <-deadline:
		s.mu.Lock()
		s.state = StateIdle
		s.uploadAckCh = nil
		s.mu.Unlock()
		return groundlinkerr.ErrTimeout
	case <-ctx.Done():
		s.mu.Lock()
		s.state = StateIdle
		s.uploadAckCh = nil
		s.mu.Unlock()
		return ctx.Err()
	}
}

func (s *Service) resendGuard(ctx context.Context) {
	lastSeen := -1
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.mu.RLock()
		if s.state != StateUploading {
			s.mu.RUnlock()
			return
		}
		next := s.uploadNext
		stalled := next == lastSeen && next < len(s.uploadItems)
		item := Item{}
		if stalled {
			item = s.uploadItems[next]
		}
		target, comp := s.transport.TargetSystem(), s.transport.TargetComponent()
		s.mu.RUnlock()

		lastSeen = next
		if stalled {
			s.transport.Send(item.ToMAVLink(target, comp))
		}
	}
}

// SetCurrent sends MISSION_SET_CURRENT, moving the "next" pointer to seq.
func (s *Service) SetCurrent(seq uint16) error {
	return s.transport.Send(&ardupilotmega.MessageMissionSetCurrent{
		TargetSystem:    s.transport.TargetSystem(),
		TargetComponent: s.transport.TargetComponent(),
		Seq:             seq,
	})
}
