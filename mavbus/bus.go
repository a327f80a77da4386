// Package mavbus implements the priority-ordered, thread-safe publish/
// subscribe bus that fans the ingress MAVLink stream out to every
// subscriber, plus the attribute-event side channel the vehicle facade
// republishes typed state changes onto.
//
// Subscriptions are identified by an opaque token (backed by a uuid.UUID)
// rather than by handler identity, since bound methods and closures never
// compare equal to themselves across calls — the failure mode spec's
// design notes call out explicitly. The only way to remove a subscription
// is to call the unsubscribe func returned by Subscribe*.
package mavbus

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// Priority determines delivery order within one Publish call; lower values
// run first.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityNormal Priority = 50
	PriorityLow    Priority = 100
)

// MessageEvent wraps one decoded ingress MAVLink message with its arrival
// time and type name, as published by the MessageRouter.
type MessageEvent struct {
	Timestamp   time.Time
	MessageType string
	Message     message.Message
}

// AttributeEvent carries one typed vehicle-state change, as republished by
// the Vehicle facade on behalf of its composed services.
type AttributeEvent struct {
	Timestamp time.Time
	Name      string
	Value     any
}

// MessageHandler receives MessageEvent deliveries.
type MessageHandler func(MessageEvent)

// AttributeHandler receives AttributeEvent deliveries.
type AttributeHandler func(AttributeEvent)

type subscription struct {
	id       uuid.UUID
	priority Priority
	seq      uint64
	msgFn    MessageHandler
	attrFn   AttributeHandler
}

// Bus is the central event bus. The zero value is not usable; use New.
type Bus struct {
	mu           sync.RWMutex
	byType       map[string][]*subscription
	msgWildcard  []*subscription
	byAttr       map[string][]*subscription
	attrWildcard []*subscription
	seq          uint64
	logger       *log.Logger
}

// New constructs an empty Bus. logger may be nil, in which case handler
// panics are recovered silently.
func New(logger *log.Logger) *Bus {
	return &Bus{
		byType: make(map[string][]*subscription),
		byAttr: make(map[string][]*subscription),
		logger: logger,
	}
}

func (b *Bus) nextSeq() uint64 {
	b.seq++
	return b.seq
}

// SubscribeMessage registers h for messages of the given MAVLink type name
// (e.g. "HEARTBEAT"). Returns an unsubscribe func safe to call more than
// once.
func (b *Bus) SubscribeMessage(messageType string, priority Priority, h MessageHandler) func() {
	b.mu.Lock()
	sub := &subscription{id: uuid.New(), priority: priority, seq: b.nextSeq(), msgFn: h}
	b.byType[messageType] = append(b.byType[messageType], sub)
	b.mu.Unlock()
	return b.unsubscribeFrom(&b.byType, messageType, sub)
}

// SubscribeAllMessages registers h for every ingress message regardless of
// type.
func (b *Bus) SubscribeAllMessages(priority Priority, h MessageHandler) func() {
	b.mu.Lock()
	sub := &subscription{id: uuid.New(), priority: priority, seq: b.nextSeq(), msgFn: h}
	b.msgWildcard = append(b.msgWildcard, sub)
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.msgWildcard = removeSub(b.msgWildcard, sub)
		})
	}
}

// SubscribeAttribute registers h for attribute-change events with the
// given name.
func (b *Bus) SubscribeAttribute(name string, priority Priority, h AttributeHandler) func() {
	b.mu.Lock()
	sub := &subscription{id: uuid.New(), priority: priority, seq: b.nextSeq(), attrFn: h}
	b.byAttr[name] = append(b.byAttr[name], sub)
	b.mu.Unlock()
	return b.unsubscribeFromAttr(name, sub)
}

// SubscribeAllAttributes registers h for every attribute-change event.
func (b *Bus) SubscribeAllAttributes(priority Priority, h AttributeHandler) func() {
	b.mu.Lock()
	sub := &subscription{id: uuid.New(), priority: priority, seq: b.nextSeq(), attrFn: h}
	b.attrWildcard = append(b.attrWildcard, sub)
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.attrWildcard = removeSub(b.attrWildcard, sub)
		})
	}
}

func (b *Bus) unsubscribeFrom(m *map[string][]*subscription, key string, sub *subscription) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			(*m)[key] = removeSub((*m)[key], sub)
		})
	}
}

func (b *Bus) unsubscribeFromAttr(name string, sub *subscription) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.byAttr[name] = removeSub(b.byAttr[name], sub)
		})
	}
}

func removeSub(list []*subscription, target *subscription) []*subscription {
	for i, s := range list {
		if s == target {
			out := make([]*subscription, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out
		}
	}
	return list
}

// PublishMessage snapshots the relevant handler lists under the lock,
// releases it, sorts by priority (registration order breaking ties), then
// invokes sequentially on the calling goroutine. A handler that panics is
// recovered and logged; delivery continues to the remaining handlers.
func (b *Bus) PublishMessage(evt MessageEvent) {
	b.mu.RLock()
	snapshot := append(append([]*subscription{}, b.byType[evt.MessageType]...), b.msgWildcard...)
	b.mu.RUnlock()

	sortSubs(snapshot)
	for _, s := range snapshot {
		b.invokeMessage(s, evt)
	}
}

// PublishAttribute is PublishMessage's counterpart for attribute events.
func (b *Bus) PublishAttribute(evt AttributeEvent) {
	b.mu.RLock()
	snapshot := append(append([]*subscription{}, b.byAttr[evt.Name]...), b.attrWildcard...)
	b.mu.RUnlock()

	sortSubs(snapshot)
	for _, s := range snapshot {
		b.invokeAttribute(s, evt)
	}
}

func sortSubs(subs []*subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority < subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
}

func (b *Bus) invokeMessage(s *subscription, evt MessageEvent) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Printf("message handler panic for %s: %v", evt.MessageType, r)
		}
	}()
	s.msgFn(evt)
}

func (b *Bus) invokeAttribute(s *subscription, evt AttributeEvent) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Printf("attribute handler panic for %s: %v", evt.Name, r)
		}
	}()
	s.attrFn(evt)
}
