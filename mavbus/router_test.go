package mavbus

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

func TestTypeName(t *testing.T) {
	tests := []struct {
		msg  message.Message
		want string
	}{
		{&ardupilotmega.MessageHeartbeat{}, "HEARTBEAT"},
		{&ardupilotmega.MessageGlobalPositionInt{}, "GLOBAL_POSITION_INT"},
		{&ardupilotmega.MessageGpsRawInt{}, "GPS_RAW_INT"},
		{&ardupilotmega.MessageRcChannelsRaw{}, "RC_CHANNELS_RAW"},
	}

	for _, tt := range tests {
		if got := TypeName(tt.msg); got != tt.want {
			t.Errorf("TypeName(%T) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestRouter_RouteBeforeAttachIsNoOp(t *testing.T) {
	bus := New(nil)
	router := NewRouter(bus)

	delivered := false
	bus.SubscribeMessage("HEARTBEAT", PriorityNormal, func(MessageEvent) { delivered = true })

	router.Route(&ardupilotmega.MessageHeartbeat{})
	if delivered {
		t.Error("Route before Attach must not publish")
	}
}

func TestRouter_AttachIsIdempotent(t *testing.T) {
	bus := New(nil)
	router := NewRouter(bus)

	count := 0
	bus.SubscribeMessage("HEARTBEAT", PriorityNormal, func(MessageEvent) { count++ })

	router.Attach()
	router.Attach()
	router.Route(&ardupilotmega.MessageHeartbeat{})

	if count != 1 {
		t.Errorf("count = %d, want 1 (route must only fire once per Route call regardless of Attach count)", count)
	}
}

func TestRouter_RouteStampsTypeAndMessage(t *testing.T) {
	bus := New(nil)
	router := NewRouter(bus)
	router.Attach()

	var got MessageEvent
	bus.SubscribeAllMessages(PriorityNormal, func(evt MessageEvent) { got = evt })

	msg := &ardupilotmega.MessageAttitude{Roll: 0.5}
	router.Route(msg)

	if got.MessageType != "ATTITUDE" {
		t.Errorf("MessageType = %q, want ATTITUDE", got.MessageType)
	}
	if got.Message != message.Message(msg) {
		t.Error("event should carry the original message value")
	}
	if got.Timestamp.IsZero() {
		t.Error("event timestamp should be set")
	}
}
