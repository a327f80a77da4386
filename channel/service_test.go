package channel

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/openskylab/groundlink/mavbus"
)

type fakeTransport struct {
	sys  uint8
	comp uint8
	sent []message.Message
}

func (f *fakeTransport) Send(msg message.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeTransport) TargetSystem() uint8    { return f.sys }
func (f *fakeTransport) TargetComponent() uint8 { return f.comp }

func TestOnRCChannelsRaw_StoresEightSlots(t *testing.T) {
	bus := mavbus.New(nil)
	s := New(&fakeTransport{})
	s.Attach(bus)

	bus.PublishMessage(mavbus.MessageEvent{
		MessageType: "RC_CHANNELS_RAW",
		Message: &ardupilotmega.MessageRcChannelsRaw{
			Chan1Raw: 1500, Chan2Raw: 1500, Chan3Raw: 1000, Chan4Raw: 1500,
			Chan5Raw: 1800, Chan6Raw: 1200, Chan7Raw: rcAbsent, Chan8Raw: 1500,
		},
	})

	v, ok := s.Read(1)
	if !ok || v != 1500 {
		t.Errorf("Read(1) = (%v, %v), want (1500, true)", v, ok)
	}
	if _, ok := s.Read(7); ok {
		t.Error("Read(7) should report absent for the 65535 sentinel")
	}
	all := s.All()
	if len(all) != 7 {
		t.Errorf("All() has %d entries, want 7 (channel 7 absent)", len(all))
	}
}

func TestOnRCChannels_UsesChancountAndDropsAbsent(t *testing.T) {
	bus := mavbus.New(nil)
	s := New(&fakeTransport{})
	s.Attach(bus)

	bus.PublishMessage(mavbus.MessageEvent{
		MessageType: "RC_CHANNELS",
		Message: &ardupilotmega.MessageRcChannels{
			Chancount: 4,
			Chan1Raw:  1000, Chan2Raw: 1100, Chan3Raw: rcAbsent, Chan4Raw: 1300,
			Chan5Raw: 9999, // beyond Chancount, must be ignored
		},
	})

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("All() has %d entries, want 3", len(all))
	}
	if _, ok := s.Read(5); ok {
		t.Error("channel 5 is beyond Chancount and must not be stored")
	}
	if _, ok := s.Read(3); ok {
		t.Error("channel 3 carries the absent sentinel and must not be stored")
	}
}

func TestSet_SendsImmediatelyWhenNotSuspended(t *testing.T) {
	tr := &fakeTransport{sys: 1, comp: 1}
	s := New(tr)

	s.Set(3, 1700)

	if len(tr.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(tr.sent))
	}
	msg := tr.sent[0].(*ardupilotmega.MessageRcChannelsOverride)
	if msg.Chan3Raw != 1700 {
		t.Errorf("Chan3Raw = %v, want 1700", msg.Chan3Raw)
	}
}

func TestSuspendSetClearResume_CoalescesIntoOneSend(t *testing.T) {
	tr := &fakeTransport{sys: 1, comp: 1}
	s := New(tr)

	s.Suspend()
	s.Set(3, 1500)
	s.Set(5, 1600)

	if len(tr.sent) != 0 {
		t.Fatalf("sent %d messages while suspended, want 0", len(tr.sent))
	}

	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("sent %d messages after Resume, want 1", len(tr.sent))
	}

	got := tr.sent[0].(*ardupilotmega.MessageRcChannelsOverride)
	want := [NumOverrideSlots]uint16{0, 0, 1500, 0, 1600, 0, 0, 0}
	gotArr := [NumOverrideSlots]uint16{
		got.Chan1Raw, got.Chan2Raw, got.Chan3Raw, got.Chan4Raw,
		got.Chan5Raw, got.Chan6Raw, got.Chan7Raw, got.Chan8Raw,
	}
	if gotArr != want {
		t.Errorf("override = %v, want %v", gotArr, want)
	}
}

func TestSet_IgnoresOutOfRangeSlot(t *testing.T) {
	tr := &fakeTransport{}
	s := New(tr)

	s.Set(0, 1500)
	s.Set(NumOverrideSlots+1, 1500)

	if len(tr.sent) != 0 {
		t.Errorf("out-of-range Set should not send, sent %d messages", len(tr.sent))
	}
}
