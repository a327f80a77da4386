package groundlinkerr

import (
	"fmt"
	"testing"
)

func TestKindOf_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("opening transport: %w", ErrTransportFailed)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("KindOf should recognize a wrapped sentinel")
	}
	if kind != KindTransportFailed {
		t.Errorf("kind = %v, want KindTransportFailed", kind)
	}
}

func TestKindOf_UnrelatedError(t *testing.T) {
	if _, ok := KindOf(fmt.Errorf("some other failure")); ok {
		t.Error("KindOf should report ok=false for an error outside the taxonomy")
	}
}

func TestKindOf_EveryKind(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrNotConnected, KindNotConnected},
		{ErrTimeout, KindTimeout},
		{ErrInvalidArgument, KindInvalidArgument},
		{ErrNotFound, KindNotFound},
		{ErrProtocolError, KindProtocolError},
		{ErrTransportFailed, KindTransportFailed},
	}

	for _, tt := range tests {
		kind, ok := KindOf(tt.err)
		if !ok || kind != tt.want {
			t.Errorf("KindOf(%v) = (%v, %v), want (%v, true)", tt.err, kind, ok, tt.want)
		}
	}
}
