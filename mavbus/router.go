package mavbus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// Router is a thin adapter between a message source and a Bus: on every
// ingress message it stamps {timestamp, message_type, message} and
// publishes it. Attach is idempotent — calling it more than once on the
// same Router is a no-op, matching the contract spec calls out explicitly
// (the Python original's detach() never worked; this one doesn't need a
// detach because Attach itself can't double-register).
type Router struct {
	bus      *Bus
	mu       sync.Mutex
	attached bool
}

// NewRouter creates a Router publishing onto bus.
func NewRouter(bus *Bus) *Router {
	return &Router{bus: bus}
}

// Attach marks the router as live. Subsequent calls are no-ops.
func (r *Router) Attach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = true
}

// Route publishes msg as a MessageEvent if the router is attached; a no-op
// otherwise so a disconnected/never-attached router can't leak events.
func (r *Router) Route(msg message.Message) {
	r.mu.Lock()
	attached := r.attached
	r.mu.Unlock()
	if !attached {
		return
	}
	r.bus.PublishMessage(MessageEvent{
		Timestamp:   time.Now(),
		MessageType: TypeName(msg),
		Message:     msg,
	})
}

// TypeName extracts the bare, upper-snake-case MAVLink message type name
// from a dialect message value, e.g. *ardupilotmega.MessageGlobalPositionInt
// -> "GLOBAL_POSITION_INT", matching the wire dialect's own message names.
func TypeName(msg message.Message) string {
	full := fmt.Sprintf("%T", msg)
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		full = full[idx+1:]
	}
	full = strings.TrimPrefix(full, "Message")
	return camelToScreamingSnake(full)
}

func camelToScreamingSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := rune(s[i-1])
				nextIsLower := i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z'
				if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') || (nextIsLower && i+1 < len(s) && prev >= 'A' && prev <= 'Z') {
					b.WriteByte('_')
				}
			}
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
