// Package groundlinkerr defines the error taxonomy shared by every service
// in this module. Callers use errors.Is against the exported sentinels
// rather than matching on strings.
package groundlinkerr

import "errors"

// Kind identifies which of the six error categories a failure belongs to.
type Kind int

const (
	KindNotConnected Kind = iota
	KindTimeout
	KindInvalidArgument
	KindNotFound
	KindProtocolError
	KindTransportFailed
)

var (
	// ErrNotConnected is returned when an operation is requested without an
	// active transport.
	ErrNotConnected = errors.New("groundlink: not connected")
	// ErrTimeout is returned when a deadline is exceeded on a wait_* call,
	// connect, or a parameter set.
	ErrTimeout = errors.New("groundlink: timeout")
	// ErrInvalidArgument is returned for unknown mode names, a missing home
	// location for an MSL gimbal ROI, or a malformed transport URI.
	ErrInvalidArgument = errors.New("groundlink: invalid argument")
	// ErrNotFound is returned when a parameter name is not in the loaded set.
	ErrNotFound = errors.New("groundlink: not found")
	// ErrProtocolError is returned for a mission ack other than accepted, or
	// a malformed message from the codec.
	ErrProtocolError = errors.New("groundlink: protocol error")
	// ErrTransportFailed is returned once the transport has recorded a fatal
	// I/O error and poisoned the session.
	ErrTransportFailed = errors.New("groundlink: transport failed")
)

var sentinelKind = map[error]Kind{
	ErrNotConnected:    KindNotConnected,
	ErrTimeout:         KindTimeout,
	ErrInvalidArgument: KindInvalidArgument,
	ErrNotFound:        KindNotFound,
	ErrProtocolError:   KindProtocolError,
	ErrTransportFailed: KindTransportFailed,
}

// KindOf reports the Kind of err, walking the error chain with errors.Is.
// Returns ok=false if err does not wrap one of the sentinels above.
func KindOf(err error) (k Kind, ok bool) {
	for sentinel, kind := range sentinelKind {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return 0, false
}
