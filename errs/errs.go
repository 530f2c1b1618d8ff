// Package errs defines the closed set of error kinds returned by every
// layer of the bus-level driver engine, from the transport strategies up
// through the IOCTL dispatcher.
//
// A transport or transaction failure is never downgraded to a generic
// error: it keeps its Kind all the way to the IOCTL boundary, where it is
// translated to a host-native error code exactly once.
package errs

import "fmt"

// Kind is the closed set of error kinds used throughout the core.
type Kind int

const (
	// Success is not normally constructed as an error; it exists so Kind
	// zero value reads as "no error" rather than an unnamed failure.
	Success Kind = iota
	Timeout
	ByteCount
	InvalidType
	NotSupportedByDevice
	NotSupportedOnOs
	InvalidParameter
	NoMemory
	Busy
	Permission
	CopyFromUser
	CopyToUser
	DeviceAccessFailed
	Interrupted
	NoDevice
	NotReady
	UnknownFirmwareId
	DuplicateBaseAddress
	ResourceItem
)

var names = map[Kind]string{
	Success:              "success",
	Timeout:              "timeout",
	ByteCount:            "byte count mismatch",
	InvalidType:          "invalid type",
	NotSupportedByDevice: "not supported by device",
	NotSupportedOnOs:     "not supported on os",
	InvalidParameter:     "invalid parameter",
	NoMemory:             "no memory",
	Busy:                 "busy",
	Permission:           "permission denied",
	CopyFromUser:         "copy from user failed",
	CopyToUser:           "copy to user failed",
	DeviceAccessFailed:   "device access failed",
	Interrupted:          "interrupted",
	NoDevice:             "no device",
	NotReady:             "device not ready",
	UnknownFirmwareId:    "unknown firmware id",
	DuplicateBaseAddress: "duplicate base address",
	ResourceItem:         "resource item unavailable",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("errs.Kind(%d)", int(k))
}

// Error wraps a Kind with the cause that produced it, so detail observed
// deep in the transport layer survives up to the point it is logged, while
// callers further up the stack can still dispatch on Kind alone.
type Error struct {
	Kind  Kind
	Cause error
}

func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether err carries the given Kind, looking through wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// KindOf extracts the Kind carried by err, defaulting to DeviceAccessFailed
// for errors that did not originate in this package -- the dispatcher must
// always have a Kind to translate at the boundary.
func KindOf(err error) Kind {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return DeviceAccessFailed
}
