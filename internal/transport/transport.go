// internal/transport/transport.go

// Package transport defines the request-response contract the poll engine
// drives, and the typed failure classification that replaces error-string
// sniffing: a failure is connection-class iff it is a *transport.Error.
package transport

import (
	"errors"
	"fmt"

	"github.com/zeloscloud/zelos-extension-modbus/internal/regmap"
)

// Transport issues one bounded request at a time against the device.
// Implementations are not required to be safe for concurrent use; the
// engine serializes access.
type Transport interface {
	Connect() error

	// ReadBits reads coils or discrete inputs.
	ReadBits(kind regmap.Kind, address, count uint16) ([]bool, error)
	// ReadWords reads holding or input registers.
	ReadWords(kind regmap.Kind, address, count uint16) ([]uint16, error)

	WriteBit(address uint16, on bool) error
	WriteWord(address uint16, value uint16) error
	WriteWords(address uint16, values []uint16) error

	Close() error
}

// Reason narrows a connection-class failure.
type Reason string

const (
	ReasonTimeout Reason = "timeout"
	ReasonRefused Reason = "refused"
	ReasonReset   Reason = "reset"
	ReasonClosed  Reason = "closed"
	ReasonBroken  Reason = "broken"
)

// Error marks a transport-level failure. Device exception responses and
// malformed payloads are NOT transport errors; they pass through untyped.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport: %s", e.Reason)
	}
	return fmt.Sprintf("transport: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a connection-class failure.
func NewError(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// IsConnection reports whether err is connection-class, i.e. the engine
// should drop the connection and reconnect.
func IsConnection(err error) bool {
	var te *Error
	return errors.As(err, &te)
}
