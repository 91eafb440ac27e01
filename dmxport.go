// Package dmxport provides a hardware abstraction over DMX512 output ports.
// A port is addressed by a serializable Identity and streams 512-channel
// frames to an Enttec USB-Pro adapter, an Art-Net node, or nowhere at all.
package dmxport

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Port is a single DMX output. A port is created closed, from its identity
// alone; Open acquires the backing transport, Write sends one frame, Close
// releases the transport and may be called any number of times.
//
// A port instance is single-owner: concurrent calls from multiple goroutines
// require external synchronization.
type Port interface {
	// Identity returns the stable, serializable address of this port.
	// Valid in any state.
	Identity() Identity

	// Open acquires the backend transport. Opening an already-open port
	// returns ErrAlreadyOpen and leaves the port unchanged.
	Open() error

	// Write transmits one complete DMX frame of up to 512 channel values.
	// The call is synchronous: when it returns nil the frame has been
	// handed to the transport in full.
	Write(frame []byte) error

	// Close releases the transport. No-op when already closed.
	Close() error

	fmt.Stringer
}

// Kind discriminates the backend behind a port. The set is closed.
type Kind string

const (
	KindEnttec  Kind = "enttec"
	KindArtNet  Kind = "artnet"
	KindOffline Kind = "offline"
)

var (
	// ErrDeviceUnavailable means the backing resource could not be
	// acquired: missing device path, permission denied, address in use.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrAlreadyOpen is returned by Open on a port that is already open.
	ErrAlreadyOpen = errors.New("port already open")

	// ErrNotOpen is returned by Write on a port that has not been opened.
	ErrNotOpen = errors.New("port not open")

	// ErrTransport means the transport failed while sending a frame.
	ErrTransport = errors.New("transport failure")

	// ErrFrameTooLong means the frame exceeds 512 channels. The frame is
	// rejected before any transport I/O.
	ErrFrameTooLong = errors.New("frame exceeds 512 channels")
)

// NewPort constructs a closed port for the given identity. The logger may be
// nil, in which case the logrus standard logger is used.
func NewPort(log logrus.FieldLogger, id Identity) (Port, error) {
	switch id.Kind {
	case KindEnttec:
		if id.Device == "" {
			return nil, fmt.Errorf("enttec identity has no device path")
		}
		return NewEnttecPort(log, id.Device), nil
	case KindArtNet:
		if id.Address == "" {
			return nil, fmt.Errorf("artnet identity has no address")
		}
		return NewArtNetPort(log, id), nil
	case KindOffline:
		return NewOfflinePort(), nil
	default:
		return nil, fmt.Errorf("unknown port kind %q", id.Kind)
	}
}

func ensureLogger(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}
