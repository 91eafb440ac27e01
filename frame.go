package dmxport

import "fmt"

const (
	// MaxChannels is the number of channels in a full DMX512 universe.
	MaxChannels = 512

	// StartCode is the DMX start code preceding channel data on the wire.
	StartCode = 0x00
)

// checkFrame rejects frames that cannot be represented in a single DMX
// universe. An empty frame is valid: it carries the start code and nothing
// else.
func checkFrame(frame []byte) error {
	if len(frame) > MaxChannels {
		return fmt.Errorf("%w: got %d", ErrFrameTooLong, len(frame))
	}
	return nil
}
