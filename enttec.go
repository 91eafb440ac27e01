package dmxport

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dmxport/internal/serial"
)

// Enttec Pro message framing.
const (
	enttecStart = 0x7E
	enttecEnd   = 0xE7

	labelSetParameters = 4
	labelOutputDMX     = 6
)

// enttecLineConfig is the discipline the USB-Pro expects: raw 8N2 with modem
// lines ignored and single-byte read granularity.
var enttecLineConfig = serial.Config{
	DataBits:       8,
	TwoStopBits:    true,
	LocalControl:   true,
	EnableReceiver: true,
	MinRead:        1,
	ReadTimeout:    0,
}

// serialLine is the slice of serial.Line the port uses. Tests substitute a
// fake to simulate transport behavior.
type serialLine interface {
	io.Writer
	SetExclusive() error
	Configure(serial.Config) error
	Flush() error
	Drain() error
	ClearRTS() error
	Close() error
}

// openSerialLine is replaced in tests.
var openSerialLine = func(path string) (serialLine, error) {
	return serial.Open(path)
}

// EnttecParams are the adapter-side output settings, sent with the
// SetParameters message. Times are in units of 10.67 microseconds.
type EnttecParams struct {
	breakTime      uint8 // 9..127
	markAfterBreak uint8 // 1..127
	refreshRate    uint8 // packets per second, 1..40; 0 means fastest possible
}

func defaultEnttecParams() EnttecParams {
	// Minimum break and mark times, fastest fixed frame rate.
	return EnttecParams{breakTime: 9, markAfterBreak: 1, refreshRate: 40}
}

// payload renders the SetParameters message body: user config size (unused,
// zero), break time, mark-after-break time, refresh rate.
func (p EnttecParams) payload() []byte {
	return []byte{0, 0, p.breakTime, p.markAfterBreak, p.refreshRate}
}

// EnttecPort drives an Enttec USB-Pro style adapter over a serial line.
type EnttecPort struct {
	device      string
	params      EnttecParams
	paramsDirty bool
	line        serialLine
	buf         []byte
	log         logrus.FieldLogger
}

// NewEnttecPort returns a closed port for the adapter at the given device
// path. The logger may be nil.
func NewEnttecPort(log logrus.FieldLogger, device string) *EnttecPort {
	return &EnttecPort{
		device: device,
		params: defaultEnttecParams(),
		log:    ensureLogger(log),
	}
}

func (p *EnttecPort) Identity() Identity {
	return Identity{Kind: KindEnttec, Device: p.device}
}

func (p *EnttecPort) String() string {
	return p.Identity().String()
}

// Open acquires the serial line and runs the adapter configuration sequence.
// Either every step succeeds or the descriptor is released and an error
// returned; a failed Open leaves the port closed.
func (p *EnttecPort) Open() error {
	if p.line != nil {
		return ErrAlreadyOpen
	}

	line, err := openSerialLine(p.device)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := p.configure(line); err != nil {
		_ = line.Close()
		return err
	}

	p.line = line
	p.paramsDirty = true
	if err := p.writeParams(); err != nil {
		p.line = nil
		_ = line.Close()
		return err
	}
	return nil
}

func (p *EnttecPort) configure(line serialLine) error {
	if err := line.SetExclusive(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, p.device, err)
	}
	if err := line.Configure(enttecLineConfig); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, p.device, err)
	}
	if err := line.Flush(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, p.device, err)
	}
	// Not every adapter routes RTS to the transceiver; treat failure as
	// advisory. TODO: confirm against hardware that needs RTS held low.
	if err := line.ClearRTS(); err != nil {
		p.log.Warnf("enttec %s: clearing RTS: %v", p.device, err)
	}
	return nil
}

// Write transmits one DMX frame. Pending parameter changes are sent first.
func (p *EnttecPort) Write(frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}
	if p.line == nil {
		return ErrNotOpen
	}
	if err := p.writeParams(); err != nil {
		return err
	}
	p.buf = appendDMXPacket(p.buf[:0], frame)
	return p.writeAll(p.buf)
}

// Close releases the serial line. The line itself restores the previous
// settings. Safe to call on a closed port.
func (p *EnttecPort) Close() error {
	if p.line == nil {
		return nil
	}
	line := p.line
	p.line = nil
	if err := line.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", p.device, err)
	}
	return nil
}

// SetBreakTime sets the DMX break time in 10.67 microsecond units,
// range 9 to 127.
func (p *EnttecPort) SetBreakTime(t uint8) error {
	if t < 9 || t > 127 {
		return fmt.Errorf("break time %d out of range 9..127", t)
	}
	p.params.breakTime = t
	p.paramsDirty = true
	return nil
}

// SetMarkAfterBreakTime sets the mark-after-break time in 10.67 microsecond
// units, range 1 to 127.
func (p *EnttecPort) SetMarkAfterBreakTime(t uint8) error {
	if t < 1 || t > 127 {
		return fmt.Errorf("mark after break %d out of range 1..127", t)
	}
	p.params.markAfterBreak = t
	p.paramsDirty = true
	return nil
}

// SetRefreshRate sets the adapter output rate in packets per second,
// range 0 to 40. Zero means "as fast as possible".
func (p *EnttecPort) SetRefreshRate(rate uint8) error {
	if rate > 40 {
		return fmt.Errorf("refresh rate %d out of range 0..40", rate)
	}
	p.params.refreshRate = rate
	p.paramsDirty = true
	return nil
}

func (p *EnttecPort) writeParams() error {
	if !p.paramsDirty {
		return nil
	}
	p.buf = appendEnttecPacket(p.buf[:0], labelSetParameters, p.params.payload())
	if err := p.writeAll(p.buf); err != nil {
		return err
	}
	// Let the adapter absorb the new settings before DMX data follows.
	if err := p.line.Drain(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	p.paramsDirty = false
	return nil
}

// writeAll pushes b to the line in full, retrying short writes and transient
// errno results from the non-blocking descriptor.
func (p *EnttecPort) writeAll(b []byte) error {
	for len(b) > 0 {
		n, err := p.line.Write(b)
		if n > 0 {
			b = b[n:]
		}
		switch {
		case err == nil && n == 0:
			return fmt.Errorf("%w: %v", ErrTransport, io.ErrShortWrite)
		case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR):
			time.Sleep(time.Millisecond)
		case err != nil:
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	return nil
}

// appendEnttecPacket frames payload as an Enttec Pro message: start byte,
// label, little-endian length, payload, end byte.
func appendEnttecPacket(dst []byte, label byte, payload []byte) []byte {
	n := len(payload)
	dst = append(dst, enttecStart, label, byte(n), byte(n>>8))
	dst = append(dst, payload...)
	return append(dst, enttecEnd)
}

// appendDMXPacket frames a DMX universe as an output-data message. The
// payload is the start code followed by the channels, so the length field is
// always len(frame)+1.
func appendDMXPacket(dst, frame []byte) []byte {
	n := len(frame) + 1
	dst = append(dst, enttecStart, labelOutputDMX, byte(n), byte(n>>8), StartCode)
	dst = append(dst, frame...)
	return append(dst, enttecEnd)
}
