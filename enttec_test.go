package dmxport

import (
	"bytes"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmxport/internal/serial"
)

// fakeLine stands in for a serial.Line. chunk limits how many bytes a single
// Write accepts, to simulate short writes.
type fakeLine struct {
	wrote bytes.Buffer
	chunk int

	eagainLeft int // return EAGAIN this many times before accepting bytes

	exclusiveErr error
	configErr    error
	flushErr     error
	rtsErr       error
	drainErr     error
	writeErr     error

	configs  []serial.Config
	flushes  int
	drains   int
	closes   int
	rtsClear bool
}

func (f *fakeLine) Write(p []byte) (int, error) {
	if f.eagainLeft > 0 {
		f.eagainLeft--
		return 0, syscall.EAGAIN
	}
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	n := len(p)
	if f.chunk > 0 && n > f.chunk {
		n = f.chunk
	}
	f.wrote.Write(p[:n])
	return n, nil
}

func (f *fakeLine) SetExclusive() error { return f.exclusiveErr }

func (f *fakeLine) Configure(cfg serial.Config) error {
	f.configs = append(f.configs, cfg)
	return f.configErr
}

func (f *fakeLine) Flush() error { f.flushes++; return f.flushErr }
func (f *fakeLine) Drain() error { f.drains++; return f.drainErr }
func (f *fakeLine) ClearRTS() error {
	if f.rtsErr != nil {
		return f.rtsErr
	}
	f.rtsClear = true
	return nil
}
func (f *fakeLine) Close() error { f.closes++; return nil }

func withFakeLine(t *testing.T, line *fakeLine, openErr error) {
	t.Helper()
	old := openSerialLine
	openSerialLine = func(path string) (serialLine, error) {
		if openErr != nil {
			return nil, openErr
		}
		return line, nil
	}
	t.Cleanup(func() { openSerialLine = old })
}

func paramsPacket() []byte {
	return []byte{0x7E, labelSetParameters, 5, 0, 0, 0, 9, 1, 40, 0xE7}
}

func TestEnttecDMXPacketEncoding(t *testing.T) {
	for _, n := range []int{0, 1, 2, 23, 24, 100, 511, 512} {
		frame := make([]byte, n)
		for i := range frame {
			frame[i] = byte(i + 1)
		}

		pkt := appendDMXPacket(nil, frame)

		assert.Len(t, pkt, n+6, "total length for %d channels", n)
		assert.EqualValues(t, 0x7E, pkt[0])
		assert.EqualValues(t, labelOutputDMX, pkt[1])
		length := int(pkt[2]) | int(pkt[3])<<8
		assert.Equal(t, n+1, length, "length field for %d channels", n)
		assert.EqualValues(t, 0x00, pkt[4], "DMX start code")
		assert.Equal(t, frame, pkt[5:5+n])
		assert.EqualValues(t, 0xE7, pkt[len(pkt)-1])
	}
}

func TestEnttecOpenSequence(t *testing.T) {
	line := &fakeLine{}
	withFakeLine(t, line, nil)

	p := NewEnttecPort(nil, "/dev/ttyUSB0")
	require.NoError(t, p.Open())

	require.Len(t, line.configs, 1)
	assert.Equal(t, enttecLineConfig, line.configs[0])
	assert.Equal(t, 1, line.flushes)
	assert.True(t, line.rtsClear)
	// Default parameters go out during open, followed by a drain.
	assert.Equal(t, paramsPacket(), line.wrote.Bytes())
	assert.Equal(t, 1, line.drains)

	assert.ErrorIs(t, p.Open(), ErrAlreadyOpen)
	require.NoError(t, p.Close())
	assert.Equal(t, 1, line.closes)
	require.NoError(t, p.Close(), "close is idempotent")
}

func TestEnttecOpenRollback(t *testing.T) {
	tests := []struct {
		name string
		line *fakeLine
	}{
		{"exclusive denied", &fakeLine{exclusiveErr: errors.New("busy")}},
		{"configure failed", &fakeLine{configErr: errors.New("bad attrs")}},
		{"flush failed", &fakeLine{flushErr: errors.New("io")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFakeLine(t, tt.line, nil)

			p := NewEnttecPort(nil, "/dev/ttyUSB0")
			err := p.Open()
			require.ErrorIs(t, err, ErrDeviceUnavailable)
			assert.Equal(t, 1, tt.line.closes, "descriptor must be released")
			assert.ErrorIs(t, p.Write([]byte{1}), ErrNotOpen, "port stays closed")
		})
	}
}

func TestEnttecOpenDeviceMissing(t *testing.T) {
	withFakeLine(t, nil, errors.New("no such file"))

	p := NewEnttecPort(nil, "/dev/ttyUSB9")
	assert.ErrorIs(t, p.Open(), ErrDeviceUnavailable)
}

func TestEnttecRTSFailureNonFatal(t *testing.T) {
	line := &fakeLine{rtsErr: errors.New("inappropriate ioctl")}
	withFakeLine(t, line, nil)

	p := NewEnttecPort(nil, "/dev/ttyUSB0")
	assert.NoError(t, p.Open())
}

func TestEnttecWrite(t *testing.T) {
	line := &fakeLine{}
	withFakeLine(t, line, nil)

	p := NewEnttecPort(nil, "/dev/ttyUSB0")
	require.NoError(t, p.Open())
	line.wrote.Reset()

	frame := []byte{10, 20, 30}
	require.NoError(t, p.Write(frame))
	assert.Equal(t, appendDMXPacket(nil, frame), line.wrote.Bytes())
}

func TestEnttecShortWritesRetried(t *testing.T) {
	line := &fakeLine{}
	withFakeLine(t, line, nil)

	p := NewEnttecPort(nil, "/dev/ttyUSB0")
	require.NoError(t, p.Open())
	line.wrote.Reset()

	// Accept at most 3 bytes per write, with a couple of EAGAINs thrown in.
	line.chunk = 3
	line.eagainLeft = 2

	frame := make([]byte, 100)
	for i := range frame {
		frame[i] = byte(i)
	}
	require.NoError(t, p.Write(frame))
	assert.Equal(t, appendDMXPacket(nil, frame), line.wrote.Bytes(),
		"retried stream must be bit-identical to a single-shot write")
}

func TestEnttecWriteErrors(t *testing.T) {
	line := &fakeLine{}
	withFakeLine(t, line, nil)

	p := NewEnttecPort(nil, "/dev/ttyUSB0")

	assert.ErrorIs(t, p.Write(make([]byte, 1)), ErrNotOpen)

	require.NoError(t, p.Open())
	line.wrote.Reset()

	assert.ErrorIs(t, p.Write(make([]byte, 513)), ErrFrameTooLong)
	assert.Zero(t, line.wrote.Len(), "oversize frame must not reach the transport")

	line.writeErr = errors.New("unplugged")
	assert.ErrorIs(t, p.Write(make([]byte, 8)), ErrTransport)
}

func TestEnttecParams(t *testing.T) {
	line := &fakeLine{}
	withFakeLine(t, line, nil)

	p := NewEnttecPort(nil, "/dev/ttyUSB0")
	require.NoError(t, p.Open())
	line.wrote.Reset()

	require.NoError(t, p.SetBreakTime(20))
	require.NoError(t, p.SetMarkAfterBreakTime(4))
	require.NoError(t, p.SetRefreshRate(0))

	// Dirty parameters precede the next frame.
	require.NoError(t, p.Write([]byte{1}))
	want := appendEnttecPacket(nil, labelSetParameters, []byte{0, 0, 20, 4, 0})
	want = appendDMXPacket(want, []byte{1})
	assert.Equal(t, want, line.wrote.Bytes())

	// And are not re-sent while unchanged.
	line.wrote.Reset()
	require.NoError(t, p.Write([]byte{2}))
	assert.Equal(t, appendDMXPacket(nil, []byte{2}), line.wrote.Bytes())

	assert.Error(t, p.SetBreakTime(8))
	assert.Error(t, p.SetBreakTime(128))
	assert.Error(t, p.SetMarkAfterBreakTime(0))
	assert.Error(t, p.SetRefreshRate(41))
}
