package dmxport

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	packets [][]byte
	err     error
	closed  bool
}

func (f *fakeConn) Write(b []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.packets = append(f.packets, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeConn) Close() error { f.closed = true; return nil }

func openArtNetPort(conn *fakeConn) *ArtNetPort {
	p := NewArtNetPort(nil, Identity{Kind: KindArtNet, Address: "10.0.0.42", Universe: 3})
	p.conn = conn
	return p
}

func TestArtDMXPacketLayout(t *testing.T) {
	channels := make([]byte, 512)
	channels[0] = 255
	channels[100] = 128
	channels[511] = 64

	pkt := appendArtDMXPacket(nil, 3, 17, channels)

	require.Len(t, pkt, 18+512)
	assert.Equal(t, "Art-Net\x00", string(pkt[0:8]))
	assert.EqualValues(t, opOutput, binary.LittleEndian.Uint16(pkt[8:10]))
	assert.EqualValues(t, protocolVersion, binary.BigEndian.Uint16(pkt[10:12]))
	assert.EqualValues(t, 17, pkt[12], "sequence")
	assert.EqualValues(t, 0, pkt[13], "physical port")
	assert.EqualValues(t, 3, binary.LittleEndian.Uint16(pkt[14:16]), "universe")
	assert.EqualValues(t, 512, binary.BigEndian.Uint16(pkt[16:18]), "length")
	assert.EqualValues(t, 255, pkt[18])
	assert.EqualValues(t, 128, pkt[18+100])
	assert.EqualValues(t, 64, pkt[18+511])
}

func TestArtDMXPacketPadding(t *testing.T) {
	tests := []struct {
		channels   int
		wantLength int
	}{
		{0, 2}, // protocol minimum
		{1, 2},
		{2, 2},
		{3, 4},
		{511, 512},
		{512, 512},
	}
	for _, tt := range tests {
		pkt := appendArtDMXPacket(nil, 0, 1, make([]byte, tt.channels))
		assert.EqualValues(t, tt.wantLength, binary.BigEndian.Uint16(pkt[16:18]),
			"length field for %d channels", tt.channels)
		assert.Len(t, pkt, 18+tt.wantLength, "datagram size for %d channels", tt.channels)
		for i := 18 + tt.channels; i < len(pkt); i++ {
			assert.Zero(t, pkt[i], "padding must be zero")
		}
	}
}

func TestArtNetSequenceWraps(t *testing.T) {
	conn := &fakeConn{}
	p := openArtNetPort(conn)

	frame := make([]byte, 512)
	for i := 0; i < 300; i++ {
		require.NoError(t, p.Write(frame))
	}

	require.Len(t, conn.packets, 300)
	for i, pkt := range conn.packets {
		want := byte(i%255) + 1 // 1..255, zero never sent
		assert.Equal(t, want, pkt[12], "sequence of write %d", i)
	}
}

func TestArtNetStateMachine(t *testing.T) {
	p := NewArtNetPort(nil, Identity{Kind: KindArtNet, Address: "10.0.0.42"})

	assert.ErrorIs(t, p.Write(make([]byte, 1)), ErrNotOpen)
	require.NoError(t, p.Close(), "closing a closed port is a no-op")

	conn := &fakeConn{}
	p.conn = conn
	assert.ErrorIs(t, p.Open(), ErrAlreadyOpen)

	assert.ErrorIs(t, p.Write(make([]byte, 513)), ErrFrameTooLong)
	assert.Empty(t, conn.packets, "oversize frame must not reach the socket")

	require.NoError(t, p.Close())
	assert.True(t, conn.closed)
	assert.ErrorIs(t, p.Write(make([]byte, 1)), ErrNotOpen)
}

func TestArtNetSendFailure(t *testing.T) {
	conn := &fakeConn{err: errors.New("network unreachable")}
	p := openArtNetPort(conn)

	err := p.Write(make([]byte, 2))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestArtNetOpenBadAddress(t *testing.T) {
	p := NewArtNetPort(nil, Identity{Kind: KindArtNet, Address: "not-an-ip"})
	assert.ErrorIs(t, p.Open(), ErrDeviceUnavailable)
}
