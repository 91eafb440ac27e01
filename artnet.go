package dmxport

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	// ArtNetUDPPort is the well-known Art-Net port.
	ArtNetUDPPort = 6454

	opOutput        = 0x5000 // ArtDMX opcode
	protocolVersion = 14
)

// artnetID opens every Art-Net datagram.
var artnetID = []byte("Art-Net\x00")

// datagramConn is the slice of *net.UDPConn the port uses; tests substitute
// a recording fake.
type datagramConn interface {
	Write(b []byte) (int, error)
	Close() error
}

// ArtNetPort sends ArtDMX datagrams to a single node and universe. Delivery
// is at-most-once: a failed send is reported, never retried.
type ArtNetPort struct {
	address   string
	universe  uint16
	shortName string
	longName  string

	conn datagramConn
	seq  uint8
	buf  []byte
	log  logrus.FieldLogger
}

// NewArtNetPort returns a closed port addressed by id. Only the Art-Net
// fields of the identity are consulted.
func NewArtNetPort(log logrus.FieldLogger, id Identity) *ArtNetPort {
	return &ArtNetPort{
		address:   id.Address,
		universe:  id.Universe,
		shortName: id.ShortName,
		longName:  id.LongName,
		log:       ensureLogger(log),
	}
}

func (p *ArtNetPort) Identity() Identity {
	return Identity{
		Kind:      KindArtNet,
		Address:   p.address,
		Universe:  p.universe,
		ShortName: p.shortName,
		LongName:  p.longName,
	}
}

func (p *ArtNetPort) String() string {
	return p.Identity().String()
}

// Open creates the UDP endpoint for the node. Art-Net needs no handshake.
func (p *ArtNetPort) Open() error {
	if p.conn != nil {
		return ErrAlreadyOpen
	}
	ip := net.ParseIP(p.address)
	if ip == nil {
		return fmt.Errorf("%w: bad address %q", ErrDeviceUnavailable, p.address)
	}
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: ArtNetUDPPort})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	// Broadcast destinations need SO_BROADCAST; unicast nodes do not, so a
	// refusal only matters for broadcast addresses.
	if err := enableBroadcast(conn); err != nil {
		p.log.Warnf("artnet %s: enabling broadcast: %v", p.address, err)
	}
	p.conn = conn
	p.seq = 0
	return nil
}

// Write sends one frame as a single ArtDMX datagram. The sequence byte
// cycles 1..255; zero is reserved for "sequencing disabled" and never sent.
func (p *ArtNetPort) Write(frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}
	if p.conn == nil {
		return ErrNotOpen
	}
	p.seq++
	if p.seq == 0 {
		p.seq = 1
	}
	p.buf = appendArtDMXPacket(p.buf[:0], p.universe, p.seq, frame)
	if _, err := p.conn.Write(p.buf); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// Close releases the endpoint. Safe to call on a closed port.
func (p *ArtNetPort) Close() error {
	if p.conn == nil {
		return nil
	}
	conn := p.conn
	p.conn = nil
	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing artnet %s: %w", p.address, err)
	}
	return nil
}

// appendArtDMXPacket builds an ArtDMX datagram. The channel data is padded
// with a zero byte when its length is odd; the protocol requires an even
// length field of at least 2.
func appendArtDMXPacket(dst []byte, universe uint16, seq uint8, frame []byte) []byte {
	padded := len(frame) + len(frame)%2
	if padded < 2 {
		padded = 2
	}

	dst = append(dst, artnetID...)
	dst = binary.LittleEndian.AppendUint16(dst, opOutput)
	dst = binary.BigEndian.AppendUint16(dst, protocolVersion)
	dst = append(dst, seq, 0) // sequence, physical input port
	dst = binary.LittleEndian.AppendUint16(dst, universe)
	dst = binary.BigEndian.AppendUint16(dst, uint16(padded))
	dst = append(dst, frame...)
	for i := len(frame); i < padded; i++ {
		dst = append(dst, 0)
	}
	return dst
}

func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	if err := raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return serr
}
