package dmxport

import (
	"bytes"
	"fmt"
	"net"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jsimonetti/go-artnet/packet"
	"github.com/sirupsen/logrus"
)

// DiscoverPorts returns identities for every output reachable from this
// host: USB-serial adapter candidates, Art-Net nodes that answered a poll
// within wait, and the always-present offline port. Every identity is
// closed; open the one you want.
func DiscoverPorts(log logrus.FieldLogger, wait time.Duration) []Identity {
	log = ensureLogger(log)

	ids := []Identity{{Kind: KindOffline}}

	serial, err := DiscoverEnttecPorts()
	if err != nil {
		log.Warnf("discover: scanning serial devices: %v", err)
	}
	ids = append(ids, serial...)

	nodes, err := DiscoverArtNetPorts(wait)
	if err != nil {
		log.Warnf("discover: polling artnet nodes: %v", err)
	}
	ids = append(ids, nodes...)

	return ids
}

// DiscoverEnttecPorts scans /dev for USB-serial device nodes. The returned
// identities are candidates: nothing guarantees an Enttec adapter is on the
// other end until Open succeeds.
func DiscoverEnttecPorts() ([]Identity, error) {
	pattern := "/dev/ttyUSB*"
	if runtime.GOOS == "darwin" {
		pattern = "/dev/tty.usbserial*"
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", pattern, err)
	}
	ids := make([]Identity, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, Identity{Kind: KindEnttec, Device: p})
	}
	return ids, nil
}

// DiscoverArtNetPorts broadcasts an ArtPoll on UDP 6454 and collects the
// replies that arrive within wait.
func DiscoverArtNetPorts(wait time.Duration) ([]Identity, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: ArtNetUDPPort})
	if err != nil {
		return nil, fmt.Errorf("%w: binding artnet port: %v", ErrDeviceUnavailable, err)
	}
	defer conn.Close()
	if err := enableBroadcast(conn); err != nil {
		return nil, fmt.Errorf("enabling broadcast: %w", err)
	}

	poll, err := packet.NewArtPollPacket().MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling poll: %w", err)
	}
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: ArtNetUDPPort}
	if _, err := conn.WriteToUDP(poll, dst); err != nil {
		return nil, fmt.Errorf("%w: sending poll: %v", ErrTransport, err)
	}

	deadline := time.Now().Add(wait)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	var ids []Identity
	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return ids, nil
			}
			return ids, fmt.Errorf("%w: reading poll replies: %v", ErrTransport, err)
		}
		p, err := packet.Unmarshal(buf[:n])
		if err != nil {
			continue // other Art-Net traffic, including our own poll
		}
		reply, ok := p.(*packet.ArtPollReplyPacket)
		if !ok {
			continue
		}
		ids = append(ids, replyIdentity(reply))
	}
}

// replyIdentity converts an ArtPollReply into a port identity for the node's
// first output. The 15-bit port address combines the net switch, sub-net
// switch and the universe nibble.
func replyIdentity(r *packet.ArtPollReplyPacket) Identity {
	universe := uint16(r.NetSwitch&0x7f)<<8 |
		uint16(r.SubSwitch&0x0f)<<4 |
		uint16(r.SwOut[0]&0x0f)
	addr := net.IPv4(r.IPAddress[0], r.IPAddress[1], r.IPAddress[2], r.IPAddress[3])
	return Identity{
		Kind:      KindArtNet,
		Address:   addr.String(),
		Universe:  universe,
		ShortName: nulTerminated(r.ShortName[:]),
		LongName:  nulTerminated(r.LongName[:]),
	}
}

func nulTerminated(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
