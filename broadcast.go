package dmxport

import (
	"fmt"
	"net"
)

// BroadcastAddr finds the local interface with an IPv4 address inside the
// given CIDR and returns the directed broadcast address of that network.
// Useful when an Art-Net port should flood a dedicated lighting network
// rather than target one node.
func BroadcastAddr(cidr string) (string, error) {
	_, cidrNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", fmt.Errorf("parsing network %q: %w", cidr, err)
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("listing interface addresses: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil || !cidrNet.Contains(ip) {
			continue
		}
		bcast := make(net.IP, len(ip))
		mask := ipNet.Mask
		for i := range ip {
			bcast[i] = ip[i] | ^mask[i]
		}
		return bcast.String(), nil
	}

	return "", fmt.Errorf("no interface with an address in %s", cidr)
}
