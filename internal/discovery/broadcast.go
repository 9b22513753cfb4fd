// Package discovery lets a sender find a receiver on the local network.
//
// The receiver surveys: it broadcasts its listener address to the subnet on
// a fixed signaling port until a connection arrives. The sender listens on
// that port for one datagram. Broadcasting is preferred over multicast since
// it needs no group membership and stays within the subnet anyway.
package discovery

import (
	"fmt"
	"net"
	"net/netip"

	"sf/internal/protocol"
)

// BroadcastAddr returns ip with every host bit set: ip | ^mask.
// The mask must belong to the same address family as ip.
func BroadcastAddr(ip netip.Addr, mask net.IPMask) (netip.Addr, error) {
	ip = ip.Unmap()

	switch {
	case ip.Is4() && len(mask) == net.IPv4len:
		octets := ip.As4()
		for i := range octets {
			octets[i] |= ^mask[i]
		}
		return netip.AddrFrom4(octets), nil
	case ip.Is6() && len(mask) == net.IPv6len:
		octets := ip.As16()
		for i := range octets {
			octets[i] |= ^mask[i]
		}
		return netip.AddrFrom16(octets).WithZone(ip.Zone()), nil
	default:
		return netip.Addr{}, fmt.Errorf("%w: subnet mask of %d bytes does not match %s", protocol.ErrDiscovery, len(mask), ip)
	}
}
