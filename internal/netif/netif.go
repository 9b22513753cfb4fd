// Package netif lists the local addresses a receiver can bind and broadcast
// from. Platform differences stay behind anet, which also works on Android
// where net.Interfaces is restricted.
package netif

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/wlynxg/anet"

	"sf/internal/protocol"
)

// LocalAddr is a usable interface address with its subnet mask
type LocalAddr struct {
	Interface string
	IP        netip.Addr
	Mask      net.IPMask
}

func (a LocalAddr) String() string {
	ones, _ := a.Mask.Size()
	return fmt.Sprintf("%s/%d (%s)", a.IP, ones, a.Interface)
}

// Lister enumerates local addresses
type Lister interface {
	List() ([]LocalAddr, error)
}

// SystemLister reads the host's interfaces
type SystemLister struct{}

// List returns the addresses of every up, non-loopback interface
func (SystemLister) List() ([]LocalAddr, error) {
	ifaces, err := anet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var result []LocalAddr
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := anet.InterfaceAddrsByInterface(&iface)
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses of %s: %w", iface.Name, err)
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipNet.IP)
			if !ok {
				continue
			}
			ip = ip.Unmap()
			if ip.IsLoopback() {
				continue
			}
			mask := ipNet.Mask
			if ip.Is4() && len(mask) == net.IPv6len {
				mask = mask[12:]
			}
			result = append(result, LocalAddr{Interface: iface.Name, IP: ip, Mask: mask})
		}
	}
	return result, nil
}

// Select picks the address to bind. A valid want must be one of addrs;
// otherwise the first IPv4 address is preferred, then the first address.
func Select(addrs []LocalAddr, want netip.Addr) (LocalAddr, error) {
	if len(addrs) == 0 {
		return LocalAddr{}, fmt.Errorf("%w: no usable local interface", protocol.ErrAddressResolution)
	}

	if want.IsValid() {
		for _, a := range addrs {
			if a.IP == want.Unmap() {
				return a, nil
			}
		}
		return LocalAddr{}, fmt.Errorf("%w: %s is not a local interface address", protocol.ErrAddressResolution, want)
	}

	for _, a := range addrs {
		if a.IP.Is4() {
			return a, nil
		}
	}
	return addrs[0], nil
}
