// Package connection establishes the single TCP stream of a transfer: the
// receiver listens and announces itself, the sender dials a known address or
// the first receiver it hears.
package connection

import (
	"fmt"
	"net/netip"
	"strings"

	"sf/internal/protocol"
)

// AutoTarget asks the sender to discover the receiver on the local network
const AutoTarget = "auto"

// Target is the sender's destination
type Target struct {
	Auto bool
	IP   netip.Addr
}

// ParseTarget accepts "auto" (any case) or a literal IPv4/IPv6 address
func ParseTarget(s string) (Target, error) {
	if strings.EqualFold(s, AutoTarget) {
		return Target{Auto: true}, nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %q is neither an IP address nor %q", protocol.ErrAddressResolution, s, AutoTarget)
	}
	return Target{IP: ip.Unmap()}, nil
}

func (t Target) String() string {
	if t.Auto {
		return AutoTarget
	}
	return t.IP.String()
}
