package protocol

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// DatagramSize is the fixed envelope of a discovery datagram:
// family tag (4 or 6) | address bytes | port u16 big-endian | zero padding.
const DatagramSize = 20

const (
	familyV4 = 4
	familyV6 = 6
)

// EncodeAddr serializes a socket address into a discovery datagram.
// IPv4-mapped IPv6 addresses are sent as plain IPv4.
func EncodeAddr(addr netip.AddrPort) [DatagramSize]byte {
	var buf [DatagramSize]byte
	ip := addr.Addr().Unmap()

	if ip.Is4() {
		buf[0] = familyV4
		a := ip.As4()
		copy(buf[1:5], a[:])
		binary.BigEndian.PutUint16(buf[5:7], addr.Port())
		return buf
	}

	buf[0] = familyV6
	a := ip.As16()
	copy(buf[1:17], a[:])
	binary.BigEndian.PutUint16(buf[17:19], addr.Port())
	return buf
}

// DecodeAddr parses a discovery datagram back into a connectable address
func DecodeAddr(b []byte) (netip.AddrPort, error) {
	if len(b) == 0 {
		return netip.AddrPort{}, fmt.Errorf("%w: empty", ErrMalformedDatagram)
	}

	switch b[0] {
	case familyV4:
		if len(b) < 7 {
			return netip.AddrPort{}, fmt.Errorf("%w: %d bytes for IPv4", ErrMalformedDatagram, len(b))
		}
		ip := netip.AddrFrom4([4]byte(b[1:5]))
		return netip.AddrPortFrom(ip, binary.BigEndian.Uint16(b[5:7])), nil
	case familyV6:
		if len(b) < 19 {
			return netip.AddrPort{}, fmt.Errorf("%w: %d bytes for IPv6", ErrMalformedDatagram, len(b))
		}
		ip := netip.AddrFrom16([16]byte(b[1:17]))
		return netip.AddrPortFrom(ip, binary.BigEndian.Uint16(b[17:19])), nil
	default:
		return netip.AddrPort{}, fmt.Errorf("%w: invalid socket addr version %d", ErrMalformedDatagram, b[0])
	}
}
