package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sf/internal/logging"
	"sf/internal/protocol"
)

// Discoverer waits for a receiver's broadcast
type Discoverer struct {
	SignalingPort uint16
	Timeout       time.Duration // 0 waits until ctx is done
	Logger        *zap.Logger
}

// Discover binds the signaling port and returns the address carried by the
// first well-formed discovery datagram. Stray malformed datagrams are
// skipped. When Timeout elapses first the error wraps protocol.ErrDiscovery;
// the sender has no fallback, so this is fatal to it.
func (d *Discoverer) Discover(ctx context.Context) (netip.AddrPort, error) {
	logger := logging.Or(d.Logger)

	lc := listenConfig()
	conn, err := lc.ListenPacket(ctx, "udp", ":"+strconv.Itoa(int(d.SignalingPort)))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: failed to bind signaling port %d: %w", protocol.ErrDiscovery, d.SignalingPort, err)
	}
	defer conn.Close()

	if d.Timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(d.Timeout)); err != nil {
			return netip.AddrPort{}, fmt.Errorf("%w: %w", protocol.ErrDiscovery, err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	logger.Info("waiting for receiver broadcast", zap.Uint16("port", d.SignalingPort))

	// room for one oversized datagram so truncation does not hide a bad one
	buf := make([]byte, 2*protocol.DatagramSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return netip.AddrPort{}, ctxErr
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return netip.AddrPort{}, fmt.Errorf("%w: no receiver announced itself within %s", protocol.ErrDiscovery, d.Timeout)
			}
			return netip.AddrPort{}, fmt.Errorf("%w: %w", protocol.ErrDiscovery, err)
		}

		addr, err := protocol.DecodeAddr(buf[:n])
		if err != nil {
			logger.Debug("ignoring datagram", zap.Stringer("from", from), zap.Error(err))
			continue
		}

		// a link-local receiver is only reachable through the interface the
		// datagram arrived on
		if src, ok := from.(*net.UDPAddr); ok && addr.Addr().Is6() && addr.Addr().IsLinkLocalUnicast() && src.Zone != "" {
			addr = netip.AddrPortFrom(addr.Addr().WithZone(src.Zone), addr.Port())
		}

		logger.Info("discovered receiver", zap.Stringer("addr", addr), zap.Stringer("from", from))
		return addr, nil
	}
}
