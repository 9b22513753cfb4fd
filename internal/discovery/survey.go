package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"sf/internal/logging"
	"sf/internal/metrics"
	"sf/internal/netif"
	"sf/internal/protocol"
)

// Surveyor broadcasts a listener's address until a sender connects
type Surveyor struct {
	SignalingPort uint16        // destination port of the broadcast
	BroadcastPort uint16        // local port the broadcast is sent from
	Delay         time.Duration // wait between broadcasts
	TTL           int
	Logger        *zap.Logger
}

// Survey alternates between broadcasting ln's address to the subnet of local
// and waiting up to Delay for a connection on ln. It returns the first
// accepted connection. Any failure other than an accept timeout aborts the
// survey with an error wrapping protocol.ErrDiscovery, so that the caller can
// fall back to a plain blocking accept. ln's deadline is cleared on return.
func (s *Surveyor) Survey(ctx context.Context, ln *net.TCPListener, local netif.LocalAddr) (net.Conn, error) {
	logger := logging.Or(s.Logger)

	listenerAddr := ln.Addr().(*net.TCPAddr).AddrPort()
	payload := protocol.EncodeAddr(listenerAddr)

	bcast, err := BroadcastAddr(local.IP, local.Mask)
	if err != nil {
		return nil, err
	}

	conn, err := s.listen(ctx, bcast)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to bind broadcast socket: %w", protocol.ErrDiscovery, err)
	}
	defer conn.Close()
	s.limitHops(conn, bcast, logger)

	dst := net.UDPAddrFromAddrPort(netip.AddrPortFrom(bcast, s.SignalingPort))

	defer ln.SetDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = ln.SetDeadline(time.Now())
	})
	defer stop()

	logger.Info("surveying for clients",
		zap.Stringer("listener", listenerAddr),
		zap.Stringer("broadcast", dst))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := conn.WriteTo(payload[:], dst); err != nil {
			return nil, fmt.Errorf("%w: failed to broadcast address: %w", protocol.ErrDiscovery, err)
		}
		metrics.RecordBroadcast()
		logger.Debug("broadcast sent", zap.Stringer("to", dst))

		if err := ln.SetDeadline(time.Now().Add(s.Delay)); err != nil {
			return nil, fmt.Errorf("%w: %w", protocol.ErrDiscovery, err)
		}
		c, err := ln.Accept()
		if err == nil {
			return c, nil
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		return nil, fmt.Errorf("%w: accept failed: %w", protocol.ErrDiscovery, err)
	}
}

func (s *Surveyor) listen(ctx context.Context, bcast netip.Addr) (net.PacketConn, error) {
	network, local := "udp4", netip.AddrPortFrom(netip.IPv4Unspecified(), s.BroadcastPort)
	if bcast.Is6() {
		network, local = "udp6", netip.AddrPortFrom(netip.IPv6Unspecified(), s.BroadcastPort)
	}
	lc := listenConfig()
	return lc.ListenPacket(ctx, network, local.String())
}

// limitHops keeps the datagram on the local link. Failure only loses that
// restriction, so it is logged rather than aborting the survey.
func (s *Surveyor) limitHops(conn net.PacketConn, bcast netip.Addr, logger *zap.Logger) {
	if s.TTL <= 0 {
		return
	}
	var err error
	if bcast.Is4() {
		err = ipv4.NewPacketConn(conn).SetTTL(s.TTL)
	} else {
		err = ipv6.NewPacketConn(conn).SetHopLimit(s.TTL)
	}
	if err != nil {
		logger.Debug("failed to limit broadcast hops", zap.Error(err))
	}
}
