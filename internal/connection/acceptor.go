package connection

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"sf/internal/discovery"
	"sf/internal/logging"
	"sf/internal/netif"
	"sf/internal/protocol"
)

// Acceptor opens the receiver side of the stream
type Acceptor struct {
	Port     uint16
	Bind     netip.Addr // optional, must be a local interface address
	Lister   netif.Lister
	Surveyor *discovery.Surveyor // nil skips announcing the listener

	// Ready, when set, is called with the bound address before waiting
	Ready  func(netip.AddrPort)
	Logger *zap.Logger
}

// Accept listens on the selected local address and returns the first
// incoming connection. While waiting it announces the listener through the
// Surveyor; if announcing fails the receiver keeps waiting for a sender that
// was given the address directly. The listener is closed on return, so only
// one sender is served.
func (a *Acceptor) Accept(ctx context.Context) (net.Conn, error) {
	logger := logging.Or(a.Logger)

	lister := a.Lister
	if lister == nil {
		lister = netif.SystemLister{}
	}
	addrs, err := lister.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrAddressResolution, err)
	}
	local, err := netif.Select(addrs, a.Bind)
	if err != nil {
		return nil, err
	}

	if local.IP.Is6() && local.IP.IsLinkLocalUnicast() && local.Interface != "" {
		local.IP = local.IP.WithZone(local.Interface)
	}
	ln, err := net.ListenTCP("tcp", net.TCPAddrFromAddrPort(netip.AddrPortFrom(local.IP, a.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", local, err)
	}
	defer ln.Close()

	bound := ln.Addr().(*net.TCPAddr).AddrPort()
	logger.Info("waiting for sender", zap.Stringer("addr", bound), zap.String("interface", local.Interface))
	if a.Ready != nil {
		a.Ready(bound)
	}

	if a.Surveyor != nil {
		conn, err := a.Surveyor.Survey(ctx, ln, local)
		if err == nil {
			logger.Info("sender connected", zap.Stringer("remote", conn.RemoteAddr()))
			return conn, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("cannot broadcast ip to potential clients, direct ip must be used", zap.Error(err))
	}

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to accept connection: %w", err)
	}
	logger.Info("sender connected", zap.Stringer("remote", conn.RemoteAddr()))
	return conn, nil
}
