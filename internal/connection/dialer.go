package connection

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"sf/internal/discovery"
	"sf/internal/logging"
	"sf/internal/retry"
)

// Dialer opens the sender side of the stream
type Dialer struct {
	Port       uint16 // receiver port for direct targets
	Discoverer *discovery.Discoverer
	Retry      retry.Policy // direct targets only
	Logger     *zap.Logger
}

// Dial connects to target. A direct target is retried per d.Retry while the
// receiver may still be starting; a discovered one was listening when it
// announced itself and gets a single attempt.
func (d *Dialer) Dial(ctx context.Context, target Target) (net.Conn, error) {
	logger := logging.Or(d.Logger)

	if target.Auto {
		if d.Discoverer == nil {
			return nil, fmt.Errorf("discovery is not configured")
		}
		addr, err := d.Discoverer.Discover(ctx)
		if err != nil {
			return nil, err
		}
		return d.dial(ctx, addr, logger)
	}

	addr := netip.AddrPortFrom(target.IP, d.Port)
	policy := d.Retry
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("connection attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return retry.Do(ctx, policy, func() (net.Conn, error) {
		conn, err := d.dial(ctx, addr, logger)
		if err != nil && ctx.Err() == nil {
			return nil, retry.Retryable(err)
		}
		return conn, err
	})
}

func (d *Dialer) dial(ctx context.Context, addr netip.AddrPort, logger *zap.Logger) (net.Conn, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	logger.Info("connected to receiver", zap.Stringer("remote", conn.RemoteAddr()))
	return conn, nil
}
