// Package app wires configuration, connection setup and a transfer session
// into the sender and receiver commands.
package app

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sf/internal/config"
	"sf/internal/logging"
	"sf/internal/metrics"
)

// sessionLogger tags every entry of one run so interleaved runs can be told
// apart in shared log output.
func sessionLogger(logger *zap.Logger, role string) *zap.Logger {
	return logging.Or(logger).With(
		zap.String("session", uuid.NewString()),
		zap.String("role", role))
}

// serveMetrics starts the metrics endpoint for the lifetime of ctx when an
// address is configured. A failure to serve only loses metrics.
func serveMetrics(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	if cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
			logger.Warn("metrics endpoint stopped", zap.Error(err))
		}
	}()
}

// closeOnCancel closes conn when ctx is done so blocked reads and writes
// return. The returned func must be called once the session ends.
func closeOnCancel(ctx context.Context, conn net.Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
}

// finish records the outcome of a session for role
func finish(role string, start time.Time, err error) {
	if err != nil {
		metrics.RecordError(role)
		return
	}
	metrics.ObserveTransfer(role, time.Since(start))
}
