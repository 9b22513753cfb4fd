package app

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"sf/internal/config"
	"sf/internal/connection"
	"sf/internal/discovery"
	"sf/internal/file"
	"sf/internal/metrics"
	"sf/internal/netif"
	"sf/internal/protocol"
	"sf/internal/transport"
	"sf/internal/ui"
)

// ReceiverOptions configures the receiver application behavior
type ReceiverOptions struct {
	Dir         string // destination directory, "." when empty
	Bind        string // optional local IP to listen on
	StripPrefix bool   // drop the directory prefix shared by all files
}

// ReceiverApp implements receiver application logic
type ReceiverApp struct {
	config *config.Config
	ui     *ui.ConsoleUI
	logger *zap.Logger

	// Lister enumerates local addresses; the host's interfaces when nil
	Lister netif.Lister
}

// NewReceiverApp creates a new receiver application
func NewReceiverApp(cfg *config.Config, ui *ui.ConsoleUI, logger *zap.Logger) *ReceiverApp {
	return &ReceiverApp{
		config: cfg,
		ui:     ui,
		logger: logger,
	}
}

// Run waits for one sender and writes its files below opts.Dir
func (r *ReceiverApp) Run(ctx context.Context, opts *ReceiverOptions) (err error) {
	start := time.Now()
	defer func() { finish(metrics.RoleReceiver, start, err) }()

	logger := sessionLogger(r.logger, metrics.RoleReceiver)
	serveMetrics(ctx, r.config, logger)

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	files, err := file.NewRootedService(dir)
	if err != nil {
		return err
	}

	var bind netip.Addr
	if opts.Bind != "" {
		if bind, err = netip.ParseAddr(opts.Bind); err != nil {
			return fmt.Errorf("%w: invalid bind address %q", protocol.ErrAddressResolution, opts.Bind)
		}
	}

	acceptor := &connection.Acceptor{
		Port:   r.config.Transfer.Port,
		Bind:   bind,
		Lister: r.Lister,
		Surveyor: &discovery.Surveyor{
			SignalingPort: r.config.Discovery.SignalingPort,
			BroadcastPort: r.config.Discovery.BroadcastPort,
			Delay:         r.config.Discovery.SignalDelay,
			TTL:           r.config.Discovery.TTL,
			Logger:        logger,
		},
		Ready: func(addr netip.AddrPort) {
			r.ui.ShowMessage(fmt.Sprintf("Waiting for a sender on %s", addr))
		},
		Logger: logger,
	}
	conn, err := acceptor.Accept(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := closeOnCancel(ctx, conn)
	defer stop()

	r.ui.ShowMessage(fmt.Sprintf("Connected to %s", conn.RemoteAddr()))

	receiver := &transport.Receiver{
		Files:       files,
		StripPrefix: opts.StripPrefix,
		ChunkSize:   r.config.Transfer.ChunkSize,
		Progress:    r.ui,
		Logger:      logger,
	}
	summary, err := receiver.Receive(ctx, conn)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("transfer failed: %w", err)
	}

	logger.Info("transfer complete",
		zap.Int("files", summary.Files),
		zap.Uint64("bytes", summary.Bytes),
		zap.Duration("duration", summary.Duration))
	r.ui.ShowSummary(summary)
	return nil
}
