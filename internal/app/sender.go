package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"sf/internal/config"
	"sf/internal/connection"
	"sf/internal/discovery"
	"sf/internal/file"
	"sf/internal/metrics"
	"sf/internal/retry"
	"sf/internal/transport"
	"sf/internal/ui"
)

// SenderOptions configures the sender application behavior
type SenderOptions struct {
	Target   string   // receiver IP, or "auto" to discover it
	Paths    []string // files and directories to send
	Excludes []string // glob patterns skipped while expanding Paths
}

// SenderApp implements sender application logic
type SenderApp struct {
	config *config.Config
	files  *file.Service
	ui     *ui.ConsoleUI
	logger *zap.Logger
}

// NewSenderApp creates a new sender application
func NewSenderApp(cfg *config.Config, files *file.Service, ui *ui.ConsoleUI, logger *zap.Logger) *SenderApp {
	return &SenderApp{
		config: cfg,
		files:  files,
		ui:     ui,
		logger: logger,
	}
}

// Run resolves the files, connects to the receiver and streams them
func (s *SenderApp) Run(ctx context.Context, opts *SenderOptions) (err error) {
	start := time.Now()
	defer func() { finish(metrics.RoleSender, start, err) }()

	logger := sessionLogger(s.logger, metrics.RoleSender)
	serveMetrics(ctx, s.config, logger)

	if len(opts.Paths) == 0 {
		return fmt.Errorf("at least one file is required")
	}
	target, err := connection.ParseTarget(opts.Target)
	if err != nil {
		return err
	}

	paths, err := s.files.Expand(opts.Paths, opts.Excludes)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		logger.Warn("no files left to send after expansion, sending an empty transfer")
	}
	logger.Info("preparing transfer", zap.Int("files", len(paths)), zap.Stringer("target", target))

	if target.Auto {
		s.ui.ShowMessage("Looking for a receiver on the local network...")
	}
	dialer := &connection.Dialer{
		Port: s.config.Transfer.Port,
		Discoverer: &discovery.Discoverer{
			SignalingPort: s.config.Discovery.SignalingPort,
			Timeout:       s.config.Discovery.Timeout,
			Logger:        logger,
		},
		Retry:  retry.NewPolicy(s.config.Dial.Attempts, s.config.Dial.InitialWait),
		Logger: logger,
	}
	conn, err := dialer.Dial(ctx, target)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := closeOnCancel(ctx, conn)
	defer stop()

	s.ui.ShowMessage(fmt.Sprintf("Connected to %s", conn.RemoteAddr()))

	sender := &transport.Sender{
		Files:     s.files,
		ChunkSize: s.config.Transfer.ChunkSize,
		Progress:  s.ui,
		Logger:    logger,
	}
	summary, err := sender.Send(ctx, conn, paths)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("transfer failed: %w", err)
	}

	// signal end of stream before the full close
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}

	logger.Info("transfer complete",
		zap.Int("files", summary.Files),
		zap.Uint64("bytes", summary.Bytes),
		zap.Duration("duration", summary.Duration))
	s.ui.ShowSummary(summary)
	return nil
}
