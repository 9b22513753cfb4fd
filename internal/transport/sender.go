// Package transport runs one transfer session over an established stream:
// the manifest followed by the raw bytes of every file.
package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"sf/internal/config"
	"sf/internal/file"
	"sf/internal/logging"
	"sf/internal/metrics"
	"sf/internal/protocol"
)

// Sender streams local files to a connected receiver
type Sender struct {
	Files     *file.Service
	ChunkSize int
	Progress  ProgressReporter
	Logger    *zap.Logger
}

// Send writes the manifest for paths to w, then each file's content in the
// same order. Every file is sized before anything is written, so a missing
// file aborts the transfer before the receiver sees a manifest.
func (s *Sender) Send(ctx context.Context, w io.Writer, paths []string) (*Summary, error) {
	logger := logging.Or(s.Logger)
	progress := s.progress()
	start := time.Now()

	entries := make([]protocol.FileEntry, 0, len(paths))
	for _, p := range paths {
		size, err := s.Files.Size(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, protocol.FileEntry{Path: protocol.NormalizePath(p), Size: uint64(size)})
	}

	header, err := protocol.EncodeManifest(entries)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to send manifest: %w", err)
	}
	logger.Debug("manifest sent", zap.Int("files", len(entries)), zap.Int("bytes", len(header)))

	buf := make([]byte, chunkSize(s.ChunkSize))
	summary := &Summary{}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		logger.Info(fmt.Sprintf("[%d/%d] sending file", i+1, len(entries)),
			zap.String("path", entry.Path),
			zap.Uint64("size", entry.Size))
		progress.StartFile(i+1, len(entries), entry.Path, entry.Size)

		n, err := s.sendFile(ctx, w, paths[i], entry.Size, buf, progress)
		summary.Bytes += n
		if err != nil {
			return summary, err
		}
		progress.FinishFile()
		metrics.RecordFile(metrics.DirectionSent)
		summary.Files++
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// sendFile copies exactly size bytes of name to w. A file that shrank since
// it was sized would desynchronize the stream and is reported as an error.
func (s *Sender) sendFile(ctx context.Context, w io.Writer, name string, size uint64, buf []byte, progress ProgressReporter) (uint64, error) {
	r, err := s.Files.OpenReader(name)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	src := io.LimitReader(r, int64(size))
	var sent uint64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return sent, fmt.Errorf("failed to send %s: %w", name, err)
			}
			sent += uint64(n)
			metrics.RecordBytes(metrics.DirectionSent, n)
			progress.Advance(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return sent, protocol.FSError("read", name, rerr)
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}
	}

	if sent != size {
		return sent, protocol.FSError("read", name, fmt.Errorf("file changed during transfer: sent %d of %d bytes", sent, size))
	}
	return sent, nil
}

func (s *Sender) progress() ProgressReporter {
	if s.Progress == nil {
		return nopReporter{}
	}
	return s.Progress
}

func chunkSize(n int) int {
	if n <= 0 {
		return config.DefaultChunkSize
	}
	return n
}
