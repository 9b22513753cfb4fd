package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"sf/internal/file"
	"sf/internal/logging"
	"sf/internal/metrics"
	"sf/internal/protocol"
)

// Receiver writes an incoming transfer to its file service
type Receiver struct {
	Files       *file.Service
	StripPrefix bool // drop the directory prefix shared by all entries
	ChunkSize   int
	Progress    ProgressReporter
	Logger      *zap.Logger
}

// Receive reads a manifest from r and then each announced file body. Missing
// parent directories are created once each. A stream that ends before every
// declared byte has arrived fails with protocol.ErrTruncatedTransfer and the
// partial file is removed.
func (rc *Receiver) Receive(ctx context.Context, r io.Reader) (*Summary, error) {
	logger := logging.Or(rc.Logger)
	progress := rc.progress()
	start := time.Now()

	manifest, err := protocol.DecodeManifest(r)
	if err != nil {
		return nil, err
	}
	strip := manifest.StripLen(rc.StripPrefix)
	logger.Debug("manifest received",
		zap.Int("files", len(manifest.Entries)),
		zap.Uint64("total", manifest.TotalSize()),
		zap.Int("strip", strip))

	created := make(map[string]struct{})
	buf := make([]byte, chunkSize(rc.ChunkSize))
	summary := &Summary{}
	for i, entry := range manifest.Entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		dest, err := destination(entry.Path, strip)
		if err != nil {
			return summary, err
		}

		if dir := path.Dir(dest); dir != "." {
			if _, ok := created[dir]; !ok {
				if err := rc.Files.EnsureDir(filepath.FromSlash(dir)); err != nil {
					return summary, err
				}
				created[dir] = struct{}{}
			}
		}

		logger.Info(fmt.Sprintf("[%d/%d] receiving file", i+1, len(manifest.Entries)),
			zap.String("path", dest),
			zap.Uint64("size", entry.Size))
		progress.StartFile(i+1, len(manifest.Entries), dest, entry.Size)

		n, err := rc.receiveFile(ctx, r, filepath.FromSlash(dest), entry.Size, buf, progress)
		summary.Bytes += n
		if err != nil {
			return summary, err
		}
		progress.FinishFile()
		metrics.RecordFile(metrics.DirectionReceived)
		summary.Files++
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func (rc *Receiver) receiveFile(ctx context.Context, r io.Reader, name string, size uint64, buf []byte, progress ProgressReporter) (received uint64, err error) {
	w, err := rc.Files.CreateWriter(name)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = protocol.FSError("close", name, cerr)
		}
		if err != nil {
			_ = rc.Files.Remove(name)
		}
	}()

	for received < size {
		want := uint64(len(buf))
		if rest := size - received; rest < want {
			want = rest
		}
		n, rerr := r.Read(buf[:want])
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return received, protocol.FSError("write", name, err)
			}
			received += uint64(n)
			metrics.RecordBytes(metrics.DirectionReceived, n)
			progress.Advance(n)
		}
		if rerr != nil {
			if received == size {
				break
			}
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return received, fmt.Errorf("%w: %s: got %d of %d bytes", protocol.ErrTruncatedTransfer, name, received, size)
			}
			return received, fmt.Errorf("failed to receive %s: %w", name, rerr)
		}
		if err := ctx.Err(); err != nil {
			return received, err
		}
	}
	return received, nil
}

// destination strips the shared prefix from p and rejects names that would
// leave the destination tree or are empty after stripping.
func destination(p string, strip int) (string, error) {
	rel := p[strip:]
	if rel == "" {
		return "", fmt.Errorf("%w: %q is empty after stripping its prefix", protocol.ErrMalformedManifest, p)
	}
	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q escapes the destination", protocol.ErrMalformedManifest, p)
	}
	if clean == "." || strings.HasSuffix(rel, "/") {
		return "", fmt.Errorf("%w: %q does not name a file", protocol.ErrMalformedManifest, p)
	}
	return clean, nil
}

func (rc *Receiver) progress() ProgressReporter {
	if rc.Progress == nil {
		return nopReporter{}
	}
	return rc.Progress
}
