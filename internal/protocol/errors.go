package protocol

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by a transfer. Callers match them with errors.Is.
var (
	ErrProtocolMismatch    = errors.New("protocol mismatch")
	ErrBadMagic            = fmt.Errorf("%w: bad header", ErrProtocolMismatch)
	ErrUnsupportedVersion  = fmt.Errorf("%w: incompatible version", ErrProtocolMismatch)
	ErrMalformedManifest   = errors.New("malformed manifest")
	ErrTruncatedTransfer   = errors.New("connection ended without receiving full file")
	ErrAddressResolution   = errors.New("address resolution failed")
	ErrDiscovery           = errors.New("discovery failed")
	ErrMalformedDatagram   = fmt.Errorf("%w: malformed datagram", ErrDiscovery)
	ErrFilesystem          = errors.New("filesystem error")
	ErrManifestTooLarge    = fmt.Errorf("%w: exceeds 32-bit length", ErrMalformedManifest)
	ErrInvalidPathEncoding = fmt.Errorf("%w: path is not valid UTF-8", ErrMalformedManifest)
)

// FilesystemError wraps an OS error so that it matches both ErrFilesystem and
// the underlying cause.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() []error {
	return []error{ErrFilesystem, e.Err}
}

// FSError builds a FilesystemError, returning nil for a nil err.
func FSError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &FilesystemError{Op: op, Path: path, Err: err}
}
