package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

// Manifest wire format, little-endian:
//
//	"sf-" | version u8 | total length u32 (header included)
//	per file: length u64 | name length u32 | name bytes
//
// Raw file bodies follow the manifest on the stream, in manifest order,
// back-to-back.
const (
	Magic      = "sf-"
	Version    = 3
	HeaderSize = 8

	recordHeaderSize = 8 + 4
	pathSeparators   = `/\`
)

// FileEntry describes one file announced in the manifest
type FileEntry struct {
	Path string // forward-slash separated, UTF-8
	Size uint64
}

// Manifest is a decoded file list. Entries are in stream order.
type Manifest struct {
	Entries []FileEntry

	// PrefixLen is the byte length of the common directory prefix shared by
	// every entry path, always ending just after a separator (or 0).
	PrefixLen int
}

// TotalSize returns the sum of all entry sizes
func (m *Manifest) TotalSize() uint64 {
	var total uint64
	for _, e := range m.Entries {
		total += e.Size
	}
	return total
}

// StripLen returns the number of leading path bytes to drop from each entry
func (m *Manifest) StripLen(strip bool) int {
	if !strip {
		return 0
	}
	return m.PrefixLen
}

// NormalizePath maps backslashes to forward slashes. Windows accepts forward
// slashes as separators, while other systems would keep backslashes in names.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// EncodeManifest serializes the file list header. The returned buffer does
// not include any file data.
func EncodeManifest(files []FileEntry) ([]byte, error) {
	size := HeaderSize
	for _, f := range files {
		size += recordHeaderSize + len(f.Path)
	}
	if uint64(size) > math.MaxUint32 {
		return nil, ErrManifestTooLarge
	}

	buf := make([]byte, HeaderSize, size)
	copy(buf, Magic)
	buf[3] = Version

	for _, f := range files {
		if !utf8.ValidString(f.Path) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPathEncoding, f.Path)
		}
		name := NormalizePath(f.Path)
		buf = binary.LittleEndian.AppendUint64(buf, f.Size)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(name)))
		buf = append(buf, name...)
	}

	binary.LittleEndian.PutUint32(buf[4:HeaderSize], uint32(len(buf)))
	return buf, nil
}

// DecodeManifest reads exactly one manifest from r. The header is verified
// before any record is parsed.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	var header [HeaderSize]byte

	if _, err := io.ReadFull(r, header[:4]); err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", shortRead(err))
	}
	if string(header[:3]) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, header[:3])
	}
	if header[3] != Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, header[3], Version)
	}

	if _, err := io.ReadFull(r, header[4:]); err != nil {
		return nil, fmt.Errorf("failed to read manifest length: %w", shortRead(err))
	}
	total := binary.LittleEndian.Uint32(header[4:])
	if total < HeaderSize {
		return nil, fmt.Errorf("%w: declared length %d is shorter than the header", ErrMalformedManifest, total)
	}

	// Grows with the data actually received rather than trusting the
	// declared length for one big allocation.
	bodyLen := int64(total) - HeaderSize
	body, err := io.ReadAll(io.LimitReader(r, bodyLen))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest body: %w", err)
	}
	if int64(len(body)) != bodyLen {
		return nil, fmt.Errorf("failed to read manifest body: %w", ErrTruncatedTransfer)
	}

	return parseRecords(body)
}

func parseRecords(body []byte) (*Manifest, error) {
	m := &Manifest{}
	names := make([][]byte, 0)

	for i := 0; i < len(body); {
		if len(body)-i < recordHeaderSize {
			return nil, fmt.Errorf("%w: record %d header runs past end", ErrMalformedManifest, len(m.Entries))
		}
		size := binary.LittleEndian.Uint64(body[i:])
		nameLen := binary.LittleEndian.Uint32(body[i+8:])
		i += recordHeaderSize

		if uint64(len(body)-i) < uint64(nameLen) {
			return nil, fmt.Errorf("%w: record %d name runs past end", ErrMalformedManifest, len(m.Entries))
		}
		name := body[i : i+int(nameLen)]
		i += int(nameLen)

		if !utf8.Valid(name) {
			return nil, fmt.Errorf("%w: record %d", ErrInvalidPathEncoding, len(m.Entries))
		}

		names = append(names, name)
		m.Entries = append(m.Entries, FileEntry{Path: string(name), Size: size})
	}

	m.PrefixLen = commonPrefixLen(names)
	return m, nil
}

// CommonPrefixLen returns the length of the longest shared leading run of
// paths, cut back to just after its last separator. It is 0 when the paths
// share no complete directory component.
func CommonPrefixLen(paths []string) int {
	names := make([][]byte, len(paths))
	for i, p := range paths {
		names[i] = []byte(p)
	}
	return commonPrefixLen(names)
}

func commonPrefixLen(names [][]byte) int {
	if len(names) == 0 {
		return 0
	}

	prefix := names[0]
	for _, name := range names[1:] {
		n := 0
		for n < len(prefix) && n < len(name) && prefix[n] == name[n] {
			n++
		}
		prefix = prefix[:n]
	}

	sep := bytes.LastIndexAny(prefix, pathSeparators)
	if sep < 0 {
		return 0
	}
	return sep + 1
}

// shortRead reports an early end of stream as a truncated transfer
func shortRead(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrTruncatedTransfer, err)
	}
	return err
}
