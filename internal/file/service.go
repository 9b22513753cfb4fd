package file

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"sf/internal/protocol"
)

// Service handles file operations for both transfer roles. All access goes
// through an afero.Fs so the receiver can be rooted in a destination
// directory and tests can run in memory.
type Service struct {
	fs afero.Fs
}

// NewService creates a new file service on fs
func NewService(fs afero.Fs) *Service {
	return &Service{fs: fs}
}

// NewOsService creates a file service on the real filesystem
func NewOsService() *Service {
	return NewService(afero.NewOsFs())
}

// NewRootedService creates a file service on the real filesystem that keeps
// every path, absolute ones included, below dir.
func NewRootedService(dir string) (*Service, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, protocol.FSError("resolve", dir, err)
	}
	return NewService(afero.NewBasePathFs(afero.NewOsFs(), abs)), nil
}

// Remove deletes a single file
func (f *Service) Remove(name string) error {
	if err := f.fs.Remove(name); err != nil {
		return protocol.FSError("remove", name, err)
	}
	return nil
}

// Expand resolves paths into the regular files below them, in lexical walk
// order per argument. Files or directories matching any exclude pattern,
// by slash path or by base name, are skipped.
func (f *Service) Expand(paths []string, excludes []string) ([]string, error) {
	patterns := make([]glob.Glob, 0, len(excludes))
	for _, e := range excludes {
		g, err := glob.Compile(e, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", e, err)
		}
		patterns = append(patterns, g)
	}

	excluded := func(p string) bool {
		slash := filepath.ToSlash(p)
		base := path.Base(slash)
		for _, g := range patterns {
			if g.Match(slash) || g.Match(base) {
				return true
			}
		}
		return false
	}

	var result []string
	for _, root := range paths {
		err := afero.Walk(f.fs, root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return protocol.FSError("walk", p, err)
			}
			if excluded(p) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.Mode().IsRegular() {
				result = append(result, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// OpenReader opens a file for reading and returns file info
func (f *Service) OpenReader(filePath string) (FileReader, error) {
	file, err := f.fs.Open(filePath)
	if err != nil {
		return nil, protocol.FSError("open", filePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, protocol.FSError("stat", filePath, err)
	}

	return &fileReader{
		file: file,
		size: stat.Size(),
		name: filePath,
	}, nil
}

// Size returns the size of filePath without opening it
func (f *Service) Size(filePath string) (int64, error) {
	stat, err := f.fs.Stat(filePath)
	if err != nil {
		return 0, protocol.FSError("stat", filePath, err)
	}
	if !stat.Mode().IsRegular() {
		return 0, protocol.FSError("read", filePath, fmt.Errorf("not a regular file"))
	}
	return stat.Size(), nil
}

// EnsureDir creates dir and any missing parents
func (f *Service) EnsureDir(dir string) error {
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return protocol.FSError("create directory", dir, err)
	}
	return nil
}

// CreateWriter creates or truncates dstPath. Its parent must exist.
func (f *Service) CreateWriter(dstPath string) (FileWriter, error) {
	file, err := f.fs.Create(dstPath)
	if err != nil {
		return nil, protocol.FSError("create", dstPath, err)
	}

	return &fileWriter{
		file: file,
		path: dstPath,
	}, nil
}

// fileReader implements FileReader interface
type fileReader struct {
	file afero.File
	size int64
	name string
}

func (f *fileReader) Read(p []byte) (n int, err error) {
	return f.file.Read(p)
}

func (f *fileReader) Close() error {
	return f.file.Close()
}

func (f *fileReader) Size() int64 {
	return f.size
}

func (f *fileReader) Name() string {
	return f.name
}

// fileWriter implements FileWriter interface
type fileWriter struct {
	file afero.File
	path string
}

func (f *fileWriter) Write(p []byte) (n int, err error) {
	return f.file.Write(p)
}

func (f *fileWriter) Close() error {
	return f.file.Close()
}

func (f *fileWriter) Path() string {
	return f.path
}
