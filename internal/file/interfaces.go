package file

import (
	"io"
)

// FileReader represents a file opened for reading
type FileReader interface {
	io.Reader
	io.Closer

	// Size returns the file size in bytes
	Size() int64

	// Name returns the path the file was opened with
	Name() string
}

// FileWriter represents a file opened for writing
type FileWriter interface {
	io.Writer
	io.Closer

	// Path returns the file path
	Path() string
}
