package contracts

import (
	"io"
	"os"
	"time"
)

type ArchiveWriter interface {
	io.WriteCloser
	WriteHeader(header ArchiveHeader) error
}

type ArchiveHeader struct {
	Name      string
	Size      int64
	ModTime   time.Time
	Mode      os.FileMode
	LinkName  string // non-empty for symlinks
	Directory bool
}
