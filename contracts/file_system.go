package contracts

import (
	"io"
	"os"
	"time"
)

type PathLister interface {
	Listing() ([]FileInfo, error)
}

type FileOpener interface {
	Open(path string) (io.ReadCloser, error)
}

type FileCreator interface {
	Create(path string) (io.WriteCloser, error)
}

type Deleter interface {
	Delete(path string) error
}

type DirectoryCreator interface {
	MkdirAll(path string, mode os.FileMode) error
}

type SymlinkCreator interface {
	CreateSymlink(source, target string) error
}

type Chmod interface {
	Chmod(path string, mode os.FileMode) error
}

type RootPath interface {
	RootPath() string
}

type Environment interface {
	LookupEnv(key string) (value string, set bool)
}

type FileInfo interface {
	Path() string
	Size() int64
	ModTime() time.Time
	Mode() os.FileMode
	Symlink() string
}

func IsExecutable(mode os.FileMode) bool {
	return mode.Perm()&0111 > 0
}
