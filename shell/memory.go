package shell

import (
	"bytes"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/steamlauncher/bootstrap/contracts"
)

// InMemoryFileSystem backs the core logic in tests: files, directories and
// symlinks with controllable modification times, no disk involved.
type InMemoryFileSystem struct {
	fileSystem map[string]*memoryFile
	Root       string
}

func NewInMemoryFileSystem() *InMemoryFileSystem {
	return &InMemoryFileSystem{fileSystem: make(map[string]*memoryFile)}
}

func (this *InMemoryFileSystem) RootPath() string {
	return this.Root
}

func (this *InMemoryFileSystem) Listing() (files []contracts.FileInfo, err error) {
	for _, file := range this.fileSystem {
		if this.Root != "" && !strings.HasPrefix(file.path, this.Root+"/") {
			continue
		}
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path() < files[j].Path() })
	return files, nil
}

func (this *InMemoryFileSystem) Stat(path string) (contracts.FileInfo, error) {
	target, found := this.fileSystem[path]
	if !found {
		return nil, os.ErrNotExist
	}
	return target, nil
}

func (this *InMemoryFileSystem) Open(path string) (io.ReadCloser, error) {
	target, found := this.fileSystem[path]
	if !found {
		return nil, os.ErrNotExist
	}
	if target.symlink != "" {
		target, found = this.fileSystem[target.symlink]
		if !found {
			return nil, os.ErrNotExist
		}
	}
	return io.NopCloser(bytes.NewReader(target.contents)), nil
}

func (this *InMemoryFileSystem) Create(path string) (io.WriteCloser, error) {
	_ = this.WriteFile(path, nil)
	return this.fileSystem[path], nil
}

func (this *InMemoryFileSystem) ReadFile(path string) ([]byte, error) {
	target, found := this.fileSystem[path]
	if !found {
		return nil, os.ErrNotExist
	}
	if target.symlink != "" {
		target, found = this.fileSystem[target.symlink]
		if !found {
			return nil, os.ErrNotExist
		}
	}
	return target.contents, nil
}

func (this *InMemoryFileSystem) WriteFile(path string, content []byte) error {
	this.fileSystem[path] = &memoryFile{
		path:     path,
		contents: content,
		mode:     0644,
		mod:      InMemoryModTime,
	}
	return nil
}

func (this *InMemoryFileSystem) MkdirAll(path string, mode os.FileMode) error {
	const changeable = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky
	this.fileSystem[path] = &memoryFile{
		path: path,
		mode: (mode & changeable) | os.ModeDir,
		mod:  InMemoryModTime,
	}
	return nil
}

func (this *InMemoryFileSystem) CreateSymlink(source, target string) error {
	this.fileSystem[target] = &memoryFile{
		path:    target,
		mode:    0777 | os.ModeSymlink,
		mod:     InMemoryModTime,
		symlink: source,
	}
	return nil
}

func (this *InMemoryFileSystem) Link(source, target string) error {
	original, found := this.fileSystem[source]
	if !found {
		return os.ErrNotExist
	}
	duplicate := *original
	duplicate.path = target
	this.fileSystem[target] = &duplicate
	return nil
}

func (this *InMemoryFileSystem) Chmod(path string, mode os.FileMode) error {
	target, found := this.fileSystem[path]
	if !found {
		return os.ErrNotExist
	}
	const changeable = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky
	target.mode = (target.mode &^ changeable) | (mode & changeable)
	return nil
}

func (this *InMemoryFileSystem) Chtimes(path string, modified time.Time) error {
	target, found := this.fileSystem[path]
	if !found {
		return os.ErrNotExist
	}
	target.mod = modified
	return nil
}

func (this *InMemoryFileSystem) Delete(path string) error {
	delete(this.fileSystem, path)
	return nil
}

/////////////////////////////////////////////////

type memoryFile struct {
	path     string
	contents []byte
	mode     os.FileMode
	mod      time.Time
	symlink  string
}

func (this *memoryFile) Path() string       { return this.path }
func (this *memoryFile) Size() int64        { return int64(len(this.contents)) }
func (this *memoryFile) ModTime() time.Time { return this.mod }
func (this *memoryFile) Mode() os.FileMode  { return this.mode }
func (this *memoryFile) Symlink() string    { return this.symlink }

func (this *memoryFile) Write(buffer []byte) (int, error) {
	this.contents = append(this.contents, buffer...)
	return len(buffer), nil
}

func (this *memoryFile) Close() error { return nil }

var InMemoryModTime = time.Now()
