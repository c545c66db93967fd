package shell

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/steamlauncher/bootstrap/contracts"
)

type DiskFileSystem struct{ root string }

func NewDiskFileSystem(root string) *DiskFileSystem {
	return &DiskFileSystem{root: filepath.Clean(root)}
}

func (this *DiskFileSystem) RootPath() string {
	return this.root
}

// Listing walks the root without following symlinks and returns every
// directory and file beneath it (the root itself excluded).
func (this *DiskFileSystem) Listing() (listing []contracts.FileInfo, err error) {
	err = filepath.Walk(this.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == this.root {
			return nil
		}
		fileInfo := FileInfo{
			path: path,
			size: info.Size(),
			mod:  info.ModTime(),
			mode: info.Mode(),
		}
		if info.Mode()&os.ModeSymlink == os.ModeSymlink {
			fileInfo.symlink, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}
		listing = append(listing, fileInfo)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (this *DiskFileSystem) Stat(path string) (contracts.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return FileInfo{
		path: path,
		size: info.Size(),
		mod:  info.ModTime(),
		mode: info.Mode(),
	}, nil
}

func (this *DiskFileSystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (this *DiskFileSystem) Create(path string) (io.WriteCloser, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, err
	}
	return os.Create(path)
}

func (this *DiskFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (this *DiskFileSystem) WriteFile(path string, content []byte) error {
	return os.WriteFile(path, content, 0644)
}

func (this *DiskFileSystem) Delete(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (this *DiskFileSystem) MkdirAll(path string, mode os.FileMode) error {
	return os.MkdirAll(path, mode|0700)
}

func (this *DiskFileSystem) CreateSymlink(source, target string) error {
	err := os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return err
	}
	_ = os.Remove(target)
	return os.Symlink(source, target)
}

func (this *DiskFileSystem) Link(source, target string) error {
	return os.Link(source, target)
}

func (this *DiskFileSystem) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

func (this *DiskFileSystem) Chtimes(path string, modified time.Time) error {
	return os.Chtimes(path, modified, modified)
}

////////////////////////////////////////

type FileInfo struct {
	path    string
	size    int64
	mod     time.Time
	mode    os.FileMode
	symlink string
}

func (this FileInfo) Path() string       { return this.path }
func (this FileInfo) Size() int64        { return this.size }
func (this FileInfo) ModTime() time.Time { return this.mod }
func (this FileInfo) Mode() os.FileMode  { return this.mode }
func (this FileInfo) Symlink() string    { return this.symlink }
