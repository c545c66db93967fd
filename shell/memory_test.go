package shell

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/assertions/should"
	"github.com/smartystreets/gunit"
)

func TestInMemoryFileSystemFixture(t *testing.T) {
	gunit.Run(new(InMemoryFileSystemFixture), t)
}

type InMemoryFileSystemFixture struct {
	*gunit.Fixture

	files *InMemoryFileSystem
}

func (this *InMemoryFileSystemFixture) Setup() {
	this.files = NewInMemoryFileSystem()
}

func (this *InMemoryFileSystemFixture) TestCreateThenRead() {
	writer, err := this.files.Create("/a/b.txt")
	this.So(err, should.BeNil)
	_, _ = writer.Write([]byte("hello"))
	_ = writer.Close()

	content, err := this.files.ReadFile("/a/b.txt")
	this.So(err, should.BeNil)
	this.So(content, should.Resemble, []byte("hello"))
}

func (this *InMemoryFileSystemFixture) TestOpenFollowsSymlinks() {
	_ = this.files.WriteFile("/real.txt", []byte("content"))
	_ = this.files.CreateSymlink("/real.txt", "/link.txt")

	reader, err := this.files.Open("/link.txt")
	this.So(err, should.BeNil)
	content, _ := io.ReadAll(reader)
	this.So(content, should.Resemble, []byte("content"))
}

func (this *InMemoryFileSystemFixture) TestDanglingSymlinkFailsToOpen() {
	_ = this.files.CreateSymlink("/gone.txt", "/link.txt")

	_, err := this.files.Open("/link.txt")

	this.So(errors.Is(err, os.ErrNotExist), should.BeTrue)
}

func (this *InMemoryFileSystemFixture) TestListingIsScopedToRootAndSorted() {
	this.files.Root = "/staging"
	_ = this.files.WriteFile("/staging/b.txt", nil)
	_ = this.files.MkdirAll("/staging/a", 0755)
	_ = this.files.WriteFile("/staging/a/x.txt", nil)
	_ = this.files.WriteFile("/elsewhere/c.txt", nil)

	listing, err := this.files.Listing()

	this.So(err, should.BeNil)
	var paths []string
	for _, file := range listing {
		paths = append(paths, file.Path())
	}
	this.So(paths, should.Resemble, []string{"/staging/a", "/staging/a/x.txt", "/staging/b.txt"})
}

func (this *InMemoryFileSystemFixture) TestChmodKeepsFileTypeBits() {
	_ = this.files.MkdirAll("/dir", 0755)
	_ = this.files.Chmod("/dir", 0700)

	info, _ := this.files.Stat("/dir")
	this.So(info.Mode().IsDir(), should.BeTrue)
	this.So(info.Mode().Perm(), should.Equal, os.FileMode(0700))
}

func (this *InMemoryFileSystemFixture) TestChtimes() {
	_ = this.files.WriteFile("/f", nil)
	stamp := time.Unix(1600000000, 0)

	this.So(this.files.Chtimes("/f", stamp), should.BeNil)

	info, _ := this.files.Stat("/f")
	this.So(info.ModTime(), should.Equal, stamp)
}

func (this *InMemoryFileSystemFixture) TestLinkDuplicatesContent() {
	_ = this.files.WriteFile("/original", []byte("x"))

	this.So(this.files.Link("/original", "/copy"), should.BeNil)

	content, _ := this.files.ReadFile("/copy")
	this.So(content, should.Resemble, []byte("x"))
}

func (this *InMemoryFileSystemFixture) TestDeleteIsIdempotent() {
	_ = this.files.WriteFile("/f", nil)

	this.So(this.files.Delete("/f"), should.BeNil)
	this.So(this.files.Delete("/f"), should.BeNil)
	_, err := this.files.ReadFile("/f")
	this.So(errors.Is(err, os.ErrNotExist), should.BeTrue)
}
