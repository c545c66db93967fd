package archive

import (
	"archive/tar"
	"io"

	"github.com/steamlauncher/bootstrap/contracts"
)

// TarArchiveReader iterates a tar stream member-by-member. Archives are
// processed in a single pass; there is no random access.
type TarArchiveReader struct {
	reader *tar.Reader
	header *tar.Header
}

func NewTarArchiveReader(reader io.Reader) *TarArchiveReader {
	return &TarArchiveReader{reader: tar.NewReader(reader)}
}

func (this *TarArchiveReader) Next() (bool, error) {
	header, err := this.reader.Next()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	this.header = header
	return true, nil
}

func (this *TarArchiveReader) Header() contracts.ArchiveHeader {
	return contracts.ArchiveHeader{
		Name:    this.header.Name,
		Size:    this.header.Size,
		ModTime: this.header.ModTime,
		// FileInfo translates the raw mode, keeping setuid/setgid/sticky.
		Mode:      this.header.FileInfo().Mode(),
		LinkName:  this.header.Linkname,
		Directory: this.header.Typeflag == tar.TypeDir,
	}
}

func (this *TarArchiveReader) IsRegular() bool {
	return this.header.Typeflag == tar.TypeReg
}

func (this *TarArchiveReader) Reader() io.Reader {
	return this.reader
}
