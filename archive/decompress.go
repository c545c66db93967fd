package archive

import (
	"bufio"
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

var (
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte{'B', 'Z', 'h'}
)

// NewDecompressingReader sniffs the stream's magic bytes and wraps it in
// the matching decompressor. Streams that are not xz, gzip or bzip2 pass
// through unchanged. Some published runtime tarballs carry a .tar.xz name
// but are actually bzip2-compressed, so the name is never trusted.
func NewDecompressingReader(reader io.Reader) (io.Reader, error) {
	buffered := bufio.NewReader(reader)
	magic, err := buffered.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(magic, xzMagic):
		return xz.NewReader(buffered)
	case bytes.HasPrefix(magic, gzipMagic):
		return pgzip.NewReader(buffered)
	case bytes.HasPrefix(magic, bzip2Magic):
		return bzip2.NewReader(buffered, nil)
	default:
		return buffered, nil
	}
}
