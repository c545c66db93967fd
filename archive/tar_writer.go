package archive

import (
	"archive/tar"
	"io"
	"os"
	"strings"
	"time"

	"github.com/steamlauncher/bootstrap/contracts"
)

// Ownership recorded for every entry of a repackaged archive, so the output
// does not depend on who ran the build.
const (
	NobodyUID = 65534
	NobodyGID = 65534
)

// NormalizingTarWriter writes GNU-format tar entries with ownership fixed
// to nobody/nogroup and modification times clamped to a reference
// timestamp. Given identical input content and the same reference
// timestamp, the emitted byte stream is identical across runs.
type NormalizingTarWriter struct {
	writer             *tar.Writer
	referenceTimestamp int64 // Unix seconds; negative means "leave mtimes alone"
}

func NewNormalizingTarWriter(writer io.Writer, referenceTimestamp int64) *NormalizingTarWriter {
	return &NormalizingTarWriter{
		writer:             tar.NewWriter(writer),
		referenceTimestamp: referenceTimestamp,
	}
}

func (this *NormalizingTarWriter) WriteHeader(header contracts.ArchiveHeader) error {
	tarHeader := &tar.Header{
		Name:    header.Name,
		Size:    header.Size,
		Mode:    tarMode(header.Mode),
		ModTime: header.ModTime.Truncate(time.Second),
		Uid:     NobodyUID,
		Gid:     NobodyGID,
		Uname:   "nobody",
		Gname:   "nogroup",
		Format:  tar.FormatGNU,
	}
	if this.referenceTimestamp >= 0 && tarHeader.ModTime.Unix() > this.referenceTimestamp {
		tarHeader.ModTime = time.Unix(this.referenceTimestamp, 0)
	}
	switch {
	case header.Directory:
		tarHeader.Typeflag = tar.TypeDir
		tarHeader.Size = 0
		if !strings.HasSuffix(tarHeader.Name, "/") {
			tarHeader.Name += "/"
		}
	case header.LinkName != "":
		tarHeader.Typeflag = tar.TypeSymlink
		tarHeader.Linkname = header.LinkName
		tarHeader.Size = 0
	default:
		tarHeader.Typeflag = tar.TypeReg
	}
	return this.writer.WriteHeader(tarHeader)
}

// tarMode converts permission plus setuid/setgid/sticky bits to the tar
// header encoding. Ownership is normalized; modes are not.
func tarMode(mode os.FileMode) int64 {
	raw := int64(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		raw |= 04000
	}
	if mode&os.ModeSetgid != 0 {
		raw |= 02000
	}
	if mode&os.ModeSticky != 0 {
		raw |= 01000
	}
	return raw
}

func (this *NormalizingTarWriter) Write(buffer []byte) (int, error) {
	return this.writer.Write(buffer)
}

func (this *NormalizingTarWriter) Close() error {
	return this.writer.Close()
}
