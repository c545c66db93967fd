package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/steamlauncher/bootstrap/contracts"
)

// PinnedRuntimeVersion is a concrete runtime version resolved from a
// symbolic channel, tied to the archive it was resolved against. It is
// read-only once created.
type PinnedRuntimeVersion struct {
	version string
	archive *RuntimeArchive
}

func NewPinnedRuntimeVersion(version string, archive *RuntimeArchive) (PinnedRuntimeVersion, error) {
	if version == "" || !isDigit(version[0]) {
		return PinnedRuntimeVersion{}, fmt.Errorf(
			"%w: runtime version %q does not start with a digit", contracts.ValidationErr, version)
	}
	for _, c := range version {
		if c != '.' && !isDigit(byte(c)) {
			return PinnedRuntimeVersion{}, fmt.Errorf(
				"%w: runtime version %q contains non-dot, non-digit", contracts.ValidationErr, version)
		}
	}
	return PinnedRuntimeVersion{version: version, archive: archive}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (this PinnedRuntimeVersion) String() string { return this.version }

func (this PinnedRuntimeVersion) Equal(other PinnedRuntimeVersion) bool {
	return this.version == other.version && this.archive == other.archive
}

// Compare orders two pins by plain string comparison of their version
// strings. Pins from different owning archives are not comparable and
// produce an error rather than a silent answer. The ordering deliberately
// mirrors the upstream snapshot naming (zero-padded datestamps), not
// semantic versioning.
func (this PinnedRuntimeVersion) Compare(other PinnedRuntimeVersion) (int, error) {
	if this.archive != other.archive {
		return 0, fmt.Errorf("%w: cannot compare %q and %q from different archives",
			contracts.ValidationErr, this.version, other.version)
	}
	return strings.Compare(this.version, other.version), nil
}

func (this PinnedRuntimeVersion) URI(filename string) string {
	return this.archive.URI(this.version, filename)
}

func (this PinnedRuntimeVersion) Open(filename string) (io.ReadCloser, error) {
	return this.archive.Open(this.version, filename)
}

func (this PinnedRuntimeVersion) Fetch(filename, destdir string, mustExist bool) error {
	return this.archive.Fetch(this.version, filename, destdir, mustExist)
}
