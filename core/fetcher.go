package core

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/steamlauncher/bootstrap/contracts"
)

// IntegrityFetcher streams a remote asset into local storage while
// accumulating a SHA-256 digest and byte count, then compares both against
// the manifest's expectations. In strict mode a mismatch fails the fetch;
// otherwise it is logged and the unverified artifact is kept.
type IntegrityFetcher struct {
	downloader contracts.Downloader
	files      contracts.FileCreator
	logger     logrus.FieldLogger
}

func NewIntegrityFetcher(
	downloader contracts.Downloader,
	files contracts.FileCreator,
	logger logrus.FieldLogger,
) *IntegrityFetcher {
	return &IntegrityFetcher{downloader: downloader, files: files, logger: logger}
}

func (this *IntegrityFetcher) Fetch(uri, destination, expectedSHA256 string, expectedSize int64, strict bool) error {
	this.logger.Infof("Requesting <%s>...", uri)
	response, err := this.downloader.Open(uri)
	if err != nil {
		return err
	}
	defer func() { _ = response.Close() }()

	writer, err := this.files.Create(destination)
	if err != nil {
		return err
	}
	hasher := NewHashingWriter(writer)
	_, err = io.Copy(hasher, response)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("%w: reading %s: %s", contracts.TransportErr, uri, err)
	}
	err = writer.Close()
	if err != nil {
		return err
	}

	// Both checks run and warn independently so a non-strict run still
	// reports everything that was wrong with the artifact.
	if hasher.SHA256() != expectedSHA256 {
		this.logger.Warnf("Unexpected hash for %s\n  Expected: %s\n  Got     : %s",
			uri, expectedSHA256, hasher.SHA256())
		if strict {
			return fmt.Errorf("%w: sha256 mismatch for %s", contracts.IntegrityErr, uri)
		}
	}
	if hasher.Size() != expectedSize {
		this.logger.Warnf("Unexpected size for %s\n  Expected: %d\n  Got     : %d",
			uri, expectedSize, hasher.Size())
		if strict {
			return fmt.Errorf("%w: size mismatch for %s (sha256 collision?!)", contracts.IntegrityErr, uri)
		}
	}
	return nil
}
