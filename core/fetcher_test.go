package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/smartystreets/assertions/should"
	"github.com/smartystreets/gunit"

	"github.com/steamlauncher/bootstrap/contracts"
	"github.com/steamlauncher/bootstrap/shell"
)

func TestIntegrityFetcherFixture(t *testing.T) {
	gunit.Run(new(IntegrityFetcherFixture), t)
}

type IntegrityFetcherFixture struct {
	*gunit.Fixture

	downloader *FakeDownloader
	files      *shell.InMemoryFileSystem
	hook       *test.Hook
	fetcher    *IntegrityFetcher

	payload []byte
}

func (this *IntegrityFetcherFixture) Setup() {
	logger, hook := test.NewNullLogger()
	this.hook = hook
	this.downloader = NewFakeDownloader()
	this.files = shell.NewInMemoryFileSystem()
	this.fetcher = NewIntegrityFetcher(this.downloader, this.files, logger)

	this.payload = []byte("runtime bits")
	this.downloader.Serve("https://cdn.example.com/asset.zip", this.payload)
}

func (this *IntegrityFetcherFixture) payloadSHA256() string {
	sum := sha256.Sum256(this.payload)
	return hex.EncodeToString(sum[:])
}

func (this *IntegrityFetcherFixture) warnings() (warnings []string) {
	for _, entry := range this.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, entry.Message)
		}
	}
	return warnings
}

func (this *IntegrityFetcherFixture) fetch(sha string, size int64, strict bool) error {
	return this.fetcher.Fetch("https://cdn.example.com/asset.zip", "/data/asset.zip", sha, size, strict)
}

func (this *IntegrityFetcherFixture) TestVerifiedFetchStoresFile() {
	err := this.fetch(this.payloadSHA256(), int64(len(this.payload)), true)

	this.So(err, should.BeNil)
	content, _ := this.files.ReadFile("/data/asset.zip")
	this.So(content, should.Resemble, this.payload)
	this.So(this.warnings(), should.BeEmpty)
}

func (this *IntegrityFetcherFixture) TestHashMismatchFailsWhenStrict() {
	err := this.fetch("00ff", int64(len(this.payload)), true)

	this.So(errors.Is(err, contracts.IntegrityErr), should.BeTrue)
	this.So(this.warnings(), should.HaveLength, 1)
	this.So(this.warnings()[0], should.ContainSubstring, "Unexpected hash")
}

func (this *IntegrityFetcherFixture) TestHashMismatchOnlyWarnsWhenNotStrict() {
	err := this.fetch("00ff", int64(len(this.payload)), false)

	this.So(err, should.BeNil)
	content, _ := this.files.ReadFile("/data/asset.zip")
	this.So(content, should.Resemble, this.payload)
	this.So(this.warnings(), should.HaveLength, 1)
}

func (this *IntegrityFetcherFixture) TestSizeMismatchFailsWhenStrict() {
	err := this.fetch(this.payloadSHA256(), int64(len(this.payload))+1, true)

	this.So(errors.Is(err, contracts.IntegrityErr), should.BeTrue)
	this.So(this.warnings(), should.HaveLength, 1)
	this.So(this.warnings()[0], should.ContainSubstring, "Unexpected size")
}

func (this *IntegrityFetcherFixture) TestBothMismatchesWarnIndependently() {
	err := this.fetch("00ff", int64(len(this.payload))+1, false)

	this.So(err, should.BeNil)
	this.So(this.warnings(), should.HaveLength, 2)
}

func (this *IntegrityFetcherFixture) TestDownloadFailurePropagates() {
	this.downloader.Error = errors.New("connection refused")

	err := this.fetch(this.payloadSHA256(), int64(len(this.payload)), true)

	this.So(err, should.NotBeNil)
}

func (this *IntegrityFetcherFixture) TestInterruptedTransferIsTransportError() {
	this.downloader.ServeBroken("https://cdn.example.com/asset.zip")

	err := this.fetch(this.payloadSHA256(), int64(len(this.payload)), true)

	this.So(errors.Is(err, contracts.TransportErr), should.BeTrue)
}
