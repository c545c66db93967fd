package core

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/smartystreets/assertions/should"
	"github.com/smartystreets/gunit"
	"github.com/ulikunitz/xz"

	"github.com/steamlauncher/bootstrap/contracts"
	"github.com/steamlauncher/bootstrap/shell"
)

func TestSteamClientFixture(t *testing.T) {
	gunit.Run(new(SteamClientFixture), t)
}

type SteamClientFixture struct {
	*gunit.Fixture

	tmpdir     string
	downloader *FakeDownloader
	hook       *test.Hook
	client     *SteamClient
}

func (this *SteamClientFixture) Setup() {
	tmpdir, err := os.MkdirTemp("", "client-test")
	this.So(err, should.BeNil)
	this.tmpdir = tmpdir

	logger, hook := test.NewNullLogger()
	this.hook = hook
	this.downloader = NewFakeDownloader()
	files := shell.NewDiskFileSystem("")
	this.client = NewSteamClient(
		"https://cdn.example.com/client",
		"steam_client_ubuntu12",
		this.downloader,
		NewIntegrityFetcher(this.downloader, files, logger),
		NewManifestParser(DefaultPlatform, logger),
		NewFilteredExtractor(files, logger),
		logger,
	)
	this.client.Manifest = contracts.ClientManifest{
		Platform: DefaultPlatform,
		Version:  "1610000000",
		Assets:   make(map[string]contracts.AssetRecord),
	}
}

func (this *SteamClientFixture) Teardown() {
	_ = os.RemoveAll(this.tmpdir)
}

func (this *SteamClientFixture) dir(name string) string {
	path := filepath.Join(this.tmpdir, name)
	this.So(os.MkdirAll(path, 0755), should.BeNil)
	return path
}

func zipBytes(members map[string]string) []byte {
	buffer := new(bytes.Buffer)
	writer := zip.NewWriter(buffer)
	for name, content := range members {
		member, _ := writer.Create(name)
		_, _ = member.Write([]byte(content))
	}
	_ = writer.Close()
	return buffer.Bytes()
}

func (this *SteamClientFixture) serveAsset(name, file string, members map[string]string) {
	content := zipBytes(members)
	sum := sha256.Sum256(content)
	this.downloader.Serve("https://cdn.example.com/client/"+file, content)
	this.client.Manifest.Assets[name] = contracts.AssetRecord{
		Name:   name,
		File:   file,
		SHA256: hex.EncodeToString(sum[:]),
		Size:   int64(len(content)),
	}
}

type tarMember struct {
	name    string
	content string
}

func xzTarball(members ...tarMember) []byte {
	buffer := new(bytes.Buffer)
	compressor, _ := xz.NewWriter(buffer)
	tarball := tar.NewWriter(compressor)
	for _, member := range members {
		_ = tarball.WriteHeader(&tar.Header{
			Name:    member.name,
			Mode:    0644,
			Size:    int64(len(member.content)),
			ModTime: time.Unix(1600000000, 0),
		})
		_, _ = tarball.Write([]byte(member.content))
	}
	_ = tarball.Close()
	_ = compressor.Close()
	return buffer.Bytes()
}

func (this *SteamClientFixture) warnings() (warnings []string) {
	for _, entry := range this.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, entry.Message)
		}
	}
	return warnings
}

func (this *SteamClientFixture) TestDownloadManifestParsesTheFetchedDocument() {
	this.downloader.Serve("https://cdn.example.com/client/steam_client_ubuntu12", []byte(wellFormedManifest))
	datadir := this.dir("data")

	err := this.client.DownloadManifest(datadir)

	this.So(err, should.BeNil)
	this.So(this.client.Manifest.Version, should.Equal, "1610000000")
	_, err = os.Stat(filepath.Join(datadir, "manifest.vdf"))
	this.So(err, should.BeNil)
}

func (this *SteamClientFixture) TestDownloadClientExtractsEveryAssetZip() {
	this.serveAsset("bins_client", "bins_client.zip.1.worked", map[string]string{
		"steam.sh":           "#!/bin/sh\n",
		"ubuntu12_32\\steam": "binary",
	})
	datadir := this.dir("client")

	err := this.client.DownloadClient(datadir, true)

	this.So(err, should.BeNil)
	content, _ := os.ReadFile(filepath.Join(datadir, "steam.sh"))
	this.So(string(content), should.Equal, "#!/bin/sh\n")
	content, _ = os.ReadFile(filepath.Join(datadir, "ubuntu12_32", "steam"))
	this.So(string(content), should.Equal, "binary")
}

func (this *SteamClientFixture) TestDownloadRuntimeFromWholeZip() {
	this.serveAsset("runtime_scout_ubuntu12", "runtime.zip.1.worked", map[string]string{
		"ubuntu12_32/steam-runtime.tar.xz": "TARBALL",
	})
	datadir := this.dir("runtime")

	found, err := this.client.DownloadRuntime("1", datadir, true)

	this.So(err, should.BeNil)
	this.So(found, should.BeTrue)
	content, _ := os.ReadFile(filepath.Join(datadir, "steam-runtime.tar.xz"))
	this.So(string(content), should.Equal, "TARBALL")
}

func (this *SteamClientFixture) TestDownloadRuntimeAssemblesLegacyParts() {
	this.serveAsset("runtime_part1_ubuntu12", "part1.zip.1.worked", map[string]string{
		"steam-runtime.tar.xz.part0": "AAA",
	})
	this.serveAsset("runtime_part2_ubuntu12", "part2.zip.1.worked", map[string]string{
		"steam-runtime.tar.xz.part1": "BBB",
	})
	datadir := this.dir("runtime")

	found, err := this.client.DownloadRuntime("1", datadir, true)

	this.So(err, should.BeNil)
	this.So(found, should.BeTrue)
	content, _ := os.ReadFile(filepath.Join(datadir, "steam-runtime.tar.xz"))
	this.So(string(content), should.Equal, "AAABBB")
}

func (this *SteamClientFixture) TestWholeZipMissingRuntimeMemberFails() {
	this.serveAsset("runtime_scout_ubuntu12", "runtime.zip.1.worked", map[string]string{
		"unrelated.txt": "x",
	})

	_, err := this.client.DownloadRuntime("1", this.dir("runtime"), true)

	this.So(errors.Is(err, contracts.ParseErr), should.BeTrue)
}

func (this *SteamClientFixture) TestExtractScoutRecordsRuntimeVersion() {
	runtimedir := this.dir("runtime")
	destdir := this.dir("dest")
	tarball := xzTarball(
		tarMember{"steam-runtime/version.txt", "steam-runtime_0.20210126.1\n"},
		tarMember{"steam-runtime/manifest.deb822.gz", "manifest"},
		tarMember{"steam-runtime/usr/bin/something", "skipped"},
	)
	this.So(os.WriteFile(filepath.Join(runtimedir, "steam-runtime.tar.xz"), tarball, 0644), should.BeNil)

	err := this.client.ExtractScout(runtimedir, destdir, true)

	this.So(err, should.BeNil)
	this.So(this.client.ScoutVersion, should.Equal, "0.20210126.1")
	this.So(this.client.ScoutVersionMarker, should.Equal, "steam-runtime_0.20210126.1")
	this.So(this.client.HaveScoutManifest, should.BeTrue)
	_, err = os.Stat(filepath.Join(destdir, "steam-runtime", "usr", "bin", "something"))
	this.So(os.IsNotExist(err), should.BeTrue)
}

func (this *SteamClientFixture) TestExtractScoutToleratesMalformedMarkerWithWarning() {
	runtimedir := this.dir("runtime")
	destdir := this.dir("dest")
	tarball := xzTarball(tarMember{"steam-runtime/version.txt", "garbage\n"})
	this.So(os.WriteFile(filepath.Join(runtimedir, "steam-runtime.tar.xz"), tarball, 0644), should.BeNil)

	err := this.client.ExtractScout(runtimedir, destdir, false)

	this.So(err, should.BeNil)
	this.So(this.client.ScoutVersion, should.Equal, "")
	this.So(this.warnings(), should.HaveLength, 1)
}

func (this *SteamClientFixture) TestContainerRuntimeVersionFromVersionsTable() {
	runtimedir := this.dir("runtime")
	tarball := xzTarball(tarMember{
		"SteamLinuxRuntime_sniper/VERSIONS.txt",
		"# components\ndepot\t0.20231010.1\tofficial\n",
	})
	path := filepath.Join(runtimedir, "ubuntu12_64", "SteamLinuxRuntime_sniper.tar.xz")
	this.So(os.MkdirAll(filepath.Dir(path), 0755), should.BeNil)
	this.So(os.WriteFile(path, tarball, 0644), should.BeNil)

	version, err := this.client.ContainerRuntimeVersion("3", runtimedir)

	this.So(err, should.BeNil)
	this.So(version, should.Equal, "0.20231010.1")
}

func (this *SteamClientFixture) TestContainerRuntimeVersionMissingTarballWarnsOnly() {
	version, err := this.client.ContainerRuntimeVersion("3", this.dir("runtime"))

	this.So(err, should.BeNil)
	this.So(version, should.Equal, "")
	this.So(this.warnings(), should.HaveLength, 1)
}
