package core

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/steamlauncher/bootstrap/archive"
	"github.com/steamlauncher/bootstrap/contracts"
)

const (
	// OutputArchiveName is the bootstrap tarball consumed by the launcher
	// packaging.
	OutputArchiveName = "bootstraplinux_ubuntu12_32.tar.xz"

	// VersionMetadataName records which client and runtime versions went
	// into the archive.
	VersionMetadataName = "client-versions.json"

	runtimeTarball = "steam-runtime.tar.xz"
)

// BootstrapBuilder runs the whole pipeline: acquire the client build,
// ensure a runtime tarball, stage the curated bootstrap tree, repackage it
// deterministically and record version metadata. Either the archive and
// the metadata are both produced, or neither is; scratch storage is always
// discarded.
type BootstrapBuilder struct {
	request        contracts.BuildRequest
	client         *SteamClient
	runtimeArchive *RuntimeArchive
	downloader     contracts.Downloader
	extractor      *FilteredExtractor
	filter         *RuntimeFilter
	storageFactory func(root string) PackageBuilderFileSystem
	logger         logrus.FieldLogger

	clientVersion   *string
	resolvedRuntime *string
}

func NewBootstrapBuilder(
	request contracts.BuildRequest,
	client *SteamClient,
	runtimeArchive *RuntimeArchive,
	downloader contracts.Downloader,
	extractor *FilteredExtractor,
	filter *RuntimeFilter,
	storageFactory func(root string) PackageBuilderFileSystem,
	logger logrus.FieldLogger,
) *BootstrapBuilder {
	return &BootstrapBuilder{
		request:        request,
		client:         client,
		runtimeArchive: runtimeArchive,
		downloader:     downloader,
		extractor:      extractor,
		filter:         filter,
		storageFactory: storageFactory,
		logger:         logger,
	}
}

func (this *BootstrapBuilder) Run() error {
	this.logger.Infof("Preparing %s bootstrap package...", this.request.PackageName())

	tmpdir, err := os.MkdirTemp("", "bootstrap-build")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmpdir) }()

	clientDir := this.request.ClientDir
	if clientDir == "" {
		clientDir = filepath.Join(tmpdir, "client")
		err = this.downloadClient(tmpdir)
		if err != nil {
			return err
		}
		err = this.ensureRuntimeTarball(tmpdir)
		if err != nil {
			return err
		}
	}

	err = this.buildBootstrap(clientDir, tmpdir)
	if err != nil {
		return err
	}
	return this.writeVersionMetadata()
}

func (this *BootstrapBuilder) downloadClient(tmpdir string) error {
	clientDir := filepath.Join(tmpdir, "client")
	err := os.MkdirAll(clientDir, 0755)
	if err != nil {
		return err
	}

	if this.request.ClientTarballURI != "" {
		err = this.downloadClientTarball(tmpdir, clientDir)
	} else {
		err = this.downloadClientFromCDN(tmpdir, clientDir)
	}
	if err != nil {
		return err
	}

	for _, expected := range []string{"steam.sh", "ubuntu12_32/steam"} {
		if _, err := os.Stat(filepath.Join(clientDir, expected)); err != nil {
			return fmt.Errorf("%w: client download is missing %s", contracts.ParseErr, expected)
		}
	}
	return nil
}

func (this *BootstrapBuilder) downloadClientFromCDN(tmpdir, clientDir string) error {
	err := this.client.DownloadManifest(tmpdir)
	if err != nil {
		return err
	}
	err = this.client.DownloadClient(clientDir, true)
	if err != nil {
		return err
	}
	runtimedir := filepath.Join(clientDir, "ubuntu12_32")
	err = this.client.DownloadScout(runtimedir, true)
	if err != nil {
		return err
	}
	err = this.client.ExtractScout(runtimedir, tmpdir, false)
	if err != nil {
		return err
	}

	this.clientVersion = &this.client.Manifest.Version
	if this.client.ScoutVersion != "" {
		this.resolvedRuntime = &this.client.ScoutVersion
	}
	return nil
}

func (this *BootstrapBuilder) downloadClientTarball(tmpdir, clientDir string) error {
	tarball := filepath.Join(tmpdir, "client.tar.gz")
	this.logger.Infof("Requesting <%s>...", this.request.ClientTarballURI)
	response, err := this.downloader.Open(this.request.ClientTarballURI)
	if err != nil {
		return err
	}
	defer func() { _ = response.Close() }()

	writer, err := os.Create(tarball)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, response)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("%w: reading %s: %s", contracts.TransportErr, this.request.ClientTarballURI, err)
	}
	err = writer.Close()
	if err != nil {
		return err
	}
	return extractClientTarball(tarball, clientDir)
}

// extractClientTarball unpacks a gzipped client tarball, dropping the
// leading path component the way the packaging has always expected.
func extractClientTarball(tarball, destination string) error {
	reader, err := os.Open(tarball)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	gz, err := pgzip.NewReader(reader)
	if err != nil {
		return fmt.Errorf("%w: %s", contracts.ParseErr, err)
	}
	defer func() { _ = gz.Close() }()

	stream := tar.NewReader(gz)
	for {
		header, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading client tarball: %s", contracts.ParseErr, err)
		}

		name := strings.TrimSuffix(header.Name, "/")
		if strings.HasPrefix(name, "/") || hasTraversal(name) {
			return fmt.Errorf("%w: %s", contracts.PathSafetyErr, header.Name)
		}
		_, stripped, found := strings.Cut(name, "/")
		if !found || stripped == "" {
			continue
		}
		target := filepath.Join(destination, filepath.FromSlash(stripped))

		err = extractTarballMember(stream, header, target, destination)
		if err != nil {
			return err
		}
	}
}

func extractTarballMember(stream *tar.Reader, header *tar.Header, target, destination string) error {
	mode := os.FileMode(header.Mode).Perm()
	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0700)
	case tar.TypeSymlink:
		_ = os.Remove(target)
		return os.Symlink(header.Linkname, target)
	case tar.TypeLink:
		return linkTarballMember(header, target, destination)
	case tar.TypeReg:
		err := os.MkdirAll(filepath.Dir(target), 0755)
		if err != nil {
			return err
		}
		writer, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode|0200)
		if err != nil {
			return err
		}
		_, err = io.Copy(writer, stream)
		if err != nil {
			_ = writer.Close()
			return fmt.Errorf("%w: extracting %s: %s", contracts.ParseErr, header.Name, err)
		}
		return writer.Close()
	default:
		return nil
	}
}

// linkTarballMember materializes a hard-link member against the already
// extracted file it names. Link targets lose the same leading component as
// everything else in the tarball.
func linkTarballMember(header *tar.Header, target, destination string) error {
	linkName := header.Linkname
	if strings.HasPrefix(linkName, "/") || hasTraversal(linkName) {
		return fmt.Errorf("%w: %s", contracts.PathSafetyErr, linkName)
	}
	_, stripped, found := strings.Cut(linkName, "/")
	if !found || stripped == "" {
		return fmt.Errorf("%w: hard link %s targets %s outside the client tree",
			contracts.ParseErr, header.Name, linkName)
	}
	err := os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return err
	}
	_ = os.Remove(target)
	return os.Link(filepath.Join(destination, filepath.FromSlash(stripped)), target)
}

// ensureRuntimeTarball makes sure the client tree contains a runtime
// tarball, downloading the pinned --runtime-version override when one was
// given.
func (this *BootstrapBuilder) ensureRuntimeTarball(tmpdir string) error {
	runtimedir := filepath.Join(tmpdir, "client", "ubuntu12_32")
	path := filepath.Join(runtimedir, runtimeTarball)

	if this.request.RuntimeVersion == "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf(
				"%w: --runtime-version must be specified if the client does not contain a runtime tarball",
				contracts.InvocationErr)
		}
		return nil
	}

	pin, err := this.runtimeArchive.PinVersion(this.request.RuntimeVersion)
	if err != nil {
		return err
	}
	resolved := pin.String()
	this.resolvedRuntime = &resolved
	this.logger.Infof("Downloading runtime build %s", resolved)

	err = os.MkdirAll(runtimedir, 0755)
	if err != nil {
		return err
	}
	err = removeStaleRuntimeTarballs(runtimedir)
	if err != nil {
		return err
	}
	err = pin.Fetch(runtimeTarball, runtimedir, true)
	if err != nil {
		return err
	}

	// The packaging historically expects the tarball split into parts;
	// a single hard-linked part keeps it satisfied.
	return os.Link(path, path+".part0")
}

func removeStaleRuntimeTarballs(runtimedir string) error {
	entries, err := os.ReadDir(runtimedir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == runtimeTarball || strings.HasPrefix(name, runtimeTarball+".part") {
			err = os.Remove(filepath.Join(runtimedir, name))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (this *BootstrapBuilder) buildBootstrap(clientDir, tmpdir string) error {
	staging := filepath.Join(tmpdir, "bootstrap")
	for _, dir := range []string{
		filepath.Join(staging, "clientui", "fonts"),
		filepath.Join(staging, "linux32"),
		filepath.Join(staging, "ubuntu12_32"),
	} {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
	}

	searchDirs := []string{this.request.ClientOverlay, clientDir}
	installs := []struct {
		relative   string
		target     string
		executable bool
	}{
		{"linux32/steamerrorreporter", "linux32", true},
		{"steam.sh", "", true},
		{"steamdeps.txt", "", false},
		{"ubuntu12_32/steam", "ubuntu12_32", true},
		{"ubuntu12_32/crashhandler.so", "ubuntu12_32", true},
		{"clientui/fonts/GoNotoKurrent-Bold.ttf", "clientui/fonts", false},
		{"clientui/fonts/GoNotoKurrent-Regular.ttf", "clientui/fonts", false},
	}
	for _, install := range installs {
		err := installSearch(searchDirs, install.relative, filepath.Join(staging, install.target), install.executable)
		if err != nil {
			return err
		}
	}

	err := this.extractBootstrapRuntime(clientDir, filepath.Join(staging, "ubuntu12_32"))
	if err != nil {
		return err
	}
	return this.repackage(staging)
}

func (this *BootstrapBuilder) extractBootstrapRuntime(clientDir, destination string) error {
	reader, err := os.Open(filepath.Join(clientDir, "ubuntu12_32", runtimeTarball))
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	stream, err := archive.NewDecompressingReader(reader)
	if err != nil {
		return fmt.Errorf("%w: %s", contracts.ParseErr, err)
	}

	extracted, err := this.extractor.Extract(stream, RuntimeVersionMarkerPrefix, this.filter.Want, destination)
	if err != nil {
		return err
	}
	this.logger.Infof("Extracted %d bootstrap runtime members", extracted)
	return nil
}

// repackage writes the staged tree as a reproducible tar.xz, atomically.
func (this *BootstrapBuilder) repackage(staging string) error {
	destination := filepath.Join(this.request.Destination, OutputArchiveName)
	pending, err := renameio.TempFile("", destination)
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()

	compressor, err := xz.NewWriter(pending)
	if err != nil {
		return err
	}
	writer := archive.NewNormalizingTarWriter(compressor, this.request.ReferenceTimestamp)
	builder := NewBootstrapPackageBuilder(this.storageFactory(staging), writer, this.logger)

	err = builder.Build()
	if err != nil {
		return err
	}
	err = compressor.Close()
	if err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

func (this *BootstrapBuilder) writeVersionMetadata() error {
	metadata := contracts.VersionMetadata{
		ClientVersion:  this.clientVersion,
		RuntimeVersion: this.resolvedRuntime,
	}
	raw, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	return renameio.WriteFile(filepath.Join(this.request.Destination, VersionMetadataName), raw, 0644)
}

// installSearch copies the first hit for a relative path among the search
// directories, preserving its modification time, the way install -p does.
func installSearch(dirs []string, relative, destDir string, executable bool) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		source := filepath.Join(dir, filepath.FromSlash(relative))
		if _, err := os.Stat(source); err != nil {
			continue
		}
		return installFile(source, filepath.Join(destDir, filepath.Base(relative)), executable)
	}
	return fmt.Errorf("%w: %s not found in %v", contracts.InvocationErr, relative, dirs)
}

func installFile(source, destination string, executable bool) error {
	mode := os.FileMode(0644)
	if executable {
		mode = 0755
	}

	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	reader, err := os.Open(source)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	writer, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, reader)
	if err != nil {
		_ = writer.Close()
		return err
	}
	err = writer.Close()
	if err != nil {
		return err
	}
	err = os.Chmod(destination, mode)
	if err != nil {
		return err
	}
	return os.Chtimes(destination, info.ModTime(), info.ModTime())
}
