package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"

	"github.com/steamlauncher/bootstrap/archive"
	"github.com/steamlauncher/bootstrap/contracts"
)

// RuntimeVersionMarkerPrefix is the fixed prefix of the version marker
// embedded in an extracted runtime tree ("<prefix>_<version>").
const RuntimeVersionMarkerPrefix = "steam-runtime"

// SteamClient downloads a client build from the CDN: the manifest first,
// then every asset it names (integrity-checked), then the runtime tarball
// hidden inside one of the asset zips.
type SteamClient struct {
	uri          string
	manifestName string
	downloader   contracts.Downloader
	fetcher      *IntegrityFetcher
	parser       *ManifestParser
	extractor    *FilteredExtractor
	logger       logrus.FieldLogger

	Manifest           contracts.ClientManifest
	ScoutVersion       string
	ScoutVersionMarker string
	HaveScoutManifest  bool
}

func NewSteamClient(
	uri, manifestName string,
	downloader contracts.Downloader,
	fetcher *IntegrityFetcher,
	parser *ManifestParser,
	extractor *FilteredExtractor,
	logger logrus.FieldLogger,
) *SteamClient {
	return &SteamClient{
		uri:          uri,
		manifestName: manifestName,
		downloader:   downloader,
		fetcher:      fetcher,
		parser:       parser,
		extractor:    extractor,
		logger:       logger,
	}
}

// DownloadManifest fetches the manifest into datadir/manifest.vdf and
// parses it.
func (this *SteamClient) DownloadManifest(datadir string) error {
	err := os.MkdirAll(datadir, 0755)
	if err != nil {
		return err
	}

	uri := this.uri + "/" + this.manifestName
	this.logger.Infof("Downloading client manifest from <%s>...", uri)
	response, err := this.downloader.Open(uri)
	if err != nil {
		return err
	}
	defer func() { _ = response.Close() }()

	writer, err := os.Create(filepath.Join(datadir, "manifest.vdf"))
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, response)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("%w: reading manifest: %s", contracts.TransportErr, err)
	}
	err = writer.Close()
	if err != nil {
		return err
	}
	return this.LoadManifest(datadir)
}

func (this *SteamClient) LoadManifest(datadir string) error {
	reader, err := os.Open(filepath.Join(datadir, "manifest.vdf"))
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	this.Manifest, err = this.parser.Parse(reader)
	return err
}

// DownloadClient fetches every asset of the loaded manifest into scoped
// temporary storage, verifying hash and size, then extracts each zip part
// into datadir.
func (this *SteamClient) DownloadClient(datadir string, strict bool) error {
	tempdir, err := os.MkdirTemp("", "bootstrap-client")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tempdir) }()

	var names []string
	for _, asset := range this.Manifest.SortedAssets() {
		names = append(names, asset.File)
		err = this.fetcher.Fetch(
			this.uri+"/"+asset.File,
			filepath.Join(tempdir, asset.File),
			asset.SHA256, asset.Size, strict,
		)
		if err != nil {
			return err
		}
	}

	for _, name := range names {
		err = this.extractZip(filepath.Join(tempdir, name), datadir)
		if err != nil {
			return err
		}
	}
	return nil
}

// DownloadScout fetches the LD_LIBRARY_PATH runtime that ships with the
// client build.
func (this *SteamClient) DownloadScout(datadir string, strict bool) error {
	_, err := this.DownloadRuntime("1", datadir, strict)
	return err
}

// DownloadRuntime fetches the asset zip(s) carrying the runtime for the
// given major version and copies the inner runtime tarball into datadir.
// It reports whether a legacy multi-part runtime was assembled.
func (this *SteamClient) DownloadRuntime(majorVersion, datadir string, strict bool) (bool, error) {
	suite := SuiteForVersion(majorVersion)

	tempdir, err := os.MkdirTemp("", "bootstrap-runtime")
	if err != nil {
		return false, err
	}
	defer func() { _ = os.RemoveAll(tempdir) }()

	zipName := ""
	var zipPartNames []string

	for _, asset := range this.Manifest.SortedAssets() {
		isWhole := asset.Name == fmt.Sprintf("runtime_%s_ubuntu12", suite)
		isPart := suite == "scout" &&
			strings.HasPrefix(asset.Name, "runtime_part") &&
			strings.HasSuffix(asset.Name, "_ubuntu12")
		if !isWhole && !isPart {
			continue
		}

		if isWhole {
			if zipName != "" {
				return false, fmt.Errorf("%w: both %s and %s claim the whole runtime",
					contracts.ParseErr, zipName, asset.File)
			}
			zipName = asset.File
		} else {
			zipPartNames = append(zipPartNames, asset.File)
		}

		err = this.fetcher.Fetch(
			this.uri+"/"+asset.File,
			filepath.Join(tempdir, asset.File),
			asset.SHA256, asset.Size, strict,
		)
		if err != nil {
			return false, err
		}
	}

	tarName := runtimeTarballName(suite, majorVersion)
	lookFor := innerTarballNames(suite, majorVersion, tarName)

	writer, err := os.Create(filepath.Join(datadir, tarName))
	if err != nil {
		return false, err
	}
	defer func() { _ = writer.Close() }()

	if zipName != "" {
		found, err := this.copyZipMember(filepath.Join(tempdir, zipName), lookFor, writer)
		if err != nil {
			return false, err
		}
		if !found {
			return false, fmt.Errorf("%w: %s not found in %s", contracts.ParseErr, suite, zipName)
		}
		return true, nil
	}

	// Fallback: scout used to be shipped split into parts.
	foundParts := false
	for _, basename := range zipPartNames {
		appended, err := this.appendTarballParts(filepath.Join(tempdir, basename), writer)
		if err != nil {
			return false, err
		}
		foundParts = foundParts || appended
	}
	return foundParts, nil
}

func runtimeTarballName(suite, majorVersion string) string {
	switch suite {
	case "scout":
		return "steam-runtime.tar.xz"
	case "sniper":
		return "SteamLinuxRuntime_sniper.tar.xz"
	default:
		return fmt.Sprintf("SteamLinuxRuntime_%s.tar.xz", majorVersion)
	}
}

func innerTarballNames(suite, majorVersion, tarName string) []string {
	switch suite {
	case "scout":
		return []string{"ubuntu12_32/" + tarName}
	case "sniper":
		return []string{
			"ubuntu12_64/" + tarName,
			fmt.Sprintf("ubuntu12_64/steam-runtime-%s.tar.xz", suite),
		}
	default:
		return []string{"ubuntu12_64/" + tarName}
	}
}

func (this *SteamClient) copyZipMember(zipPath string, lookFor []string, writer io.Writer) (bool, error) {
	unzip, err := zip.OpenReader(zipPath)
	if err != nil {
		return false, fmt.Errorf("%w: opening %s: %s", contracts.ParseErr, zipPath, err)
	}
	defer func() { _ = unzip.Close() }()

	for _, member := range unzip.File {
		if !contains(lookFor, strings.ReplaceAll(member.Name, "\\", "/")) {
			continue
		}
		reader, err := member.Open()
		if err != nil {
			return false, err
		}
		_, err = io.Copy(writer, reader)
		_ = reader.Close()
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (this *SteamClient) appendTarballParts(zipPath string, writer io.Writer) (bool, error) {
	unzip, err := zip.OpenReader(zipPath)
	if err != nil {
		return false, fmt.Errorf("%w: opening %s: %s", contracts.ParseErr, zipPath, err)
	}
	defer func() { _ = unzip.Close() }()

	found := false
	for _, member := range unzip.File {
		if !strings.Contains(member.Name, ".tar.xz.part") {
			continue
		}
		reader, err := member.Open()
		if err != nil {
			return false, err
		}
		_, err = io.Copy(writer, reader)
		_ = reader.Close()
		if err != nil {
			return false, err
		}
		found = true
	}
	return found, nil
}

func (this *SteamClient) extractZip(zipPath, destination string) error {
	unzip, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %s", contracts.ParseErr, zipPath, err)
	}
	defer func() { _ = unzip.Close() }()

	for _, member := range unzip.File {
		name := strings.ReplaceAll(member.Name, "\\", "/")
		err = this.extractZipMember(member, name, destination)
		if err != nil {
			return err
		}
	}
	return nil
}

func (this *SteamClient) extractZipMember(member *zip.File, name, destination string) error {
	if strings.HasPrefix(name, "/") || hasTraversal(name) {
		return fmt.Errorf("%w: zip member %s", contracts.PathSafetyErr, member.Name)
	}
	target := filepath.Join(destination, filepath.FromSlash(name))

	if member.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}

	err := os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return err
	}
	reader, err := member.Open()
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	writer, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, member.Mode().Perm()|0200)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, reader)
	if err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func hasTraversal(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// ExtractScout pulls the version marker (and optionally the manifest files)
// out of a downloaded scout runtime tarball and records the embedded
// runtime version. A missing marker is tolerated; a malformed one is only
// a warning.
func (this *SteamClient) ExtractScout(runtimedir, destdir string, extractManifest bool) error {
	_ = os.RemoveAll(filepath.Join(runtimedir, RuntimeVersionMarkerPrefix))
	_ = os.RemoveAll(filepath.Join(destdir, RuntimeVersionMarkerPrefix))

	reader, err := os.Open(filepath.Join(runtimedir, "steam-runtime.tar.xz"))
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	stream, err := archive.NewDecompressingReader(reader)
	if err != nil {
		return fmt.Errorf("%w: %s", contracts.ParseErr, err)
	}

	wanted := map[string]bool{"version.txt": true}
	if extractManifest {
		wanted["built-using.txt"] = true
		wanted["manifest.deb822.gz"] = true
		wanted["manifest.txt"] = true
	}

	_, err = this.extractor.Extract(stream, RuntimeVersionMarkerPrefix, func(parts []string) bool {
		path := strings.Join(parts, "/")
		if !wanted[path] {
			return false
		}
		if path == "manifest.deb822.gz" {
			this.HaveScoutManifest = true
		}
		return true
	}, destdir)
	if err != nil {
		return err
	}

	return this.readScoutVersionMarker(destdir)
}

func (this *SteamClient) readScoutVersionMarker(destdir string) error {
	raw, err := os.ReadFile(filepath.Join(destdir, RuntimeVersionMarkerPrefix, "version.txt"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	this.ScoutVersionMarker = strings.TrimSpace(string(raw))
	version, ok := ParseRuntimeVersionMarker(this.ScoutVersionMarker)
	if !ok {
		this.logger.Warnf("Unexpected format for runtime version: %s", this.ScoutVersionMarker)
		return nil
	}
	this.ScoutVersion = version
	this.logger.Infof("scout runtime version %s", version)
	return nil
}

// ParseRuntimeVersionMarker splits a "<prefix>_<version>" marker and
// reports whether it had the expected shape.
func ParseRuntimeVersionMarker(marker string) (string, bool) {
	bits := strings.Split(marker, "_")
	if len(bits) != 2 || bits[0] != RuntimeVersionMarkerPrefix {
		return "", false
	}
	return bits[1], true
}

// ContainerRuntimeVersion reads VERSIONS.txt out of a downloaded container
// runtime tarball and returns the pinned version recorded there, or ""
// when no tarball or no version line is present.
func (this *SteamClient) ContainerRuntimeVersion(majorVersion, runtimedir string) (string, error) {
	suite := SuiteForVersion(majorVersion)

	topDir := "SteamLinuxRuntime_" + majorVersion
	if suite == "sniper" {
		topDir = "SteamLinuxRuntime_" + suite
	}

	candidates := []string{
		topDir + ".tar.xz",
		fmt.Sprintf("steam-runtime-%s.tar.xz", suite),
	}
	tarball := ""
	for _, candidate := range candidates {
		for _, relative := range []string{candidate, filepath.Join("ubuntu12_64", candidate)} {
			if _, err := os.Stat(filepath.Join(runtimedir, relative)); err == nil {
				tarball = relative
				break
			}
		}
		if tarball != "" {
			break
		}
	}
	if tarball == "" {
		this.logger.Warnf("One of %v not found", candidates)
		return "", nil
	}

	reader, err := os.Open(filepath.Join(runtimedir, tarball))
	if err != nil {
		return "", err
	}
	defer func() { _ = reader.Close() }()

	stream, err := archive.NewDecompressingReader(reader)
	if err != nil {
		return "", fmt.Errorf("%w: %s", contracts.ParseErr, err)
	}

	wanted := []string{
		topDir + "/VERSIONS.txt",
		fmt.Sprintf("steam-runtime-%s/VERSIONS.txt", suite),
	}
	text, err := readTarMember(stream, wanted)
	if err != nil {
		return "", err
	}
	return ParseVersionsTable(text, suite), nil
}

func readTarMember(stream io.Reader, wanted []string) (string, error) {
	reader := archive.NewTarArchiveReader(stream)
	text := ""
	for {
		more, err := reader.Next()
		if err != nil {
			return "", fmt.Errorf("%w: reading archive: %s", contracts.ParseErr, err)
		}
		if !more {
			return text, nil
		}
		if !reader.IsRegular() || !contains(wanted, reader.Header().Name) {
			continue
		}
		raw, err := io.ReadAll(reader.Reader())
		if err != nil {
			return "", fmt.Errorf("%w: reading archive: %s", contracts.ParseErr, err)
		}
		text = string(raw)
	}
}

// ParseVersionsTable finds the pinned version in a tab-separated
// VERSIONS.txt: the "depot" row, or the row named after the suite.
func ParseVersionsTable(text, suite string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "depot\t") || strings.HasPrefix(line, suite+"\t") {
			return strings.Split(line, "\t")[1]
		}
	}
	return ""
}
