package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/steamlauncher/bootstrap/contracts"
)

// DefaultImagesURI is a template for the public runtime snapshot archive.
// SUITE, TOPDIR and IMAGES_DIR are substituted per suite.
const DefaultImagesURI = "https://repo.steampowered.com/IMAGES_DIR/snapshots"

// Older runtime branches have a Team Fortress 2 character class as a
// codename. Newer branches are just called 'steamrt5' and so on.
var (
	SuiteCodenames = map[string]string{
		"scout":   "1",
		"soldier": "2",
		"sniper":  "3",
		"medic":   "4",
	}
	CodenamedSuites = map[string]string{
		"1": "scout",
		"2": "soldier",
		"3": "sniper",
		"4": "medic",
	}
)

// SuiteForVersion maps a major version to its suite name. Unknown versions
// are valid and derive a steamrt<N>-style name.
func SuiteForVersion(majorVersion string) string {
	if suite, ok := CodenamedSuites[majorVersion]; ok {
		return suite
	}
	return "steamrt" + majorVersion
}

type RuntimeArchiveFileSystem interface {
	contracts.FileCreator
	contracts.Deleter
}

// RuntimeArchive is one branch of the runtime snapshot archive. It resolves
// symbolic versions to pins and fetches files from pinned snapshots, over
// HTTP or from an ssh mirror when one is configured.
type RuntimeArchive struct {
	suite      string
	imagesURI  string
	mirrorPath string
	downloader contracts.Downloader
	copier     contracts.RemoteCopier
	files      RuntimeArchiveFileSystem
	logger     logrus.FieldLogger
}

func NewRuntimeArchive(
	suite, imagesURI string,
	downloader contracts.Downloader,
	files RuntimeArchiveFileSystem,
	logger logrus.FieldLogger,
) *RuntimeArchive {
	if imagesURI == "" {
		imagesURI = expandImagesURI(DefaultImagesURI, suite)
	}
	return &RuntimeArchive{
		suite:      suite,
		imagesURI:  imagesURI,
		downloader: downloader,
		files:      files,
		logger:     logger,
	}
}

// UseMirror makes Fetch prefer incremental transfers from an ssh mirror
// rooted at basePath. Open and PinVersion still always use HTTP.
func (this *RuntimeArchive) UseMirror(copier contracts.RemoteCopier, basePath string) {
	this.copier = copier
	this.mirrorPath = basePath
}

func expandImagesURI(template, suite string) string {
	topDir := suite
	imagesDir := suite
	if _, ok := SuiteCodenames[suite]; ok {
		topDir = "steamrt-" + suite
		imagesDir = "steamrt-images-" + suite
	}
	replacer := strings.NewReplacer("SUITE", suite, "TOPDIR", topDir, "IMAGES_DIR", imagesDir)
	return replacer.Replace(template)
}

func (this *RuntimeArchive) Suite() string { return this.suite }

func (this *RuntimeArchive) URI(version, filename string) string {
	return fmt.Sprintf("%s/%s/%s", this.imagesURI, version, filename)
}

func (this *RuntimeArchive) Open(version, filename string) (io.ReadCloser, error) {
	uri := this.URI(version, filename)
	this.logger.Infof("Requesting <%s>...", uri)
	return this.downloader.Open(uri)
}

// PinVersion resolves a symbolic version (or passes through a concrete one)
// by reading the VERSION.txt marker published alongside each snapshot.
func (this *RuntimeArchive) PinVersion(version string) (PinnedRuntimeVersion, error) {
	reader, err := this.Open(version, "VERSION.txt")
	if err != nil {
		return PinnedRuntimeVersion{}, err
	}
	defer func() { _ = reader.Close() }()

	marker, err := io.ReadAll(reader)
	if err != nil {
		return PinnedRuntimeVersion{}, fmt.Errorf("%w: reading VERSION.txt: %s", contracts.TransportErr, err)
	}
	return NewPinnedRuntimeVersion(strings.TrimSpace(string(marker)), this)
}

// Fetch downloads version/filename into a file of the same basename in
// destdir. A failed HTTP transfer never leaves a partial file behind, and
// a missing remote file is only an error when mustExist is set.
func (this *RuntimeArchive) Fetch(version, filename, destdir string, mustExist bool) error {
	destination := destdir + "/" + filename

	if this.copier != nil && this.mirrorPath != "" && mustExist {
		remote := fmt.Sprintf("%s/%s/%s", this.mirrorPath, version, filename)
		this.logger.Infof("Downloading %q...", remote)
		return this.copier.Copy(remote, destination)
	}

	err := this.fetchHTTP(version, filename, destination)
	if err != nil {
		_ = this.files.Delete(destination)
		if mustExist {
			return err
		}
		this.logger.Infof("Ignoring failure to fetch optional %s: %s", filename, err)
	}
	return nil
}

func (this *RuntimeArchive) fetchHTTP(version, filename, destination string) error {
	response, err := this.Open(version, filename)
	if err != nil {
		return err
	}
	defer func() { _ = response.Close() }()

	writer, err := this.files.Create(destination)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, response)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("%w: reading %s: %s", contracts.TransportErr, filename, err)
	}
	return writer.Close()
}
