package core

import (
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/steamlauncher/bootstrap/contracts"
)

type PackageBuilderFileSystem interface {
	contracts.PathLister
	contracts.FileOpener
	contracts.RootPath
}

// BootstrapPackageBuilder walks a staged output tree and writes every entry
// to an archive in sorted order, one entry at a time (directories are their
// own entries; their children follow at their own sorted positions). With a
// normalizing archive writer this yields byte-reproducible packages.
//
// Any unreadable file aborts the build; there is no partial output.
type BootstrapPackageBuilder struct {
	storage PackageBuilderFileSystem
	archive contracts.ArchiveWriter
	logger  logrus.FieldLogger
}

func NewBootstrapPackageBuilder(
	storage PackageBuilderFileSystem,
	archive contracts.ArchiveWriter,
	logger logrus.FieldLogger,
) *BootstrapPackageBuilder {
	return &BootstrapPackageBuilder{storage: storage, archive: archive, logger: logger}
}

func (this *BootstrapPackageBuilder) Build() error {
	listing, err := this.storage.Listing()
	if err != nil {
		return err
	}
	sort.Slice(listing, func(i, j int) bool {
		return this.memberName(listing[i]) < this.memberName(listing[j])
	})
	for _, file := range listing {
		err = this.add(file)
		if err != nil {
			return err
		}
	}
	return this.archive.Close()
}

func (this *BootstrapPackageBuilder) memberName(file contracts.FileInfo) string {
	return strings.TrimPrefix(file.Path(), this.storage.RootPath()+"/")
}

func (this *BootstrapPackageBuilder) add(file contracts.FileInfo) error {
	name := this.memberName(file)
	this.logger.Infof("Adding %q to archive.", name)

	header := contracts.ArchiveHeader{
		Name:      name,
		Size:      file.Size(),
		ModTime:   file.ModTime(),
		Mode:      file.Mode(),
		LinkName:  file.Symlink(),
		Directory: file.Mode().IsDir(),
	}
	err := this.archive.WriteHeader(header)
	if err != nil {
		return err
	}
	if header.Directory || header.LinkName != "" {
		return nil
	}
	return this.archiveContents(file)
}

func (this *BootstrapPackageBuilder) archiveContents(file contracts.FileInfo) error {
	reader, err := this.storage.Open(file.Path())
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()
	_, err = io.Copy(this.archive, reader)
	return err
}
