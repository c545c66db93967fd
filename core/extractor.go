package core

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/steamlauncher/bootstrap/archive"
	"github.com/steamlauncher/bootstrap/contracts"
)

type ExtractorFileSystem interface {
	contracts.FileCreator
	contracts.DirectoryCreator
	contracts.SymlinkCreator
	contracts.Chmod
}

// FilteredExtractor streams a tar archive member-by-member and extracts
// only the members an allow predicate wants, preserving each member's
// relative path under the archive's declared top-level directory. A member
// that tries to escape that directory fails the whole operation.
type FilteredExtractor struct {
	files  ExtractorFileSystem
	logger logrus.FieldLogger
}

func NewFilteredExtractor(files ExtractorFileSystem, logger logrus.FieldLogger) *FilteredExtractor {
	return &FilteredExtractor{files: files, logger: logger}
}

// Extract reads the (already decompressed) tar stream once, in order. The
// want predicate receives the path segments below topDir and must be total;
// unmatched members are skipped, which is a normal outcome.
func (this *FilteredExtractor) Extract(
	stream io.Reader,
	topDir string,
	want func(parts []string) bool,
	destination string,
) (extracted int, err error) {
	reader := archive.NewTarArchiveReader(stream)
	for {
		more, err := reader.Next()
		if err != nil {
			return extracted, fmt.Errorf("%w: reading archive: %s", contracts.ParseErr, err)
		}
		if !more {
			return extracted, nil
		}

		header := reader.Header()
		parts, err := splitMemberPath(header.Name, topDir)
		if err != nil {
			return extracted, err
		}
		if !want(parts) {
			continue
		}

		err = this.extractMember(reader, header, destination)
		if err != nil {
			return extracted, err
		}
		extracted++
	}
}

func splitMemberPath(name, topDir string) ([]string, error) {
	if strings.HasPrefix(name, "/") {
		return nil, fmt.Errorf("%w: %s is absolute", contracts.PathSafetyErr, name)
	}
	segments := strings.Split(strings.TrimSuffix(name, "/"), "/")
	for _, segment := range segments {
		if segment == ".." {
			return nil, fmt.Errorf("%w: %s has path traversal", contracts.PathSafetyErr, name)
		}
	}
	if segments[0] != topDir {
		return nil, fmt.Errorf("%w: %s is not in %s/", contracts.PathSafetyErr, name, topDir)
	}
	return segments[1:], nil
}

func (this *FilteredExtractor) extractMember(
	reader *archive.TarArchiveReader,
	header contracts.ArchiveHeader,
	destination string,
) error {
	target := destination + "/" + strings.TrimSuffix(header.Name, "/")

	switch {
	case header.Directory:
		return this.files.MkdirAll(target, header.Mode&(os.ModePerm|os.ModeSetgid|os.ModeSticky))
	case header.LinkName != "":
		return this.files.CreateSymlink(header.LinkName, target)
	case reader.IsRegular():
		return this.extractFile(reader.Reader(), header, target)
	default:
		this.logger.Infof("Skipping unsupported member type: %s", header.Name)
		return nil
	}
}

func (this *FilteredExtractor) extractFile(content io.Reader, header contracts.ArchiveHeader, target string) error {
	writer, err := this.files.Create(target)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, content)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("%w: extracting %s: %s", contracts.ParseErr, header.Name, err)
	}
	err = writer.Close()
	if err != nil {
		return err
	}
	// Keep setuid/setgid/sticky: runtime helpers rely on them.
	return this.files.Chmod(target, header.Mode&(os.ModePerm|os.ModeSetuid|os.ModeSetgid|os.ModeSticky))
}
