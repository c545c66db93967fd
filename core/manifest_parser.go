package core

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/andygrunwald/vdf"
	"github.com/sirupsen/logrus"

	"github.com/steamlauncher/bootstrap/contracts"
)

// DefaultPlatform is the top-level manifest section describing the Linux
// client build.
const DefaultPlatform = "ubuntu12"

// ManifestParser turns the CDN's key/value manifest into an asset table.
// The on-wire format belongs to the manifest server and is not negotiable.
type ManifestParser struct {
	platform string
	logger   logrus.FieldLogger
}

func NewManifestParser(platform string, logger logrus.FieldLogger) *ManifestParser {
	return &ManifestParser{platform: platform, logger: logger}
}

func (this *ManifestParser) Parse(reader io.Reader) (manifest contracts.ClientManifest, err error) {
	document, err := vdf.NewParser(reader).Parse()
	if err != nil {
		return manifest, fmt.Errorf("%w: %s", contracts.ParseErr, err)
	}

	section, ok := document[this.platform].(map[string]interface{})
	if !ok {
		return manifest, fmt.Errorf("%w: no %q section in manifest", contracts.ParseErr, this.platform)
	}

	manifest.Platform = this.platform
	manifest.Assets = make(map[string]contracts.AssetRecord)

	for name, value := range section {
		if name == "version" {
			manifest.Version, ok = value.(string)
			if !ok {
				return manifest, fmt.Errorf("%w: version is not a scalar", contracts.ParseErr)
			}
			continue
		}

		record, err := this.parseAsset(name, value)
		if err != nil {
			return manifest, err
		}
		manifest.Assets[name] = record
	}

	if manifest.Version == "" {
		return manifest, fmt.Errorf("%w: manifest has no version", contracts.ParseErr)
	}

	this.logger.Infof("Client build: %s", manifest.Version)
	manifest.BuildDate = this.deriveBuildDate(manifest.Version)
	return manifest, nil
}

func (this *ManifestParser) parseAsset(name string, value interface{}) (record contracts.AssetRecord, err error) {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return record, fmt.Errorf("%w: asset %q is not a mapping", contracts.ParseErr, name)
	}

	record.Name = name
	record.File, _ = fields["file"].(string)
	record.SHA256, _ = fields["sha2"].(string)
	size, _ := fields["size"].(string)

	if record.File == "" {
		return record, fmt.Errorf("%w: asset %q has no file name", contracts.ParseErr, name)
	}
	if strings.Contains(record.File, "/") {
		return record, fmt.Errorf("%w: asset %q file name %q contains a slash", contracts.ParseErr, name, record.File)
	}
	record.SHA256 = strings.ToLower(record.SHA256)
	record.Size, err = strconv.ParseInt(size, 10, 64)
	if err != nil {
		return record, fmt.Errorf("%w: asset %q has size %q", contracts.ParseErr, name, size)
	}
	return record, nil
}

// deriveBuildDate treats an all-numeric build version as a Unix timestamp.
// This is diagnostic only; versions that are not timestamps are fine.
func (this *ManifestParser) deriveBuildDate(version string) *time.Time {
	timestamp, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		this.logger.Infof("Client build date unknown (version %q is not a timestamp)", version)
		return nil
	}
	date := time.Unix(timestamp, 0).UTC()
	this.logger.Infof("Client build date (probably) %s", date.Format("2006-01-02 15:04:05-0700"))
	return &date
}
