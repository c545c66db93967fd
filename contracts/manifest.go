package contracts

import (
	"sort"
	"time"
)

// ClientManifest is the parsed form of the client-build manifest served by
// the CDN. One AssetRecord per downloadable part.
type ClientManifest struct {
	Platform  string
	Version   string
	BuildDate *time.Time // derived from Version when it is a Unix timestamp
	Assets    map[string]AssetRecord
}

type AssetRecord struct {
	Name   string // logical name within the manifest
	File   string // basename on the CDN, never contains '/'
	SHA256 string // lowercase hex
	Size   int64
}

// SortedAssets returns the asset records ordered by logical name, which is
// the iteration order used everywhere downstream.
func (this ClientManifest) SortedAssets() []AssetRecord {
	records := make([]AssetRecord, 0, len(this.Assets))
	for _, record := range this.Assets {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}

// VersionMetadata is serialized once at the end of a successful run.
type VersionMetadata struct {
	ClientVersion  *string `json:"client_version"`
	RuntimeVersion *string `json:"runtime_version"`
}
