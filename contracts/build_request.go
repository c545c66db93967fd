package contracts

// BuildRequest carries the operator-supplied options for one bootstrap
// build. Exactly one client acquisition mode applies: a pre-downloaded
// directory, a tarball URI, or the full CDN download.
type BuildRequest struct {
	ClientDir        string // use a pre-downloaded client instead of the CDN
	ClientOverlay    string // directory with files that override the client's
	ClientTarballURI string // download client files from a tarball at this URI
	RuntimeVersion   string // replace the embedded runtime tarball with this version
	Destination      string // where the archive and metadata are written
	BetaUniverse     bool   // build the beta flavor of the package

	// ReferenceTimestamp caps output modification times for reproducible
	// builds; negative leaves timestamps untouched.
	ReferenceTimestamp int64
}

func (this BuildRequest) PackageName() string {
	if this.BetaUniverse {
		return "steambeta"
	}
	return "steam"
}
