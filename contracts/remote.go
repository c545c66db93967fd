package contracts

import "io"

// Downloader opens a byte stream for an http(s) URI or a local path.
// Failures wrap TransportErr.
type Downloader interface {
	Open(uri string) (io.ReadCloser, error)
}

// RemoteCopier transfers a single remote file to a local path, typically
// incrementally over ssh. Failures wrap TransportErr.
type RemoteCopier interface {
	Copy(remotePath, localPath string) error
}

// Credential is a per-host user:password pair for remote authentication.
// It is never logged.
type Credential struct {
	Username string
	Password string
}
