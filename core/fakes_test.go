package core

import (
	"bytes"
	"errors"
	"io"
)

type FakeDownloader struct {
	responses map[string][]byte
	broken    map[string]bool
	Error     error
	requested []string
}

func NewFakeDownloader() *FakeDownloader {
	return &FakeDownloader{
		responses: make(map[string][]byte),
		broken:    make(map[string]bool),
	}
}

func (this *FakeDownloader) Serve(uri string, content []byte) {
	this.responses[uri] = content
}

// ServeBroken makes the URI open successfully but fail mid-read.
func (this *FakeDownloader) ServeBroken(uri string) {
	this.broken[uri] = true
}

func (this *FakeDownloader) Open(uri string) (io.ReadCloser, error) {
	this.requested = append(this.requested, uri)
	if this.Error != nil {
		return nil, this.Error
	}
	if this.broken[uri] {
		return io.NopCloser(brokenReader{}), nil
	}
	content, found := this.responses[uri]
	if !found {
		return nil, errors.New("not found: " + uri)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

type FakeEnvironment map[string]string

func (this FakeEnvironment) LookupEnv(key string) (string, bool) {
	value, set := this[key]
	return value, set
}

type FakeRemoteCopier struct {
	RemotePath string
	LocalPath  string
	Error      error
}

func (this *FakeRemoteCopier) Copy(remotePath, localPath string) error {
	this.RemotePath = remotePath
	this.LocalPath = localPath
	return this.Error
}
