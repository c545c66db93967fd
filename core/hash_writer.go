package core

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// HashingWriter accumulates a SHA-256 digest and a byte count of everything
// written through it, so downloads can be verified without re-reading the
// file afterwards.
type HashingWriter struct {
	writer io.Writer
	hash   hash.Hash
	size   int64
}

func NewHashingWriter(target io.Writer) *HashingWriter {
	return &HashingWriter{writer: target, hash: sha256.New()}
}

func (this *HashingWriter) Write(buffer []byte) (int, error) {
	count, err := this.writer.Write(buffer)
	_, _ = this.hash.Write(buffer[0:count])
	this.size += int64(count)
	return count, err
}

func (this *HashingWriter) SHA256() string {
	return hex.EncodeToString(this.hash.Sum(nil))
}

func (this *HashingWriter) Size() int64 {
	return this.size
}
