package utils

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
)

// MD5Reader computes an MD5 checksum of everything read through it, so an
// upload can be hashed while it streams to object storage in a single pass.
type MD5Reader struct {
	reader io.Reader
	hash   hash.Hash
}

func NewMD5Reader(reader io.Reader) *MD5Reader {
	return &MD5Reader{
		reader: reader,
		hash:   md5.New(),
	}
}

func (r *MD5Reader) Read(p []byte) (n int, err error) {
	n, err = r.reader.Read(p)
	if n > 0 {
		r.hash.Write(p[:n])
	}
	return
}

// Checksum returns the hex MD5 of the bytes read so far. Call it after the
// stream has been fully consumed.
func (r *MD5Reader) Checksum() string {
	return hex.EncodeToString(r.hash.Sum(nil))
}
