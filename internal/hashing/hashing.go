// Package hashing implements knit's content hashing primitives: BLAKE3 over
// byte slices, files, and whole directory trees, per spec.md §4.A.
//
// The directory-combining scheme — sorted, newline-terminated
// "<path>:<hash>" entries fed into one final digest — is a direct
// descendant of the teacher's own `internal/fs.HashFromNode` (a
// breadth-first, sorted-children SHA-256 walk), adapted here for
// parallel per-file hashing and a BLAKE3 output instead of SHA-256.
package hashing

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashBytes returns the lowercase hex-encoded BLAKE3 digest of data.
func HashBytes(data []byte) string {
	h := blake3.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// newHasher returns a fresh streaming BLAKE3 hash.Hash.
func newHasher() *blake3.Hasher {
	return blake3.New()
}
