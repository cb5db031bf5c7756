package core

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, enough to tell runs apart in logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Hasher accumulates fields into a SHA-256 fingerprint. Each field is
// terminated with a unit separator so ("ab","c") and ("a","bc") differ.
type Hasher struct {
	h hash.Hash
}

// NewHasher creates an empty fingerprint accumulator
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Field appends one field to the fingerprint
func (hs *Hasher) Field(s string) {
	io.WriteString(hs.h, s)
	hs.h.Write([]byte{0x1f})
}

// EndRecord marks the end of a logical record
func (hs *Hasher) EndRecord() {
	hs.h.Write([]byte{0x1e})
}

// Sum returns the accumulated fingerprint
func (hs *Hasher) Sum() Hash {
	return Hash(hex.EncodeToString(hs.h.Sum(nil)))
}
