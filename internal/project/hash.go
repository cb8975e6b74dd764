package project

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is the SHA-256 of a project file's bytes.
type Digest [32]byte

// Sum hashes raw project content.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// Combine hashes content followed by every dep digest, in order. Callers keep
// deps in a deterministic order.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short is the first 12 hex digits, enough to tell runs apart in reports.
func (d Digest) Short() string { return d.String()[:12] }

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }
