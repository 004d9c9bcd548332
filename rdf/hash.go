package rdf

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
)

// ComputeHash digests data with kind's algorithm and returns the
// result as a HashValue, hex-encoded the same way RDFBytes is.
// Callers use this to populate provenance predicates (e.g. a
// resolver-recorded content hash of a finished ImageStream) without
// hand-rolling per-algorithm digest plumbing at each call site.
func ComputeHash(kind HashKind, data []byte) (HashValue, error) {
	var sum []byte
	switch kind {
	case MD5:
		h := md5.Sum(data)
		sum = h[:]
	case SHA1:
		h := sha1.Sum(data)
		sum = h[:]
	case SHA256:
		h := sha256.Sum256(data)
		sum = h[:]
	case SHA512:
		h := sha512.Sum512(data)
		sum = h[:]
	case Blake2B:
		h := blake2b.Sum256(data)
		sum = h[:]
	default:
		return HashValue{}, aff4error.Newf(aff4error.InvalidInput, "unsupported hash kind %d", kind)
	}
	return HashValue{Kind: kind, Hex: hex.EncodeToString(sum)}, nil
}

// NewHasher returns an incremental hash.Hash for kind, for callers
// streaming bytes through (e.g. a bulk copy) rather than holding the
// whole payload in memory before hashing it.
func NewHasher(kind HashKind) (hash.Hash, error) {
	switch kind {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case Blake2B:
		return blake2b.New256(nil)
	default:
		return nil, aff4error.Newf(aff4error.InvalidInput, "unsupported hash kind %d", kind)
	}
}
