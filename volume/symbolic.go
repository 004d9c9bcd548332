// Package volume implements the AFF4 volume group and stream factory:
// dispatching a URN to the concrete stream kind (ImageStream, Map,
// plain volume member) its rdf:type names, the reserved symbolic
// stream family, and a second concrete Volume backend that lays one
// member per host file instead of packing them into a ZIP64 archive.
package volume

import (
	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
)

// Reserved symbolic stream URNs.
// SymbolicStreamXX is generated for XX in 00..FF by SymbolicStreamURN.
const (
	symbolicBase = "aff4://e17bfd09-1809-4346-9559-42788f5c6e48/"

	URNZero           = symbolicBase + "Zero"
	URNFF             = symbolicBase + "FF"
	URNUnknownData    = symbolicBase + "UnknownData"
	URNUnreadableData = symbolicBase + "UnreadableData"
)

const hexDigits = "0123456789ABCDEF"

// SymbolicStreamURN returns the reserved URN for SymbolicStreamXX,
// b's two-hex-digit byte value.
func SymbolicStreamURN(b byte) string {
	return symbolicBase + "SymbolicStream" + string([]byte{hexDigits[b>>4], hexDigits[b&0xf]})
}

// symbolicModulus bounds how far SymbolicStream's read pointer is
// allowed to grow before wrapping, so arbitrarily long sequential
// reads never depend on signed-integer overflow behavior -- the
// pointer instead wraps via an explicit modulo against a constant
// comfortably larger than any single read, while staying well inside
// int64's range.
const symbolicModulus = 1 << 48

// SymbolicStream is a virtual, infinite-length stream that returns a
// constant byte or a short repeating pattern forever: Zero, FF,
// UnknownData, UnreadableData and the SymbolicStreamXX family are all
// instances of this with different patterns.
type SymbolicStream struct {
	name    string
	pattern []byte
	pos     int64
}

// NewSymbolicStream creates a symbolic stream named name (used only
// for logging/description) that repeats pattern forever. pattern must
// be non-empty.
func NewSymbolicStream(name string, pattern []byte) *SymbolicStream {
	return &SymbolicStream{name: name, pattern: pattern}
}

// String implements the aff4log description interface.
func (s *SymbolicStream) String() string { return s.name }

// Properties implements aff4io.Stream: infinite streams report
// !Sizeable so SeekEnd and Size() are meaningfully rejected/−1.
func (s *SymbolicStream) Properties() aff4io.Properties {
	return aff4io.Properties{Seekable: true, Sizeable: false, Writable: false}
}

// Size implements aff4io.Stream.
func (s *SymbolicStream) Size() (int64, error) { return -1, nil }

// Read fills p entirely from the repeating pattern, starting at the
// byte offset s.pos mod len(pattern); it never returns io.EOF.
func (s *SymbolicStream) Read(p []byte) (int, error) {
	if len(p) > aff4io.MaxReadLen {
		p = p[:aff4io.MaxReadLen]
	}
	plen := int64(len(s.pattern))
	for i := range p {
		idx := (s.pos + int64(i)) % plen
		p[i] = s.pattern[idx]
	}
	s.pos = (s.pos + int64(len(p))) % (plen * symbolicModulus)
	return len(p), nil
}

// Write always fails: symbolic streams are read-only.
func (s *SymbolicStream) Write([]byte) (int, error) {
	return 0, aff4error.New(aff4error.InvalidInput, "symbolic stream is read-only")
}

// Seek repositions the virtual read pointer. A negative resulting
// offset clamps to 0, matching every other Stream's Seek contract;
// SeekEnd is rejected since the stream is !Sizeable.
func (s *SymbolicStream) Seek(offset int64, whence aff4io.Whence) (int64, error) {
	var base int64
	switch whence {
	case aff4io.SeekSet:
		base = 0
	case aff4io.SeekCur:
		base = s.pos
	case aff4io.SeekEnd:
		return 0, aff4error.New(aff4error.InvalidInput, "symbolic stream has no end to seek from")
	default:
		return 0, aff4error.Newf(aff4error.InvalidInput, "invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		pos = 0
	}
	plen := int64(len(s.pattern))
	s.pos = pos % (plen * symbolicModulus)
	return s.pos, nil
}

// Truncate always fails: symbolic streams are read-only.
func (s *SymbolicStream) Truncate() error {
	return aff4error.New(aff4error.InvalidInput, "symbolic stream is read-only")
}

func (s *SymbolicStream) Flush() error { return nil }
func (s *SymbolicStream) Close() error { return nil }
