package zip64

import (
	"bytes"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
)

// ZipFileSegment is a buffered member writer: writes
// accumulate in memory and are only laid out on disk (local header +
// payload + ZIP64 data descriptor, optionally deflated) on Close. It
// is the Stream upper layers like imagestream's BevyWriter write
// finished member payloads through.
type ZipFileSegment struct {
	volume *Volume
	name   string
	method CompressionMethod
	buf    bytes.Buffer
	closed bool
}

// CreateMemberBuffered opens a new buffered member for writing. The
// member is not visible in the volume's directory until Close. It
// returns aff4io.Stream rather than the concrete *ZipFileSegment so
// callers coding against a MemberVolume-shaped interface (imagestream,
// mapstream) see the same return type from any volume backend,
// including the Directory-backed one.
func (v *Volume) CreateMemberBuffered(name string, method CompressionMethod) aff4io.Stream {
	return &ZipFileSegment{volume: v, name: name, method: method}
}

func (s *ZipFileSegment) Properties() aff4io.Properties {
	return aff4io.Properties{Seekable: false, Sizeable: true, Writable: true}
}

func (s *ZipFileSegment) Read([]byte) (int, error) {
	return 0, aff4error.New(aff4error.InvalidInput, "buffered member is not readable before Close")
}

func (s *ZipFileSegment) Write(p []byte) (int, error) {
	if s.closed {
		return 0, aff4error.New(aff4error.InvalidInput, "buffered member already closed")
	}
	return s.buf.Write(p)
}

func (s *ZipFileSegment) Seek(int64, aff4io.Whence) (int64, error) {
	return 0, aff4error.New(aff4error.InvalidInput, "buffered member is append-only before Close")
}

func (s *ZipFileSegment) Size() (int64, error) { return int64(s.buf.Len()), nil }

func (s *ZipFileSegment) Truncate() error {
	s.buf.Reset()
	return nil
}

// Flush is a no-op: a buffered member only commits to the volume on Close.
func (s *ZipFileSegment) Flush() error { return nil }

// Close commits the accumulated bytes to the volume as one member.
func (s *ZipFileSegment) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.volume.AddMemberBuffered(s.name, s.buf.Bytes(), s.method)
}
