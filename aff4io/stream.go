// Package aff4io defines the common byte-stream contract every AFF4
// stream implementation (ImageStream, Map, ZipSegment, FileBackedObject,
// the symbolic streams) satisfies, plus the bulk-transfer helpers built
// on top of it.
package aff4io

import (
	"io"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
)

// Whence mirrors io.Seek{Start,Current,End} under AFF4's own names so
// callers don't need to import "io" just to seek a Stream.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// Properties describes which operations a Stream supports. A stream
// that is !Seekable only supports sequential forward reads (e.g. a
// streamed ZIP member mid-decompression); a stream that is !Sizeable
// cannot report a size or honor SeekEnd; a stream that is !Writable rejects Write.
type Properties struct {
	Seekable bool
	Sizeable bool
	Writable bool
}

// MaxReadLen is the library-wide cap on a single Read call's length.
// Callers asking for more get it in a single short read up to this
// bound, never an error.
const MaxReadLen = 100 * 1024 * 1024

// Stream is the capability set every AFF4 byte-stream implementation
// satisfies. Every concrete kind (ImageStream, Map, ZipSegment,
// FileBackedObject, the symbolic streams) implements this directly
// rather than through an open-ended registry (see the "Registration
// factories" redesign note): the variants are closed and known ahead
// of time.
type Stream interface {
	// Properties reports which operations are supported.
	Properties() Properties

	// Read reads up to len(p) bytes (capped at MaxReadLen) from the
	// current read pointer, advancing it by the number of bytes
	// returned. Read returns io.EOF once the read pointer reaches the
	// stream's size.
	Read(p []byte) (n int, err error)

	// Write fails with InvalidInput if !Writable. On a seekable stream
	// it writes at the current read/write pointer and advances it,
	// growing Size if it writes past the end.
	Write(p []byte) (n int, err error)

	// Seek repositions the read/write pointer. It fails with
	// InvalidInput if !Seekable; SeekEnd fails if !Sizeable. A
	// negative resulting absolute offset is clamped to 0.
	Seek(offset int64, whence Whence) (int64, error)

	// Size reports the stream's current length, or -1 if !Sizeable.
	Size() (int64, error)

	// Truncate resets the stream's content and read/write pointer to
	// 0. Fails with InvalidInput if !Seekable.
	Truncate() error

	// Flush persists any buffered state. For most stream kinds this
	// is a no-op; FileBackedObject and the ZIP64 volume's buffered
	// members use it to commit pending writes.
	Flush() error

	// Close releases any OS resources held by the stream.
	Close() error
}

// VolumeSwitcher is implemented by streams whose backing volume can be
// rebound between flushes (e.g. an ImageStream mid-capture switching
// to a freshly rolled-over output volume). Not every Stream supports
// this, so it is a separate, optionally-asserted interface rather
// than part of Stream itself.
type VolumeSwitcher interface {
	// CanSwitchVolume reports whether the stream is at a checkpoint
	// consistent enough to rebind its backing volume right now.
	CanSwitchVolume() bool

	// SwitchVolume rebinds the stream's backing volume. newVolume is
	// typed as interface{} here to avoid an import cycle with the
	// volume package, which itself depends on aff4io.Stream; callers
	// type-assert to their concrete volume.Volume.
	SwitchVolume(newVolume interface{}) error
}

// ReadFull reads exactly len(p) bytes from s, or returns io.ErrUnexpectedEOF
// if the stream runs out first. It is the Stream-interface analogue of
// io.ReadFull, used by callers (bevy decompression, map range
// stitching) that need a fixed-size buffer fully populated.
func ReadFull(s Stream, p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := s.Read(p[n:])
		n += m
		if err != nil {
			if err == io.EOF && n == len(p) {
				return n, nil
			}
			if err == io.EOF {
				return n, io.ErrUnexpectedEOF
			}
			return n, err
		}
	}
	return n, nil
}

// requireWritable is the common guard Write implementations open with.
func requireWritable(p Properties) error {
	if !p.Writable {
		return aff4error.New(aff4error.InvalidInput, "stream is not writable")
	}
	return nil
}

// requireSeekable is the common guard Seek/Truncate implementations
// open with.
func requireSeekable(p Properties) error {
	if !p.Seekable {
		return aff4error.New(aff4error.InvalidInput, "stream is not seekable")
	}
	return nil
}
