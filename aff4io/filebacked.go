package aff4io

import (
	"io"
	"os"
	"path/filepath"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
)

// FileMode selects how FileBackedObject opens its backing OS file.
type FileMode int

const (
	// ModeRead opens an existing file read-only. Size is discovered
	// via SEEK_END; seekability is probed with a SEEK_CUR no-op.
	ModeRead FileMode = iota
	// ModeTruncate creates (or truncates) the file for read/write.
	// After the first Flush/Close the caller transitions subsequent
	// opens to ModeAppend, so a second open against the same URN extends rather than
	// re-truncates.
	ModeTruncate
	// ModeAppend opens-or-creates the file read/write without
	// truncating, positioned for appending new content past the
	// current end.
	ModeAppend
)

// FileBackedObject is a Stream backed directly by an OS file.
// It is the leaf storage primitive the ZIP64 volume and the
// Directory-backed volume both build on.
type FileBackedObject struct {
	path string
	fd   *os.File
	mode FileMode
	pos  int64

	seekable bool
	sizeable bool
	writable bool
}

// OpenFileBackedObject opens path under the given mode, creating
// missing intermediate directories for ModeTruncate/ModeAppend.
// For ModeRead, a raw block device (or any file whose size cannot be
// determined) is reported !Sizeable with Size()==-1 and SeekEnd
// disabled, rather than failing the open.
func OpenFileBackedObject(path string, mode FileMode) (*FileBackedObject, error) {
	switch mode {
	case ModeRead:
		fd, err := os.Open(path)
		if err != nil {
			return nil, aff4error.Wrapf(aff4error.IoError, err, "opening %q for read", path)
		}
		o := &FileBackedObject{path: path, fd: fd, mode: mode, writable: false}
		o.probeSeekSize()
		return o, nil

	case ModeTruncate:
		if err := mkdirAllFor(path); err != nil {
			return nil, err
		}
		fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, aff4error.Wrapf(aff4error.IoError, err, "truncating %q", path)
		}
		return &FileBackedObject{path: path, fd: fd, mode: mode, seekable: true, sizeable: true, writable: true}, nil

	case ModeAppend:
		if err := mkdirAllFor(path); err != nil {
			return nil, err
		}
		fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, aff4error.Wrapf(aff4error.IoError, err, "opening %q for append", path)
		}
		pos, err := fd.Seek(0, io.SeekEnd)
		if err != nil {
			fd.Close()
			return nil, aff4error.Wrapf(aff4error.IoError, err, "seeking to end of %q", path)
		}
		return &FileBackedObject{path: path, fd: fd, mode: mode, pos: pos, seekable: true, sizeable: true, writable: true}, nil

	default:
		return nil, aff4error.Newf(aff4error.InvalidInput, "unknown file mode %d", mode)
	}
}

func mkdirAllFor(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return aff4error.Wrapf(aff4error.IoError, err, "creating directory %q", dir)
	}
	return nil
}

// probeSeekSize determines seekability (a SEEK_CUR no-op must
// succeed) and sizeability (SEEK_END must succeed): raw block devices
// often support the former but not a meaningful latter.
func (o *FileBackedObject) probeSeekSize() {
	if _, err := o.fd.Seek(0, io.SeekCurrent); err == nil {
		o.seekable = true
	}
	if size, err := o.fd.Seek(0, io.SeekEnd); err == nil {
		o.sizeable = true
		o.fd.Seek(0, io.SeekStart)
		_ = size
	}
}

// Path returns the OS path this object was opened against.
func (o *FileBackedObject) Path() string { return o.path }

// Properties implements Stream.
func (o *FileBackedObject) Properties() Properties {
	return Properties{Seekable: o.seekable, Sizeable: o.sizeable, Writable: o.writable}
}

// Read implements Stream.
func (o *FileBackedObject) Read(p []byte) (int, error) {
	if len(p) > MaxReadLen {
		p = p[:MaxReadLen]
	}
	n, err := o.fd.ReadAt(p, o.pos)
	o.pos += int64(n)
	if err != nil && err != io.EOF {
		return n, aff4error.Wrapf(aff4error.IoError, err, "reading %q", o.path)
	}
	return n, err
}

// Write implements Stream.
func (o *FileBackedObject) Write(p []byte) (int, error) {
	if err := requireWritable(o.Properties()); err != nil {
		return 0, err
	}
	n, err := o.fd.WriteAt(p, o.pos)
	o.pos += int64(n)
	if err != nil {
		return n, aff4error.Wrapf(aff4error.IoError, err, "writing %q", o.path)
	}
	return n, nil
}

// Seek implements Stream. Negative resulting offsets clamp to 0.
func (o *FileBackedObject) Seek(offset int64, whence Whence) (int64, error) {
	if err := requireSeekable(o.Properties()); err != nil {
		return 0, err
	}
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = o.pos
	case SeekEnd:
		if !o.sizeable {
			return 0, aff4error.New(aff4error.InvalidInput, "stream size is unknown, cannot seek from end")
		}
		size, err := o.Size()
		if err != nil {
			return 0, err
		}
		base = size
	default:
		return 0, aff4error.Newf(aff4error.InvalidInput, "invalid whence %d", whence)
	}
	newPos := base + offset
	if newPos < 0 {
		newPos = 0
	}
	o.pos = newPos
	return o.pos, nil
}

// Size implements Stream.
func (o *FileBackedObject) Size() (int64, error) {
	if !o.sizeable {
		return -1, nil
	}
	fi, err := o.fd.Stat()
	if err != nil {
		return -1, aff4error.Wrapf(aff4error.IoError, err, "stat %q", o.path)
	}
	return fi.Size(), nil
}

// Truncate implements Stream: resets content and the read/write
// pointer to 0, and flips this object's mode to ModeAppend
// so a subsequent Write extends rather than being mistaken for a
// fresh truncation by callers inspecting Mode().
func (o *FileBackedObject) Truncate() error {
	if err := requireSeekable(o.Properties()); err != nil {
		return err
	}
	if err := o.fd.Truncate(0); err != nil {
		return aff4error.Wrapf(aff4error.IoError, err, "truncating %q", o.path)
	}
	o.pos = 0
	o.mode = ModeAppend
	return nil
}

// Mode reports the object's current open mode, reflecting the
// truncate-then-append flip.
func (o *FileBackedObject) Mode() FileMode { return o.mode }

// String implements the description leveled loggers key off of.
func (o *FileBackedObject) String() string { return o.path }

// Flush implements Stream: fsyncs the backing file.
func (o *FileBackedObject) Flush() error {
	if !o.writable {
		return nil
	}
	if err := o.fd.Sync(); err != nil {
		return aff4error.Wrapf(aff4error.IoError, err, "flushing %q", o.path)
	}
	return nil
}

// Close implements Stream.
func (o *FileBackedObject) Close() error {
	if err := o.fd.Close(); err != nil {
		return aff4error.Wrapf(aff4error.IoError, err, "closing %q", o.path)
	}
	return nil
}
