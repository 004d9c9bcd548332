package zip64

import (
	"compress/flate"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
)

// memberView is a read-only Stream over a Stored member: a slice of
// the backing file, read through ReadAt so it never disturbs the
// volume's own write cursor.
type memberView struct {
	file   *aff4io.FileBackedObject
	start  int64
	length int64
	pos    int64
}

func newMemberView(f *aff4io.FileBackedObject, start, length int64) *memberView {
	return &memberView{file: f, start: start, length: length}
}

func (m *memberView) Properties() aff4io.Properties {
	return aff4io.Properties{Seekable: true, Sizeable: true, Writable: false}
}

func (m *memberView) Read(p []byte) (int, error) {
	if m.pos >= m.length {
		return 0, io.EOF
	}
	want := int64(len(p))
	if remaining := m.length - m.pos; remaining < want {
		want = remaining
	}
	n, err := fileAdapter{m.file}.ReadAt(p[:want], m.start+m.pos)
	m.pos += int64(n)
	if err != nil {
		return n, aff4error.Wrap(aff4error.IoError, err, "reading member view")
	}
	return n, nil
}

func (m *memberView) Write([]byte) (int, error) {
	return 0, aff4error.New(aff4error.InvalidInput, "member view is read-only")
}

func (m *memberView) Seek(offset int64, whence aff4io.Whence) (int64, error) {
	var base int64
	switch whence {
	case aff4io.SeekSet:
		base = 0
	case aff4io.SeekCur:
		base = m.pos
	case aff4io.SeekEnd:
		base = m.length
	default:
		return 0, aff4error.Newf(aff4error.InvalidInput, "invalid whence %d", whence)
	}
	newPos := base + offset
	if newPos < 0 {
		newPos = 0
	}
	m.pos = newPos
	return m.pos, nil
}

func (m *memberView) Size() (int64, error) { return m.length, nil }
func (m *memberView) Truncate() error {
	return aff4error.New(aff4error.InvalidInput, "member view is read-only")
}
func (m *memberView) Flush() error { return nil }
func (m *memberView) Close() error { return nil }

// memoryStream is a read-only Stream over an in-memory buffer, used
// for inflated Deflate members.
type memoryStream struct {
	data []byte
	pos  int64
}

func newMemoryStream(data []byte) *memoryStream { return &memoryStream{data: data} }

func (m *memoryStream) Properties() aff4io.Properties {
	return aff4io.Properties{Seekable: true, Sizeable: true, Writable: false}
}

func (m *memoryStream) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memoryStream) Write([]byte) (int, error) {
	return 0, aff4error.New(aff4error.InvalidInput, "memory stream is read-only")
}

func (m *memoryStream) Seek(offset int64, whence aff4io.Whence) (int64, error) {
	var base int64
	switch whence {
	case aff4io.SeekSet:
		base = 0
	case aff4io.SeekCur:
		base = m.pos
	case aff4io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, aff4error.Newf(aff4error.InvalidInput, "invalid whence %d", whence)
	}
	newPos := base + offset
	if newPos < 0 {
		newPos = 0
	}
	m.pos = newPos
	return m.pos, nil
}

func (m *memoryStream) Size() (int64, error) { return int64(len(m.data)), nil }
func (m *memoryStream) Truncate() error {
	return aff4error.New(aff4error.InvalidInput, "memory stream is read-only")
}
func (m *memoryStream) Flush() error { return nil }
func (m *memoryStream) Close() error { return nil }

// StreamMemberWriter is the streamed member writer: the local header is written immediately with a
// zero CRC/sizes and the "data descriptor follows" flag set; bytes are
// piped through the chosen compression codec directly into the
// backing file as they arrive, and the real CRC/sizes are only known
// (and written, as a trailing ZIP64 data descriptor) once Close runs.
type StreamMemberWriter struct {
	v      *Volume
	name   string
	method CompressionMethod

	localOffset int64
	crc         uint32
	compSize    uint64
	uncompSize  uint64

	flateWriter *flate.Writer
	closed      bool
}

// StreamAddMember begins a streamed member write.
func (v *Volume) StreamAddMember(name string, method CompressionMethod) (*StreamMemberWriter, error) {
	if !v.writable {
		return nil, aff4error.New(aff4error.InvalidInput, "volume is read-only")
	}
	localOffset, err := v.currentNominalOffset()
	if err != nil {
		return nil, err
	}
	if err := v.writeStreamedLocalHeader(name, method); err != nil {
		return nil, err
	}
	w := &StreamMemberWriter{v: v, name: name, method: method, localOffset: localOffset}
	if method == MethodDeflated {
		fw, err := flate.NewWriter(streamFileWriter{v}, flate.DefaultCompression)
		if err != nil {
			return nil, aff4error.Wrap(aff4error.MemoryError, err, "initializing streamed deflate writer")
		}
		w.flateWriter = fw
	}
	return w, nil
}

// writeStreamedLocalHeader writes a local header with flag bit 3 set
// (sizes/CRC follow in a trailing data descriptor) and zeroed
// size/CRC fields, per the ZIP "streaming" convention.
func (v *Volume) writeStreamedLocalHeader(name string, method CompressionMethod) error {
	hdr := make([]byte, localFileHeaderFixedSize)
	binary.LittleEndian.PutUint32(hdr[0:4], sigLocalFileHeader)
	binary.LittleEndian.PutUint16(hdr[4:6], 45)
	binary.LittleEndian.PutUint16(hdr[6:8], 1<<3) // bit 3: data descriptor follows
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(method))
	binary.LittleEndian.PutUint16(hdr[10:12], 0)
	binary.LittleEndian.PutUint16(hdr[12:14], 0)
	binary.LittleEndian.PutUint32(hdr[14:18], 0)
	binary.LittleEndian.PutUint32(hdr[18:22], 0)
	binary.LittleEndian.PutUint32(hdr[22:26], 0)
	binary.LittleEndian.PutUint16(hdr[26:28], uint16(len(name)))
	binary.LittleEndian.PutUint16(hdr[28:30], 0)
	if _, err := v.file.Write(hdr); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing streamed local header")
	}
	if _, err := v.file.Write([]byte(name)); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing streamed local header name")
	}
	return nil
}

// streamFileWriter adapts Volume's backing file to io.Writer for the
// flate path. It does not count bytes; Close derives the compressed
// size from the file offset instead.
type streamFileWriter struct{ v *Volume }

func (w streamFileWriter) Write(p []byte) (int, error) {
	n, err := w.v.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, nil
}

// Write compresses (if configured) and appends p to the member's
// payload, updating the running CRC32 over the uncompressed bytes.
func (w *StreamMemberWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, aff4error.New(aff4error.InvalidInput, "stream member writer already closed")
	}
	w.crc = crc32.Update(w.crc, crc32.IEEETable, p)
	w.uncompSize += uint64(len(p))
	if w.method == MethodStored {
		n, err := w.v.file.Write(p)
		if err != nil {
			return n, aff4error.Wrap(aff4error.IoError, err, "writing streamed member payload")
		}
		w.compSize += uint64(n)
		return n, nil
	}
	if _, err := w.flateWriter.Write(p); err != nil {
		return 0, aff4error.Wrap(aff4error.IoError, err, "deflating streamed member")
	}
	return len(p), nil
}

// Close finalizes the member: flushes any pending compressed bytes,
// measures the final compressed size, writes the ZIP64 data
// descriptor, and registers the member in the volume's directory.
func (w *StreamMemberWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.method == MethodDeflated {
		if err := w.flateWriter.Close(); err != nil {
			return aff4error.Wrap(aff4error.IoError, err, "closing streamed deflate writer")
		}
		payloadStartNominal := w.localOffset + localFileHeaderFixedSize + int64(len(w.name))
		endNominal, err := w.v.currentNominalOffset()
		if err != nil {
			return err
		}
		w.compSize = uint64(endNominal - payloadStartNominal)
	}

	if err := w.writeDataDescriptor(); err != nil {
		return err
	}

	w.v.entries[w.name] = &Entry{
		Name:              w.name,
		Method:            w.method,
		CRC32:             w.crc,
		CompressedSize:    w.compSize,
		UncompressedSize:  w.uncompSize,
		LocalHeaderOffset: uint64(w.localOffset),
	}
	w.v.order = append(w.v.order, w.name)
	w.v.dirty = true
	return nil
}

func (w *StreamMemberWriter) writeDataDescriptor() error {
	buf := make([]byte, dataDescriptorSize)
	binary.LittleEndian.PutUint32(buf[0:4], sigDataDescriptor)
	binary.LittleEndian.PutUint32(buf[4:8], w.crc)
	binary.LittleEndian.PutUint64(buf[8:16], w.compSize)
	binary.LittleEndian.PutUint64(buf[16:24], w.uncompSize)
	_, err := w.v.file.Write(buf)
	if err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing zip64 data descriptor")
	}
	return nil
}
