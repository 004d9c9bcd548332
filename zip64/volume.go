package zip64

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/aff4log"
	"github.com/Velocidex/c-aff4-sub000/rdf"
	"github.com/Velocidex/c-aff4-sub000/resolver"
)

// VersionText is written verbatim into the mandatory version.txt
// member. Exported so other volume backends (the
// Directory-backed one) write an identical version.txt.
const VersionText = "major=1\nminor=1\ntool=aff4-sub000 1.0\n"

// Volume is an AFF4 ZIP64 container: a set of named members plus the
// resolver metadata describing them, backed by a single OS file.
type Volume struct {
	URN      rdf.URN
	Resolver *resolver.Resolver

	file         *aff4io.FileBackedObject
	globalOffset int64
	entries      map[string]*Entry
	order        []string // insertion order, preserved on Flush
	writable     bool
	dirty        bool
}

// CreateVolume creates a brand new volume at path, writing the two
// mandatory initial members. The volume's globalOffset
// is 0: nothing is assumed to precede it. To embed a volume after
// existing bytes (e.g. appending to a host executable), truncate is
// not used -- see CreateAppendedVolume.
func CreateVolume(path string, urn rdf.URN) (*Volume, error) {
	f, err := aff4io.OpenFileBackedObject(path, aff4io.ModeTruncate)
	if err != nil {
		return nil, err
	}
	return newVolumeForWriting(f, urn, 0)
}

// CreateAppendedVolume opens path in append mode and creates a new
// volume whose members start at the file's current length, so any
// bytes already in the file become this volume's global_offset once
// it is later reopened.
func CreateAppendedVolume(path string, urn rdf.URN) (*Volume, error) {
	f, err := aff4io.OpenFileBackedObject(path, aff4io.ModeAppend)
	if err != nil {
		return nil, err
	}
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	return newVolumeForWriting(f, urn, size)
}

func newVolumeForWriting(f *aff4io.FileBackedObject, urn rdf.URN, globalOffset int64) (*Volume, error) {
	v := &Volume{
		URN:          urn,
		Resolver:     resolver.New(),
		file:         f,
		globalOffset: globalOffset,
		entries:      make(map[string]*Entry),
		writable:     true,
	}
	v.Resolver.Set(urn, resolver.PredRDFType, rdf.RDFURN{URN: resolver.TypeZip}, true)
	if err := v.AddMemberBuffered("container.description", []byte(string(urn)), MethodStored); err != nil {
		return nil, err
	}
	if err := v.AddMemberBuffered("version.txt", []byte(VersionText), MethodStored); err != nil {
		return nil, err
	}
	return v, nil
}

// OpenVolume opens an existing volume for reading (and, if path is
// writable, further appends). It recovers global_offset and the
// central directory, replacing the nominal URN with the one recorded
// in the archive comment when present.
func OpenVolume(path string, urn rdf.URN, writable bool) (*Volume, error) {
	mode := aff4io.ModeRead
	if writable {
		mode = aff4io.ModeAppend
	}
	f, err := aff4io.OpenFileBackedObject(path, mode)
	if err != nil {
		return nil, err
	}

	directoryOffset, totalEntries, globalOffset, comment, err := locateCentralDirectory(fileAdapter{f})
	if err != nil {
		return nil, err
	}
	rawEntries, err := readCentralDirectoryEntries(fileAdapter{f}, directoryOffset, globalOffset, totalEntries)
	if err != nil {
		return nil, err
	}
	// The archive comment holds the volume's real URN;
	// the caller's urn is only a placeholder used until we know better.
	if comment != "" {
		urn = rdf.NewURN(comment)
	}

	v := &Volume{
		URN:          urn,
		Resolver:     resolver.New(),
		file:         f,
		globalOffset: globalOffset,
		entries:      make(map[string]*Entry),
		writable:     writable,
	}
	for i := range rawEntries {
		e := rawEntries[i]
		v.entries[e.Name] = &e
		v.order = append(v.order, e.Name)
	}

	if turtle, ok := v.entries["information.turtle"]; ok {
		stream, err := v.openEntry(turtle)
		if err == nil {
			if lerr := v.Resolver.LoadFromTurtle(stream); lerr != nil {
				aff4log.Errorf(v, "loading information.turtle: %v", lerr)
			}
		}
	}
	v.Resolver.Set(v.URN, resolver.PredRDFType, rdf.RDFURN{URN: resolver.TypeZip}, true)
	aff4log.Infof(v, "opened volume with %d members, global_offset=%d", len(v.entries), globalOffset)
	return v, nil
}

// String implements the aff4log description interface.
func (v *Volume) String() string { return string(v.URN) }

// Path returns the OS path of the file this volume is backed by, for
// callers wanting to register its containing directory as a search
// path the way opening one volume discovers its siblings.
func (v *Volume) Path() string { return v.file.Path() }

// fileAdapter exposes aff4io.FileBackedObject's Seek/Read contract as
// the plain ReadAt-based backingReader central directory parsing
// wants, independent of the Stream's own read pointer.
type fileAdapter struct{ f *aff4io.FileBackedObject }

func (a fileAdapter) ReadAt(p []byte, off int64) (int, error) {
	cur, err := a.f.Seek(0, aff4io.SeekCur)
	if err != nil {
		return 0, err
	}
	defer a.f.Seek(cur, aff4io.SeekSet)
	if _, err := a.f.Seek(off, aff4io.SeekSet); err != nil {
		return 0, err
	}
	return io.ReadFull(readerOf{a.f}, p)
}

func (a fileAdapter) Size() (int64, error) { return a.f.Size() }

// readerOf adapts a Stream to io.Reader.
type readerOf struct{ s aff4io.Stream }

func (r readerOf) Read(p []byte) (int, error) { return r.s.Read(p) }

// HasMember reports whether name exists in this volume.
func (v *Volume) HasMember(name string) bool {
	_, ok := v.entries[name]
	return ok
}

// MemberNames returns every member name in insertion/CD order.
func (v *Volume) MemberNames() []string {
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}

// OpenMember opens an existing member for reading.
func (v *Volume) OpenMember(name string) (aff4io.Stream, error) {
	e, ok := v.entries[name]
	if !ok {
		return nil, aff4error.Newf(aff4error.NotFound, "no member %q in volume %q", name, v.URN)
	}
	return v.openEntry(e)
}

// openEntry reads the local file header, verifies it, and returns
// either a direct view (Stored) or a fully inflated in-memory buffer
// (Deflated).
func (v *Volume) openEntry(e *Entry) (aff4io.Stream, error) {
	localOffset := int64(e.LocalHeaderOffset) + v.globalOffset
	hdr := make([]byte, localFileHeaderFixedSize)
	if _, err := fileAdapter{v.file}.ReadAt(hdr, localOffset); err != nil {
		return nil, aff4error.Wrapf(aff4error.IoError, err, "reading local header for %q", e.Name)
	}
	if binary.LittleEndian.Uint32(hdr) != sigLocalFileHeader {
		return nil, aff4error.Newf(aff4error.ParsingError, "local header signature mismatch for %q", e.Name)
	}
	method := CompressionMethod(binary.LittleEndian.Uint16(hdr[8:10]))
	if method != e.Method {
		return nil, aff4error.Newf(aff4error.ParsingError, "local header method mismatch for %q", e.Name)
	}
	nameLen := binary.LittleEndian.Uint16(hdr[26:28])
	extraLen := binary.LittleEndian.Uint16(hdr[28:30])
	payloadOffset := localOffset + localFileHeaderFixedSize + int64(nameLen) + int64(extraLen)

	switch method {
	case MethodStored:
		return newMemberView(v.file, payloadOffset, int64(e.CompressedSize)), nil
	case MethodDeflated:
		raw := make([]byte, e.CompressedSize)
		if _, err := fileAdapter{v.file}.ReadAt(raw, payloadOffset); err != nil {
			return nil, aff4error.Wrapf(aff4error.IoError, err, "reading compressed payload for %q", e.Name)
		}
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		out := make([]byte, 0, e.UncompressedSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, fr); err != nil {
			return nil, aff4error.Wrapf(aff4error.IoError, err, "inflating %q", e.Name)
		}
		return newMemoryStream(buf.Bytes()), nil
	default:
		return nil, aff4error.Newf(aff4error.NotImplemented, "unsupported zip compression method %d for %q", method, e.Name)
	}
}

// AddMemberBuffered writes data as a single member: local header,
// payload, and its ZIP64 data descriptor, all written in one shot.
// CRC32 is computed over the uncompressed bytes.
func (v *Volume) AddMemberBuffered(name string, data []byte, method CompressionMethod) error {
	if !v.writable {
		return aff4error.New(aff4error.InvalidInput, "volume is read-only")
	}
	payload := data
	if method == MethodDeflated {
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return aff4error.Wrap(aff4error.MemoryError, err, "initializing deflate writer")
		}
		if _, err := fw.Write(data); err != nil {
			return aff4error.Wrap(aff4error.IoError, err, "deflating member")
		}
		if err := fw.Close(); err != nil {
			return aff4error.Wrap(aff4error.IoError, err, "closing deflate writer")
		}
		payload = buf.Bytes()
	}

	crc := crc32.ChecksumIEEE(data)
	localOffset, err := v.currentNominalOffset()
	if err != nil {
		return err
	}

	if err := v.writeLocalHeader(name, method, crc, uint64(len(payload)), uint64(len(data))); err != nil {
		return err
	}
	if _, err := v.file.Write(payload); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing member payload")
	}
	desc := make([]byte, dataDescriptorSize)
	binary.LittleEndian.PutUint32(desc[0:4], sigDataDescriptor)
	binary.LittleEndian.PutUint32(desc[4:8], crc)
	binary.LittleEndian.PutUint64(desc[8:16], uint64(len(payload)))
	binary.LittleEndian.PutUint64(desc[16:24], uint64(len(data)))
	if _, err := v.file.Write(desc); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing zip64 data descriptor")
	}

	v.entries[name] = &Entry{
		Name:              name,
		Method:            method,
		CRC32:             crc,
		CompressedSize:    uint64(len(payload)),
		UncompressedSize:  uint64(len(data)),
		LocalHeaderOffset: uint64(localOffset),
	}
	v.order = append(v.order, name)
	v.dirty = true
	return nil
}

// currentNominalOffset returns the write position in zip-zero
// (nominal) coordinates: the real file position minus global_offset.
func (v *Volume) currentNominalOffset() (int64, error) {
	real, err := v.file.Seek(0, aff4io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return real - v.globalOffset, nil
}

// writeLocalHeader writes a local file header, always with a ZIP64
// extra field carrying the real (uncompressed, compressed) sizes --
// this volume engine never omits it, regardless of whether the sizes
// would fit in 32 bits, to keep every member's header shape uniform.
func (v *Volume) writeLocalHeader(name string, method CompressionMethod, crc uint32, compSize, uncompSize uint64) error {
	extra := buildZip64ExtraFieldLocal(uncompSize, compSize)
	hdr := make([]byte, localFileHeaderFixedSize)
	binary.LittleEndian.PutUint32(hdr[0:4], sigLocalFileHeader)
	binary.LittleEndian.PutUint16(hdr[4:6], 45) // version needed: zip64
	binary.LittleEndian.PutUint16(hdr[6:8], 0)  // flags
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(method))
	binary.LittleEndian.PutUint16(hdr[10:12], 0) // mod time
	binary.LittleEndian.PutUint16(hdr[12:14], 0) // mod date
	binary.LittleEndian.PutUint32(hdr[14:18], crc)
	binary.LittleEndian.PutUint32(hdr[18:22], sentinel32)
	binary.LittleEndian.PutUint32(hdr[22:26], sentinel32)
	binary.LittleEndian.PutUint16(hdr[26:28], uint16(len(name)))
	binary.LittleEndian.PutUint16(hdr[28:30], uint16(len(extra)))
	if _, err := v.file.Write(hdr); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing local file header")
	}
	if _, err := v.file.Write([]byte(name)); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing local file header name")
	}
	if _, err := v.file.Write(extra); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing local file header extra field")
	}
	return nil
}

// buildZip64ExtraFieldLocal packs the 2-field (uncompressed size,
// compressed size) form of the ZIP64 extra field local headers use;
// central directory entries additionally carry the local header
// offset (see buildZip64ExtraField in centraldir.go).
func buildZip64ExtraFieldLocal(uncompSize, compSize uint64) []byte {
	buf := make([]byte, 4+16)
	binary.LittleEndian.PutUint16(buf[0:2], zip64ExtraID)
	binary.LittleEndian.PutUint16(buf[2:4], 16)
	binary.LittleEndian.PutUint64(buf[4:12], uncompSize)
	binary.LittleEndian.PutUint64(buf[12:20], compSize)
	return buf
}

// Flush, when the volume is dirty (a member was added since the last
// flush), writes a fresh information.turtle and rewrites the central
// directory plus end-of-central-directory records. Resolver changes
// alone do not make the volume dirty. information.turtle is rewritten
// atomically as the last metadata step before the directory is
// appended; a failure here leaves the container dirty rather than
// silently dropping metadata.
func (v *Volume) Flush() error {
	if !v.writable || !v.dirty {
		return nil
	}
	var turtle bytes.Buffer
	if err := v.Resolver.DumpToTurtle(&turtle, v.URN, false); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "dumping information.turtle")
	}
	delete(v.entries, "information.turtle")
	for i, n := range v.order {
		if n == "information.turtle" {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	if err := v.AddMemberBuffered("information.turtle", turtle.Bytes(), MethodStored); err != nil {
		return err
	}

	if err := v.writeCentralDirectory(); err != nil {
		return err
	}
	v.dirty = false
	return v.file.Flush()
}

// writeCentralDirectory appends one central directory file header per
// member (always carrying the 3-field ZIP64 extra field), then the
// ZIP64 end-of-CD record, the ZIP64 CD locator, and the classic
// end-of-CD record with the volume's URN as its archive comment.
func (v *Volume) writeCentralDirectory() error {
	names := make([]string, len(v.order))
	copy(names, v.order)

	cdStart, err := v.currentNominalOffset()
	if err != nil {
		return err
	}

	for _, name := range names {
		e := v.entries[name]
		if err := v.writeCentralDirectoryEntry(e); err != nil {
			return err
		}
	}
	cdEnd, err := v.currentNominalOffset()
	if err != nil {
		return err
	}
	sizeOfCD := uint64(cdEnd - cdStart)

	zip64EOCDOffset, err := v.currentNominalOffset()
	if err != nil {
		return err
	}
	if err := v.writeZip64EndOfCentralDir(uint64(len(v.order)), sizeOfCD, uint64(cdStart)); err != nil {
		return err
	}
	if err := v.writeZip64Locator(uint64(zip64EOCDOffset)); err != nil {
		return err
	}
	return v.writeEndOfCentralDir()
}

func (v *Volume) writeCentralDirectoryEntry(e *Entry) error {
	extra := buildZip64ExtraField(e.UncompressedSize, e.CompressedSize, e.LocalHeaderOffset)
	hdr := make([]byte, centralDirEntryFixedSize)
	binary.LittleEndian.PutUint32(hdr[0:4], sigCentralDirEntry)
	binary.LittleEndian.PutUint16(hdr[4:6], 45) // version made by
	binary.LittleEndian.PutUint16(hdr[6:8], 45) // version needed
	binary.LittleEndian.PutUint16(hdr[8:10], 0) // flags
	binary.LittleEndian.PutUint16(hdr[10:12], uint16(e.Method))
	binary.LittleEndian.PutUint16(hdr[12:14], 0) // mod time
	binary.LittleEndian.PutUint16(hdr[14:16], 0) // mod date
	binary.LittleEndian.PutUint32(hdr[16:20], e.CRC32)
	binary.LittleEndian.PutUint32(hdr[20:24], sentinel32)
	binary.LittleEndian.PutUint32(hdr[24:28], sentinel32)
	binary.LittleEndian.PutUint16(hdr[28:30], uint16(len(e.Name)))
	binary.LittleEndian.PutUint16(hdr[30:32], uint16(len(extra)))
	binary.LittleEndian.PutUint16(hdr[32:34], 0) // comment length
	binary.LittleEndian.PutUint16(hdr[34:36], 0) // disk number start
	binary.LittleEndian.PutUint16(hdr[36:38], 0) // internal attrs
	binary.LittleEndian.PutUint32(hdr[38:42], 0) // external attrs
	binary.LittleEndian.PutUint32(hdr[42:46], sentinel32)
	if _, err := v.file.Write(hdr); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing central directory entry")
	}
	if _, err := v.file.Write([]byte(e.Name)); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing central directory entry name")
	}
	if _, err := v.file.Write(extra); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing central directory entry extra field")
	}
	return nil
}

func (v *Volume) writeZip64EndOfCentralDir(totalEntries, sizeOfCD, offsetOfCD uint64) error {
	buf := make([]byte, zip64EndOfCentralDirFixedSize)
	binary.LittleEndian.PutUint32(buf[0:4], sigZip64EndOfCentral)
	binary.LittleEndian.PutUint64(buf[4:12], zip64EndOfCentralDirFixedSize-12)
	binary.LittleEndian.PutUint16(buf[12:14], 45) // version made by
	binary.LittleEndian.PutUint16(buf[14:16], 45) // version needed
	binary.LittleEndian.PutUint32(buf[16:20], 0)  // disk number
	binary.LittleEndian.PutUint32(buf[20:24], 0)  // disk with CD start
	binary.LittleEndian.PutUint64(buf[24:32], totalEntries) // entries on this disk
	binary.LittleEndian.PutUint64(buf[32:40], totalEntries)
	binary.LittleEndian.PutUint64(buf[40:48], sizeOfCD)
	binary.LittleEndian.PutUint64(buf[48:56], offsetOfCD)
	_, err := v.file.Write(buf)
	if err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing zip64 end of central directory")
	}
	return nil
}

func (v *Volume) writeZip64Locator(zip64EOCDOffset uint64) error {
	buf := make([]byte, zip64CDLocatorSize)
	binary.LittleEndian.PutUint32(buf[0:4], sigZip64CDLocator)
	binary.LittleEndian.PutUint32(buf[4:8], 0) // disk with zip64 EOCD start
	binary.LittleEndian.PutUint64(buf[8:16], zip64EOCDOffset)
	binary.LittleEndian.PutUint32(buf[16:20], 1) // total number of disks
	_, err := v.file.Write(buf)
	if err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing zip64 CD locator")
	}
	return nil
}

func (v *Volume) writeEndOfCentralDir() error {
	comment := []byte(string(v.URN))
	buf := make([]byte, endOfCentralDirFixedSize+len(comment))
	binary.LittleEndian.PutUint32(buf[0:4], sigEndOfCentralDir)
	binary.LittleEndian.PutUint16(buf[4:6], 0) // disk number
	binary.LittleEndian.PutUint16(buf[6:8], 0) // disk with CD start
	// This engine always writes the ZIP64 records, so the classic EOCD
	// unconditionally points readers at them via the 16/32-bit
	// sentinels, regardless of whether the real counts/offsets would
	// have fit.
	binary.LittleEndian.PutUint16(buf[8:10], 0xFFFF)
	binary.LittleEndian.PutUint16(buf[10:12], 0xFFFF)
	binary.LittleEndian.PutUint32(buf[12:16], sentinel32)
	binary.LittleEndian.PutUint32(buf[16:20], sentinel32)
	binary.LittleEndian.PutUint16(buf[20:22], uint16(len(comment)))
	copy(buf[22:], comment)
	_, err := v.file.Write(buf)
	if err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing end of central directory")
	}
	return nil
}

// Close flushes (if dirty) and releases the backing file.
func (v *Volume) Close() error {
	if err := v.Flush(); err != nil {
		return err
	}
	return v.file.Close()
}
