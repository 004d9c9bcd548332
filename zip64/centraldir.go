package zip64

import (
	"encoding/binary"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
)

// Entry is one parsed (or about-to-be-written) central directory file
// header, normalized to 64-bit fields regardless of whether the
// on-disk record used the ZIP64 extra field or not.
type Entry struct {
	Name              string
	Method            CompressionMethod
	CRC32             uint32
	CompressedSize    uint64
	UncompressedSize  uint64
	LocalHeaderOffset uint64
}

// backingReader is the minimal random-access surface central directory
// parsing needs. *aff4io.FileBackedObject and any other seekable
// Stream satisfy it through the small adapter in volume.go.
type backingReader interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() (int64, error)
}

// endOfCentralDir is the parsed (non-ZIP64) record.
type endOfCentralDir struct {
	totalEntries  uint16
	sizeOfCD      uint32
	offsetOfCD    uint32
	commentLength uint16
	comment       string
	realOffset    int64 // absolute file offset the EOCD record was found at
}

// findEndOfCentralDir scans backward from the end of the file for the
// EOCD signature, within a reasonable trailing window (the comment
// field is at most 64KiB, per the ZIP format).
func findEndOfCentralDir(r backingReader) (*endOfCentralDir, error) {
	size, err := r.Size()
	if err != nil {
		return nil, err
	}
	const maxComment = 0xFFFF
	const buffSize = endOfCentralDirFixedSize + maxComment
	scanLen := int64(buffSize)
	if scanLen > size {
		scanLen = size
	}
	buf := make([]byte, scanLen)
	if _, err := r.ReadAt(buf, size-scanLen); err != nil {
		return nil, aff4error.Wrap(aff4error.IoError, err, "reading EOCD scan window")
	}
	for i := len(buf) - endOfCentralDirFixedSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) == sigEndOfCentralDir {
			rec := buf[i:]
			commentLen := binary.LittleEndian.Uint16(rec[20:22])
			var comment string
			if int(22+commentLen) <= len(rec) {
				comment = string(rec[22 : 22+commentLen])
			}
			return &endOfCentralDir{
				totalEntries:  binary.LittleEndian.Uint16(rec[10:12]),
				sizeOfCD:      binary.LittleEndian.Uint32(rec[12:16]),
				offsetOfCD:    binary.LittleEndian.Uint32(rec[16:20]),
				commentLength: commentLen,
				comment:       comment,
				realOffset:    size - scanLen + int64(i),
			}, nil
		}
	}
	return nil, aff4error.New(aff4error.ParsingError, "end of central directory record not found")
}

// zip64Locator is the record directly preceding the EOCD when the
// archive has a ZIP64 end of central directory.
type zip64Locator struct {
	zip64EOCDOffset uint64
}

func parseZip64Locator(r backingReader, eocdRealOffset int64) (*zip64Locator, error) {
	off := eocdRealOffset - zip64CDLocatorSize
	if off < 0 {
		return nil, aff4error.New(aff4error.ParsingError, "no room for zip64 locator before EOCD")
	}
	buf := make([]byte, zip64CDLocatorSize)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, aff4error.Wrap(aff4error.IoError, err, "reading zip64 locator")
	}
	if binary.LittleEndian.Uint32(buf) != sigZip64CDLocator {
		return nil, aff4error.New(aff4error.ParsingError, "zip64 locator signature mismatch")
	}
	return &zip64Locator{zip64EOCDOffset: binary.LittleEndian.Uint64(buf[8:16])}, nil
}

// zip64EndOfCentralDir is the ZIP64 end-of-CD record.
type zip64EndOfCentralDir struct {
	totalEntries uint64
	sizeOfCD     uint64
	offsetOfCD   uint64
	realOffset   int64
}

func parseZip64EndOfCentralDir(r backingReader, nominalOffset int64) (*zip64EndOfCentralDir, error) {
	buf := make([]byte, zip64EndOfCentralDirFixedSize)
	if _, err := r.ReadAt(buf, nominalOffset); err != nil {
		return nil, aff4error.Wrap(aff4error.IoError, err, "reading zip64 EOCD")
	}
	if binary.LittleEndian.Uint32(buf) != sigZip64EndOfCentral {
		return nil, aff4error.New(aff4error.ParsingError, "zip64 end of central directory signature mismatch")
	}
	return &zip64EndOfCentralDir{
		totalEntries: binary.LittleEndian.Uint64(buf[32:40]),
		sizeOfCD:     binary.LittleEndian.Uint64(buf[40:48]),
		offsetOfCD:   binary.LittleEndian.Uint64(buf[48:56]),
		realOffset:   nominalOffset,
	}, nil
}

// locateCentralDirectory finds the EOCD, decides classic vs ZIP64,
// and computes globalOffset (the delta between
// a "hypothetical zip zero" and the real file position, nonzero when
// arbitrary bytes were prepended to this volume, e.g. appended to a
// host executable).
func locateCentralDirectory(r backingReader) (directoryOffset int64, totalEntries uint64, globalOffset int64, comment string, err error) {
	eocd, err := findEndOfCentralDir(r)
	if err != nil {
		return 0, 0, 0, "", err
	}
	if eocd.offsetOfCD != sentinel32 || eocd.totalEntries != 0xFFFF {
		globalOffset = eocd.realOffset - int64(eocd.sizeOfCD) - int64(eocd.offsetOfCD)
		return int64(eocd.offsetOfCD), uint64(eocd.totalEntries), globalOffset, eocd.comment, nil
	}

	locator, lerr := parseZip64Locator(r, eocd.realOffset)
	if lerr != nil {
		return 0, 0, 0, "", lerr
	}
	// The locator stores the zip64 EOCD's nominal (zip-zero-relative)
	// offset. Its real file offset is immediately before the
	// locator record, which is itself immediately before the classic
	// EOCD we just found -- that positional relationship is what lets
	// us recover the shift.
	z64RealOffset := eocd.realOffset - zip64CDLocatorSize - zip64EndOfCentralDirFixedSize
	z64, zerr := parseZip64EndOfCentralDir(r, z64RealOffset)
	if zerr != nil {
		return 0, 0, 0, "", zerr
	}
	globalOffset = z64RealOffset - int64(locator.zip64EOCDOffset)
	directoryOffset = int64(z64.offsetOfCD)
	return directoryOffset, z64.totalEntries, globalOffset, eocd.comment, nil
}

// readCentralDirectoryEntries walks totalEntries central directory
// file headers starting at directoryOffset+globalOffset, consuming the
// ZIP64 extensible extra field (header id 1) wherever a field carries
// the 32-bit sentinel, in order: file size, compressed size, local
// header offset.
func readCentralDirectoryEntries(r backingReader, directoryOffset, globalOffset int64, totalEntries uint64) ([]Entry, error) {
	pos := directoryOffset + globalOffset
	entries := make([]Entry, 0, totalEntries)
	for i := uint64(0); i < totalEntries; i++ {
		hdr := make([]byte, centralDirEntryFixedSize)
		if _, err := r.ReadAt(hdr, pos); err != nil {
			return nil, aff4error.Wrapf(aff4error.IoError, err, "reading central directory entry %d", i)
		}
		if binary.LittleEndian.Uint32(hdr) != sigCentralDirEntry {
			return nil, aff4error.Newf(aff4error.ParsingError, "central directory entry %d signature mismatch", i)
		}
		method := CompressionMethod(binary.LittleEndian.Uint16(hdr[10:12]))
		crc := binary.LittleEndian.Uint32(hdr[16:20])
		compSize := uint64(binary.LittleEndian.Uint32(hdr[20:24]))
		uncompSize := uint64(binary.LittleEndian.Uint32(hdr[24:28]))
		nameLen := binary.LittleEndian.Uint16(hdr[28:30])
		extraLen := binary.LittleEndian.Uint16(hdr[30:32])
		commentLen := binary.LittleEndian.Uint16(hdr[32:34])
		localOffset := uint64(binary.LittleEndian.Uint32(hdr[42:46]))

		nameBuf := make([]byte, nameLen)
		if nameLen > 0 {
			if _, err := r.ReadAt(nameBuf, pos+centralDirEntryFixedSize); err != nil {
				return nil, aff4error.Wrapf(aff4error.IoError, err, "reading entry %d name", i)
			}
		}
		extraBuf := make([]byte, extraLen)
		if extraLen > 0 {
			if _, err := r.ReadAt(extraBuf, pos+centralDirEntryFixedSize+int64(nameLen)); err != nil {
				return nil, aff4error.Wrapf(aff4error.IoError, err, "reading entry %d extra field", i)
			}
		}

		if uncompSize == sentinel32 || compSize == sentinel32 || localOffset == sentinel32 {
			uSize, cSize, lOff, ok := parseZip64ExtraField(extraBuf, uncompSize == sentinel32, compSize == sentinel32, localOffset == sentinel32)
			if !ok {
				return nil, aff4error.Newf(aff4error.ParsingError, "entry %d missing required zip64 extra field", i)
			}
			if uncompSize == sentinel32 {
				uncompSize = uSize
			}
			if compSize == sentinel32 {
				compSize = cSize
			}
			if localOffset == sentinel32 {
				localOffset = lOff
			}
		}

		entries = append(entries, Entry{
			Name:              string(nameBuf),
			Method:            method,
			CRC32:             crc,
			CompressedSize:    compSize,
			UncompressedSize:  uncompSize,
			LocalHeaderOffset: localOffset,
		})
		pos += centralDirEntryFixedSize + int64(nameLen) + int64(extraLen) + int64(commentLen)
	}
	return entries, nil
}

// parseZip64ExtraField reads the ZIP64 extensible extra field (header
// id 1), consuming only the sub-fields the caller says are present
// (needUncomp/needComp/needOffset), in the fixed order the format
// mandates: uncompressed size, compressed size, local header offset.
func parseZip64ExtraField(extra []byte, needUncomp, needComp, needOffset bool) (uncompSize, compSize, localOffset uint64, ok bool) {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra)
		size := binary.LittleEndian.Uint16(extra[2:4])
		if int(size) > len(extra)-4 {
			return 0, 0, 0, false
		}
		body := extra[4 : 4+size]
		if id == zip64ExtraID {
			idx := 0
			if needUncomp {
				if idx+8 > len(body) {
					return 0, 0, 0, false
				}
				uncompSize = binary.LittleEndian.Uint64(body[idx:])
				idx += 8
			}
			if needComp {
				if idx+8 > len(body) {
					return 0, 0, 0, false
				}
				compSize = binary.LittleEndian.Uint64(body[idx:])
				idx += 8
			}
			if needOffset {
				if idx+8 > len(body) {
					return 0, 0, 0, false
				}
				localOffset = binary.LittleEndian.Uint64(body[idx:])
				idx += 8
			}
			return uncompSize, compSize, localOffset, true
		}
		extra = extra[4+size:]
	}
	return 0, 0, 0, false
}

// buildZip64ExtraField packs the full (uncompSize, compSize,
// localOffset) triple into a ZIP64 extensible extra field, the form
// this package always writes for its own members (it never omits a
// sub-field the way some encoders do).
func buildZip64ExtraField(uncompSize, compSize, localOffset uint64) []byte {
	buf := make([]byte, 4+24)
	binary.LittleEndian.PutUint16(buf[0:2], zip64ExtraID)
	binary.LittleEndian.PutUint16(buf[2:4], 24)
	binary.LittleEndian.PutUint64(buf[4:12], uncompSize)
	binary.LittleEndian.PutUint64(buf[12:20], compSize)
	binary.LittleEndian.PutUint64(buf[20:28], localOffset)
	return buf
}
