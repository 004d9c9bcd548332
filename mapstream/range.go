// Package mapstream implements the AFF4 sparse Map stream: a logical
// stream whose bytes come from one or more target streams, addressed
// through a sorted, non-overlapping range table.
package mapstream

import "encoding/binary"

// Range is one (map_offset, length, target_offset, target_id) entry
// of a Map's sparse range table. target_id indexes into the owning
// Map's targets slice rather than embedding a stream reference
// directly, mirroring the packed on-disk record.
type Range struct {
	MapOffset    uint64
	Length       uint64
	TargetOffset uint64
	TargetID     uint32
}

// MapEnd returns the exclusive end of the range's logical span --
// the key the sorted container uses for upper_bound queries.
func (r Range) MapEnd() uint64 { return r.MapOffset + r.Length }

// TargetEnd returns the exclusive end of the range's span within its
// target stream.
func (r Range) TargetEnd() uint64 { return r.TargetOffset + r.Length }

// IsEmpty reports whether the range spans zero bytes.
func (r Range) IsEmpty() bool { return r.Length == 0 }

// rangeRecordSize is the packed on-disk size of one Range: three
// uint64s and a uint32, little-endian.
const rangeRecordSize = 8 + 8 + 8 + 4

// encodeRanges packs ranges, in iteration (map_offset) order, into
// the "<urn>/map" member's on-disk layout.
func encodeRanges(ranges []Range) []byte {
	buf := make([]byte, len(ranges)*rangeRecordSize)
	for i, r := range ranges {
		o := i * rangeRecordSize
		binary.LittleEndian.PutUint64(buf[o:], r.MapOffset)
		binary.LittleEndian.PutUint64(buf[o+8:], r.Length)
		binary.LittleEndian.PutUint64(buf[o+16:], r.TargetOffset)
		binary.LittleEndian.PutUint32(buf[o+24:], r.TargetID)
	}
	return buf
}

// decodeRanges is the inverse of encodeRanges.
func decodeRanges(data []byte) []Range {
	n := len(data) / rangeRecordSize
	out := make([]Range, n)
	for i := 0; i < n; i++ {
		o := i * rangeRecordSize
		out[i] = Range{
			MapOffset:    binary.LittleEndian.Uint64(data[o:]),
			Length:       binary.LittleEndian.Uint64(data[o+8:]),
			TargetOffset: binary.LittleEndian.Uint64(data[o+16:]),
			TargetID:     binary.LittleEndian.Uint32(data[o+24:]),
		}
	}
	return out
}
