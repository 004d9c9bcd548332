package imagestream

import "encoding/binary"

// BevyIndex describes where one compressed (or stored) chunk lives
// inside its bevy payload member. Offset is relative to the start of the bevy payload
// member; Length equal to the chunk's expected uncompressed length is
// the "stored uncompressed" sentinel the decoder checks before
// attempting decompression.
type BevyIndex struct {
	Offset uint64
	Length uint32
}

// bevyIndexEntrySize is the packed on-disk size of one BevyIndex
// entry: uint64 + uint32, little-endian.
const bevyIndexEntrySize = 8 + 4

// encodeBevyIndex packs entries in order into the on-disk layout.
func encodeBevyIndex(entries []BevyIndex) []byte {
	buf := make([]byte, len(entries)*bevyIndexEntrySize)
	for i, e := range entries {
		o := i * bevyIndexEntrySize
		binary.LittleEndian.PutUint64(buf[o:], e.Offset)
		binary.LittleEndian.PutUint32(buf[o+8:], e.Length)
	}
	return buf
}

// decodeBevyIndex unpacks a ".index" member's raw bytes into entries,
// one per chunk in bevy order.
func decodeBevyIndex(data []byte) []BevyIndex {
	n := len(data) / bevyIndexEntrySize
	out := make([]BevyIndex, n)
	for i := 0; i < n; i++ {
		o := i * bevyIndexEntrySize
		out[i] = BevyIndex{
			Offset: binary.LittleEndian.Uint64(data[o:]),
			Length: binary.LittleEndian.Uint32(data[o+8:]),
		}
	}
	return out
}

// decodeLegacyBevyIndex converts the pre-existing legacy layout (one
// uint32 per entry, each a cumulative end-offset within the bevy
// payload rather than an (offset, length) pair) into the modern
// (offset, length) form in memory. Every
// legacy chunk is implicitly stored at full chunk_size when
// compressed -- the legacy format predates per-chunk bypass
// bookkeeping, so a chunk's length is always the delta between
// consecutive cumulative offsets.
func decodeLegacyBevyIndex(data []byte) []BevyIndex {
	n := len(data) / 4
	out := make([]BevyIndex, n)
	var prev uint64
	for i := 0; i < n; i++ {
		end := uint64(binary.LittleEndian.Uint32(data[i*4:]))
		out[i] = BevyIndex{Offset: prev, Length: uint32(end - prev)}
		prev = end
	}
	return out
}
