package imagestream

import (
	"io"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/rdf"
)

// bevyData holds one bevy's payload and decoded index as read from the
// volume. It is not cached; the chunk cache holds decompressed chunks.
type bevyData struct {
	payload []byte
	index   []BevyIndex
}

// loadBevy reads the bevy/index member pair for bevy bevyNumber from
// the volume on every call, trying the legacy directory-style layout
// when the modern one is absent and the stream is tagged legacy.
func (s *ImageStream) loadBevy(bevyNumber int) (*bevyData, error) {
	payloadName := rdf.BevyMemberPath(s.urn, bevyNumber, "")
	indexName := rdf.BevyMemberPath(s.urn, bevyNumber, ".index")
	usingLegacy := false

	if s.legacy && !s.volume.HasMember(indexName) {
		legacyIndexName := rdf.LegacyBevyMemberPath(s.urn, bevyNumber)
		if s.volume.HasMember(legacyIndexName) {
			indexName = legacyIndexName
			usingLegacy = true
		}
	}

	payloadStream, err := s.volume.OpenMember(payloadName)
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.NotFound, err, "opening bevy %d of %q", bevyNumber, s.urn)
	}
	payload, err := readAll(payloadStream)
	if err != nil {
		return nil, err
	}

	indexStream, err := s.volume.OpenMember(indexName)
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.NotFound, err, "opening bevy %d index of %q", bevyNumber, s.urn)
	}
	rawIndex, err := readAll(indexStream)
	if err != nil {
		return nil, err
	}

	var index []BevyIndex
	if usingLegacy {
		index = decodeLegacyBevyIndex(rawIndex)
	} else {
		index = decodeBevyIndex(rawIndex)
	}
	return &bevyData{payload: payload, index: index}, nil
}

func readAll(s aff4io.Stream) ([]byte, error) {
	var out []byte
	buf := make([]byte, 64*1024)
	for {
		n, err := s.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, aff4error.Wrap(aff4error.IoError, err, "reading volume member")
		}
		if n == 0 {
			return out, nil
		}
	}
}

// chunkUncompressedLen returns the expected uncompressed length of
// chunkID: ChunkSize for every chunk except the stream's last, which
// may be shorter.
func (s *ImageStream) chunkUncompressedLen(chunkID int) int {
	start := int64(chunkID) * int64(s.opts.ChunkSize)
	remaining := s.size - start
	if remaining >= int64(s.opts.ChunkSize) {
		return s.opts.ChunkSize
	}
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

// readChunkData returns chunkID's fully decompressed bytes, consulting
// (and populating) the bounded read cache first.
func (s *ImageStream) readChunkData(chunkID int) ([]byte, error) {
	if v, ok := s.cache.Get(int64(chunkID)); ok {
		return v, nil
	}
	bevyNumber, offsetInBevy := s.bevyOf(chunkID)
	bevy, err := s.loadBevy(bevyNumber)
	if err != nil {
		return nil, err
	}
	if offsetInBevy >= len(bevy.index) {
		return nil, aff4error.Newf(aff4error.ParsingError, "chunk %d out of range for bevy %d of %q", chunkID, bevyNumber, s.urn)
	}
	entry := bevy.index[offsetInBevy]
	if int64(entry.Offset)+int64(entry.Length) > int64(len(bevy.payload)) {
		return nil, aff4error.Newf(aff4error.ParsingError, "chunk %d index entry out of range for %q", chunkID, s.urn)
	}
	raw := bevy.payload[entry.Offset : entry.Offset+uint64(entry.Length)]

	expected := s.chunkUncompressedLen(chunkID)
	var data []byte
	if int(entry.Length) == expected {
		// Stored-uncompressed sentinel: bypass
		// decompression entirely.
		data = append([]byte(nil), raw...)
	} else {
		data, err = decompressChunk(s.opts.Compression, raw, expected)
		if err != nil {
			return nil, err
		}
	}
	s.cache.Add(int64(chunkID), data)
	return data, nil
}

// Read implements aff4io.Stream's random-access read: it locates every chunk spanning [readPos, readPos+len(p)),
// decodes each (trimming the first by readPos's modulus and the last
// by its tail), and advances the read pointer.
func (s *ImageStream) Read(p []byte) (int, error) {
	if s.readPos >= s.size {
		return 0, io.EOF
	}
	remaining := s.size - s.readPos
	want := int64(len(p))
	if want > remaining {
		want = remaining
	}
	if want > aff4io.MaxReadLen {
		want = aff4io.MaxReadLen
	}

	initialChunk := int(s.readPos / int64(s.opts.ChunkSize))
	finalChunk := int((s.readPos + want - 1) / int64(s.opts.ChunkSize))

	var n int
	pos := s.readPos
	for chunkID := initialChunk; chunkID <= finalChunk; chunkID++ {
		data, err := s.readChunkData(chunkID)
		if err != nil {
			return n, err
		}
		chunkStart := int64(chunkID) * int64(s.opts.ChunkSize)
		from := int(pos - chunkStart)
		to := len(data)
		if remainingWant := want - int64(n); int64(to-from) > remainingWant {
			to = from + int(remainingWant)
		}
		if from < 0 || from > len(data) || to > len(data) || to < from {
			return n, aff4error.Newf(aff4error.ParsingError, "chunk %d slice out of range for %q", chunkID, s.urn)
		}
		copy(p[n:], data[from:to])
		n += to - from
		pos += int64(to - from)
	}
	s.readPos = pos
	return n, nil
}
