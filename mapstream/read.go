package mapstream

import (
	"io"

	"github.com/Velocidex/c-aff4-sub000/aff4io"
)

// rereadUnit is the page granularity Read falls back to after a short
// read from a target stream.
const rereadUnit = 4 * 1024

// Read implements aff4io.Stream's sparse read: it walks
// the range table from readPos, zero-filling gaps and stitching in
// each covering range's target bytes, falling back to page-by-page
// re-reads (and ultimately zero-fill) when a target read comes up
// short.
func (m *Map) Read(p []byte) (int, error) {
	if m.readPos >= m.size {
		return 0, io.EOF
	}
	remaining := m.size - m.readPos
	want := int64(len(p))
	if want > remaining {
		want = remaining
	}
	if want > aff4io.MaxReadLen {
		want = aff4io.MaxReadLen
	}

	var n int64
	for n < want {
		pos := m.readPos + n
		idx := upperBound(m.ranges, uint64(pos))
		if idx >= len(m.ranges) {
			// No range covers pos or anything after it: zero-fill the rest.
			zeroFill(p[n:want])
			n = want
			break
		}
		r := m.ranges[idx]
		if uint64(pos) < r.MapOffset {
			// Gap before the next range: zero-fill up to its start.
			gap := int64(r.MapOffset) - pos
			if gap > want-n {
				gap = want - n
			}
			zeroFill(p[n : n+gap])
			n += gap
			continue
		}

		// pos falls inside r; read up to its end (or want, whichever
		// comes first) from the target stream.
		avail := int64(r.MapEnd()) - pos
		chunkWant := want - n
		if chunkWant > avail {
			chunkWant = avail
		}
		targetOff := int64(r.TargetOffset) + (pos - int64(r.MapOffset))
		t, err := m.targetByID(r.TargetID)
		if err != nil {
			return int(n), err
		}
		got, err := m.readFromTarget(t, targetOff, p[n:n+chunkWant])
		if err != nil {
			return int(n), err
		}
		n += int64(got)
		if int64(got) < chunkWant {
			// Target came up permanently short for this span; the gap
			// already received whatever readFromTarget could recover
			// (zero-filled the rest), so just continue from here.
			continue
		}
	}

	m.readPos += n
	return int(n), nil
}

// readFromTarget seeks t to offset and fills buf, falling back to
// rereadUnit-sized re-reads (zero-padding whatever sub-page remains
// unreadable) on a short read, and consulting the unreadable fallback
// stream for any span it still cannot recover.
func (m *Map) readFromTarget(t aff4io.Stream, offset int64, buf []byte) (int, error) {
	if _, err := t.Seek(offset, aff4io.SeekSet); err != nil {
		return 0, err
	}
	n, err := t.Read(buf)
	if err != nil && err != io.EOF {
		return n, err
	}
	if n >= len(buf) {
		return n, nil
	}

	// Short read: retry the remainder in rereadUnit pages, zero-filling
	// (or stitching in the unreadable fallback) whatever still fails.
	pos := n
	for pos < len(buf) {
		end := pos + rereadUnit
		if end > len(buf) {
			end = len(buf)
		}
		if _, err := t.Seek(offset+int64(pos), aff4io.SeekSet); err != nil {
			m.fillUnreadable(buf[pos:end])
			pos = end
			continue
		}
		got, rerr := t.Read(buf[pos:end])
		if got < end-pos {
			if got > 0 {
				pos += got
			}
			m.fillUnreadable(buf[pos:end])
			pos = end
			_ = rerr
			continue
		}
		pos = end
	}
	return len(buf), nil
}

// fillUnreadable pads dst from the unreadable fallback stream if one
// is configured, zero-filling anything it doesn't cover.
func (m *Map) fillUnreadable(dst []byte) {
	if m.unreadable == nil {
		zeroFill(dst)
		return
	}
	n, _ := m.unreadable.Read(dst)
	if n < len(dst) {
		zeroFill(dst[n:])
	}
}

func zeroFill(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
