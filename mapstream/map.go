package mapstream

import (
	"github.com/Velocidex/c-aff4-sub000/aff4ctx"
	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/rdf"
	"github.com/Velocidex/c-aff4-sub000/resolver"
)

// DefaultMaxRereadSize is the page granularity Read retries at after a
// short read from a target stream.
const DefaultMaxRereadSize = 4 * 1024

// target is one entry of a Map's target stream table: owned targets were created by (and are closed by)
// this Map; borrowed targets -- e.g. a symbolic stream, or another
// stream opened elsewhere -- are referenced only.
type target struct {
	urn   rdf.URN
	s     aff4io.Stream
	owned bool
}

// Map is a sparse logical stream whose bytes come from one or more
// target streams, addressed through a sorted, non-overlapping range
// table.
type Map struct {
	urn  rdf.URN
	res  *resolver.Resolver
	actx *aff4ctx.Context

	targets   []target
	targetIdx map[rdf.URN]int
	ranges    []Range

	lastTarget int // index into targets; -1 if none set
	size       int64
	readPos    int64
	writable   bool

	maxRereadSize int
	// unreadable is consulted when a target read comes up permanently
	// short; its Read result (padded with zeros if it, too, is short)
	// is stitched in rather than failing the whole Map read. The volume/factory layer wires this to the
	// UnreadableData symbolic stream; a nil value here just
	// zero-fills, the same degraded-but-total behavior without that
	// stitching.
	unreadable aff4io.Stream
}

// New creates an empty, writable Map named urn.
func New(urn rdf.URN, res *resolver.Resolver, actx *aff4ctx.Context) *Map {
	m := &Map{
		urn:           urn,
		res:           res,
		actx:          actx,
		targetIdx:     make(map[rdf.URN]int),
		lastTarget:    -1,
		writable:      true,
		maxRereadSize: DefaultMaxRereadSize,
	}
	res.Set(urn, resolver.PredRDFType, rdf.RDFURN{URN: resolver.TypeMap}, true)
	return m
}

// String implements the aff4log description interface.
func (m *Map) String() string { return string(m.urn) }

// SetUnreadableFallback wires the stream consulted when a target
// stream's read is permanently short. Without one, missing data is
// simply zero-filled.
func (m *Map) SetUnreadableFallback(s aff4io.Stream) { m.unreadable = s }

// AddTarget registers (or reuses) a target stream and returns its
// target_id, the index AddRange and the on-disk Range records key on.
// owned marks the target as exclusively owned by this Map (closed
// alongside it) versus borrowed from elsewhere.
func (m *Map) AddTarget(urn rdf.URN, s aff4io.Stream, owned bool) uint32 {
	if idx, ok := m.targetIdx[urn]; ok {
		return uint32(idx)
	}
	idx := len(m.targets)
	m.targets = append(m.targets, target{urn: urn, s: s, owned: owned})
	m.targetIdx[urn] = idx
	return uint32(idx)
}

// SetDefaultTarget registers (if needed) and selects urn/s as the
// target Write appends to.
func (m *Map) SetDefaultTarget(urn rdf.URN, s aff4io.Stream, owned bool) {
	m.lastTarget = int(m.AddTarget(urn, s, owned))
}

// targetByID returns the target stream for id, or an error if it is
// out of range.
func (m *Map) targetByID(id uint32) (aff4io.Stream, error) {
	if int(id) >= len(m.targets) {
		return nil, aff4error.Newf(aff4error.ParsingError, "target id %d out of range for map %q", id, m.urn)
	}
	return m.targets[id].s, nil
}

// AddRange inserts a (map_offset, target_offset, length, target)
// range, splitting any overlapping range and merging with contiguous
// neighbors. target must already be
// registered via AddTarget/SetDefaultTarget.
func (m *Map) AddRange(mapOffset, targetOffset, length uint64, targetID uint32) error {
	if int(targetID) >= len(m.targets) {
		return aff4error.Newf(aff4error.InvalidInput, "target id %d not registered on map %q", targetID, m.urn)
	}
	nr := Range{MapOffset: mapOffset, Length: length, TargetOffset: targetOffset, TargetID: targetID}
	m.ranges = mergeAdjacent(insertSplit(m.ranges, nr))
	if end := int64(nr.MapEnd()); end > m.size {
		m.size = end
	}
	return nil
}

// Ranges returns the current range table in map_offset order, for
// inspection/testing.
func (m *Map) Ranges() []Range {
	out := make([]Range, len(m.ranges))
	copy(out, m.ranges)
	return out
}

// Properties implements aff4io.Stream.
func (m *Map) Properties() aff4io.Properties {
	return aff4io.Properties{Seekable: true, Sizeable: true, Writable: m.writable}
}

// Size implements aff4io.Stream.
func (m *Map) Size() (int64, error) { return m.size, nil }

// Seek implements aff4io.Stream.
func (m *Map) Seek(offset int64, whence aff4io.Whence) (int64, error) {
	var base int64
	switch whence {
	case aff4io.SeekSet:
		base = 0
	case aff4io.SeekCur:
		base = m.readPos
	case aff4io.SeekEnd:
		base = m.size
	default:
		return 0, aff4error.Newf(aff4error.InvalidInput, "invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		pos = 0
	}
	m.readPos = pos
	return m.readPos, nil
}

// Truncate resets the map to empty.
func (m *Map) Truncate() error {
	m.ranges = nil
	m.size = 0
	m.readPos = 0
	return nil
}

// Close releases every owned target stream; borrowed targets are left
// alone.
func (m *Map) Close() error {
	var first error
	for _, t := range m.targets {
		if !t.owned {
			continue
		}
		if err := t.s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
