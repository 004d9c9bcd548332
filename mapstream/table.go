package mapstream

import "sort"

// upperBound returns the index of the first range in entries (sorted
// by MapOffset, non-overlapping) whose MapEnd() is strictly greater
// than off -- the same upper_bound-keyed-on-map_end query a Map read
// needs to locate the range covering a given offset.
// len(entries) is returned when no such range exists.
func upperBound(entries []Range, off uint64) int {
	return sort.Search(len(entries), func(i int) bool {
		return entries[i].MapEnd() > off
	})
}

// insertSplit returns entries with nr inserted, splitting any range it
// overlaps into surviving (pre, post) fragments. entries must already be sorted by
// MapOffset and non-overlapping; the result is too, but adjacent
// fragments are not yet fused -- call mergeAdjacent afterwards.
func insertSplit(entries []Range, nr Range) []Range {
	if nr.IsEmpty() {
		return entries
	}
	out := make([]Range, 0, len(entries)+2)
	inserted := false
	for _, e := range entries {
		switch {
		case e.MapEnd() <= nr.MapOffset:
			// Entirely before nr: keep as-is.
			out = append(out, e)

		case e.MapOffset >= nr.MapEnd():
			// Entirely after nr: insert nr first if we haven't yet.
			if !inserted {
				out = append(out, nr)
				inserted = true
			}
			out = append(out, e)

		default:
			// e overlaps nr. Keep e's pre-piece (if any) ...
			if e.MapOffset < nr.MapOffset {
				out = append(out, Range{
					MapOffset:    e.MapOffset,
					Length:       nr.MapOffset - e.MapOffset,
					TargetOffset: e.TargetOffset,
					TargetID:     e.TargetID,
				})
			}
			// ... and, if e extends past nr, insert nr now and keep
			// e's post-piece, re-based into e's own target space.
			if e.MapEnd() > nr.MapEnd() {
				if !inserted {
					out = append(out, nr)
					inserted = true
				}
				out = append(out, Range{
					MapOffset:    nr.MapEnd(),
					Length:       e.MapEnd() - nr.MapEnd(),
					TargetOffset: e.TargetOffset + (nr.MapEnd() - e.MapOffset),
					TargetID:     e.TargetID,
				})
			}
			// Otherwise e is fully consumed by nr and contributes nothing further.
		}
	}
	if !inserted {
		out = append(out, nr)
	}
	return out
}

// mergeAdjacent fuses consecutive ranges that continue the same
// target in both map- and target-space: two ranges r1, r2 with r1 immediately before r2
// collapse into one iff r1.TargetID == r2.TargetID,
// r1.MapEnd() == r2.MapOffset and r1.TargetEnd() == r2.TargetOffset.
// entries must be sorted by MapOffset with no overlaps.
func mergeAdjacent(entries []Range) []Range {
	if len(entries) == 0 {
		return entries
	}
	out := entries[:1]
	for _, e := range entries[1:] {
		last := &out[len(out)-1]
		if last.TargetID == e.TargetID && last.MapEnd() == e.MapOffset && last.TargetEnd() == e.TargetOffset {
			last.Length += e.Length
			continue
		}
		out = append(out, e)
	}
	return out
}
