package mapstream

import (
	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
)

// Write appends len(p) bytes to the current default target (seeking
// it to its own end first) and records one new range covering them,
// relying on AddRange's merge phase to collapse it into the previous
// range when the write is contiguous.
func (m *Map) Write(p []byte) (int, error) {
	if !m.writable {
		return 0, aff4error.New(aff4error.InvalidInput, "map is not writable")
	}
	if m.lastTarget < 0 {
		return 0, aff4error.New(aff4error.InvalidInput, "map has no default write target")
	}
	if len(p) == 0 {
		return 0, nil
	}

	t := m.targets[m.lastTarget].s
	oldSize, err := t.Size()
	if err != nil {
		return 0, err
	}
	if _, err := t.Seek(oldSize, aff4io.SeekSet); err != nil {
		return 0, err
	}
	n, err := t.Write(p)
	if err != nil {
		return n, err
	}

	mapOffset := m.readPos
	if err := m.AddRange(uint64(mapOffset), uint64(oldSize), uint64(n), uint32(m.lastTarget)); err != nil {
		return n, err
	}
	m.readPos += int64(n)
	return n, nil
}
