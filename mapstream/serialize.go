package mapstream

import (
	"io"
	"strings"

	"github.com/Velocidex/c-aff4-sub000/aff4ctx"
	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/rdf"
	"github.com/Velocidex/c-aff4-sub000/resolver"
	"github.com/Velocidex/c-aff4-sub000/zip64"
)

// MemberVolume is the subset of zip64.Volume's member API mapstream
// needs to serialize/deserialize a Map's "map"/"idx" members -- the
// same shape as imagestream.MemberVolume, kept as its own local
// interface so this package doesn't depend on imagestream.
type MemberVolume interface {
	CreateMemberBuffered(name string, method zip64.CompressionMethod) aff4io.Stream
	OpenMember(name string) (aff4io.Stream, error)
	HasMember(name string) bool
}

// TargetResolver opens the stream backing a target URN found in a
// loaded Map's "idx" member. The volume/factory layer supplies this
// (its GetStream dispatch), keeping mapstream itself free of any
// dependency on the stream-factory package.
type TargetResolver func(urn rdf.URN) (aff4io.Stream, error)

// Flush serializes the map's range table and target list into the
// volume's "<urn>/map" and "<urn>/idx" members and records the
// logical size.
func (m *Map) Flush(volume MemberVolume) error {
	mapSeg := volume.CreateMemberBuffered(rdf.MapMemberPath(m.urn, "map"), zip64.MethodStored)
	if _, err := mapSeg.Write(encodeRanges(m.ranges)); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing map member")
	}
	if err := mapSeg.Close(); err != nil {
		return err
	}

	var idx strings.Builder
	for _, t := range m.targets {
		idx.WriteString(string(t.urn))
		idx.WriteByte('\n')
	}
	idxSeg := volume.CreateMemberBuffered(rdf.MapMemberPath(m.urn, "idx"), zip64.MethodStored)
	if _, err := idxSeg.Write([]byte(idx.String())); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing idx member")
	}
	if err := idxSeg.Close(); err != nil {
		return err
	}

	m.res.Set(m.urn, resolver.PredSize, rdf.XSDInteger(m.size), true)
	return nil
}

// Load reconstructs a Map named urn from its "<urn>/map" and
// "<urn>/idx" members, resolving each listed target URN through
// resolve.
func Load(urn rdf.URN, res *resolver.Resolver, actx *aff4ctx.Context, volume MemberVolume, resolve TargetResolver) (*Map, error) {
	idxStream, err := volume.OpenMember(rdf.MapMemberPath(urn, "idx"))
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.NotFound, err, "opening idx member of %q", urn)
	}
	idxRaw, err := readAllMember(idxStream)
	if err != nil {
		return nil, err
	}

	mapStream, err := volume.OpenMember(rdf.MapMemberPath(urn, "map"))
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.NotFound, err, "opening map member of %q", urn)
	}
	mapRaw, err := readAllMember(mapStream)
	if err != nil {
		return nil, err
	}

	m := &Map{
		urn:           urn,
		res:           res,
		actx:          actx,
		targetIdx:     make(map[rdf.URN]int),
		lastTarget:    -1,
		maxRereadSize: DefaultMaxRereadSize,
	}

	for _, line := range splitLinesTolerant(string(idxRaw)) {
		if line == "" {
			continue
		}
		targetURN := rdf.URN(line)
		s, err := resolve(targetURN)
		if err != nil {
			return nil, aff4error.Wrapf(aff4error.NotFound, err, "resolving map target %q", targetURN)
		}
		m.AddTarget(targetURN, s, false)
	}

	m.ranges = decodeRanges(mapRaw)
	for _, r := range m.ranges {
		if end := int64(r.MapEnd()); end > m.size {
			m.size = end
		}
	}
	if v, err := resolver.GetAs[rdf.XSDInteger](res, urn, resolver.PredSize); err == nil {
		m.size = int64(v)
	}
	return m, nil
}

// splitLinesTolerant splits s on '\n', trimming a preceding '\r' from
// each line.
func splitLinesTolerant(s string) []string {
	parts := strings.Split(s, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	// A trailing newline produces one empty trailing element; Load
	// already skips empty lines, so it is harmless to leave it.
	return parts
}

func readAllMember(s aff4io.Stream) ([]byte, error) {
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
