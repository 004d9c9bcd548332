package volume

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/Velocidex/c-aff4-sub000/aff4ctx"
	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/imagestream"
	"github.com/Velocidex/c-aff4-sub000/mapstream"
	"github.com/Velocidex/c-aff4-sub000/rdf"
	"github.com/Velocidex/c-aff4-sub000/resolver"
	"github.com/Velocidex/c-aff4-sub000/zip64"
)

// MemberVolume is the member-level contract shared by *zip64.Volume and
// *Directory: create/open/probe a named member. Both imagestream and
// mapstream declare their own copy of this same shape so neither
// package needs to import volume; GetStream hands either concrete
// backend to them interchangeably.
type MemberVolume interface {
	CreateMemberBuffered(name string, method zip64.CompressionMethod) aff4io.Stream
	OpenMember(name string) (aff4io.Stream, error)
	HasMember(name string) bool
}

// maxImageRecursionDepth bounds how many Image -> aff4:dataStream hops
// GetStream will follow before giving up, so a cyclic or absurdly deep
// chain of wrapper images fails cleanly instead of recursing forever.
const maxImageRecursionDepth = 16

// VolumeGroup is the open set of volumes backing a shared resolver: it
// is the stream factory, dispatching a URN to the concrete Go stream
// type its rdf:type names, opening volumes lazily from configured
// search paths as their members are needed, the way a process-wide
// lookup table of already-opened backends would cache remote
// filesystem connections -- generalized here to AFF4 volumes.
type VolumeGroup struct {
	res  *resolver.Resolver
	actx *aff4ctx.Context

	volumes     map[rdf.URN]MemberVolume
	searchPaths []string
}

// NewVolumeGroup creates an empty group sharing res and actx with
// every stream it opens.
func NewVolumeGroup(res *resolver.Resolver, actx *aff4ctx.Context) *VolumeGroup {
	return &VolumeGroup{res: res, actx: actx, volumes: make(map[rdf.URN]MemberVolume)}
}

// AddSearchPath registers a directory LocateAndAdd will scan for
// candidate volume files.
func (g *VolumeGroup) AddSearchPath(dir string) {
	g.searchPaths = append(g.searchPaths, dir)
}

// AddVolume registers an already-open volume under urn and merges its
// own resolver (loaded from its information.turtle, for a *zip64.Volume)
// into the group's shared resolver, the way opening a second volume in
// the same case folds its metadata into the running resolver rather
// than keeping per-volume islands. If v is backed by an OS file, its
// containing directory is also registered as a search path, so opening
// one volume of a multi-part case automatically makes LocateAndAdd look
// in the same directory for the rest.
func (g *VolumeGroup) AddVolume(urn rdf.URN, v MemberVolume) {
	g.volumes[urn] = v
	if zv, ok := v.(*zip64.Volume); ok {
		if zv.Resolver != nil {
			var buf bytes.Buffer
			if err := zv.Resolver.DumpToTurtle(&buf, urn, true); err == nil {
				g.res.LoadFromTurtle(&buf)
			}
		}
		if dir := filepath.Dir(zv.Path()); dir != "" && dir != "." {
			g.AddSearchPath(dir)
		}
	}
}

// Volume returns the already-open volume registered under urn, if any.
func (g *VolumeGroup) Volume(urn rdf.URN) (MemberVolume, bool) {
	v, ok := g.volumes[urn]
	return v, ok
}

// Resolver returns the group's shared triple store.
func (g *VolumeGroup) Resolver() *resolver.Resolver { return g.res }

// GetStream dispatches urn to the concrete stream its rdf:type names:
// reserved symbolic URNs first, then ImageStream (or its legacy
// rdf:type)/Image-wrapper/Map/ZipSegment-or-File dispatch by resolver
// lookup.
func (g *VolumeGroup) GetStream(urn rdf.URN) (aff4io.Stream, error) {
	return g.getStream(urn, 0)
}

func (g *VolumeGroup) getStream(urn rdf.URN, depth int) (aff4io.Stream, error) {
	if pattern, ok := symbolicPattern(urn); ok {
		return NewSymbolicStream(string(urn), pattern), nil
	}

	rdfType, err := resolver.GetAs[rdf.RDFURN](g.res, urn, resolver.PredRDFType)
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.NotFound, err, "no rdf:type for %q", urn)
	}

	switch rdfType.URN {
	case resolver.TypeImageStream:
		mv, err := g.storedVolume(urn)
		if err != nil {
			return nil, err
		}
		return imagestream.OpenImageStream(urn, mv, g.res, g.actx)

	case resolver.TypeLegacyImageStream:
		mv, err := g.storedVolume(urn)
		if err != nil {
			return nil, err
		}
		return imagestream.OpenLegacyImageStream(urn, mv, g.res, g.actx)

	case resolver.TypeImage, resolver.TypeDiskImage, resolver.TypeVolumeImage,
		resolver.TypeMemoryImage, resolver.TypeContiguousImage, resolver.TypeDiscontiguousImage:
		if depth >= maxImageRecursionDepth {
			return nil, aff4error.Newf(aff4error.InvalidInput, "dataStream recursion too deep resolving %q", urn)
		}
		target, err := resolver.GetAs[rdf.RDFURN](g.res, urn, resolver.PredDataStream)
		if err != nil {
			return nil, aff4error.Wrapf(aff4error.NotFound, err, "no aff4:dataStream for %q", urn)
		}
		return g.getStream(target.URN, depth+1)

	case resolver.TypeMap:
		mv, err := g.storedVolume(urn)
		if err != nil {
			return nil, err
		}
		m, err := mapstream.Load(urn, g.res, g.actx, mv, g.resolveTarget)
		if err != nil {
			return nil, err
		}
		pattern, _ := symbolicPattern(rdf.URN(URNUnreadableData))
		m.SetUnreadableFallback(NewSymbolicStream(URNUnreadableData, pattern))
		return m, nil

	case resolver.TypeZipSegment, resolver.TypeFile:
		mv, err := g.storedVolume(urn)
		if err != nil {
			return nil, err
		}
		s, err := mv.OpenMember(rdf.MemberName(urn))
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, aff4error.Newf(aff4error.NotImplemented, "no stream factory for rdf:type %q (%q)", rdfType.URN, urn)
	}
}

// resolveTarget adapts GetStream to mapstream.TargetResolver, letting a
// loaded Map's target URNs reference anything else the group can open
// (another ImageStream, a symbolic stream, a nested Map, ...).
func (g *VolumeGroup) resolveTarget(urn rdf.URN) (aff4io.Stream, error) {
	return g.GetStream(urn)
}

// storedVolume resolves urn's aff4:stored predicate to a volume URN
// and returns that volume, opening it via LocateAndAdd if it is not
// already part of the group.
func (g *VolumeGroup) storedVolume(urn rdf.URN) (MemberVolume, error) {
	volURN, err := resolver.GetAs[rdf.RDFURN](g.res, urn, resolver.PredStored)
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.NotFound, err, "no aff4:stored volume for %q", urn)
	}
	if mv, ok := g.volumes[volURN.URN]; ok {
		return mv, nil
	}
	return g.LocateAndAdd(volURN.URN)
}

// LocateAndAdd returns the volume already registered under urn, or
// scans every configured search path for a ZIP64 container whose
// embedded URN matches urn, opening and registering the first match.
// Each candidate file is opened read-only and discarded on mismatch
// or parse failure; LocateAndAdd does not recurse into
// subdirectories, mirroring a flat evidence-file layout.
func (g *VolumeGroup) LocateAndAdd(urn rdf.URN) (MemberVolume, error) {
	if mv, ok := g.volumes[urn]; ok {
		return mv, nil
	}
	for _, dir := range g.searchPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name())
			v, err := zip64.OpenVolume(path, urn, false)
			if err != nil {
				continue
			}
			if v.URN != urn {
				v.Close()
				continue
			}
			g.AddVolume(v.URN, v)
			return v, nil
		}
	}
	return nil, aff4error.Newf(aff4error.NotFound, "no volume found for %q in any search path", urn)
}

// symbolicPattern returns the repeating fill pattern for one of the
// reserved symbolic stream URNs, or ok=false if urn is not one of them.
func symbolicPattern(urn rdf.URN) ([]byte, bool) {
	switch string(urn) {
	case URNZero:
		return []byte{0x00}, true
	case URNFF:
		return []byte{0xFF}, true
	case URNUnknownData:
		return []byte("UNKNOWN\n"), true
	case URNUnreadableData:
		return []byte("UNREADABLEDATA\n"), true
	}
	if b, ok := parseSymbolicStreamXX(string(urn)); ok {
		return []byte{b}, true
	}
	return nil, false
}

// parseSymbolicStreamXX parses the two-hex-digit suffix of a
// SymbolicStreamXX URN, inverting SymbolicStreamURN.
func parseSymbolicStreamXX(urn string) (byte, bool) {
	const prefix = symbolicBase + "SymbolicStream"
	if len(urn) != len(prefix)+2 || urn[:len(prefix)] != prefix {
		return 0, false
	}
	hi, ok1 := hexDigitVal(urn[len(prefix)])
	lo, ok2 := hexDigitVal(urn[len(prefix)+1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return byte(hi<<4 | lo), true
}

func hexDigitVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	default:
		return 0, false
	}
}
