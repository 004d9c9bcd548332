// Package imagestream implements the AFF4 chunked-bevy content codec:
// it splits a logical byte stream into fixed-size chunks, packs
// chunks into "bevies" compressed in parallel across a shared thread
// pool, and supports random-access reads through a per-bevy index.
package imagestream

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Velocidex/c-aff4-sub000/aff4ctx"
	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/rdf"
	"github.com/Velocidex/c-aff4-sub000/resolver"
	"github.com/Velocidex/c-aff4-sub000/zip64"
)

// Default construction parameters.
const (
	DefaultChunkSize        = 32 * 1024
	DefaultChunksPerSegment = 1024
	// DefaultCacheBytes bounds the read chunk cache.
	DefaultCacheBytes = 32 * 1024 * 1024
)

// Options configures a new ImageStream: a plain struct with
// documented defaults, validated once in configure() rather than
// through global mutable state.
type Options struct {
	ChunkSize        int
	ChunksPerSegment int
	Compression      CompressionMethod
	// CacheBytes bounds the read chunk cache; 0 selects DefaultCacheBytes.
	CacheBytes int
}

func (o Options) configure() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunksPerSegment <= 0 {
		o.ChunksPerSegment = DefaultChunksPerSegment
	}
	if o.CacheBytes <= 0 {
		o.CacheBytes = DefaultCacheBytes
	}
	return o
}

// MemberVolume is the subset of zip64.Volume's member API the codec
// needs: creating a buffered member for a finished bevy/index pair,
// and opening an existing one back up for reading. A thin interface
// rather than a direct *zip64.Volume dependency so a VolumeGroup can
// stand in for it identically.
type MemberVolume interface {
	CreateMemberBuffered(name string, method zip64.CompressionMethod) aff4io.Stream
	OpenMember(name string) (aff4io.Stream, error)
	HasMember(name string) bool
}

// ImageStream is a logical byte stream stored as chunked, compressed
// bevies inside a MemberVolume.
type ImageStream struct {
	urn    rdf.URN
	volume MemberVolume
	res    *resolver.Resolver
	actx   *aff4ctx.Context

	opts Options
	size int64

	// write-side state
	writable    bool
	writeBuf    []byte // bytes accumulated since the last full chunk was emitted
	bevyChunks  [][]byte
	bevyIndex   int // current bevy number
	checkpoint  bool

	// read-side state
	readPos int64
	cache   *lru.Cache[int64, []byte]
	legacy  bool
}

// String implements the aff4log description interface.
func (s *ImageStream) String() string { return string(s.urn) }

// NewImageStream creates a fresh, writable ImageStream named urn,
// backed by volume, and records its construction parameters on res.
func NewImageStream(urn rdf.URN, volume MemberVolume, res *resolver.Resolver, actx *aff4ctx.Context, opts Options) *ImageStream {
	opts = opts.configure()
	s := &ImageStream{
		urn:      urn,
		volume:   volume,
		res:      res,
		actx:     actx,
		opts:     opts,
		writable: true,
	}
	cache, _ := lru.New[int64, []byte](opts.CacheBytes / opts.ChunkSize)
	s.cache = cache

	res.Set(urn, resolver.PredRDFType, rdf.RDFURN{URN: resolver.TypeImageStream}, true)
	res.Set(urn, resolver.PredChunkSize, rdf.XSDInteger(opts.ChunkSize), true)
	res.Set(urn, resolver.PredChunksInSegment, rdf.XSDInteger(opts.ChunksPerSegment), true)
	res.Set(urn, resolver.PredCompressionMethod, rdf.XSDString(compressionMethodURI(opts.Compression)), true)
	return s
}

// OpenImageStream opens an existing ImageStream for reading, pulling
// its chunking/compression parameters back out of res.
func OpenImageStream(urn rdf.URN, volume MemberVolume, res *resolver.Resolver, actx *aff4ctx.Context) (*ImageStream, error) {
	size, err := resolver.GetAs[rdf.XSDInteger](res, urn, resolver.PredSize)
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.NotFound, err, "no aff4:size for %q", urn)
	}
	chunkSize := DefaultChunkSize
	if v, err := resolver.GetAs[rdf.XSDInteger](res, urn, resolver.PredChunkSize); err == nil {
		chunkSize = int(v)
	}
	chunksPerSegment := DefaultChunksPerSegment
	if v, err := resolver.GetAs[rdf.XSDInteger](res, urn, resolver.PredChunksInSegment); err == nil {
		chunksPerSegment = int(v)
	}
	method := MethodStored
	legacy := false
	if v, err := resolver.GetAs[rdf.XSDString](res, urn, resolver.PredCompressionMethod); err == nil {
		method, legacy = parseCompressionMethodURI(string(v))
	}

	opts := Options{ChunkSize: chunkSize, ChunksPerSegment: chunksPerSegment, Compression: method}.configure()
	cache, _ := lru.New[int64, []byte](opts.CacheBytes / opts.ChunkSize)
	return &ImageStream{
		urn: urn, volume: volume, res: res, actx: actx,
		opts: opts, size: int64(size), cache: cache, legacy: legacy,
	}, nil
}

// OpenLegacyImageStream opens urn the same way OpenImageStream does,
// then forces the legacy bevy-naming fallback on regardless of what
// aff4:compressionMethod says. Use this when the caller already knows
// urn's rdf:type is the legacy ImageStream type, rather than waiting
// to discover legacy-ness from a "legacy:"-prefixed compression URI.
func OpenLegacyImageStream(urn rdf.URN, volume MemberVolume, res *resolver.Resolver, actx *aff4ctx.Context) (*ImageStream, error) {
	s, err := OpenImageStream(urn, volume, res, actx)
	if err != nil {
		return nil, err
	}
	s.legacy = true
	return s, nil
}

// Properties implements aff4io.Stream.
func (s *ImageStream) Properties() aff4io.Properties {
	return aff4io.Properties{Seekable: true, Sizeable: true, Writable: s.writable}
}

// Size implements aff4io.Stream.
func (s *ImageStream) Size() (int64, error) { return s.size, nil }

// Seek implements aff4io.Stream.
func (s *ImageStream) Seek(offset int64, whence aff4io.Whence) (int64, error) {
	var base int64
	switch whence {
	case aff4io.SeekSet:
		base = 0
	case aff4io.SeekCur:
		base = s.readPos
	case aff4io.SeekEnd:
		base = s.size
	default:
		return 0, aff4error.Newf(aff4error.InvalidInput, "invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		pos = 0
	}
	s.readPos = pos
	return s.readPos, nil
}

// Truncate resets the stream to empty and rewinds both cursors. Only
// valid on a writable, not-yet-flushed stream.
func (s *ImageStream) Truncate() error {
	if !s.writable {
		return aff4error.New(aff4error.InvalidInput, "image stream is not writable")
	}
	s.size = 0
	s.readPos = 0
	s.writeBuf = nil
	s.bevyChunks = nil
	s.bevyIndex = 0
	return nil
}

// CanSwitchVolume implements aff4io.VolumeSwitcher: legal only between
// bevies, when no bevy is currently in flight.
func (s *ImageStream) CanSwitchVolume() bool { return s.checkpoint }

// SwitchVolume implements aff4io.VolumeSwitcher.
func (s *ImageStream) SwitchVolume(newVolume interface{}) error {
	if !s.checkpoint {
		return aff4error.New(aff4error.InvalidInput, "cannot switch volume mid-bevy")
	}
	mv, ok := newVolume.(MemberVolume)
	if !ok {
		return aff4error.New(aff4error.InvalidInput, "new volume does not implement MemberVolume")
	}
	s.volume = mv
	return nil
}

// Close flushes any pending partial chunk/bevy.
func (s *ImageStream) Close() error { return s.Flush() }

// compressionMethodURI/parseCompressionMethodURI bidirectionally map
// CompressionMethod to the Turtle-visible string recorded under
// aff4:compressionMethod.
const (
	legacyPrefix = "legacy:"
)

func compressionMethodURI(m CompressionMethod) string {
	return fmt.Sprintf("http://aff4.org/Schema#%sCompression", m.String())
}

func parseCompressionMethodURI(uri string) (CompressionMethod, bool) {
	legacy := false
	s := uri
	if len(s) > len(legacyPrefix) && s[:len(legacyPrefix)] == legacyPrefix {
		legacy = true
		s = s[len(legacyPrefix):]
	}
	switch s {
	case compressionMethodURI(MethodStored):
		return MethodStored, legacy
	case compressionMethodURI(MethodZlib):
		return MethodZlib, legacy
	case compressionMethodURI(MethodDeflate):
		return MethodDeflate, legacy
	case compressionMethodURI(MethodSnappy):
		return MethodSnappy, legacy
	case compressionMethodURI(MethodLZ4):
		return MethodLZ4, legacy
	default:
		return MethodStored, legacy
	}
}

// bevyOf returns the bevy number and intra-bevy chunk index for a
// global chunk id.
func (s *ImageStream) bevyOf(chunkID int) (bevy, offsetInBevy int) {
	return chunkID / s.opts.ChunksPerSegment, chunkID % s.opts.ChunksPerSegment
}

// context used for the errgroup thread pool; the codec has no
// long-running cancellation needs of its own, so a fresh background
// context is sufficient.
func bgContext() context.Context { return context.Background() }
