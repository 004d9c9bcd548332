package resolver

import "github.com/Velocidex/c-aff4-sub000/rdf"

// Namespaces used by the Turtle vocabulary. These are the prefixes
// DumpToTurtle registers and LoadFromTurtle recognizes.
const (
	NSAff4    = "http://aff4.org/Schema#"
	NSAff4Vol = "http://aff4.org/VolatileSchema#"
	NSXSD     = "http://www.w3.org/2001/XMLSchema#"
	NSRDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
)

// Predicates used by the core.
var (
	PredRDFType           = rdf.NewURN(NSRDF + "type")
	PredStored            = rdf.NewURN(NSAff4 + "stored")
	PredContains          = rdf.NewURN(NSAff4 + "contains")
	PredSize              = rdf.NewURN(NSAff4 + "size")
	PredChunkSize         = rdf.NewURN(NSAff4 + "chunkSize")
	PredChunksInSegment   = rdf.NewURN(NSAff4 + "chunksInSegment")
	PredCompressionMethod = rdf.NewURN(NSAff4 + "compressionMethod")
	PredDataStream        = rdf.NewURN(NSAff4 + "dataStream")
	PredOriginalFileName  = rdf.NewURN(NSAff4 + "originalFileName")
	PredCategory          = rdf.NewURN(NSAff4 + "category")
)

// rdf:type object values used by the core.
var (
	TypeImage       = rdf.NewURN(NSAff4 + "Image")
	TypeImageStream = rdf.NewURN(NSAff4 + "ImageStream")
	TypeMap         = rdf.NewURN(NSAff4 + "Map")
	TypeZip         = rdf.NewURN(NSAff4 + "Zip")
	TypeZipSegment  = rdf.NewURN(NSAff4 + "ZipSegment")
	TypeDirectory   = rdf.NewURN(NSAff4 + "Directory")
	TypeFile        = rdf.NewURN(NSAff4 + "File")

	// TypeLegacyImageStream tags a bevy-backed stream written by the
	// pre-standardization encoder, registered under a second, distinct
	// rdf:type alongside ImageStream. A volume carrying this type is
	// still opened as an ImageStream, just with the legacy
	// member-naming fallback engaged by the factory up front instead
	// of inferred from the compression-method string.
	TypeLegacyImageStream = rdf.NewURN(NSAff4 + "image")

	TypeDiskImage          = rdf.NewURN(NSAff4 + "DiskImage")
	TypeVolumeImage        = rdf.NewURN(NSAff4 + "VolumeImage")
	TypeMemoryImage        = rdf.NewURN(NSAff4 + "MemoryImage")
	TypeContiguousImage    = rdf.NewURN(NSAff4 + "ContiguousImage")
	TypeDiscontiguousImage = rdf.NewURN(NSAff4 + "DiscontiguousImage")
)

// isVolatile reports whether a predicate lives in the volatile
// (write-mode/filename-hint) namespace, which is suppressed from
// Turtle output unless verbose.
func isVolatile(pred rdf.URN) bool {
	s := string(pred)
	return len(s) >= len(NSAff4Vol) && s[:len(NSAff4Vol)] == NSAff4Vol
}

// suppressedType reports whether t is one of the types whose
// aff4:stored/rdf:type triples DumpToTurtle suppresses because they
// are inferable from context.
func suppressedType(t rdf.URN) bool {
	return t == TypeZipSegment || t == TypeZip || t == TypeDirectory
}

// namespacePrefixes maps the canonical prefixes DumpToTurtle emits.
var namespacePrefixes = []struct {
	prefix string
	uri    string
}{
	{"aff4", NSAff4},
	{"xsd", NSXSD},
	{"rdf", NSRDF},
}
