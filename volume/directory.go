package volume

import (
	"os"
	"path/filepath"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/rdf"
	"github.com/Velocidex/c-aff4-sub000/resolver"
	"github.com/Velocidex/c-aff4-sub000/zip64"
)

// Directory is the Directory-backed volume: one host file per member,
// laid flat under root with each member's name passed through the
// same filesystem-safe escaping zip64 uses for its ZIP member names.
// Its member contract -- CreateMemberBuffered/OpenMember/HasMember --
// is identical to *zip64.Volume's: stat-based sizing, os.MkdirAll for
// intermediate directories, and read/truncate/append open modes.
type Directory struct {
	URN  rdf.URN
	root string
	res  *resolver.Resolver
}

// CreateDirectory creates (or reuses) root as a Directory-backed
// volume named urn, recording container.description and version.txt
// the same way a fresh ZIP64 volume does. No information.turtle member
// is written, at creation or later.
func CreateDirectory(root string, urn rdf.URN) (*Directory, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, aff4error.Wrapf(aff4error.IoError, err, "creating directory volume root %q", root)
	}
	d := &Directory{URN: urn, root: root, res: resolver.New()}
	d.res.Set(urn, resolver.PredRDFType, rdf.RDFURN{URN: resolver.TypeDirectory}, true)

	if err := d.addMember("container.description", []byte(string(urn))); err != nil {
		return nil, err
	}
	if err := d.addMember("version.txt", []byte(zip64.VersionText)); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenDirectory opens an existing Directory-backed volume rooted at
// root.
func OpenDirectory(root string, urn rdf.URN) (*Directory, error) {
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return nil, aff4error.Newf(aff4error.NotFound, "no directory volume at %q", root)
	}
	return &Directory{URN: urn, root: root, res: resolver.New()}, nil
}

// String implements the aff4log description interface.
func (d *Directory) String() string { return string(d.URN) }

func (d *Directory) memberPath(escapedName string) string {
	return filepath.Join(d.root, escapedName)
}

func (d *Directory) addMember(name string, data []byte) error {
	f, err := aff4io.OpenFileBackedObject(d.memberPath(escapeMemberName(name)), aff4io.ModeTruncate)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// escapeMemberName reuses rdf's URN member-name escaping so a member
// name containing "/" (e.g. a bevy path "<urn>/00000001") still maps
// to a single flat file rather than nested directories -- the same
// flattening zip64 relies on for ZIP member names.
func escapeMemberName(name string) string {
	return rdf.MemberName(rdf.URN(name))
}

// HasMember reports whether name has a backing file.
func (d *Directory) HasMember(name string) bool {
	_, err := os.Stat(d.memberPath(escapeMemberName(name)))
	return err == nil
}

// OpenMember opens an existing member for reading.
func (d *Directory) OpenMember(name string) (aff4io.Stream, error) {
	f, err := aff4io.OpenFileBackedObject(d.memberPath(escapeMemberName(name)), aff4io.ModeRead)
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.NotFound, err, "opening member %q", name)
	}
	return f, nil
}

// CreateMemberBuffered returns a writer for a new (or replaced) member
// name; its file is created or truncated when CreateMemberBuffered is
// called. Directory ignores the compression
// method argument entirely (one file per member, stored verbatim);
// it is accepted only so Directory's method signature matches
// *zip64.Volume's exactly, letting imagestream/mapstream's
// MemberVolume interface treat either backend identically. Unlike
// zip64's in-memory buffered segment, a Directory member writes
// straight through to its own file -- directory storage has no
// central directory to defer commitment through, so callers still see
// the write once Close returns, same as zip64's segment.
func (d *Directory) CreateMemberBuffered(name string, _ zip64.CompressionMethod) aff4io.Stream {
	f, err := aff4io.OpenFileBackedObject(d.memberPath(escapeMemberName(name)), aff4io.ModeTruncate)
	if err != nil {
		return errStream{err: err}
	}
	return f
}

// errStream is a Stream whose every operation returns a fixed error,
// used so CreateMemberBuffered can report an open failure through its
// aff4io.Stream-only return type instead of panicking or silently
// discarding it; the failure surfaces on the caller's first Write.
type errStream struct{ err error }

func (e errStream) Properties() aff4io.Properties            { return aff4io.Properties{} }
func (e errStream) Read(p []byte) (int, error)                { return 0, e.err }
func (e errStream) Write(p []byte) (int, error)               { return 0, e.err }
func (e errStream) Seek(int64, aff4io.Whence) (int64, error)  { return 0, e.err }
func (e errStream) Size() (int64, error)                      { return -1, e.err }
func (e errStream) Truncate() error                           { return e.err }
func (e errStream) Flush() error                              { return e.err }
func (e errStream) Close() error                              { return e.err }

// Resolver exposes the volume's own triple store, the way callers use
// zip64.Volume.Resolver.
func (d *Directory) Resolver() *resolver.Resolver { return d.res }

// Close is a no-op: every member file is already fully written and
// closed by the time CreateMemberBuffered's caller is done with it.
func (d *Directory) Close() error { return nil }
