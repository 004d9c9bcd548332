// Package rdf implements the URN addressing scheme and the typed RDF
// literal system used throughout the resolver, volumes and streams.
package rdf

import (
	"strings"

	"github.com/google/uuid"
)

// URN is a string identifier with one of three recognized schemes:
// aff4://<uuid>[/path], file://<filesystem-path> or builtin://<name>.
type URN string

// NewURN wraps an arbitrary string as a URN, performing no validation
// beyond what the scheme accessors tolerate. This matches callers that
// build a URN from already-trusted Turtle input.
func NewURN(s string) URN { return URN(s) }

// NewAff4URN allocates a fresh aff4://<uuid> URN, the normal way to
// name a newly created volume or stream that has no natural name.
func NewAff4URN() URN {
	return URN("aff4://" + uuid.New().String())
}

// schemeSep is the "://" that separates scheme from the rest.
const schemeSep = "://"

// Scheme returns the part of the URN before "://", or "" if the URN
// has no recognized scheme separator.
func (u URN) Scheme() string {
	if i := strings.Index(string(u), schemeSep); i >= 0 {
		return string(u)[:i]
	}
	return ""
}

// rest returns everything after "scheme://".
func (u URN) rest() string {
	if i := strings.Index(string(u), schemeSep); i >= 0 {
		return string(u)[i+len(schemeSep):]
	}
	return ""
}

// Domain returns the authority component: for aff4:// this is the
// UUID; for file:// and builtin:// it is the first path segment.
func (u URN) Domain() string {
	r := u.rest()
	if i := strings.IndexByte(r, '/'); i >= 0 {
		return r[:i]
	}
	return r
}

// Path returns everything after the domain, including the leading
// slash if present, or "" if the URN has no path component.
func (u URN) Path() string {
	r := u.rest()
	if i := strings.IndexByte(r, '/'); i >= 0 {
		return r[i:]
	}
	return ""
}

// String implements fmt.Stringer so URN reads naturally in log lines
// and error messages.
func (u URN) String() string { return string(u) }

// splitNormalize splits a "/"-joined path into its non-empty,
// non-"." components, resolving ".." by popping the stack (".." at
// the root is dropped rather than escaping above it).
func splitNormalize(path string) []string {
	parts := strings.Split(path, "/")
	var stack []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, p)
		}
	}
	return stack
}

// Append returns a new URN with component appended to the path,
// normalizing "." and ".." the way a filesystem path would. The
// result never contains "//" and never escapes above the URN's own
// root via "..".
func (u URN) Append(component string) URN {
	combined := u.Path() + "/" + component
	stack := splitNormalize(combined)
	newPath := "/" + strings.Join(stack, "/")

	base := string(u)
	if i := strings.IndexByte(u.rest(), '/'); i >= 0 {
		sep := strings.Index(base, schemeSep) + len(schemeSep)
		base = base[:sep+i]
	}
	return URN(base + newPath)
}

// RelativePath returns other with this URN's value stripped as a
// prefix, or the full value of other if this URN is not a prefix of
// it. One leading slash is stripped from the remainder, so
// "aff4://x" relative to "aff4://x/foo/bar" is "foo/bar".
func (u URN) RelativePath(other URN) string {
	base := string(u)
	target := string(other)
	if strings.HasPrefix(target, base) {
		rel := target[len(base):]
		return strings.TrimPrefix(rel, "/")
	}
	return target
}
