package rdf

import (
	"sync"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
)

// ParseFunc reconstructs a concrete RDFValue from its lexical form.
type ParseFunc func(lexical string) (RDFValue, error)

// registry maps a type URI (and any accepted alias, e.g. xsd:int as an
// alias of xsd:integer) to the parser that reconstructs it. This
// replaces an open-ended string-keyed class registry with a small,
// closed table of RDF-value type tags.
var (
	registryMu sync.RWMutex
	registry   = map[string]ParseFunc{
		TypeXSDString:             func(s string) (RDFValue, error) { return XSDString(s), nil },
		TypeXSDInteger:            func(s string) (RDFValue, error) { return ParseXSDInteger(s) },
		xsdNS + "int":             func(s string) (RDFValue, error) { return ParseXSDInteger(s) },
		xsdNS + "long":            func(s string) (RDFValue, error) { return ParseXSDInteger(s) },
		TypeXSDBoolean:            func(s string) (RDFValue, error) { return ParseXSDBoolean(s) },
		TypeRDFBytes:              func(s string) (RDFValue, error) { return ParseRDFBytes(s) },
		TypeURN:                   func(s string) (RDFValue, error) { return RDFURN{NewURN(s)}, nil },
		TypeMD5:                   func(s string) (RDFValue, error) { return HashValue{MD5, s}, nil },
		TypeSHA1:                  func(s string) (RDFValue, error) { return HashValue{SHA1, s}, nil },
		TypeSHA256:                func(s string) (RDFValue, error) { return HashValue{SHA256, s}, nil },
		TypeSHA512:                func(s string) (RDFValue, error) { return HashValue{SHA512, s}, nil },
		TypeBlake2B:               func(s string) (RDFValue, error) { return HashValue{Blake2B, s}, nil },
	}
)

// Register adds (or replaces) the parser for a type URI. Exposed so a
// caller embedding this library can extend the literal system without
// forking it, but the core itself only ever needs the table above.
func Register(typeURI string, fn ParseFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeURI] = fn
}

// Parse reconstructs an RDFValue given its type URI and lexical form.
func Parse(typeURI, lexical string) (RDFValue, error) {
	registryMu.RLock()
	fn, ok := registry[typeURI]
	registryMu.RUnlock()
	if !ok {
		return nil, aff4error.Newf(aff4error.ParsingError, "unregistered RDF type %q", typeURI)
	}
	return fn(lexical)
}
