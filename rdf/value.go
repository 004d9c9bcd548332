package rdf

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
)

// RDFValue is the tagged sum over AFF4's typed literal system: every
// concrete type knows how to serialize itself to the lexical string
// Turtle expects and carries a stable type URI used in that output.
type RDFValue interface {
	// TypeURI is the canonical rdf:type used to tag this value's
	// lexical form in Turtle output.
	TypeURI() string
	// Serialize renders the value's lexical (string) form.
	Serialize() string
}

// Well-known type URIs, matching the container's namespace table.
const (
	xsdNS = "http://www.w3.org/2001/XMLSchema#"
	aff4NS = "http://aff4.org/Schema#"

	TypeXSDString  = xsdNS + "string"
	TypeXSDInteger = xsdNS + "integer"
	TypeXSDBoolean = xsdNS + "boolean"
	TypeRDFBytes   = aff4NS + "ByteArray"
	TypeURN        = aff4NS + "URN"
	TypeMD5        = aff4NS + "MD5"
	TypeSHA1       = aff4NS + "SHA1"
	TypeSHA256     = aff4NS + "SHA256"
	TypeSHA512     = aff4NS + "SHA512"
	TypeBlake2B    = aff4NS + "Blake2B"
)

// RDFBytes is a byte string that round-trips through uppercase hex.
type RDFBytes []byte

// TypeURI implements RDFValue.
func (RDFBytes) TypeURI() string { return TypeRDFBytes }

// Serialize implements RDFValue: uppercase hex.
func (b RDFBytes) Serialize() string { return strings.ToUpper(hex.EncodeToString([]byte(b))) }

// ParseRDFBytes decodes an uppercase (or any-case) hex string back
// into RDFBytes. Odd-length input is rejected with InvalidInput.
func ParseRDFBytes(s string) (RDFBytes, error) {
	if len(s)%2 != 0 {
		return nil, aff4error.Newf(aff4error.InvalidInput, "odd-length hex string %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, aff4error.Wrapf(aff4error.InvalidInput, err, "invalid hex string %q", s)
	}
	return RDFBytes(b), nil
}

// XSDString is a raw UTF-8 literal.
type XSDString string

// TypeURI implements RDFValue.
func (XSDString) TypeURI() string { return TypeXSDString }

// Serialize implements RDFValue: passthrough.
func (s XSDString) Serialize() string { return string(s) }

// XSDInteger is a 64-bit signed integer literal.
type XSDInteger int64

// TypeURI implements RDFValue.
func (XSDInteger) TypeURI() string { return TypeXSDInteger }

// Serialize implements RDFValue: decimal.
func (i XSDInteger) Serialize() string { return strconv.FormatInt(int64(i), 10) }

// ParseXSDInteger parses a decimal integer literal. Callers accept
// this for any of the xsd:integer|int|long type tags; the
// canonical serialized TypeURI is always xsd:integer.
func ParseXSDInteger(s string) (XSDInteger, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, aff4error.Wrapf(aff4error.InvalidInput, err, "invalid xsd:integer %q", s)
	}
	return XSDInteger(n), nil
}

// XSDBoolean is a boolean literal.
type XSDBoolean bool

// TypeURI implements RDFValue.
func (XSDBoolean) TypeURI() string { return TypeXSDBoolean }

// Serialize implements RDFValue: canonical "true"/"false".
func (b XSDBoolean) Serialize() string {
	if b {
		return "true"
	}
	return "false"
}

// ParseXSDBoolean accepts "true"|"1"|"false"|"0".
func ParseXSDBoolean(s string) (XSDBoolean, error) {
	switch s {
	case "true", "1":
		return XSDBoolean(true), nil
	case "false", "0":
		return XSDBoolean(false), nil
	default:
		return false, aff4error.Newf(aff4error.InvalidInput, "invalid xsd:boolean %q", s)
	}
}

// RDFURN is a URN used as an RDF object value (as opposed to a triple
// subject), e.g. the object of aff4:stored or aff4:dataStream.
type RDFURN struct{ URN }

// TypeURI implements RDFValue.
func (RDFURN) TypeURI() string { return TypeURN }

// Serialize implements RDFValue: passthrough.
func (u RDFURN) Serialize() string { return string(u.URN) }

// HashKind distinguishes the supported hash literal flavors.
type HashKind int

// Supported hash kinds, each tagged with a distinct type URI.
const (
	MD5 HashKind = iota
	SHA1
	SHA256
	SHA512
	Blake2B
)

func (k HashKind) typeURI() string {
	switch k {
	case MD5:
		return TypeMD5
	case SHA1:
		return TypeSHA1
	case SHA256:
		return TypeSHA256
	case SHA512:
		return TypeSHA512
	case Blake2B:
		return TypeBlake2B
	default:
		return ""
	}
}

// HashValue is a hash digest literal: a hex string tagged with its
// algorithm's distinct type URI.
type HashValue struct {
	Kind HashKind
	Hex  string
}

// TypeURI implements RDFValue.
func (h HashValue) TypeURI() string { return h.Kind.typeURI() }

// Serialize implements RDFValue: passthrough hex string.
func (h HashValue) Serialize() string { return h.Hex }
