package rdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRDFBytesRoundTrip(t *testing.T) {
	for _, in := range [][]byte{
		{},
		{0x00},
		{0xDE, 0xAD, 0xBE, 0xEF},
		[]byte("hello world"),
	} {
		b := RDFBytes(in)
		s := b.Serialize()
		assert.Equal(t, s, strings_ToUpperHex(s))
		back, err := ParseRDFBytes(s)
		require.NoError(t, err)
		assert.Equal(t, b, back)
	}
}

// strings_ToUpperHex is a trivial helper asserting s is already
// uppercase hex (i.e. idempotent under upper-casing).
func strings_ToUpperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 32
		}
	}
	return string(out)
}

func TestRDFBytesRejectsOddLength(t *testing.T) {
	_, err := ParseRDFBytes("ABC")
	require.Error(t, err)
}

func TestXSDStringRoundTrip(t *testing.T) {
	s := XSDString("hello \xE2\x9C\x93 utf8")
	assert.Equal(t, string(s), s.Serialize())
}

func TestXSDIntegerRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 9223372036854775807, -9223372036854775808} {
		i := XSDInteger(n)
		back, err := ParseXSDInteger(i.Serialize())
		require.NoError(t, err)
		assert.Equal(t, i, back)
	}
}

func TestXSDBooleanParsesAllForms(t *testing.T) {
	for _, test := range []struct {
		in   string
		want XSDBoolean
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"0", false},
	} {
		got, err := ParseXSDBoolean(test.in)
		require.NoError(t, err)
		assert.Equal(t, test.want, got)
	}
	_, err := ParseXSDBoolean("yes")
	assert.Error(t, err)
}

func TestTypeRegistryRoundTrip(t *testing.T) {
	for _, test := range []struct {
		typeURI string
		lexical string
	}{
		{TypeXSDString, "hi"},
		{TypeXSDInteger, "42"},
		{xsdNS + "int", "42"},
		{xsdNS + "long", "42"},
		{TypeXSDBoolean, "true"},
		{TypeRDFBytes, "DEADBEEF"},
		{TypeURN, "aff4://1234"},
		{TypeMD5, "d41d8cd98f00b204e9800998ecf8427e"},
		{TypeSHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85"},
	} {
		v, err := Parse(test.typeURI, test.lexical)
		require.NoError(t, err, test.typeURI)
		assert.Equal(t, test.lexical, v.Serialize())
	}
}

func TestParseUnregisteredType(t *testing.T) {
	_, err := Parse("http://example.com/unknown", "x")
	assert.Error(t, err)
}
