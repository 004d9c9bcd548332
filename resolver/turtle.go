package resolver

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/rdf"
)

// compactURI returns prefix:local for a known namespace, or the full
// <uri> form otherwise.
func compactURI(u string) string {
	for _, ns := range namespacePrefixes {
		if strings.HasPrefix(u, ns.uri) {
			local := u[len(ns.uri):]
			if local != "" && !strings.ContainsAny(local, "/#") {
				return ns.prefix + ":" + local
			}
		}
	}
	return "<" + u + ">"
}

// expandURI is the inverse of compactURI: it turns a Turtle token
// (either <iri> or prefix:local) back into a full URI string.
func expandURI(tok string) (string, error) {
	if strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") {
		return tok[1 : len(tok)-1], nil
	}
	for _, ns := range namespacePrefixes {
		p := ns.prefix + ":"
		if strings.HasPrefix(tok, p) {
			return ns.uri + tok[len(p):], nil
		}
	}
	return "", aff4error.Newf(aff4error.ParsingError, "unrecognized Turtle token %q", tok)
}

// renderObject renders an RDFValue the way DumpToTurtle writes it:
// URNs become IRI references, everything else becomes a typed
// literal.
func renderObject(v rdf.RDFValue) string {
	if u, ok := v.(rdf.RDFURN); ok {
		return compactURI(string(u.URN))
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v.Serialize())
	return "\"" + escaped + "\"^^" + compactURI(v.TypeURI())
}

// DumpToTurtle emits the resolver's contents as canonical Turtle.
// baseURN is accepted so a future relativizing writer could shorten
// IRIs against it, but this implementation always emits absolute
// IRIs, which is always valid Turtle. Suppresses:
//   - aff4:stored when the subject's type is ZipSegment|Zip|Directory
//     (inferable from context),
//   - any rdf:type in {ZipSegment, Zip, Directory},
//   - predicates in the volatile namespace,
// unless verbose is true.
func (r *Resolver) DumpToTurtle(w io.Writer, baseURN rdf.URN, verbose bool) error {
	_ = baseURN
	bw := bufio.NewWriter(w)
	for _, ns := range namespacePrefixes {
		if _, err := fmt.Fprintf(bw, "@prefix %s: <%s> .\n", ns.prefix, ns.uri); err != nil {
			return aff4error.Wrap(aff4error.IoError, err, "writing turtle prefixes")
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "writing turtle")
	}

	subjects := r.Subjects()
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })

	for _, subject := range subjects {
		preds := r.data[subject]
		subjType, hasType := inferredType(preds)

		type kv struct {
			pred rdf.URN
			val  rdf.RDFValue
		}
		var pairs []kv
		predNames := make([]rdf.URN, 0, len(preds))
		for p := range preds {
			predNames = append(predNames, p)
		}
		sort.Slice(predNames, func(i, j int) bool { return predNames[i] < predNames[j] })

		for _, pred := range predNames {
			if !verbose && isVolatile(pred) {
				continue
			}
			if pred == PredRDFType && hasType && suppressedType(subjType) && !verbose {
				continue
			}
			if pred == PredStored && hasType && suppressedType(subjType) && !verbose {
				continue
			}
			for _, v := range preds[pred] {
				pairs = append(pairs, kv{pred, v})
			}
		}
		if len(pairs) == 0 {
			continue
		}

		if _, err := fmt.Fprintf(bw, "%s\n", compactURI(string(subject))); err != nil {
			return aff4error.Wrap(aff4error.IoError, err, "writing turtle subject")
		}
		for i, p := range pairs {
			sep := " ;"
			if i == len(pairs)-1 {
				sep = " ."
			}
			predStr := compactURI(string(p.pred))
			if p.pred == PredRDFType {
				predStr = "a"
			}
			if _, err := fmt.Fprintf(bw, "    %s %s%s\n", predStr, renderObject(p.val), sep); err != nil {
				return aff4error.Wrap(aff4error.IoError, err, "writing turtle predicate")
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return aff4error.Wrap(aff4error.IoError, err, "writing turtle")
		}
	}
	return bw.Flush()
}

// inferredType returns the subject's explicit rdf:type if present and
// an RDFURN, else the implicit ZipSegment default.
func inferredType(preds map[rdf.URN][]rdf.RDFValue) (rdf.URN, bool) {
	values, ok := preds[PredRDFType]
	if !ok || len(values) == 0 {
		return TypeZipSegment, true
	}
	if u, ok := values[0].(rdf.RDFURN); ok {
		return u.URN, true
	}
	return "", false
}

// LoadFromTurtle parses the canonical Turtle this package emits and
// inserts every triple with replace=false, matching a progressive
// multi-writer merge of metadata. It is not a general-purpose
// Turtle parser: it understands exactly the subset DumpToTurtle
// produces (prefix declarations, "a"/rdf:type, "subject\n  pred obj
// ;\n  pred obj .\n" blocks, <iri> and prefix:local tokens, and
// "literal"^^type / <iri> objects).
func (r *Resolver) LoadFromTurtle(in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return aff4error.Wrap(aff4error.IoError, err, "reading turtle")
	}
	toks, err := tokenizeTurtle(string(data))
	if err != nil {
		return err
	}

	i := 0
	var subject rdf.URN
	haveSubject := false
	for i < len(toks) {
		tok := toks[i]
		switch {
		case tok == ".":
			haveSubject = false
			i++
		case tok == ";" || tok == ",":
			i++
		case !haveSubject:
			uri, err := expandURI(tok)
			if err != nil {
				return err
			}
			subject = rdf.NewURN(uri)
			haveSubject = true
			i++
		default:
			if i+1 >= len(toks) {
				return aff4error.Newf(aff4error.ParsingError, "truncated turtle statement near %q", tok)
			}
			predTok := tok
			objTok := toks[i+1]
			i += 2

			var pred rdf.URN
			if predTok == "a" {
				pred = PredRDFType
			} else {
				uri, err := expandURI(predTok)
				if err != nil {
					return err
				}
				pred = rdf.NewURN(uri)
			}

			value, err := parseObject(objTok)
			if err != nil {
				return err
			}
			r.Set(subject, pred, value, false)
		}
	}
	return nil
}

// parseObject turns a single object token back into an RDFValue. A
// token not starting with a quote is an IRI reference (either <iri>
// or a prefixed name like aff4:ImageStream), matching how renderObject
// writes RDFURN values; a quoted token is a "lexical"^^type literal.
func parseObject(tok string) (rdf.RDFValue, error) {
	if !strings.HasPrefix(tok, `"`) {
		uri, err := expandURI(tok)
		if err != nil {
			return nil, err
		}
		return rdf.RDFURN{URN: rdf.NewURN(uri)}, nil
	}
	idx := strings.Index(tok, `"^^`)
	if idx < 0 {
		return nil, aff4error.Newf(aff4error.ParsingError, "malformed turtle literal %q", tok)
	}
	lexical := unescapeTurtleString(tok[1:idx])
	typeTok := tok[idx+3:]
	typeURI, err := expandURI(typeTok)
	if err != nil {
		return nil, err
	}
	return rdf.Parse(typeURI, lexical)
}

func unescapeTurtleString(s string) string {
	return strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\\`, `\`).Replace(s)
}

// tokenizeTurtle splits the document into tokens, stripping @prefix
// declarations (prefixes are fixed/known, so they are consumed rather
// than remembered) and comments.
func tokenizeTurtle(doc string) ([]string, error) {
	var toks []string
	i := 0
	n := len(doc)
	for i < n {
		c := doc[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '#':
			for i < n && doc[i] != '\n' {
				i++
			}
		case c == '@':
			// @prefix name: <uri> . -- always one line in our output;
			// skipping to '.' would misfire on a '.' inside the URI
			// itself (e.g. "aff4.org"), so skip to end of line instead.
			for i < n && doc[i] != '\n' {
				i++
			}
		case c == '<':
			j := strings.IndexByte(doc[i:], '>')
			if j < 0 {
				return nil, aff4error.Newf(aff4error.ParsingError, "unterminated IRI in turtle")
			}
			toks = append(toks, doc[i:i+j+1])
			i += j + 1
		case c == '"':
			j := i + 1
			for j < n {
				if doc[j] == '\\' {
					j += 2
					continue
				}
				if doc[j] == '"' {
					break
				}
				j++
			}
			if j >= n {
				return nil, aff4error.Newf(aff4error.ParsingError, "unterminated string in turtle")
			}
			end := j + 1
			// absorb an optional ^^type suffix (prefixed or <iri>)
			if end+1 < n && doc[end] == '^' && doc[end+1] == '^' {
				k := end + 2
				if k < n && doc[k] == '<' {
					m := strings.IndexByte(doc[k:], '>')
					if m < 0 {
						return nil, aff4error.Newf(aff4error.ParsingError, "unterminated datatype IRI")
					}
					end = k + m + 1
				} else {
					for k < n && !isTurtleDelim(doc[k]) {
						k++
					}
					end = k
				}
			}
			toks = append(toks, doc[i:end])
			i = end
		case c == '.' || c == ';' || c == ',':
			toks = append(toks, string(c))
			i++
		default:
			j := i
			for j < n && !isTurtleDelim(doc[j]) {
				j++
			}
			if j > i {
				toks = append(toks, doc[i:j])
				i = j
			} else {
				i++ // safety: avoid infinite loop on unexpected byte
			}
		}
	}
	return toks, nil
}

func isTurtleDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '.', ';', ',', '<', '"', '#':
		return true
	default:
		return false
	}
}
