// Package resolver implements the AFF4 triple store: an in-memory
// subject/predicate/value map with Turtle serialization and parsing.
// It is process-local and is not safe for concurrent mutation --
// callers serialize their own Sets.
package resolver

import (
	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/rdf"
)

// Resolver is the subject -> predicate -> ordered []RDFValue store.
type Resolver struct {
	data map[rdf.URN]map[rdf.URN][]rdf.RDFValue
}

// New creates an empty Resolver.
func New() *Resolver {
	return &Resolver{data: make(map[rdf.URN]map[rdf.URN][]rdf.RDFValue)}
}

// Set records value for (subject, predicate). With replace=true any
// prior values for that predicate are cleared first; with
// replace=false the value is appended, so a subject may accumulate
// multiple values for the same predicate.
func (r *Resolver) Set(subject, predicate rdf.URN, value rdf.RDFValue, replace bool) {
	preds, ok := r.data[subject]
	if !ok {
		preds = make(map[rdf.URN][]rdf.RDFValue)
		r.data[subject] = preds
	}
	if replace {
		preds[predicate] = []rdf.RDFValue{value}
		return
	}
	preds[predicate] = append(preds[predicate], value)
}

// GetAll returns every value stored for (subject, predicate). It
// applies the implicit rdf:type rule: a subject with no explicit
// rdf:type predicate is reported as AFF4_ZIP_SEGMENT_TYPE, optimizing
// the common case of a bare volume member.
func (r *Resolver) GetAll(subject, predicate rdf.URN) ([]rdf.RDFValue, error) {
	preds, ok := r.data[subject]
	if !ok {
		if predicate == PredRDFType {
			return []rdf.RDFValue{rdf.RDFURN{URN: TypeZipSegment}}, nil
		}
		return nil, aff4error.Newf(aff4error.NotFound, "no such subject %q", subject)
	}
	values, ok := preds[predicate]
	if !ok || len(values) == 0 {
		if predicate == PredRDFType {
			return []rdf.RDFValue{rdf.RDFURN{URN: TypeZipSegment}}, nil
		}
		return nil, aff4error.Newf(aff4error.NotFound, "no %q for subject %q", predicate, subject)
	}
	return values, nil
}

// Get returns the first value stored for (subject, predicate).
func (r *Resolver) Get(subject, predicate rdf.URN) (rdf.RDFValue, error) {
	values, err := r.GetAll(subject, predicate)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// GetAs finds the first value for (subject, predicate) whose runtime
// type matches T, skipping incompatible stored values rather than
// failing outright. If nothing matches it returns IncompatibleTypes
// when values existed under another type, or NotFound when there were
// none at all.
func GetAs[T rdf.RDFValue](r *Resolver, subject, predicate rdf.URN) (T, error) {
	var zero T
	values, err := r.GetAll(subject, predicate)
	if err != nil {
		return zero, err
	}
	for _, v := range values {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	return zero, aff4error.Newf(aff4error.IncompatibleTypes,
		"no value of requested type for (%q, %q)", subject, predicate)
}

// HasSubject reports whether the subject has any triples at all.
func (r *Resolver) HasSubject(subject rdf.URN) bool {
	_, ok := r.data[subject]
	return ok
}

// HasPredicate reports whether (subject, predicate) has any values.
func (r *Resolver) HasPredicate(subject, predicate rdf.URN) bool {
	preds, ok := r.data[subject]
	if !ok {
		return predicate == PredRDFType
	}
	values, ok := preds[predicate]
	return (ok && len(values) > 0) || predicate == PredRDFType
}

// HasValue reports whether (subject, predicate) includes value,
// compared by its serialized lexical form and type URI.
func (r *Resolver) HasValue(subject, predicate rdf.URN, value rdf.RDFValue) bool {
	values, err := r.GetAll(subject, predicate)
	if err != nil {
		return false
	}
	for _, v := range values {
		if v.TypeURI() == value.TypeURI() && v.Serialize() == value.Serialize() {
			return true
		}
	}
	return false
}

// Query iterates every subject in the store and returns those that
// have the given predicate and, if value is non-nil, that specific
// value for it. This is deliberately O(N*M): the resolver is an
// in-memory map, not an indexed query engine.
func (r *Resolver) Query(predicate rdf.URN, value rdf.RDFValue) []rdf.URN {
	var out []rdf.URN
	for subject := range r.data {
		if value == nil {
			if r.HasPredicate(subject, predicate) {
				out = append(out, subject)
			}
			continue
		}
		if r.HasValue(subject, predicate, value) {
			out = append(out, subject)
		}
	}
	return out
}

// DeleteSubject removes every triple about subject. Used when a
// stream/member is being superseded in place (e.g. a chunker
// Update-style overwrite).
func (r *Resolver) DeleteSubject(subject rdf.URN) {
	delete(r.data, subject)
}

// Subjects returns every subject currently known to the resolver, in
// no particular order.
func (r *Resolver) Subjects() []rdf.URN {
	out := make([]rdf.URN, 0, len(r.data))
	for s := range r.data {
		out = append(out, s)
	}
	return out
}
