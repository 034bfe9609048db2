package domain

import (
	"bytes"
	"encoding/json"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// IDField is the name of the field that uniquely identifies a document inside
// a collection.
const IDField = "_id"

// Kind identifies which variant a [Value] holds.
type Kind uint8

// Value kinds, in the same order used to sort values of different kinds.
const (
	KindNull Kind = iota
	KindInt
	KindString
	KindDocument
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindDocument:
		return "document"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged union holding one document field value. The zero Value is
// null. Values are immutable: nested documents are copied on construction and
// on access, so a Value can be shared freely between goroutines.
type Value struct {
	kind Kind
	i    int64
	s    string
	d    *Document
}

// Null returns the null value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Doc returns a nested document value. A nil document is stored as null.
func Doc(d *Document) Value {
	if d == nil {
		return Null()
	}
	return Value{kind: KindDocument, d: d.Clone()}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the integer held by v and whether v is an integer.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsString returns the string held by v and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsDocument returns a copy of the nested document held by v and whether v is
// a document.
func (v Value) AsDocument() (*Document, bool) {
	if v.kind != KindDocument {
		return nil, false
	}
	return v.d.Clone(), true
}

// Interface returns v as a plain Go value: nil, int64, string or
// map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindString:
		return v.s
	case KindDocument:
		return v.d.Map()
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same variant with the same content.
// Field order is irrelevant when comparing nested documents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindDocument:
		return v.d.Equal(o.d)
	default:
		return true
	}
}

// Key returns a canonical string encoding of v. Two values have the same key
// if and only if they are [Value.Equal].
func (v Value) Key() string {
	var b strings.Builder
	v.writeKey(&b)
	return b.String()
}

func (v Value) writeKey(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteByte('n')
	case KindInt:
		b.WriteByte('i')
		b.WriteString(strconv.FormatInt(v.i, 10))
		b.WriteByte(';')
	case KindString:
		b.WriteByte('s')
		b.WriteString(strconv.Itoa(len(v.s)))
		b.WriteByte(':')
		b.WriteString(v.s)
	case KindDocument:
		keys := slices.Sorted(v.d.Keys())
		b.WriteByte('{')
		for _, k := range keys {
			String(k).writeKey(b)
			v.d.fields[k].writeKey(b)
		}
		b.WriteByte('}')
	}
}

// String implements [fmt.Stringer].
func (v Value) String() string {
	b, err := json.Marshal(v)
	if err != nil {
		return "<" + v.kind.String() + ">"
	}
	return string(b)
}

// MarshalJSON implements [json.Marshaler].
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindString:
		return json.Marshal(v.s)
	case KindDocument:
		return v.d.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// Document is an ordered mapping from field name to [Value]. Field order is the
// insertion order, except that [IDField] is always kept first. Document is not
// safe for concurrent mutation; the store hands out copies.
type Document struct {
	order  []string
	fields map[string]Value
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{fields: make(map[string]Value)}
}

// ID returns the document _id and whether it is set.
func (d *Document) ID() (Value, bool) {
	return d.Get(IDField)
}

// Get returns the value under key and whether it is set.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Null(), false
	}
	v, ok := d.fields[key]
	if ok && v.kind == KindDocument {
		v.d = v.d.Clone()
	}
	return v, ok
}

// Has reports whether key is set.
func (d *Document) Has(key string) bool {
	if d == nil {
		return false
	}
	_, ok := d.fields[key]
	return ok
}

// Set sets the value under key, appending key if it is new.
func (d *Document) Set(key string, v Value) {
	if d.fields == nil {
		d.fields = make(map[string]Value)
	}
	if _, ok := d.fields[key]; !ok {
		if key == IDField {
			d.order = slices.Insert(d.order, 0, key)
		} else {
			d.order = append(d.order, key)
		}
	}
	d.fields[key] = v
}

// Unset removes key from the document.
func (d *Document) Unset(key string) {
	if _, ok := d.fields[key]; !ok {
		return
	}
	delete(d.fields, key)
	d.order = slices.DeleteFunc(d.order, func(k string) bool { return k == key })
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.order)
}

// Keys returns the field names in order.
func (d *Document) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		if d == nil {
			return
		}
		for _, k := range d.order {
			if !yield(k) {
				return
			}
		}
	}
}

// All returns the fields in order.
func (d *Document) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if d == nil {
			return
		}
		for _, k := range d.order {
			v, _ := d.Get(k)
			if !yield(k, v) {
				return
			}
		}
	}
}

// GetPath returns the value found following a dotted path such as "a.b.c".
func (d *Document) GetPath(path string) (Value, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := d.Get(head)
	if !ok || !nested {
		return v, ok
	}
	sub, isDoc := v.AsDocument()
	if !isDoc {
		return Null(), false
	}
	return sub.GetPath(rest)
}

// SetPath sets the value found following a dotted path, creating intermediate
// documents when missing. It returns false when a non-document value is in the
// way.
func (d *Document) SetPath(path string, v Value) bool {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		d.Set(head, v)
		return true
	}
	cur, ok := d.fields[head]
	var sub *Document
	switch {
	case !ok || cur.kind == KindNull:
		sub = NewDocument()
	case cur.kind == KindDocument:
		sub = cur.d.Clone()
	default:
		return false
	}
	if !sub.SetPath(rest, v) {
		return false
	}
	d.Set(head, Value{kind: KindDocument, d: sub})
	return true
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	res := &Document{
		order:  slices.Clone(d.order),
		fields: make(map[string]Value, len(d.fields)),
	}
	for k, v := range d.fields {
		if v.kind == KindDocument {
			v.d = v.d.Clone()
		}
		res.fields[k] = v
	}
	return res
}

// Equal reports whether both documents have the same fields with equal values,
// regardless of order.
func (d *Document) Equal(o *Document) bool {
	if d.Len() != o.Len() {
		return false
	}
	for k, v := range d.All() {
		ov, ok := o.Get(k)
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Map returns the document as a map of plain Go values (see
// [Value.Interface]).
func (d *Document) Map() map[string]any {
	res := make(map[string]any, d.Len())
	for k, v := range d.All() {
		res[k] = v.Interface()
	}
	return res
}

// MarshalJSON implements [json.Marshaler], keeping field order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, k := range d.order {
		if n > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := d.fields[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the JSON form of the document.
func (d *Document) String() string {
	if d == nil {
		return "null"
	}
	b, err := d.MarshalJSON()
	if err != nil {
		return "<document>"
	}
	return string(b)
}

// PredicateKind identifies how a [Predicate] tests a field.
type PredicateKind uint8

// Predicate kinds.
const (
	PredicateEq PredicateKind = iota
	PredicateRegex
)

// Predicate is a condition over a single field path.
type Predicate struct {
	Field string
	Kind  PredicateKind
	// Value is the operand of an equality predicate.
	Value Value
	// Pattern is the source of a regex predicate.
	Pattern string
	// Prefix is the literal every matching string must start with. Only
	// meaningful when Bounded is true.
	Prefix string
	// Bounded reports whether the regex is anchored at the start of the
	// text, so every match lies in the range [Prefix, successor(Prefix)).
	Bounded bool
	// Match tests a string against the compiled regex.
	Match func(string) bool
}

// Filter is a conjunction of predicates. An empty filter matches every
// document.
type Filter struct {
	Predicates []Predicate
}

// Equalities returns the equality predicates of the filter, in order.
func (f Filter) Equalities() []Predicate {
	res := make([]Predicate, 0, len(f.Predicates))
	for _, p := range f.Predicates {
		if p.Kind == PredicateEq {
			res = append(res, p)
		}
	}
	return res
}

// Key returns a canonical encoding of the filter, used to serialize upserts
// that target the same documents.
func (f Filter) Key() string {
	parts := make([]string, len(f.Predicates))
	for n, p := range f.Predicates {
		switch p.Kind {
		case PredicateEq:
			parts[n] = p.Field + "=" + p.Value.Key()
		default:
			parts[n] = p.Field + "~" + p.Pattern
		}
	}
	slices.Sort(parts)
	return strings.Join(parts, "\x00")
}

// Op is an update operator.
type Op uint8

// Update operators.
const (
	OpSet Op = iota
	OpInc
	OpSetOnInsert
)

// String implements [fmt.Stringer], returning the operator keyword.
func (o Op) String() string {
	switch o {
	case OpSet:
		return "$set"
	case OpInc:
		return "$inc"
	case OpSetOnInsert:
		return "$setOnInsert"
	default:
		return "$op(" + strconv.Itoa(int(o)) + ")"
	}
}

// Mutation is one compiled field change.
type Mutation struct {
	Op    Op
	Path  string
	Value Value
}

// InsertOnly reports whether the mutation only applies when the write creates
// the document.
func (m Mutation) InsertOnly() bool { return m.Op == OpSetOnInsert }

// UpdateSpec is a compiled update document. Either Replacement is set (legacy
// full-document replacement) or Mutations lists the operator changes in
// order.
type UpdateSpec struct {
	Mutations   []Mutation
	Replacement *Document
}

// IndexDTO is the snapshot record of an index declaration.
type IndexDTO struct {
	IndexCreated IndexCreated `json:"$$indexCreated" docdb:"$$indexCreated"`
}

// IndexCreated describes a declared index.
type IndexCreated struct {
	FieldName string `json:"fieldName" docdb:"fieldName"`
}

// UpsertResult describes the outcome of an upsert call.
type UpsertResult struct {
	// ID is the _id of the written document.
	ID Value
	// Inserted reports whether the document was created by this call.
	Inserted bool
	// Document is a copy of the document as committed.
	Document *Document
}
