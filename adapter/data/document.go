// Package data converts Go values into docdb documents and values.
//
// Accepted document inputs are [*domain.Document], [M], map[string]T, the
// ordered [D], bson.D, bson.M and structs. Struct fields can be renamed with
// the "docdb" tag, and the ",omitempty" and ",omitzero" tag options skip nil
// and zero fields respectively. Accepted scalars are nil, strings, every
// integer type and integral floats.
package data

import (
	"cmp"
	"encoding/json"
	"math"
	"reflect"
	"slices"
	"strings"

	goreflect "github.com/goccy/go-reflect"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// TagName is the struct tag read when converting structs.
const TagName = "docdb"

// M is an unordered document literal. Keys are sorted on conversion.
type M = map[string]any

// E is one element of an ordered document literal.
type E struct {
	Key   string
	Value any
}

// D is an ordered document literal.
type D []E

// NewDocument converts in into a new document. A nil input results in an empty
// document.
func NewDocument(in any) (*domain.Document, error) {
	if d, ok := in.(*domain.Document); ok {
		if d == nil {
			return domain.NewDocument(), nil
		}
		return d.Clone(), nil
	}
	fields, err := Fields(in)
	if err != nil {
		return nil, err
	}
	doc := domain.NewDocument()
	for _, f := range fields {
		v, err := NewValue(f.Value)
		if err != nil {
			return nil, err
		}
		doc.Set(f.Key, v)
	}
	return doc, nil
}

// Fields returns the top level members of a document-like value, in order,
// without converting them. It lets callers inspect members that are not
// document values, like regular expressions in filters.
func Fields(in any) ([]E, error) {
	switch t := in.(type) {
	case nil:
		return nil, nil
	case D:
		return slices.Clone(t), nil
	case bson.D:
		res := make([]E, len(t))
		for n, e := range t {
			res[n] = E{Key: e.Key, Value: e.Value}
		}
		return res, nil
	case M:
		return sortedFields(t), nil
	case bson.M:
		return sortedFields(map[string]any(t)), nil
	case *domain.Document:
		res := make([]E, 0, t.Len())
		for k, v := range t.All() {
			res = append(res, E{Key: k, Value: v})
		}
		return res, nil
	}
	return reflectFields(in)
}

// IsDocument reports whether in would be converted into a nested document.
func IsDocument(in any) bool {
	switch in.(type) {
	case nil, string, domain.Value:
		return false
	case D, bson.D, M, bson.M, *domain.Document:
		return true
	}
	r := indirect(goreflect.ValueNoEscapeOf(in))
	if !r.IsValid() {
		return false
	}
	return r.Kind() == reflect.Struct || r.Kind() == reflect.Map
}

// NewValue converts a scalar or document-like Go value into a [domain.Value].
func NewValue(in any) (domain.Value, error) {
	switch t := in.(type) {
	case nil:
		return domain.Null(), nil
	case domain.Value:
		return t, nil
	case string:
		return domain.String(t), nil
	case int:
		return domain.Int(int64(t)), nil
	case int8:
		return domain.Int(int64(t)), nil
	case int16:
		return domain.Int(int64(t)), nil
	case int32:
		return domain.Int(int64(t)), nil
	case int64:
		return domain.Int(t), nil
	case uint8:
		return domain.Int(int64(t)), nil
	case uint16:
		return domain.Int(int64(t)), nil
	case uint32:
		return domain.Int(int64(t)), nil
	case uint:
		return fromUint(uint64(t), in)
	case uint64:
		return fromUint(t, in)
	case float32:
		return fromFloat(float64(t), in)
	case float64:
		return fromFloat(t, in)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return domain.Null(), domain.ErrDocumentType{Reason: "number is not an integer", Value: in}
		}
		return domain.Int(n), nil
	}
	if IsDocument(in) {
		d, err := NewDocument(in)
		if err != nil {
			return domain.Null(), err
		}
		return domain.Doc(d), nil
	}
	return reflectScalar(in)
}

func fromUint(u uint64, in any) (domain.Value, error) {
	if u > math.MaxInt64 {
		return domain.Null(), domain.ErrDocumentType{Reason: "integer overflows int64", Value: in}
	}
	return domain.Int(int64(u)), nil
}

func fromFloat(f float64, in any) (domain.Value, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return domain.Null(), domain.ErrDocumentType{Reason: "only integral numbers are supported", Value: in}
	}
	return domain.Int(int64(f)), nil
}

func sortedFields[T any](m map[string]T) []E {
	res := make([]E, 0, len(m))
	for k, v := range m {
		res = append(res, E{Key: k, Value: v})
	}
	slices.SortFunc(res, func(a, b E) int { return cmp.Compare(a.Key, b.Key) })
	return res
}

func indirect(r goreflect.Value) goreflect.Value {
	for r.IsValid() && (r.Kind() == reflect.Pointer || r.Kind() == reflect.Interface) {
		if r.IsNil() {
			var zero goreflect.Value
			return zero
		}
		r = r.Elem()
	}
	return r
}

func reflectFields(in any) ([]E, error) {
	r := indirect(goreflect.ValueNoEscapeOf(in))
	if !r.IsValid() {
		return nil, nil
	}
	switch r.Kind() {
	case reflect.Struct:
		return structFields(r)
	case reflect.Map:
		if r.Type().Key().Kind() != reflect.String {
			return nil, domain.ErrDocumentType{Reason: "map keys must be strings", Value: in}
		}
		res := make([]E, 0, r.Len())
		for _, k := range r.MapKeys() {
			res = append(res, E{Key: k.String(), Value: r.MapIndex(k).Interface()})
		}
		slices.SortFunc(res, func(a, b E) int { return cmp.Compare(a.Key, b.Key) })
		return res, nil
	default:
		return nil, domain.ErrDocumentType{Reason: "expected map or struct", Value: in}
	}
}

func structFields(r goreflect.Value) ([]E, error) {
	typ := r.Type()
	res := make([]E, 0, r.NumField())
	for n := range r.NumField() {
		field := typ.Field(n)
		if field.PkgPath != "" {
			continue
		}
		name := field.Name
		var opts []string
		if tag, ok := field.Tag.Lookup(TagName); ok {
			if tag == "-" {
				continue
			}
			segments := strings.Split(tag, ",")
			if segments[0] != "" {
				name = segments[0]
			}
			opts = segments[1:]
		}
		fv := r.Field(n)
		if slices.Contains(opts, "omitempty") && nullable(fv.Kind()) && fv.IsNil() {
			continue
		}
		if slices.Contains(opts, "omitzero") && fv.IsZero() {
			continue
		}
		res = append(res, E{Key: name, Value: fv.Interface()})
	}
	return res, nil
}

func nullable(k reflect.Kind) bool {
	return k == reflect.Pointer ||
		k == reflect.Slice ||
		k == reflect.Map ||
		k == reflect.Interface
}

// reflectScalar handles named scalar types and pointers to scalars.
func reflectScalar(in any) (domain.Value, error) {
	r := indirect(goreflect.ValueNoEscapeOf(in))
	if !r.IsValid() {
		return domain.Null(), nil
	}
	switch r.Kind() {
	case reflect.String:
		return domain.String(r.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return domain.Int(r.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fromUint(r.Uint(), in)
	case reflect.Float32, reflect.Float64:
		return fromFloat(r.Float(), in)
	case reflect.Slice, reflect.Array:
		return domain.Null(), domain.ErrDocumentType{Reason: "arrays are not supported", Value: in}
	default:
		return domain.Null(), domain.ErrDocumentType{Reason: "unsupported type", Value: in}
	}
}
