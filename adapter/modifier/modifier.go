// Package modifier contains a [domain.Modifier] implementation compiling
// mongo-like update documents into field mutations and applying them.
//
// Supported operators are $set, $inc and $setOnInsert. An update without
// operator keys replaces the whole document, keeping its _id.
package modifier

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

var (
	// ErrEmptyPath is returned when an operator targets an empty field path.
	ErrEmptyPath = fmt.Errorf("%w: field path cannot be empty", domain.ErrParse)
	// ErrInvalidFieldName is returned when a replacement document has field
	// names that would be read as paths or operators.
	ErrInvalidFieldName = fmt.Errorf("%w: field names cannot start with '$' or contain '.'", domain.ErrParse)
	// ErrOverflow is returned when $inc would overflow an int64 field.
	ErrOverflow = errors.New("integer overflow")
)

var operators = map[string]domain.Op{
	"$set":         domain.OpSet,
	"$inc":         domain.OpInc,
	"$setOnInsert": domain.OpSetOnInsert,
}

// Modifier implements [domain.Modifier].
type Modifier struct{}

// NewModifier returns a new implementation of [domain.Modifier].
func NewModifier() domain.Modifier {
	return &Modifier{}
}

// Compile implements [domain.Modifier].
func (m *Modifier) Compile(update *domain.Document) (domain.UpdateSpec, error) {
	dollarFields := 0
	for k := range update.Keys() {
		if strings.HasPrefix(k, "$") {
			dollarFields++
		}
	}

	if dollarFields == 0 {
		return m.compileReplacement(update)
	}
	if dollarFields != update.Len() {
		return domain.UpdateSpec{}, domain.ErrMixedOperators
	}

	var spec domain.UpdateSpec
	seen := make(map[string]domain.Op)
	for name, arg := range update.All() {
		op, ok := operators[name]
		if !ok {
			return domain.UpdateSpec{}, domain.ErrUnknownModifier{Name: name}
		}
		fields, ok := arg.AsDocument()
		if !ok {
			return domain.UpdateSpec{}, fmt.Errorf("%w: %s", domain.ErrNonObject, name)
		}
		for path, v := range fields.All() {
			if err := checkPath(path); err != nil {
				return domain.UpdateSpec{}, err
			}
			if op == domain.OpInc && v.Kind() != domain.KindInt {
				return domain.UpdateSpec{}, domain.ErrModArgType{Mod: name, Want: "int", Actual: v}
			}
			if err := checkConflict(seen, path, op); err != nil {
				return domain.UpdateSpec{}, err
			}
			seen[path] = op
			spec.Mutations = append(spec.Mutations, domain.Mutation{Op: op, Path: path, Value: v})
		}
	}
	return spec, nil
}

func (m *Modifier) compileReplacement(update *domain.Document) (domain.UpdateSpec, error) {
	repl := update.Clone()
	if repl == nil {
		repl = domain.NewDocument()
	}
	for k := range repl.Keys() {
		if k == "" || strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
			return domain.UpdateSpec{}, fmt.Errorf("%w: %q", ErrInvalidFieldName, k)
		}
	}
	return domain.UpdateSpec{Replacement: repl}, nil
}

func checkPath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	for segment := range strings.SplitSeq(path, ".") {
		if segment == "" {
			return fmt.Errorf("%w: %q", ErrEmptyPath, path)
		}
		if strings.HasPrefix(segment, "$") {
			return fmt.Errorf("%w: %q", ErrInvalidFieldName, path)
		}
	}
	return nil
}

// checkConflict rejects a path already targeted in the same update, directly
// or through a parent or child path.
func checkConflict(seen map[string]domain.Op, path string, op domain.Op) error {
	for prev, prevOp := range seen {
		if prev == path || strings.HasPrefix(path, prev+".") || strings.HasPrefix(prev, path+".") {
			return fmt.Errorf("%w: %s %q conflicts with %s %q", domain.ErrAmbiguousUpdate, op, path, prevOp, prev)
		}
	}
	return nil
}

// Apply implements [domain.Modifier].
func (m *Modifier) Apply(doc *domain.Document, spec domain.UpdateSpec, inserted bool) (*domain.Document, error) {
	if doc == nil {
		doc = domain.NewDocument()
	}
	if spec.Replacement != nil {
		return m.replace(doc, spec.Replacement)
	}

	res := doc.Clone()
	oldID, hadID := doc.ID()
	for _, mut := range spec.Mutations {
		if mut.InsertOnly() && !inserted {
			continue
		}
		var err error
		switch mut.Op {
		case domain.OpSet, domain.OpSetOnInsert:
			err = m.set(res, mut)
		case domain.OpInc:
			err = m.inc(res, mut)
		default:
			err = domain.ErrUnknownModifier{Name: mut.Op.String()}
		}
		if err != nil {
			return nil, err
		}
	}

	if newID, ok := res.ID(); hadID && (!ok || !newID.Equal(oldID)) {
		return nil, domain.ErrCannotModifyID
	}
	return res, nil
}

func (m *Modifier) replace(doc, repl *domain.Document) (*domain.Document, error) {
	res := repl.Clone()
	oldID, hadID := doc.ID()
	if !hadID {
		return res, nil
	}
	if newID, ok := res.ID(); ok && !newID.Equal(oldID) {
		return nil, domain.ErrCannotModifyID
	}
	res.Set(domain.IDField, oldID)
	return res, nil
}

func (m *Modifier) set(doc *domain.Document, mut domain.Mutation) error {
	if !doc.SetPath(mut.Path, mut.Value) {
		return domain.ErrModFieldType{Mod: mut.Op.String(), Field: mut.Path, Want: "document", Actual: blocking(doc, mut.Path)}
	}
	return nil
}

func (m *Modifier) inc(doc *domain.Document, mut domain.Mutation) error {
	by, _ := mut.Value.AsInt()
	cur, ok := doc.GetPath(mut.Path)
	if !ok || cur.IsNull() {
		cur = domain.Int(0)
	}
	n, isInt := cur.AsInt()
	if !isInt {
		return domain.ErrModFieldType{Mod: "$inc", Field: mut.Path, Want: "int", Actual: cur}
	}
	if (by > 0 && n > math.MaxInt64-by) || (by < 0 && n < math.MinInt64-by) {
		return fmt.Errorf("%w: $inc %q by %d", ErrOverflow, mut.Path, by)
	}
	return m.set(doc, domain.Mutation{Op: mut.Op, Path: mut.Path, Value: domain.Int(n + by)})
}

// blocking returns the first non-document value found along path.
func blocking(doc *domain.Document, path string) domain.Value {
	segments := strings.Split(path, ".")
	for n := range segments[:len(segments)-1] {
		v, ok := doc.GetPath(strings.Join(segments[:n+1], "."))
		if ok && v.Kind() != domain.KindDocument && !v.IsNull() {
			return v
		}
	}
	return domain.Null()
}
