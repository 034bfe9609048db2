package comparer

import (
	"cmp"
	"slices"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// Comparer implements domain.Comparer.
type Comparer struct{}

// NewComparer returns a new implementation of domain.Comparer.
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Compare implements domain.Comparer. Values of different kinds are ordered
// null < int < string < document.
func (c *Comparer) Compare(a, b domain.Value) int {
	if comp := cmp.Compare(a.Kind(), b.Kind()); comp != 0 {
		return comp
	}
	switch a.Kind() {
	case domain.KindInt:
		x, _ := a.AsInt()
		y, _ := b.AsInt()
		return cmp.Compare(x, y)
	case domain.KindString:
		x, _ := a.AsString()
		y, _ := b.AsString()
		// byte order of utf-8 strings is codepoint order
		return cmp.Compare(x, y)
	case domain.KindDocument:
		x, _ := a.AsDocument()
		y, _ := b.AsDocument()
		return c.compareDoc(x, y)
	default:
		return 0
	}
}

// compareDoc walks both documents by sorted field name so that documents
// considered equal by [domain.Document.Equal] always compare as 0.
func (c *Comparer) compareDoc(a, b *domain.Document) int {
	aKeys := slices.Sorted(a.Keys())
	bKeys := slices.Sorted(b.Keys())

	for i := range min(len(aKeys), len(bKeys)) {
		if comp := cmp.Compare(aKeys[i], bKeys[i]); comp != 0 {
			return comp
		}
		av, _ := a.Get(aKeys[i])
		bv, _ := b.Get(bKeys[i])
		if comp := c.Compare(av, bv); comp != 0 {
			return comp
		}
	}

	// Common section was identical, longest one wins
	return cmp.Compare(len(aKeys), len(bKeys))
}
