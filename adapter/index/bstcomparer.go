package index

import (
	"github.com/vinicius-lino-figueiredo/bst"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

type bstComparer struct {
	comparer domain.Comparer
}

// NewBSTComparer adapts a [domain.Comparer] to order tree keys. Tree values
// are document keys, equal when identical.
func NewBSTComparer(comparer domain.Comparer) bst.Comparer[domain.Value, string] {
	return &bstComparer{
		comparer: comparer,
	}
}

// CompareKeys implements bst.Comparer.
func (bc *bstComparer) CompareKeys(a domain.Value, b domain.Value) (int, error) {
	return bc.comparer.Compare(a, b), nil
}

// CompareValues implements bst.Comparer.
func (bc *bstComparer) CompareValues(a string, b string) (bool, error) {
	return a == b, nil
}
