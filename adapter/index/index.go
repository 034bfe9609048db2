// Package index contains the default [domain.Index] implementation and the
// [Manager] that keeps every declared index of a collection in sync with its
// documents.
package index

import (
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// Index implements [domain.Index] over an AVL tree. Documents missing the
// field are indexed under null.
type Index struct {
	fieldName string
	mu        sync.RWMutex
	// Exported to allow testing. Should not be a problem because Index is
	// used as interface.
	Tree     bst.BST[domain.Value, string]
	comparer domain.Comparer
	// entries holds the value each document key is currently indexed under.
	entries map[string]domain.Value
}

// Option configures an [Index] through the functional options pattern.
type Option func(*indexOptions)

type indexOptions struct {
	comparer domain.Comparer
}

// WithComparer sets the value order of the index.
func WithComparer(c domain.Comparer) Option {
	return func(o *indexOptions) {
		o.comparer = c
	}
}

// NewIndex returns a new implementation of domain.Index.
func NewIndex(fieldName string, options ...Option) (domain.Index, error) {
	if fieldName == "" {
		return nil, domain.ErrNoFieldName
	}
	if strings.HasPrefix(fieldName, ".") || strings.HasSuffix(fieldName, ".") || strings.Contains(fieldName, "..") {
		return nil, domain.ErrFilter{Field: fieldName, Reason: "empty path segment"}
	}

	opts := indexOptions{
		comparer: comparer.NewComparer(),
	}
	for _, option := range options {
		option(&opts)
	}

	return &Index{
		fieldName: fieldName,
		Tree:      avl.NewBST(false, 8, NewBSTComparer(opts.comparer)),
		comparer:  opts.comparer,
		entries:   make(map[string]domain.Value),
	}, nil
}

// FieldName implements [domain.Index].
func (i *Index) FieldName() string {
	return i.fieldName
}

func (i *Index) keyOf(doc *domain.Document) domain.Value {
	v, ok := doc.GetPath(i.fieldName)
	if !ok {
		return domain.Null()
	}
	return v
}

// Insert implements [domain.Index]. Inserting a key that is already indexed
// moves its entry.
func (i *Index) Insert(key string, doc *domain.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.remove(key); err != nil {
		return err
	}
	return i.insert(key, doc)
}

func (i *Index) insert(key string, doc *domain.Document) error {
	v := i.keyOf(doc)
	if err := i.Tree.Insert(v, key); err != nil {
		return fmt.Errorf("indexing %q on %q: %w", key, i.fieldName, err)
	}
	i.entries[key] = v
	return nil
}

// Remove implements [domain.Index]. The entry is found by document key, so the
// image passed in does not need to match the indexed one.
func (i *Index) Remove(key string, _ *domain.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.remove(key)
}

func (i *Index) remove(key string) error {
	v, ok := i.entries[key]
	if !ok {
		return nil
	}
	if err := i.Tree.Delete(v, &key); err != nil {
		return fmt.Errorf("unindexing %q on %q: %w", key, i.fieldName, err)
	}
	delete(i.entries, key)
	return nil
}

// Update implements [domain.Index].
func (i *Index) Update(key string, _, newDoc *domain.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if old, ok := i.entries[key]; ok && old.Equal(i.keyOf(newDoc)) {
		return nil
	}
	if err := i.remove(key); err != nil {
		return err
	}
	return i.insert(key, newDoc)
}

// Match implements [domain.Index].
func (i *Index) Match(v domain.Value) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	found, err := i.Tree.Search(v)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, nil
	}
	values := found.Values()
	res := make([]string, len(values))
	copy(res, values)
	return res, nil
}

// RangeScan implements [domain.Index]. The keys are collected when the
// sequence starts, so mutations committed while it is consumed are not seen.
func (i *Index) RangeScan(lower, upper *domain.Value) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		keys, err := i.collect(lower, upper)
		if err != nil {
			yield("", err)
			return
		}
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

// collect walks the tree in ascending order. Only single bound queries are
// sent to the tree: the upper bound of a range is checked here against the
// value each key is indexed under.
func (i *Index) collect(lower, upper *domain.Value) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var keys iter.Seq2[string, error]
	switch {
	case lower != nil:
		keys = i.Tree.Query(bst.Query[domain.Value]{
			GreaterThan: &bst.Bound[domain.Value]{Value: *lower, IncludeEqual: true},
		})
	case upper != nil:
		keys = i.Tree.Query(bst.Query[domain.Value]{
			LowerThan: &bst.Bound[domain.Value]{Value: *upper, IncludeEqual: false},
		})
	default:
		keys = func(yield func(string, error) bool) {
			for k := range i.Tree.GetAll() {
				if !yield(k, nil) {
					return
				}
			}
		}
	}

	seen := make(map[string]struct{})
	var res []string
	for k, err := range keys {
		if err != nil {
			return nil, err
		}
		if lower != nil && upper != nil && i.comparer.Compare(i.entries[k], *upper) >= 0 {
			break
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		res = append(res, k)
	}
	return res, nil
}

// GetNumberOfKeys implements [domain.Index].
func (i *Index) GetNumberOfKeys() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.Tree.GetNumberOfKeys()
}
