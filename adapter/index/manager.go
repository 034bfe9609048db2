package index

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// Manager holds the declared indexes of one collection. It implements
// [domain.Observer] so the document store can keep every index current.
type Manager struct {
	mu      sync.RWMutex
	indexes map[string]domain.Index
	// fields keeps declaration order.
	fields  []string
	factory domain.IndexFactory
}

// ManagerOption configures a [Manager] through the functional options
// pattern.
type ManagerOption func(*Manager)

// WithIndexFactory sets the function used to build new indexes.
func WithIndexFactory(f domain.IndexFactory) ManagerOption {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithManagerComparer sets the value order of indexes built by the default
// factory.
func WithManagerComparer(c domain.Comparer) ManagerOption {
	return func(m *Manager) {
		m.factory = func(field string) (domain.Index, error) {
			return NewIndex(field, WithComparer(c))
		}
	}
}

// NewManager returns a [Manager] without indexes.
func NewManager(options ...ManagerOption) *Manager {
	m := &Manager{
		indexes: make(map[string]domain.Index),
	}
	WithManagerComparer(comparer.NewComparer())(m)
	for _, option := range options {
		option(m)
	}
	return m
}

// CreateIndex declares an index on field and fills it with docs. It reports
// false without changes when the field is already indexed. Callers must keep
// docs from changing until it returns.
func (m *Manager) CreateIndex(field string, docs iter.Seq2[string, *domain.Document]) (bool, error) {
	if field == "" {
		return false, domain.ErrNoFieldName
	}

	m.mu.RLock()
	_, exists := m.indexes[field]
	m.mu.RUnlock()
	if exists {
		return false, nil
	}

	idx, err := m.factory(field)
	if err != nil {
		return false, err
	}
	for key, doc := range docs {
		if err := idx.Insert(key, doc); err != nil {
			return false, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.indexes[field]; exists {
		return false, nil
	}
	m.indexes[field] = idx
	m.fields = append(m.fields, field)
	return true, nil
}

// DropIndex removes the index on field.
func (m *Manager) DropIndex(field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[field]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrIndexNotFound, field)
	}
	delete(m.indexes, field)
	m.fields = slices.DeleteFunc(m.fields, func(f string) bool { return f == field })
	return nil
}

// Fields returns the indexed fields in declaration order.
func (m *Manager) Fields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.fields)
}

// Index returns the index on field, or [domain.ErrIndexNotFound].
func (m *Manager) Index(field string) (domain.Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrIndexNotFound, field)
	}
	return idx, nil
}

// Notify implements [domain.Observer]. An insert has no old image and a
// delete has no new image.
func (m *Manager) Notify(key string, old, new *domain.Document) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, field := range m.fields {
		idx := m.indexes[field]
		var err error
		switch {
		case old == nil && new == nil:
		case old == nil:
			err = idx.Insert(key, new)
		case new == nil:
			err = idx.Remove(key, old)
		default:
			err = idx.Update(key, old, new)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Match returns the keys of documents whose field equals v.
func (m *Manager) Match(field string, v domain.Value) ([]string, error) {
	idx, err := m.Index(field)
	if err != nil {
		return nil, err
	}
	return idx.Match(v)
}

// RangeScan returns the keys of documents whose field lies in [lower, upper)
// in ascending value order.
func (m *Manager) RangeScan(field string, lower, upper *domain.Value) (iter.Seq2[string, error], error) {
	idx, err := m.Index(field)
	if err != nil {
		return nil, err
	}
	return idx.RangeScan(lower, upper), nil
}

// Reset empties every index, keeping the declarations.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, field := range m.fields {
		idx, err := m.factory(field)
		if err != nil {
			return err
		}
		m.indexes[field] = idx
	}
	return nil
}
