// Package store contains the in-memory document store of a collection.
//
// Documents are kept in insertion order, unique by _id. Readers share the
// store lock and always receive copies; every mutation holds the lock
// exclusively while it changes one document and notifies the observer, so a
// reader never sees a partially applied change.
package store

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

const maxIDAttempts = 10

// ErrIDExhausted is returned when the id generator keeps producing ids that
// are already in use.
var ErrIDExhausted = errors.New("could not generate an unused _id")

// Store holds the documents of one collection.
type Store struct {
	mu          sync.RWMutex
	docs        map[string]*domain.Document
	order       []string
	observer    domain.Observer
	idGenerator domain.IDGenerator
	idLength    int
}

// New returns an empty [Store].
func New(options ...Option) *Store {
	s := &Store{
		docs:        make(map[string]*domain.Document),
		idGenerator: idgenerator.NewIDGenerator(),
		idLength:    16,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Key returns the store key of a document _id.
func Key(id domain.Value) string {
	return id.Key()
}

func (s *Store) notify(key string, old, new *domain.Document) error {
	if s.observer == nil {
		return nil
	}
	if err := s.observer.Notify(key, old, new); err != nil {
		// put back whatever the observer managed to apply
		_ = s.observer.Notify(key, new, old)
		return err
	}
	return nil
}

// Insert adds a copy of doc, generating an _id if it has none, and returns the
// committed copy.
func (s *Store) Insert(doc *domain.Document) (*domain.Document, error) {
	doc = doc.Clone()
	if doc == nil {
		doc = domain.NewDocument()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := doc.ID()
	if !ok {
		var err error
		if id, err = s.newID(); err != nil {
			return nil, err
		}
		doc.Set(domain.IDField, id)
	}

	key := Key(id)
	if _, exists := s.docs[key]; exists {
		return nil, fmt.Errorf("%w: _id %s is already in use", domain.ErrConstraintViolated, id)
	}
	if err := s.notify(key, nil, doc); err != nil {
		return nil, err
	}
	s.docs[key] = doc
	s.order = append(s.order, key)
	return doc.Clone(), nil
}

func (s *Store) newID() (domain.Value, error) {
	for range maxIDAttempts {
		id, err := s.idGenerator.GenerateID(s.idLength)
		if err != nil {
			return domain.Null(), err
		}
		v := domain.String(id)
		if _, exists := s.docs[Key(v)]; !exists {
			return v, nil
		}
	}
	return domain.Null(), ErrIDExhausted
}

// Get returns a copy of the document with the given _id.
func (s *Store) Get(id domain.Value) (*domain.Document, error) {
	return s.Lookup(Key(id))
}

// Lookup returns a copy of the document stored under key.
func (s *Store) Lookup(key string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc.Clone(), nil
}

// Replace swaps the document with the given _id for a copy of doc. doc must
// have the same _id or none.
func (s *Store) Replace(id domain.Value, doc *domain.Document) error {
	_, err := s.Modify(Key(id), func(*domain.Document) (*domain.Document, error) {
		return doc.Clone(), nil
	})
	return err
}

// Modify runs fn over a copy of the document stored under key and commits the
// document it returns. The store lock is held exclusively while fn runs, so fn
// must not call the store. An error from fn aborts without changes and is
// returned as is.
func (s *Store) Modify(key string, fn func(*domain.Document) (*domain.Document, error)) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.docs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc, err := fn(old.Clone())
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = domain.NewDocument()
	}

	oldID, _ := old.ID()
	id, ok := doc.ID()
	switch {
	case !ok:
		doc.Set(domain.IDField, oldID)
	case !id.Equal(oldID):
		return nil, domain.ErrCannotModifyID
	}

	if err := s.notify(key, old, doc); err != nil {
		return nil, err
	}
	s.docs[key] = doc
	return doc.Clone(), nil
}

// Delete removes the document with the given _id.
func (s *Store) Delete(id domain.Value) error {
	return s.DeleteKey(Key(id))
}

// DeleteKey removes the document stored under key.
func (s *Store) DeleteKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delete(key)
}

// DeleteFunc removes the document stored under key if fn, called with a copy
// of it under the exclusive lock, returns true. It reports whether the
// document was removed.
func (s *Store) DeleteFunc(key string, fn func(*domain.Document) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.docs[key]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !fn(old.Clone()) {
		return false, nil
	}
	return true, s.delete(key)
}

func (s *Store) delete(key string) error {
	old, ok := s.docs[key]
	if !ok {
		return domain.ErrNotFound
	}
	if err := s.notify(key, old, nil); err != nil {
		return err
	}
	delete(s.docs, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
	return nil
}

// Scan returns every document with its key in insertion order. The keys are
// read when the sequence starts and each document is copied when yielded, so
// documents deleted meanwhile are skipped and no lock is held by the caller
// between iterations.
func (s *Store) Scan() iter.Seq2[string, *domain.Document] {
	return func(yield func(string, *domain.Document) bool) {
		s.mu.RLock()
		keys := slices.Clone(s.order)
		s.mu.RUnlock()

		for _, key := range keys {
			doc, err := s.Lookup(key)
			if err != nil {
				continue
			}
			if !yield(key, doc) {
				return
			}
		}
	}
}

// Len returns the number of documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Drop removes every document.
func (s *Store) Drop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range slices.Clone(s.order) {
		if err := s.delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Barrier runs fn while every mutation is excluded. fn receives the current
// documents in insertion order and must not change them or call the store.
func (s *Store) Barrier(fn func(docs iter.Seq2[string, *domain.Document]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(func(yield func(string, *domain.Document) bool) {
		for _, key := range s.order {
			if !yield(key, s.docs[key]) {
				return
			}
		}
	})
}
