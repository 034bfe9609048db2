package persistence

import (
	"slices"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// state accumulates the records of a snapshot being imported.
type state struct {
	docs    map[string]*domain.Document
	order   []string
	indexes []string
}

func newState() *state {
	return &state{docs: make(map[string]*domain.Document)}
}

func (s *state) setDoc(id domain.Value, doc *domain.Document) {
	key := id.Key()
	if _, ok := s.docs[key]; !ok {
		s.order = append(s.order, key)
	}
	s.docs[key] = doc
}

func (s *state) deleteDoc(id domain.Value) {
	key := id.Key()
	if _, ok := s.docs[key]; !ok {
		return
	}
	delete(s.docs, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
}

func (s *state) addIndex(field string) {
	if !slices.Contains(s.indexes, field) {
		s.indexes = append(s.indexes, field)
	}
}

func (s *state) removeIndex(field string) {
	s.indexes = slices.DeleteFunc(s.indexes, func(f string) bool { return f == field })
}

func (s *state) result() ([]*domain.Document, []string) {
	docs := make([]*domain.Document, 0, len(s.order))
	for _, key := range s.order {
		docs = append(docs, s.docs[key])
	}
	return docs, slices.Clone(s.indexes)
}
