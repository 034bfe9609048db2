package store

import "github.com/vinicius-lino-figueiredo/docdb/domain"

// WithObserver sets the observer notified of every committed change, inside
// the same critical section.
func WithObserver(o domain.Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// WithIDGenerator sets the generator used for documents inserted without _id.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(s *Store) {
		s.idGenerator = g
	}
}

// WithIDLength sets the length of generated ids.
func WithIDLength(l int) Option {
	return func(s *Store) {
		s.idLength = l
	}
}

// Option configures store behavior through the functional options pattern.
type Option func(*Store)
