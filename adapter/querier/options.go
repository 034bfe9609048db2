package querier

import (
	"log/slog"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// WithMatcher sets the matcher implementation for querier evaluations.
func WithMatcher(m domain.Matcher) Option {
	return func(q *Querier) {
		q.mtchr = m
	}
}

// WithLogger sets the logger receiving query plan records.
func WithLogger(l *slog.Logger) Option {
	return func(q *Querier) {
		q.log = l
	}
}

// Option configures querier behavior through the functional options
// pattern.
type Option func(*Querier)
