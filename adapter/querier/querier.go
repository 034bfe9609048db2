// Package querier contains the default [domain.Querier] implementation.
//
// A filter is answered through an index when one of its equality or bounded
// prefix regex predicates is on an indexed field, and by a full scan
// otherwise. Either way every candidate is checked against the whole filter,
// so both plans return the same documents.
package querier

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// Source gives access to the documents of a collection.
type Source interface {
	// Scan returns every document with its key.
	Scan() iter.Seq2[string, *domain.Document]
	// Lookup returns the document stored under key, or
	// [domain.ErrNotFound].
	Lookup(key string) (*domain.Document, error)
}

// Indexes gives access to the declared indexes of a collection.
type Indexes interface {
	// Index returns the index on field, or [domain.ErrIndexNotFound].
	Index(field string) (domain.Index, error)
}

// Querier implements [domain.Querier].
type Querier struct {
	source  Source
	indexes Indexes
	mtchr   domain.Matcher
	log     *slog.Logger
}

// NewQuerier returns a new implementation of [domain.Querier].
func NewQuerier(source Source, indexes Indexes, opts ...Option) domain.Querier {
	q := Querier{
		source:  source,
		indexes: indexes,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&q)
	}
	if q.mtchr == nil {
		q.mtchr = matcher.NewMatcher()
	}
	return &q
}

// Plan implements [domain.Querier].
func (q *Querier) Plan(f domain.Filter) domain.Plan {
	plan, _, _ := q.plan(f)
	return plan
}

func (q *Querier) plan(f domain.Filter) (domain.Plan, domain.Predicate, domain.Index) {
	for _, p := range f.Predicates {
		if p.Kind != domain.PredicateEq && !(p.Kind == domain.PredicateRegex && p.Bounded) {
			continue
		}
		idx, err := q.indexes.Index(p.Field)
		if err != nil {
			continue
		}
		return domain.Plan{Field: p.Field, UsesIndex: true}, p, idx
	}
	return domain.Plan{}, domain.Predicate{}, nil
}

// Find implements [domain.Querier].
func (q *Querier) Find(ctx context.Context, f domain.Filter) iter.Seq2[*domain.Document, error] {
	return func(yield func(*domain.Document, error) bool) {
		plan, pred, idx := q.plan(f)
		q.log.DebugContext(ctx, "query plan",
			slog.String("filter", f.Key()),
			slog.Bool("uses_index", plan.UsesIndex),
			slog.String("field", plan.Field),
		)

		if !plan.UsesIndex {
			for _, doc := range q.source.Scan() {
				if !q.emit(ctx, f, doc, yield) {
					return
				}
			}
			return
		}

		for key, err := range q.candidateKeys(pred, idx) {
			if err != nil {
				yield(nil, err)
				return
			}
			doc, err := q.source.Lookup(key)
			if errors.Is(err, domain.ErrNotFound) {
				// removed after the index was read
				continue
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !q.emit(ctx, f, doc, yield) {
				return
			}
		}
	}
}

// emit yields doc if it matches f and reports whether iteration goes on.
func (q *Querier) emit(ctx context.Context, f domain.Filter, doc *domain.Document, yield func(*domain.Document, error) bool) bool {
	if err := ctx.Err(); err != nil {
		yield(nil, err)
		return false
	}
	if !q.mtchr.Match(doc, f) {
		return true
	}
	return yield(doc, nil)
}

func (q *Querier) candidateKeys(p domain.Predicate, idx domain.Index) iter.Seq2[string, error] {
	if p.Kind == domain.PredicateEq {
		return func(yield func(string, error) bool) {
			keys, err := idx.Match(p.Value)
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

	lower := domain.String(p.Prefix)
	succ, ok := matcher.Successor(p.Prefix)
	if !ok {
		return idx.RangeScan(&lower, nil)
	}
	upper := domain.String(succ)
	return idx.RangeScan(&lower, &upper)
}

// Count implements [domain.Querier].
func (q *Querier) Count(ctx context.Context, f domain.Filter) (int, error) {
	n := 0
	for _, err := range q.Find(ctx, f) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}
