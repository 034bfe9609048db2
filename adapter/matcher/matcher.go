// Package matcher contains the default implementation of [domain.Matcher] and
// the compiler turning mongo-like filter documents into [domain.Filter].
package matcher

import (
	"github.com/vinicius-lino-figueiredo/docdb/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// Matcher implements [domain.Matcher].
type Matcher struct {
	comparer domain.Comparer
}

// NewMatcher returns a new implementation of domain.Matcher.
func NewMatcher(options ...Option) domain.Matcher {
	m := &Matcher{
		comparer: comparer.NewComparer(),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Match implements [domain.Matcher].
func (m *Matcher) Match(doc *domain.Document, f domain.Filter) bool {
	for _, p := range f.Predicates {
		if !m.MatchPredicate(doc, p) {
			return false
		}
	}
	return true
}

// MatchPredicate implements [domain.Matcher]. A missing field equals null and
// never matches a regex.
func (m *Matcher) MatchPredicate(doc *domain.Document, p domain.Predicate) bool {
	v, ok := doc.GetPath(p.Field)
	switch p.Kind {
	case domain.PredicateEq:
		if !ok {
			v = domain.Null()
		}
		return m.comparer.Compare(v, p.Value) == 0
	case domain.PredicateRegex:
		s, isString := v.AsString()
		return ok && isString && p.Match != nil && p.Match(s)
	default:
		return false
	}
}
