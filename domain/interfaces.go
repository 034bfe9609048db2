// Package domain contains the data model, errors, interfaces and option types
// shared by every docdb adapter.
//
// Adapters depend on this package only, so any of them can be replaced by a
// different implementation through the functional options of
// [github.com/vinicius-lino-figueiredo/docdb/adapter/datastore].
package domain

import (
	"context"
	"iter"
)

// Comparer defines the total order used by indexes and range scans.
type Comparer interface {
	// Compare returns -1, 0, or 1 based on the comparison of two values.
	Compare(a, b Value) int
}

// Hasher generates hash values used to bucket lock keys.
type Hasher interface {
	// Hash generates a hash value for a [Value], a [*Document], a [Filter]
	// or a string.
	Hash(any) (uint64, error)
}

// IDGenerator creates new document ids.
type IDGenerator interface {
	// GenerateID returns a random id with the given length.
	GenerateID(l int) (string, error)
}

// Decoder converts documents into user-defined types.
type Decoder interface {
	// Decode copies source into target, which must be a pointer.
	Decode(source any, target any) error
}

// Matcher evaluates filters against documents.
type Matcher interface {
	// Match reports whether doc satisfies every predicate of f.
	Match(doc *Document, f Filter) bool
	// MatchPredicate reports whether doc satisfies p.
	MatchPredicate(doc *Document, p Predicate) bool
}

// Observer is notified of every committed document change, with the images
// before and after it. old is nil for inserts and new is nil for deletes.
type Observer interface {
	Notify(key string, old, new *Document) error
}

// Index maps the values of one field to the keys of the documents holding
// them, in ascending value order.
type Index interface {
	// FieldName returns the indexed field path.
	FieldName() string
	// Insert adds an entry for doc under key.
	Insert(key string, doc *Document) error
	// Remove removes the entry of doc under key.
	Remove(key string, doc *Document) error
	// Update moves the entry under key from the old image to the new one.
	Update(key string, old, new *Document) error
	// Match returns the keys of documents whose field equals v.
	Match(v Value) ([]string, error)
	// RangeScan returns the keys of documents whose field lies in [lower,
	// upper), in ascending order. A nil bound is unbounded.
	RangeScan(lower, upper *Value) iter.Seq2[string, error]
	// GetNumberOfKeys returns the number of distinct indexed values.
	GetNumberOfKeys() int
}

// IndexFactory builds an empty [Index] for a field.
type IndexFactory = func(field string) (Index, error)

// Modifier compiles update documents and applies them.
type Modifier interface {
	// Compile turns an update document into an [UpdateSpec].
	Compile(update *Document) (UpdateSpec, error)
	// Apply returns a copy of doc with spec applied. Insert-only mutations
	// are applied only when inserted is true.
	Apply(doc *Document, spec UpdateSpec, inserted bool) (*Document, error)
}

// Querier answers filters over a collection, using an index when one applies.
type Querier interface {
	// Find returns the documents matching f.
	Find(ctx context.Context, f Filter) iter.Seq2[*Document, error]
	// Count returns the number of documents matching f.
	Count(ctx context.Context, f Filter) (int, error)
	// Plan reports how f would be answered.
	Plan(f Filter) Plan
}

// Plan describes how the query evaluator answers a filter.
type Plan struct {
	// Field is the indexed field used, or empty for a full scan.
	Field string
	// UsesIndex reports whether an index range scan is used.
	UsesIndex bool
}

// Cursor provides iteration over query results.
type Cursor interface {
	// Scan decodes the current document into target.
	Scan(ctx context.Context, target any) error
	// Next advances the cursor to the next document, returning true if
	// available.
	Next() bool
	// Err returns any error that occurred during iteration.
	Err() error
	// Close releases cursor resources and should be called when done.
	Close() error
}

// CursorFactory builds a [Cursor] over a set of documents.
type CursorFactory = func(ctx context.Context, docs []*Document, options ...CursorOption) (Cursor, error)

// DocumentFactory converts a Go value into a [*Document].
type DocumentFactory = func(any) (*Document, error)
