// Package docdb provides an embedded, in-memory, MongoDB-like document
// database for golang.
//
// A [DB] holds named collections, created on first use by [DB.Collection].
// Each [Collection] keeps its documents unique by _id, answers equality and
// regular expression filters, using a secondary index when one applies, and
// runs $set, $inc and $setOnInsert updates, upserts included.
package docdb

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/data"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/datastore"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

var (
	// ErrNotFound is returned when no document matches a lookup, for
	// example by [Collection.FindOne], or by [Collection.Upsert] without the
	// upsert flag.
	ErrNotFound = domain.ErrNotFound
	// ErrConstraintViolated is returned when inserting a document whose _id
	// is already in use.
	ErrConstraintViolated = domain.ErrConstraintViolated
	// ErrParse is the parent of every error caused by a malformed filter or
	// update document.
	ErrParse = domain.ErrParse
	// ErrMixedOperators is returned for update documents mixing operators
	// and plain fields.
	ErrMixedOperators = domain.ErrMixedOperators
	// ErrAmbiguousUpdate is returned when an update targets the same field
	// twice.
	ErrAmbiguousUpdate = domain.ErrAmbiguousUpdate
	// ErrCannotModifyID is returned when an update would change a document
	// _id.
	ErrCannotModifyID = domain.ErrCannotModifyID
	// ErrIndexNotFound is returned when removing an index that does not
	// exist.
	ErrIndexNotFound = domain.ErrIndexNotFound
	// ErrNoFieldName is returned when creating an index without a field.
	ErrNoFieldName = domain.ErrNoFieldName
	// ErrCursorClosed is returned when using a closed [Cursor].
	ErrCursorClosed = domain.ErrCursorClosed
	// ErrScanBeforeNext is returned when calling [Cursor.Scan] before
	// calling [Cursor.Next].
	ErrScanBeforeNext = domain.ErrScanBeforeNext
	// ErrTargetNil is returned when decoding into a nil target.
	ErrTargetNil = domain.ErrTargetNil
	// ErrDBClosed is returned by every [DB] method after [DB.Close].
	ErrDBClosed = errors.New("database is closed")
)

// ErrDocumentType is returned when a value cannot be converted into a
// document.
type ErrDocumentType = domain.ErrDocumentType

// ErrFilter is returned when a filter cannot be compiled.
type ErrFilter = domain.ErrFilter

// ErrUnknownModifier is returned for unsupported update operators.
type ErrUnknownModifier = domain.ErrUnknownModifier

// ErrModFieldType is returned when an operator runs on a field of the wrong
// type.
type ErrModFieldType = domain.ErrModFieldType

// ErrCorruptSnapshot is returned by [Collection.Import] when too many lines of
// a snapshot cannot be read.
type ErrCorruptSnapshot = domain.ErrCorruptSnapshot

// ErrDecode wraps third party decoding errors.
type ErrDecode = domain.ErrDecode

// Collection is a named set of documents with its indexes.
type Collection = datastore.Collection

// Document is an ordered set of fields.
type Document = domain.Document

// Cursor iterates over query results.
type Cursor = domain.Cursor

// UpsertResult describes the outcome of [Collection.Upsert].
type UpsertResult = domain.UpsertResult

// M is an unordered document literal.
type M = data.M

// D is an ordered document literal.
type D = data.D

// E is an element of [D].
type E = data.E

// DB holds the collections of one database.
type DB struct {
	mu                sync.RWMutex
	collections       map[string]*Collection
	collectionOptions []datastore.Option
	log               *slog.Logger
	closed            bool
}

// NewDB returns an empty database. Options:
//
// - [WithLogger]: sets the structured logger shared by every collection.
//
// - [WithCollectionOptions]: sets options applied to every new collection.
func NewDB(options ...Option) *DB {
	db := DB{
		collections: make(map[string]*Collection),
		log:         slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(&db)
	}
	return &db
}

// Collection returns the collection called name, creating it if needed.
func (db *DB) Collection(name string) (*Collection, error) {
	db.mu.RLock()
	c, ok := db.collections[name]
	closed := db.closed
	db.mu.RUnlock()
	if closed {
		return nil, ErrDBClosed
	}
	if ok {
		return c, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrDBClosed
	}
	if c, ok := db.collections[name]; ok {
		return c, nil
	}
	options := append([]datastore.Option{datastore.WithLogger(db.log)}, db.collectionOptions...)
	c = datastore.NewCollection(name, options...)
	db.collections[name] = c
	db.log.Debug("collection created", slog.String("collection", name))
	return c, nil
}

// Collections returns the names of the existing collections, sorted.
func (db *DB) Collections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Sorted(maps.Keys(db.collections))
}

// DropCollection removes every document and index of the collection called
// name and forgets it. Dropping a missing collection is a no-op.
func (db *DB) DropCollection(ctx context.Context, name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDBClosed
	}
	c, ok := db.collections[name]
	if !ok {
		return nil
	}
	if err := c.Drop(ctx); err != nil {
		return err
	}
	delete(db.collections, name)
	db.log.Debug("collection dropped", slog.String("collection", name))
	return nil
}

// Close drops every collection. Collections obtained before keep working on
// their own, but the database hands out no more.
func (db *DB) Close(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDBClosed
	}
	var errs []error
	for _, c := range db.collections {
		errs = append(errs, c.Drop(ctx))
	}
	db.collections = nil
	db.closed = true
	return errors.Join(errs...)
}
