// Package datastore contains the collection type that ties the document
// store, its secondary indexes, the query evaluator and the update compiler
// together.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/cursor"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/data"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/index"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/modifier"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/persistence"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/querier"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/storage"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/store"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
	"github.com/vinicius-lino-figueiredo/docdb/pkg/keylock"
)

// DefaultIDLength is the length of generated document ids.
const DefaultIDLength = 16

// Collection is a named set of documents with its secondary indexes.
//
// Filters, updates and documents are accepted in any form understood by
// [data.NewDocument]. Filters can also hold regular expressions, see
// [matcher.CompileFilter].
type Collection struct {
	name                  string
	idLength              int
	corruptAlertThreshold float64
	idGenerator           domain.IDGenerator
	comparer              domain.Comparer
	hasher                domain.Hasher
	decoder               domain.Decoder
	matcher               domain.Matcher
	modifier              domain.Modifier
	cursorFactory         domain.CursorFactory
	documentFactory       domain.DocumentFactory
	indexFactory          domain.IndexFactory
	storage               *storage.Storage
	log                   *slog.Logger

	store       *store.Store
	indexes     *index.Manager
	querier     domain.Querier
	locks       *keylock.Map
	persistence *persistence.Persistence
}

// NewCollection returns an empty collection.
func NewCollection(name string, options ...Option) *Collection {
	c := Collection{
		name:                  name,
		idLength:              DefaultIDLength,
		corruptAlertThreshold: persistence.DefaultCorruptAlertThreshold,
		idGenerator:           idgenerator.NewIDGenerator(),
		comparer:              comparer.NewComparer(),
		hasher:                hasher.NewHasher(),
		decoder:               decoder.NewDecoder(),
		modifier:              modifier.NewModifier(),
		cursorFactory:         cursor.NewCursor,
		documentFactory:       data.NewDocument,
		storage:               storage.NewStorage(),
		log:                   slog.New(slog.DiscardHandler),
		locks:                 keylock.New(),
	}
	for _, option := range options {
		option(&c)
	}
	c.log = c.log.With(slog.String("collection", name))
	if c.matcher == nil {
		c.matcher = matcher.NewMatcher(matcher.WithComparer(c.comparer))
	}

	managerOptions := []index.ManagerOption{index.WithManagerComparer(c.comparer)}
	if c.indexFactory != nil {
		managerOptions = append(managerOptions, index.WithIndexFactory(c.indexFactory))
	}
	c.indexes = index.NewManager(managerOptions...)
	c.store = store.New(
		store.WithObserver(c.indexes),
		store.WithIDGenerator(c.idGenerator),
		store.WithIDLength(c.idLength),
	)
	c.querier = querier.NewQuerier(c.store, c.indexes,
		querier.WithMatcher(c.matcher),
		querier.WithLogger(c.log),
	)
	c.persistence = persistence.NewPersistence(
		persistence.WithCorruptAlertThreshold(c.corruptAlertThreshold),
		persistence.WithDecoder(c.decoder),
		persistence.WithLogger(c.log),
	)
	return &c
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) compileFilter(filter any) (domain.Filter, error) {
	return matcher.CompileFilter(filter)
}

func (c *Collection) compileUpdate(update any) (domain.UpdateSpec, error) {
	doc, err := c.documentFactory(update)
	if err != nil {
		return domain.UpdateSpec{}, err
	}
	return c.modifier.Compile(doc)
}

// Insert adds every document, generating an _id for documents without one,
// and returns the inserted copies. If any document fails, the ones already
// inserted by this call are removed.
func (c *Collection) Insert(ctx context.Context, docs ...any) ([]*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prepared := make([]*domain.Document, len(docs))
	for n, d := range docs {
		doc, err := c.documentFactory(d)
		if err != nil {
			return nil, err
		}
		prepared[n] = doc
	}

	inserted := make([]*domain.Document, 0, len(prepared))
	for _, doc := range prepared {
		res, err := c.store.Insert(doc)
		if err != nil {
			return nil, errors.Join(err, c.rollback(inserted))
		}
		inserted = append(inserted, res)
	}
	return inserted, nil
}

func (c *Collection) rollback(docs []*domain.Document) error {
	var errs []error
	for _, doc := range docs {
		id, _ := doc.ID()
		if err := c.store.Delete(id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Find returns a cursor over the documents matching filter.
func (c *Collection) Find(ctx context.Context, filter any, options ...domain.FindOption) (domain.Cursor, error) {
	f, err := c.compileFilter(filter)
	if err != nil {
		return nil, err
	}
	var opts domain.FindOptions
	for _, option := range options {
		option(&opts)
	}
	docs, err := c.find(ctx, f, opts.Skip, opts.Limit)
	if err != nil {
		return nil, err
	}
	return c.cursorFactory(ctx, docs, domain.WithCursorDecoder(c.decoder))
}

func (c *Collection) find(ctx context.Context, f domain.Filter, skip, limit int64) ([]*domain.Document, error) {
	var res []*domain.Document
	var seen int64
	for doc, err := range c.querier.Find(ctx, f) {
		if err != nil {
			return nil, err
		}
		seen++
		if seen <= skip {
			continue
		}
		res = append(res, doc)
		if limit > 0 && int64(len(res)) >= limit {
			break
		}
	}
	return res, nil
}

func (c *Collection) findOne(ctx context.Context, f domain.Filter) (*domain.Document, error) {
	docs, err := c.find(ctx, f, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return docs[0], nil
}

// FindOne decodes the first document matching filter into target. It returns
// [domain.ErrNotFound] when there is none.
func (c *Collection) FindOne(ctx context.Context, filter any, target any) error {
	f, err := c.compileFilter(filter)
	if err != nil {
		return err
	}
	doc, err := c.findOne(ctx, f)
	if err != nil {
		return err
	}
	return c.decoder.Decode(doc, target)
}

// Count returns the number of documents matching filter.
func (c *Collection) Count(ctx context.Context, filter any) (int, error) {
	f, err := c.compileFilter(filter)
	if err != nil {
		return 0, err
	}
	return c.querier.Count(ctx, f)
}

// Remove deletes the first document matching filter, or every one of them
// with [domain.WithRemoveMulti], and returns how many were removed.
func (c *Collection) Remove(ctx context.Context, filter any, options ...domain.RemoveOption) (int, error) {
	f, err := c.compileFilter(filter)
	if err != nil {
		return 0, err
	}
	var opts domain.RemoveOptions
	for _, option := range options {
		option(&opts)
	}
	var limit int64 = 1
	if opts.Multi {
		limit = 0
	}

	// a document changed after the query no longer matching is kept
	for {
		docs, err := c.find(ctx, f, 0, limit)
		if err != nil {
			return 0, err
		}
		removed := 0
		for _, doc := range docs {
			id, _ := doc.ID()
			ok, err := c.store.DeleteFunc(store.Key(id), func(cur *domain.Document) bool {
				return c.matcher.Match(cur, f)
			})
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return removed, err
			}
			if ok {
				removed++
			}
		}
		if removed > 0 || opts.Multi || len(docs) == 0 {
			return removed, nil
		}
	}
}

// EnsureIndex declares a secondary index on field and builds it from the
// current documents. Declaring an existing index is a no-op.
func (c *Collection) EnsureIndex(ctx context.Context, field string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var created bool
	err := c.store.Barrier(func(docs iter.Seq2[string, *domain.Document]) error {
		var err error
		created, err = c.indexes.CreateIndex(field, docs)
		return err
	})
	if err != nil {
		return err
	}
	if created {
		c.log.Debug("index created", slog.String("field", field))
	}
	return nil
}

// RemoveIndex drops the index on field.
func (c *Collection) RemoveIndex(ctx context.Context, field string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.indexes.DropIndex(field); err != nil {
		return err
	}
	c.log.Debug("index removed", slog.String("field", field))
	return nil
}

// Indexes returns the indexed fields in declaration order.
func (c *Collection) Indexes() []string {
	return c.indexes.Fields()
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	return c.store.Len()
}

// Drop removes every document and index.
func (c *Collection) Drop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.store.Drop(); err != nil {
		return err
	}
	for _, field := range c.indexes.Fields() {
		if err := c.indexes.DropIndex(field); err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
			return err
		}
	}
	return nil
}

// Export writes a snapshot of the collection to w. The documents and index
// declarations are read together, so the snapshot reflects a single point in
// time.
func (c *Collection) Export(ctx context.Context, w io.Writer, options ...domain.SnapshotOption) error {
	var docs []*domain.Document
	var fields []string
	err := c.store.Barrier(func(all iter.Seq2[string, *domain.Document]) error {
		// stored documents are replaced on change, never written in place
		for _, doc := range all {
			docs = append(docs, doc)
		}
		fields = c.indexes.Fields()
		return nil
	})
	if err != nil {
		return err
	}
	return c.persistence.Export(ctx, w, fields, slices.Values(docs), options...)
}

// Import reads a snapshot from r, declaring its indexes and inserting its
// documents. Documents whose _id is already in use make it fail with
// [domain.ErrConstraintViolated], leaving the documents inserted before.
func (c *Collection) Import(ctx context.Context, r io.Reader, options ...domain.SnapshotOption) error {
	docs, fields, err := c.persistence.Import(ctx, r, options...)
	if err != nil {
		return err
	}
	for _, field := range fields {
		if err := c.EnsureIndex(ctx, field); err != nil {
			return err
		}
	}
	for n, doc := range docs {
		if _, err := c.store.Insert(doc); err != nil {
			return fmt.Errorf("importing document %d: %w", n, err)
		}
	}
	c.log.Debug("snapshot imported", slog.Int("documents", len(docs)), slog.Any("indexes", fields))
	return nil
}

// ExportFile writes a snapshot of the collection to filename. A crash during
// the write leaves either the previous file or the new one, never a mix.
func (c *Collection) ExportFile(ctx context.Context, filename string, options ...domain.SnapshotOption) error {
	return c.storage.WriteFile(filename, func(w io.Writer) error {
		return c.Export(ctx, w, options...)
	})
}

// ImportFile reads a snapshot written by [Collection.ExportFile].
func (c *Collection) ImportFile(ctx context.Context, filename string, options ...domain.SnapshotOption) error {
	f, err := c.storage.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Import(ctx, f, options...)
}
