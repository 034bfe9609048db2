package datastore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/store"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// errStale signals that a document changed between the query and the write
// and no longer matches the filter.
var errStale = errors.New("document no longer matches")

// Upsert applies update to the first document matching filter. When nothing
// matches and upsert is true, a document is built from the equality
// predicates of filter, every mutation is applied to it, $setOnInsert
// included, and it is inserted. Calls with the same filter are serialized, so
// concurrent upserts never insert twice. With upsert false and no match,
// [domain.ErrNotFound] is returned and nothing is written.
func (c *Collection) Upsert(ctx context.Context, filter any, update any, upsert bool) (domain.UpsertResult, error) {
	f, err := c.compileFilter(filter)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	spec, err := c.compileUpdate(update)
	if err != nil {
		return domain.UpsertResult{}, err
	}

	unlock, err := c.lock(ctx, f)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	defer unlock()

	res, err := c.upsert(ctx, f, spec, upsert)
	if err != nil {
		return res, err
	}
	c.log.Debug("upsert",
		slog.String("id", res.ID.String()),
		slog.Bool("inserted", res.Inserted),
	)
	return res, nil
}

func (c *Collection) lock(ctx context.Context, f domain.Filter) (func(), error) {
	h, err := c.hasher.Hash(f)
	if err != nil {
		return nil, err
	}
	return c.locks.Lock(ctx, h)
}

// upsert must be called holding the lock of f.
func (c *Collection) upsert(ctx context.Context, f domain.Filter, spec domain.UpdateSpec, upsert bool) (domain.UpsertResult, error) {
	for {
		doc, err := c.findOne(ctx, f)
		if errors.Is(err, domain.ErrNotFound) {
			if !upsert {
				return domain.UpsertResult{}, domain.ErrNotFound
			}
			return c.insertFrom(f, spec)
		}
		if err != nil {
			return domain.UpsertResult{}, err
		}

		updated, err := c.modify(doc, f, spec)
		if errors.Is(err, errStale) || errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.UpsertResult{}, err
		}
		id, _ := updated.ID()
		return domain.UpsertResult{ID: id, Document: updated}, nil
	}
}

// modify applies spec to doc if, inside the store critical section, it still
// matches f.
func (c *Collection) modify(doc *domain.Document, f domain.Filter, spec domain.UpdateSpec) (*domain.Document, error) {
	id, _ := doc.ID()
	return c.store.Modify(store.Key(id), func(cur *domain.Document) (*domain.Document, error) {
		if !c.matcher.Match(cur, f) {
			return nil, errStale
		}
		return c.modifier.Apply(cur, spec, false)
	})
}

func (c *Collection) insertFrom(f domain.Filter, spec domain.UpdateSpec) (domain.UpsertResult, error) {
	seed, err := c.seed(f, spec)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	doc, err := c.modifier.Apply(seed, spec, true)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	inserted, err := c.store.Insert(doc)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	id, _ := inserted.ID()
	return domain.UpsertResult{ID: id, Inserted: true, Document: inserted}, nil
}

// seed builds the document an upsert starts from. Every equality predicate of
// f becomes a field, dotted paths turning into nested documents. A
// replacement only keeps the _id of the filter.
func (c *Collection) seed(f domain.Filter, spec domain.UpdateSpec) (*domain.Document, error) {
	doc := domain.NewDocument()
	for _, p := range f.Equalities() {
		if spec.Replacement != nil && p.Field != domain.IDField {
			continue
		}
		if !doc.SetPath(p.Field, p.Value) {
			return nil, domain.ErrFilter{Field: p.Field, Reason: "conflicts with another equality"}
		}
	}
	return doc, nil
}

// Update applies update to the first document matching filter, or to every
// one of them with [domain.WithUpdateMulti], and returns a cursor over the
// updated documents. With [domain.WithUpsert] and no match, a document is
// inserted like [Collection.Upsert] does.
func (c *Collection) Update(ctx context.Context, filter any, update any, options ...domain.UpdateOption) (domain.Cursor, error) {
	f, err := c.compileFilter(filter)
	if err != nil {
		return nil, err
	}
	spec, err := c.compileUpdate(update)
	if err != nil {
		return nil, err
	}
	var opts domain.UpdateOptions
	for _, option := range options {
		option(&opts)
	}

	unlock, err := c.lock(ctx, f)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var docs []*domain.Document
	if opts.Multi {
		docs, err = c.updateMulti(ctx, f, spec, opts.Upsert)
	} else {
		var res domain.UpsertResult
		res, err = c.upsert(ctx, f, spec, opts.Upsert)
		if res.Document != nil {
			docs = append(docs, res.Document)
		}
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	c.log.Debug("update", slog.Int("updated", len(docs)), slog.Bool("multi", opts.Multi))
	return c.cursorFactory(ctx, docs, domain.WithCursorDecoder(c.decoder))
}

func (c *Collection) updateMulti(ctx context.Context, f domain.Filter, spec domain.UpdateSpec, upsert bool) ([]*domain.Document, error) {
	matches, err := c.find(ctx, f, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		if !upsert {
			return nil, nil
		}
		res, err := c.insertFrom(f, spec)
		if err != nil {
			return nil, err
		}
		return []*domain.Document{res.Document}, nil
	}

	updated := make([]*domain.Document, 0, len(matches))
	for _, doc := range matches {
		res, err := c.modify(doc, f, spec)
		if errors.Is(err, errStale) || errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}
		updated = append(updated, res)
	}
	return updated, nil
}
