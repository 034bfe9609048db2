// Package cursor contains the default [domain.Cursor] implementation.
package cursor

import (
	"context"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// Cursor implements domain.Cursor over documents already copied out of the
// store, so it never blocks writers.
type Cursor struct {
	docs   []*domain.Document
	ctx    context.Context
	cancel context.CancelCauseFunc
	dec    domain.Decoder
	index  int
}

// NewCursor returns a new implementation of Cursor.
func NewCursor(ctx context.Context, docs []*domain.Document, options ...domain.CursorOption) (domain.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := domain.CursorOptions{
		Decoder: decoder.NewDecoder(),
	}
	for _, option := range options {
		option(&opts)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	return &Cursor{
		docs:   docs,
		ctx:    ctx,
		cancel: cancel,
		dec:    opts.Decoder,
		index:  -1,
	}, nil
}

// Err implements domain.Cursor.
func (c *Cursor) Err() error {
	return context.Cause(c.ctx)
}

// Scan implements domain.Cursor.
func (c *Cursor) Scan(ctx context.Context, target any) error {
	if c.ctx.Err() != nil {
		return context.Cause(c.ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.index < 0 {
		return domain.ErrScanBeforeNext
	}
	return c.dec.Decode(c.docs[c.index], target)
}

// Close implements domain.Cursor.
func (c *Cursor) Close() error {
	if c.ctx.Err() != nil {
		return context.Cause(c.ctx)
	}
	c.cancel(domain.ErrCursorClosed)
	c.docs = nil
	return nil
}

// Next implements domain.Cursor.
func (c *Cursor) Next() bool {
	if c.ctx.Err() != nil {
		return false
	}
	if c.index+1 < len(c.docs) {
		c.index++
		return true
	}
	return false
}
