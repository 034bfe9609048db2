package datastore

import (
	"log/slog"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/storage"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// WithIDGenerator sets the generator used for documents inserted without
// _id.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(c *Collection) {
		c.idGenerator = g
	}
}

// WithIDLength sets the length of generated ids.
func WithIDLength(l int) Option {
	return func(c *Collection) {
		c.idLength = l
	}
}

// WithComparer sets the value order used by indexes and equality matching.
func WithComparer(cmp domain.Comparer) Option {
	return func(c *Collection) {
		c.comparer = cmp
	}
}

// WithHasher sets the hasher used to pick the lock of a filter.
func WithHasher(h domain.Hasher) Option {
	return func(c *Collection) {
		c.hasher = h
	}
}

// WithLogger sets the structured logger. The default discards every record.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collection) {
		c.log = l
	}
}

// WithDecoder sets the decoder used by cursors and [Collection.FindOne].
func WithDecoder(d domain.Decoder) Option {
	return func(c *Collection) {
		c.decoder = d
	}
}

// WithCursorFactory sets the function used to build result cursors.
func WithCursorFactory(f domain.CursorFactory) Option {
	return func(c *Collection) {
		c.cursorFactory = f
	}
}

// WithDocumentFactory sets the function used to convert inputs into
// documents.
func WithDocumentFactory(f domain.DocumentFactory) Option {
	return func(c *Collection) {
		c.documentFactory = f
	}
}

// WithMatcher sets the filter evaluator.
func WithMatcher(m domain.Matcher) Option {
	return func(c *Collection) {
		c.matcher = m
	}
}

// WithModifier sets the update compiler.
func WithModifier(m domain.Modifier) Option {
	return func(c *Collection) {
		c.modifier = m
	}
}

// WithIndexFactory sets the function used to build secondary indexes.
func WithIndexFactory(f domain.IndexFactory) Option {
	return func(c *Collection) {
		c.indexFactory = f
	}
}

// WithCorruptAlertThreshold sets the default share of unreadable lines
// accepted by [Collection.Import].
func WithCorruptAlertThreshold(t float64) Option {
	return func(c *Collection) {
		c.corruptAlertThreshold = t
	}
}

// WithStorage sets the file storage used by [Collection.ExportFile] and
// [Collection.ImportFile].
func WithStorage(s *storage.Storage) Option {
	return func(c *Collection) {
		c.storage = s
	}
}

// Option configures a [Collection] through the functional options pattern.
type Option func(*Collection)
