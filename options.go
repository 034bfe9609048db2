package docdb

import (
	"log/slog"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/datastore"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// WithLogger sets the structured logger of the database and its collections.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		db.log = l
	}
}

// WithCollectionOptions sets options applied to every collection the database
// creates, after the database defaults.
func WithCollectionOptions(options ...datastore.Option) Option {
	return func(db *DB) {
		db.collectionOptions = append(db.collectionOptions, options...)
	}
}

// Option configures a [DB] through the functional options pattern.
type Option func(*DB)

// Re-exported query and update options.
var (
	WithFindSkip                      = domain.WithFindSkip
	WithFindLimit                     = domain.WithFindLimit
	WithUpsert                        = domain.WithUpsert
	WithUpdateMulti                   = domain.WithUpdateMulti
	WithRemoveMulti                   = domain.WithRemoveMulti
	WithSnapshotCompression           = domain.WithSnapshotCompression
	WithSnapshotCorruptAlertThreshold = domain.WithSnapshotCorruptAlertThreshold
)
