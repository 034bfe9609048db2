package persistence

import (
	"log/slog"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// WithCorruptAlertThreshold sets the default share of corrupt lines accepted
// by import.
func WithCorruptAlertThreshold(c float64) Option {
	return func(p *Persistence) {
		p.corruptAlertThreshold = c
	}
}

// WithCompression enables zstd framing by default.
func WithCompression(c bool) Option {
	return func(p *Persistence) {
		p.compression = c
	}
}

// WithDecoder sets the decoder used to read index records.
func WithDecoder(d domain.Decoder) Option {
	return func(p *Persistence) {
		p.decoder = d
	}
}

// WithLogger sets the logger that receives rejected line warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Persistence) {
		p.log = l
	}
}

// Option configures persistence behavior through the functional options
// pattern.
type Option func(*Persistence)
