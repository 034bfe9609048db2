// Package persistence reads and writes collection snapshots.
//
// A snapshot is a stream of JSON lines. Index declarations come first, as
// {"$$indexCreated":{"fieldName":"name"}}, followed by one line per document
// in insertion order. Import also understands the append-only records
// {"$$indexRemoved":"name"} and documents carrying "$$deleted": 1, in which
// case the last record for an _id wins.
package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/dolmen-go/contextio"
	"github.com/klauspost/compress/zstd"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/data"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

const (
	// DefaultCorruptAlertThreshold is the share of unreadable lines
	// tolerated by [Persistence.Import] when no other value is set.
	DefaultCorruptAlertThreshold = 0.1
	// maxLineSize bounds the size of a single snapshot line.
	maxLineSize = 16 << 20
)

// Persistence exports and imports snapshots.
type Persistence struct {
	corruptAlertThreshold float64
	compression           bool
	decoder               domain.Decoder
	log                   *slog.Logger
}

// NewPersistence returns a new [Persistence].
func NewPersistence(options ...Option) *Persistence {
	p := Persistence{
		corruptAlertThreshold: DefaultCorruptAlertThreshold,
		decoder:               decoder.NewDecoder(),
		log:                   slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(&p)
	}
	return &p
}

func (p *Persistence) options(opts []domain.SnapshotOption) domain.SnapshotOptions {
	so := domain.SnapshotOptions{
		Compression:           p.compression,
		CorruptAlertThreshold: p.corruptAlertThreshold,
	}
	for _, opt := range opts {
		opt(&so)
	}
	return so
}

// Export writes the index declarations and then every document to w.
func (p *Persistence) Export(ctx context.Context, w io.Writer, indexes []string, docs iter.Seq[*domain.Document], opts ...domain.SnapshotOption) (err error) {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	so := p.options(opts)

	out := contextio.NewWriter(ctx, w)
	if so.Compression {
		enc, err := zstd.NewWriter(out)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := enc.Close(); err == nil {
				err = cerr
			}
		}()
		out = enc
	}

	buf := bufio.NewWriter(out)
	for _, field := range indexes {
		b, err := json.Marshal(domain.IndexDTO{IndexCreated: domain.IndexCreated{FieldName: field}})
		if err != nil {
			return err
		}
		if err := writeLine(buf, b); err != nil {
			return err
		}
	}
	for doc := range docs {
		b, err := doc.MarshalJSON()
		if err != nil {
			return err
		}
		if err := writeLine(buf, b); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func writeLine(w *bufio.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// Import reads a snapshot from r. It returns the surviving documents in the
// order their _id first appeared and the declared index fields in declaration
// order. Lines that cannot be read are skipped and logged, unless their share
// exceeds the corrupt alert threshold, in which case
// [domain.ErrCorruptSnapshot] is returned.
func (p *Persistence) Import(ctx context.Context, r io.Reader, opts ...domain.SnapshotOption) (docs []*domain.Document, indexes []string, err error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}
	so := p.options(opts)

	in := contextio.NewReader(ctx, r)
	if so.Compression {
		dec, err := zstd.NewReader(in)
		if err != nil {
			return nil, nil, err
		}
		defer dec.Close()
		in = dec
	}

	st := newState()
	corruptItems := 0
	dataLength := 0

	lineStream := bufio.NewScanner(in)
	lineStream.Buffer(nil, maxLineSize)
	lineNumber := 0
	for lineStream.Scan() {
		lineNumber++
		line := lineStream.Bytes()
		if len(line) == 0 {
			continue
		}
		dataLength++
		if err := p.treatLine(line, st); err != nil {
			corruptItems++
			p.log.Warn("rejected snapshot line", slog.Int("line", lineNumber), slog.Any("error", err))
		}
	}
	if err := lineStream.Err(); err != nil {
		return nil, nil, err
	}

	if dataLength > 0 {
		corruptionRate := float64(corruptItems) / float64(dataLength)
		if corruptionRate > so.CorruptAlertThreshold {
			return nil, nil, domain.ErrCorruptSnapshot{
				CorruptionRate:        corruptionRate,
				CorruptItems:          corruptItems,
				DataLength:            dataLength,
				CorruptAlertThreshold: so.CorruptAlertThreshold,
			}
		}
	}
	docs, indexes = st.result()
	return docs, indexes, nil
}

func (p *Persistence) treatLine(line []byte, st *state) error {
	doc, err := data.ParseJSON(line)
	if err != nil {
		return err
	}
	if id, ok := doc.ID(); ok {
		if v, ok := doc.Get("$$deleted"); ok {
			if n, _ := v.AsInt(); n != 1 {
				return fmt.Errorf("invalid $$deleted marker %s", v)
			}
			st.deleteDoc(id)
			return nil
		}
		st.setDoc(id, doc)
		return nil
	}
	return p.treatIndexLine(doc, st)
}

// treatIndexLine applies an index record. Documents without _id that are not
// index records are ignored.
func (p *Persistence) treatIndexLine(doc *domain.Document, st *state) error {
	if _, ok := doc.GetPath("$$indexCreated.fieldName"); ok {
		var dto domain.IndexDTO
		if err := p.decoder.Decode(doc, &dto); err != nil {
			return err
		}
		if dto.IndexCreated.FieldName == "" {
			return domain.ErrNoFieldName
		}
		st.addIndex(dto.IndexCreated.FieldName)
		return nil
	}
	if v, ok := doc.Get("$$indexRemoved"); ok {
		field, ok := v.AsString()
		if !ok {
			return fmt.Errorf("invalid $$indexRemoved record %s", v)
		}
		st.removeIndex(field)
	}
	return nil
}
