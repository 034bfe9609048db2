// Package decoder contains the default [domain.Decoder] implementation.
package decoder

import (
	"fmt"

	"github.com/goccy/go-reflect"
	"github.com/mitchellh/mapstructure"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/data"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// Decoder implements domain.Decoder.
type Decoder struct{}

// NewDecoder returns a new implementation of domain.Decoder.
func NewDecoder() domain.Decoder {
	return &Decoder{}
}

// Decode implements domain.Decoder. Documents can be decoded into structs,
// maps, or another *domain.Document.
func (d *Decoder) Decode(source any, target any) error {
	if target == nil {
		return domain.ErrTargetNil
	}

	value := reflect.ValueNoEscapeOf(target)
	if value.Kind() != reflect.Ptr {
		return domain.ErrNonPointer
	}
	if value.IsNil() {
		return domain.ErrTargetNil
	}

	if tgt, ok := target.(*domain.Document); ok {
		doc, err := data.NewDocument(source)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrDecode{Source: source, Target: target}, err)
		}
		*tgt = *doc
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: data.TagName,
		Result:  target,
	})
	if err != nil {
		return err
	}
	source = d.plain(source)
	if err := dec.Decode(source); err != nil {
		errDec := domain.ErrDecode{Source: source, Target: target}
		return fmt.Errorf("%w: %w", errDec, err)
	}
	return nil
}

// plain converts documents and values into maps and scalars mapstructure
// knows how to read.
func (d *Decoder) plain(value any) any {
	switch t := value.(type) {
	case *domain.Document:
		if t == nil {
			return nil
		}
		return t.Map()
	case domain.Value:
		return t.Interface()
	default:
		return value
	}
}
