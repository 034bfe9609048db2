// Package idgenerator contains the default [domain.IDGenerator] implementation
// using base64-encoded random bytes.
package idgenerator

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// IDGenerator implements [domain.IDGenerator].
type IDGenerator struct {
	reader io.Reader
}

// NewIDGenerator implements [domain.IDGenerator].
func NewIDGenerator(opts ...Option) domain.IDGenerator {
	i := IDGenerator{
		reader: rand.Reader,
	}
	for _, opt := range opts {
		opt(&i)
	}
	return &i
}

// GenerateID implements [domain.IDGenerator]. The id only contains letters
// and digits.
func (i *IDGenerator) GenerateID(l int) (string, error) {
	res := make([]byte, 0, l)
	buf := make([]byte, max(8, l))
	for len(res) < l {
		if _, err := io.ReadFull(i.reader, buf); err != nil {
			return "", err
		}
		for _, b := range []byte(base64.RawStdEncoding.EncodeToString(buf)) {
			if b == '+' || b == '/' {
				continue
			}
			res = append(res, b)
			if len(res) == l {
				break
			}
		}
	}
	return string(res), nil
}
