// Package hasher contains an fnv based implementation of [domain.Hasher]. It
// hashes the canonical key encoding of values, so values that are
// [domain.Value.Equal] always share a hash, regardless of field order.
package hasher

import (
	"hash/fnv"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// Hasher implements [domain.Hasher].
type Hasher struct{}

// NewHasher returns a new implementation of [domain.Hasher].
func NewHasher() domain.Hasher {
	return &Hasher{}
}

// Hash implements domain.Hasher.
func (h *Hasher) Hash(value any) (uint64, error) {
	var canonical string
	switch v := value.(type) {
	case domain.Value:
		canonical = "v" + v.Key()
	case *domain.Document:
		canonical = "v" + domain.Doc(v).Key()
	case domain.Filter:
		canonical = "f" + v.Key()
	case string:
		canonical = "k" + v
	default:
		return 0, domain.ErrDocumentType{Reason: "cannot hash value", Value: value}
	}

	hasher := fnv.New64a()

	_, _ = hasher.Write([]byte(canonical)) // fnv.sum64a.Write never returns error

	return hasher.Sum64(), nil
}
