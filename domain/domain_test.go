package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

type DomainTestSuite struct {
	suite.Suite
}

func (s *DomainTestSuite) TestOptions() {
	var fos domain.FindOptions
	fo := []domain.FindOption{
		domain.WithFindSkip(2),
		domain.WithFindLimit(3),
	}
	for _, opt := range fo {
		opt(&fos)
	}
	s.Equal(domain.FindOptions{Skip: 2, Limit: 3}, fos)

	var uos domain.UpdateOptions
	uo := []domain.UpdateOption{
		domain.WithUpdateMulti(true),
		domain.WithUpsert(true),
	}
	for _, opt := range uo {
		opt(&uos)
	}
	s.Equal(domain.UpdateOptions{Multi: true, Upsert: true}, uos)

	var ros domain.RemoveOptions
	domain.WithRemoveMulti(true)(&ros)
	s.Equal(domain.RemoveOptions{Multi: true}, ros)

	var sos domain.SnapshotOptions
	domain.WithSnapshotCompression(true)(&sos)
	domain.WithSnapshotCorruptAlertThreshold(0.5)(&sos)
	s.Equal(domain.SnapshotOptions{Compression: true, CorruptAlertThreshold: 0.5}, sos)
}

func (s *DomainTestSuite) TestDocumentOrder() {
	d := domain.NewDocument()
	d.Set("x", domain.Int(2))
	d.Set("a", domain.Int(3))
	d.Set("_id", domain.Int(5))

	b, err := d.MarshalJSON()
	s.NoError(err)
	s.Equal(`{"_id":5,"x":2,"a":3}`, string(b))

	d.Unset("x")
	s.Equal([]string{"_id", "a"}, collect(d))
	s.False(d.Has("x"))
}

func (s *DomainTestSuite) TestPaths() {
	d := domain.NewDocument()
	s.True(d.SetPath("a.b.c", domain.String("deep")))

	v, ok := d.GetPath("a.b.c")
	s.True(ok)
	s.Equal(domain.String("deep"), v)

	_, ok = d.GetPath("a.z")
	s.False(ok)

	d.Set("n", domain.Int(1))
	s.False(d.SetPath("n.m", domain.Int(2)))
}

// Nested documents handed out by Get cannot change the parent.
func (s *DomainTestSuite) TestImmutableNested() {
	inner := domain.NewDocument()
	inner.Set("k", domain.Int(1))
	d := domain.NewDocument()
	d.Set("in", domain.Doc(inner))

	inner.Set("k", domain.Int(2))
	v, _ := d.Get("in")
	got, ok := v.AsDocument()
	s.True(ok)
	got.Set("k", domain.Int(3))

	v, _ = d.GetPath("in.k")
	s.Equal(domain.Int(1), v)
}

func (s *DomainTestSuite) TestValueKeyAndEqual() {
	a := domain.NewDocument()
	a.Set("x", domain.Int(1))
	a.Set("y", domain.String("1"))
	b := domain.NewDocument()
	b.Set("y", domain.String("1"))
	b.Set("x", domain.Int(1))

	s.True(domain.Doc(a).Equal(domain.Doc(b)))
	s.Equal(domain.Doc(a).Key(), domain.Doc(b).Key())
	s.NotEqual(domain.Int(1).Key(), domain.String("1").Key())
	s.True(domain.Value{}.IsNull())
	s.Equal(domain.Null(), domain.Doc(nil))
}

func (s *DomainTestSuite) TestFilterKey() {
	f1 := domain.Filter{Predicates: []domain.Predicate{
		{Field: "a", Kind: domain.PredicateEq, Value: domain.Int(1)},
		{Field: "b", Kind: domain.PredicateRegex, Pattern: "^x"},
	}}
	f2 := domain.Filter{Predicates: []domain.Predicate{f1.Predicates[1], f1.Predicates[0]}}
	s.Equal(f1.Key(), f2.Key())
	s.Len(f1.Equalities(), 1)
}

func (s *DomainTestSuite) TestErrors() {
	s.ErrorIs(domain.ErrNonObject, domain.ErrParse)
	s.ErrorIs(domain.ErrMixedOperators, domain.ErrParse)
	s.ErrorIs(domain.ErrUnknownModifier{Name: "$push"}, domain.ErrParse)
	s.ErrorIs(domain.ErrModArgType{Mod: "$inc"}, domain.ErrParse)
	s.False(errors.Is(domain.ErrAmbiguousUpdate, domain.ErrParse))
	s.Contains(domain.ErrCorruptSnapshot{CorruptionRate: 0.5, CorruptAlertThreshold: 0.1}.Error(), "50%")
}

func collect(d *domain.Document) []string {
	var res []string
	for k := range d.Keys() {
		res = append(res, k)
	}
	return res
}

func TestDomainTestSuite(t *testing.T) {
	suite.Run(t, new(DomainTestSuite))
}
