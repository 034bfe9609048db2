package querier

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/data"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/index"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/docdb/adapter/store"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

type indexesMock struct{ mock.Mock }

func (i *indexesMock) Index(field string) (domain.Index, error) {
	call := i.Called(field)
	idx, _ := call.Get(0).(domain.Index)
	return idx, call.Error(1)
}

type indexMock struct {
	mock.Mock
	domain.Index
}

func (i *indexMock) Match(v domain.Value) ([]string, error) {
	call := i.Called(v)
	keys, _ := call.Get(0).([]string)
	return keys, call.Error(1)
}

func (i *indexMock) RangeScan(lower, upper *domain.Value) iter.Seq2[string, error] {
	return i.Called(lower, upper).Get(0).(iter.Seq2[string, error])
}

type QuerierTestSuite struct {
	suite.Suite
	manager *index.Manager
	store   *store.Store
	indexed *Querier
	scan    *Querier
}

func (s *QuerierTestSuite) SetupTest() {
	s.manager = index.NewManager()
	s.store = store.New(store.WithObserver(s.manager))
	s.indexed = NewQuerier(s.store, s.manager).(*Querier)
	s.scan = NewQuerier(s.store, index.NewManager()).(*Querier)
}

func (s *QuerierTestSuite) insert(docs ...any) {
	for _, in := range docs {
		d, err := data.NewDocument(in)
		s.Require().NoError(err)
		_, err = s.store.Insert(d)
		s.Require().NoError(err)
	}
}

func (s *QuerierTestSuite) createIndex(field string) {
	s.Require().NoError(s.store.Barrier(func(docs iter.Seq2[string, *domain.Document]) error {
		_, err := s.manager.CreateIndex(field, docs)
		return err
	}))
}

func (s *QuerierTestSuite) filter(in any) domain.Filter {
	f, err := matcher.CompileFilter(in)
	s.Require().NoError(err)
	return f
}

func (s *QuerierTestSuite) ids(q *Querier, f domain.Filter) []string {
	var res []string
	for d, err := range q.Find(context.Background(), f) {
		s.Require().NoError(err)
		id, _ := d.ID()
		res = append(res, id.String())
	}
	return res
}

func (s *QuerierTestSuite) TestIndexTransparency() {
	s.insert(
		data.M{"name": "eliot"},
		data.M{"name": "emily"},
		data.M{"name": "bob"},
		data.M{"name": "aaron"},
	)
	f := s.filter(data.M{"name": regexp.MustCompile(`^e.*`)})

	s.False(s.indexed.Plan(f).UsesIndex)
	n, err := s.indexed.Count(context.Background(), f)
	s.NoError(err)
	s.Equal(2, n)

	s.createIndex("name")
	s.Equal(domain.Plan{Field: "name", UsesIndex: true}, s.indexed.Plan(f))
	n, err = s.indexed.Count(context.Background(), f)
	s.NoError(err)
	s.Equal(2, n)
	s.ElementsMatch(s.ids(s.scan, f), s.ids(s.indexed, f))
}

func (s *QuerierTestSuite) TestPlan() {
	s.createIndex("a")
	cases := []struct {
		filter any
		plan   domain.Plan
	}{
		{data.M{"a": 1}, domain.Plan{Field: "a", UsesIndex: true}},
		{data.M{"a": nil}, domain.Plan{Field: "a", UsesIndex: true}},
		{data.M{"a": regexp.MustCompile("^x")}, domain.Plan{Field: "a", UsesIndex: true}},
		{data.M{"a": regexp.MustCompile("x")}, domain.Plan{}},
		{data.M{"a": regexp.MustCompile("(?i)^x")}, domain.Plan{}},
		{data.M{"b": 1}, domain.Plan{}},
		{data.D{{"b", 1}, {"a", 2}}, domain.Plan{Field: "a", UsesIndex: true}},
		{nil, domain.Plan{}},
	}
	for _, c := range cases {
		s.Equal(c.plan, s.indexed.Plan(s.filter(c.filter)), "%v", c.filter)
	}
}

// Candidates from the index are checked against the whole filter.
func (s *QuerierTestSuite) TestRecheck() {
	s.insert(
		data.M{"_id": 1, "name": "eliot", "age": 3},
		data.M{"_id": 2, "name": "emily", "age": 4},
		data.M{"_id": 3, "name": "e", "age": 3},
	)
	s.createIndex("name")

	f := s.filter(data.M{"name": regexp.MustCompile(`^el|^e$`), "age": 3})
	s.False(s.indexed.Plan(f).UsesIndex)

	f = s.filter(data.M{"name": regexp.MustCompile(`^e.*t$`), "age": 3})
	s.True(s.indexed.Plan(f).UsesIndex)
	s.Equal([]string{"1"}, s.ids(s.indexed, f))
}

func (s *QuerierTestSuite) TestIdempotentFind() {
	s.insert(data.M{"a": 1}, data.M{"a": 2}, data.M{"a": 1})
	s.createIndex("a")
	f := s.filter(data.M{"a": 1})
	first := s.ids(s.indexed, f)
	s.Len(first, 2)
	for range 5 {
		s.Equal(first, s.ids(s.indexed, f))
	}
}

// Keys the index still returns for removed documents are skipped.
func (s *QuerierTestSuite) TestStaleKeys() {
	s.insert(data.M{"_id": 1, "a": 1})
	idx := new(indexMock)
	idx.On("Match", domain.Int(1)).Return([]string{"gone", store.Key(domain.Int(1))}, nil)
	indexes := new(indexesMock)
	indexes.On("Index", "a").Return(idx, nil)

	q := NewQuerier(s.store, indexes).(*Querier)
	s.Equal([]string{"1"}, s.ids(q, s.filter(data.M{"a": 1})))
}

func (s *QuerierTestSuite) TestIndexError() {
	errIndex := errors.New("index error")
	idx := new(indexMock)
	idx.On("Match", domain.Int(1)).Return(nil, errIndex)
	idx.On("RangeScan", mock.Anything, mock.Anything).Return(iter.Seq2[string, error](func(yield func(string, error) bool) {
		yield("", errIndex)
	}))
	indexes := new(indexesMock)
	indexes.On("Index", "a").Return(idx, nil)
	q := NewQuerier(s.store, indexes).(*Querier)

	_, err := q.Count(context.Background(), s.filter(data.M{"a": 1}))
	s.ErrorIs(err, errIndex)
	_, err = q.Count(context.Background(), s.filter(data.M{"a": regexp.MustCompile("^a")}))
	s.ErrorIs(err, errIndex)
}

func (s *QuerierTestSuite) TestPrefixWithoutSuccessor() {
	long := string(rune(0x10FFFF))
	s.insert(data.M{"a": long}, data.M{"a": long + "x"}, data.M{"a": "z"}, data.M{"a": data.M{"k": long}})
	s.createIndex("a")
	f := s.filter(data.M{"a": regexp.MustCompile("^" + long)})
	s.True(s.indexed.Plan(f).UsesIndex)
	n, err := s.indexed.Count(context.Background(), f)
	s.NoError(err)
	s.Equal(2, n)
}

func (s *QuerierTestSuite) TestContext() {
	s.insert(data.M{"a": 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.scan.Count(ctx, s.filter(nil))
	s.ErrorIs(err, context.Canceled)
}

func (s *QuerierTestSuite) TestStopEarly() {
	s.insert(data.M{"a": 1}, data.M{"a": 1}, data.M{"a": 1})
	s.createIndex("a")
	for _, q := range []*Querier{s.indexed, s.scan} {
		n := 0
		for range q.Find(context.Background(), s.filter(data.M{"a": 1})) {
			n++
			break
		}
		s.Equal(1, n)
	}
}

// After an index is declared, random inserts, updates and deletes keep the
// index plan equal to a full scan.
func (s *QuerierTestSuite) TestIncrementalConsistency() {
	names := []string{"", "e", "el", "eliot", "emily", "bob", "aaron", "ém", "\U0010FFFF"}
	value := func(r *rand.Rand) any {
		switch r.IntN(5) {
		case 0:
			return nil
		case 1:
			return r.IntN(4)
		case 2:
			return data.M{"k": r.IntN(2)}
		default:
			return names[r.IntN(len(names))]
		}
	}
	filters := []any{
		data.M{"name": regexp.MustCompile(`^e.*`)},
		data.M{"name": regexp.MustCompile(`^el`)},
		data.M{"name": regexp.MustCompile(`^é`)},
		data.M{"name": regexp.MustCompile(`^` + "\U0010FFFF")},
		data.M{"name": "eliot"},
		data.M{"name": nil},
		data.M{"name": 2},
		data.M{"name": data.M{"k": 1}},
	}

	for seq := range 120 {
		s.Run(fmt.Sprintf("Sequence%d", seq), func() {
			s.SetupTest()
			r := rand.New(rand.NewPCG(uint64(seq), 42))
			s.createIndex("name")

			var ids []int
			for op := range 60 {
				switch n := r.IntN(10); {
				case n < 4 || len(ids) == 0:
					doc := data.M{"_id": op}
					if r.IntN(5) > 0 {
						doc["name"] = value(r)
					}
					s.insert(doc)
					ids = append(ids, op)
				case n < 8:
					id := ids[r.IntN(len(ids))]
					newValue := value(r)
					unset := r.IntN(6) == 0
					_, err := s.store.Modify(store.Key(domain.Int(int64(id))), func(d *domain.Document) (*domain.Document, error) {
						if unset {
							d.Unset("name")
							return d, nil
						}
						v, err := data.NewValue(newValue)
						if err != nil {
							return nil, err
						}
						d.Set("name", v)
						return d, nil
					})
					s.Require().NoError(err)
				default:
					pos := r.IntN(len(ids))
					s.Require().NoError(s.store.Delete(domain.Int(int64(ids[pos]))))
					ids = slices.Delete(ids, pos, pos+1)
				}
			}

			for _, in := range filters {
				f := s.filter(in)
				s.Require().True(s.indexed.Plan(f).UsesIndex)
				s.ElementsMatch(s.ids(s.scan, f), s.ids(s.indexed, f), "%v", in)
			}
		})
	}
}

func TestQuerierTestSuite(t *testing.T) {
	suite.Run(t, new(QuerierTestSuite))
}
