package docdb

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/datastore"
)

type DBTestSuite struct {
	suite.Suite
	db *DB
}

func (s *DBTestSuite) SetupTest() {
	s.db = NewDB()
}

func (s *DBTestSuite) TestLazyCollections() {
	s.Empty(s.db.Collections())

	name := uuid.New().String()
	c1, err := s.db.Collection(name)
	s.NoError(err)
	c2, err := s.db.Collection(name)
	s.NoError(err)
	s.Same(c1, c2)
	s.Equal(name, c1.Name())

	_, err = s.db.Collection("a")
	s.NoError(err)
	s.Equal(slices.Sorted(slices.Values([]string{"a", name})), s.db.Collections())
}

func (s *DBTestSuite) TestConcurrentCollection() {
	var wg sync.WaitGroup
	got := make([]*Collection, 16)
	for n := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[n], _ = s.db.Collection("shared")
		}()
	}
	wg.Wait()
	for _, c := range got {
		s.Same(got[0], c)
	}
}

func (s *DBTestSuite) TestDropCollection() {
	ctx := context.Background()
	c, err := s.db.Collection("people")
	s.Require().NoError(err)
	_, err = c.Insert(ctx, M{"_id": 1})
	s.Require().NoError(err)
	s.NoError(c.EnsureIndex(ctx, "name"))

	s.NoError(s.db.DropCollection(ctx, "people"))
	s.NoError(s.db.DropCollection(ctx, "people"))
	s.Empty(s.db.Collections())
	s.Equal(0, c.Len())

	fresh, err := s.db.Collection("people")
	s.NoError(err)
	s.NotSame(c, fresh)
	s.Empty(fresh.Indexes())
}

func (s *DBTestSuite) TestClose() {
	ctx := context.Background()
	c, err := s.db.Collection("a")
	s.Require().NoError(err)
	_, err = c.Insert(ctx, M{"x": 1})
	s.Require().NoError(err)

	s.NoError(s.db.Close(ctx))
	s.Equal(0, c.Len())
	s.ErrorIs(s.db.Close(ctx), ErrDBClosed)
	_, err = s.db.Collection("a")
	s.ErrorIs(err, ErrDBClosed)
	s.ErrorIs(s.db.DropCollection(ctx, "a"), ErrDBClosed)
	s.Empty(s.db.Collections())
}

func (s *DBTestSuite) TestOptions() {
	var logs bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s.db = NewDB(WithLogger(l), WithCollectionOptions(datastore.WithIDLength(4)))

	c, err := s.db.Collection("logged")
	s.Require().NoError(err)
	docs, err := c.Insert(context.Background(), M{})
	s.Require().NoError(err)
	id, _ := docs[0].ID()
	str, ok := id.AsString()
	s.True(ok)
	s.Len(str, 4)

	s.Contains(logs.String(), `msg="collection created" collection=logged`)
}

func (s *DBTestSuite) TestReexports() {
	ctx := context.Background()
	c, err := s.db.Collection("c")
	s.Require().NoError(err)

	_, err = c.Upsert(ctx, M{"_id": 1}, M{"$set": M{"a": 1}, "b": 1}, true)
	s.ErrorIs(err, ErrMixedOperators)
	s.ErrorIs(err, ErrParse)

	_, err = c.Upsert(ctx, M{"_id": 1}, D{{Key: "$set", Value: M{"a": 1}}}, false)
	s.ErrorIs(err, ErrNotFound)

	cur, err := c.Update(ctx, M{"_id": 1}, M{"$inc": M{"n": 1}}, WithUpsert(true))
	s.NoError(err)
	s.True(cur.Next())
	s.NoError(cur.Close())
	s.ErrorIs(cur.Close(), ErrCursorClosed)
}

func TestDBTestSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}
